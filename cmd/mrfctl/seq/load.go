// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package seq

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ess-dmsc/mrf-core/cmd/mrfctl/device"
	"github.com/ess-dmsc/mrf-core/seqstore"
)

// NewLoadCommand builds "mrfctl seq load": pull a named playlist out of
// the database (or a YAML file, if given instead), apply and commit it
// onto a fresh soft sequence, load it into slot, and enable it.
func NewLoadCommand() *cobra.Command {
	var id int
	var uioPath, dbname, name, file string
	var slot int

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load a playlist onto an EVG card and enable it",
		RunE: func(cmd *cobra.Command, args []string) error {
			var p seqstore.Playlist
			var err error
			switch {
			case file != "":
				p, err = seqstore.ImportYAML(file)
			case name != "" && dbname != "":
				var db *seqstore.DB
				db, err = seqstore.Open(dbname)
				if err != nil {
					return err
				}
				defer db.Close()
				p, err = db.Load(cmd.Context(), name)
			default:
				return fmt.Errorf("mrfctl: give either --%s or both --%s and --%s", FileOptionName, DBOptionName, NameOptionName)
			}
			if err != nil {
				return err
			}

			card, err := device.OpenEVG(cmd.Context(), id, uioPath, 2)
			if err != nil {
				return err
			}

			s := card.NewSequence()
			if err := seqstore.ApplyTo(s, p); err != nil {
				return err
			}
			if err := card.Commit(s); err != nil {
				return err
			}
			loaded, err := card.Load(s, slot)
			if err != nil {
				return err
			}
			if err := card.Enable(s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "playlist %q loaded into evg%d slot %d and enabled\n", p.Name, id, loaded)
			return nil
		},
	}
	cmd.Flags().IntVar(&id, IdOptionName, 0, "card id")
	cmd.Flags().StringVar(&uioPath, DeviceOptionName, "", "UIO device node, e.g. /dev/uio0")
	cmd.MarkFlagRequired(DeviceOptionName)
	cmd.Flags().StringVar(&dbname, DBOptionName, "", "playlist database name")
	cmd.Flags().StringVar(&name, NameOptionName, "", "playlist name within the database")
	cmd.Flags().StringVar(&file, FileOptionName, "", "load a playlist from a YAML file instead of the database")
	cmd.Flags().IntVar(&slot, SlotOptionName, -1, "sequence RAM slot, or -1 for the first free one")
	return cmd
}

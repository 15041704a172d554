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

// NewExportCommand builds "mrfctl seq export": snapshot the sequence
// currently loaded in a slot and either save it under a name in the
// database or write it out as YAML.
func NewExportCommand() *cobra.Command {
	var id, slot int
	var uioPath, dbname, name, file string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Snapshot a loaded sequence back out as a playlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			card, err := device.OpenEVG(cmd.Context(), id, uioPath, 2)
			if err != nil {
				return err
			}
			s := card.SequenceInSlot(slot)
			if s == nil {
				return fmt.Errorf("mrfctl: evg%d slot %d has no loaded sequence", id, slot)
			}
			p := seqstore.FromSequence(name, s)

			switch {
			case file != "":
				return seqstore.ExportYAML(file, p)
			case dbname != "":
				db, err := seqstore.Open(dbname)
				if err != nil {
					return err
				}
				defer db.Close()
				return db.Save(cmd.Context(), p)
			default:
				return fmt.Errorf("mrfctl: give either --%s or --%s", FileOptionName, DBOptionName)
			}
		},
	}
	cmd.Flags().IntVar(&id, IdOptionName, 0, "card id")
	cmd.Flags().StringVar(&uioPath, DeviceOptionName, "", "UIO device node, e.g. /dev/uio0")
	cmd.MarkFlagRequired(DeviceOptionName)
	cmd.Flags().IntVar(&slot, SlotOptionName, 0, "sequence RAM slot to snapshot")
	cmd.Flags().StringVar(&name, NameOptionName, "", "name to save the snapshot under")
	cmd.MarkFlagRequired(NameOptionName)
	cmd.Flags().StringVar(&dbname, DBOptionName, "", "save into this playlist database")
	cmd.Flags().StringVar(&file, FileOptionName, "", "save as a YAML file instead of the database")
	return cmd
}

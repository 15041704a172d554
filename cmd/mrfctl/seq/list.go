// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package seq

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ess-dmsc/mrf-core/seqstore"
)

// NewListCommand builds "mrfctl seq list": print every playlist name
// stored in a database.
func NewListCommand() *cobra.Command {
	var dbname string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List playlists stored in a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := seqstore.Open(dbname)
			if err != nil {
				return err
			}
			defer db.Close()

			names, err := db.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbname, DBOptionName, "", "playlist database name")
	cmd.MarkFlagRequired(DBOptionName)
	return cmd
}

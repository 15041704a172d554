// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package seq holds mrfctl's soft-sequence playlist subcommands: loading
// a stored playlist onto an EVG card's sequence RAM and enabling it, and
// exporting a card's currently committed sequence back out as a
// playlist.
package seq

import "github.com/spf13/cobra"

// Flag names shared across this package's leaf commands.
const (
	IdOptionName     = "id"
	DeviceOptionName = "device"
	DBOptionName     = "db"
	NameOptionName   = "name"
	FileOptionName   = "file"
	SlotOptionName   = "slot"
)

// NewCommand groups the soft-sequence leaf commands under "mrfctl seq".
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seq",
		Short: "Manage soft-sequence playlists on an EVG card",
	}
	cmd.AddCommand(NewLoadCommand())
	cmd.AddCommand(NewListCommand())
	cmd.AddCommand(NewExportCommand())
	return cmd
}

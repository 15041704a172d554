// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package reg holds mrfctl's register-level subcommands: open a card by
// its UIO device node and either read or write one raw 32-bit register.
package reg

import "github.com/spf13/cobra"

// Flag names shared between read.go and write.go.
const (
	KindOptionName   = "kind"
	IdOptionName     = "id"
	DeviceOptionName = "device"
	OffsetOptionName = "offset"
	ValueOptionName  = "value"
)

// NewCommand groups the register-level leaf commands under "mrfctl reg".
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reg",
		Short: "Read or write a card register directly",
	}
	cmd.AddCommand(NewReadCommand())
	cmd.AddCommand(NewWriteCommand())
	return cmd
}

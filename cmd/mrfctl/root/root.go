// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cmd builds the mrfctl operator CLI: register-level read/write,
// soft-sequence playlist management, and a read-only HTTP introspection
// server, all addressing cards through the process-wide registry the
// device package's bring-up helpers populate.
package cmd // import "github.com/ess-dmsc/mrf-core/cmd/mrfctl/root"

import (
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/ess-dmsc/mrf-core/cmd/mrfctl/reg"
	"github.com/ess-dmsc/mrf-core/cmd/mrfctl/seq"
	"github.com/ess-dmsc/mrf-core/cmd/mrfctl/serve"
)

// VerboseOptionName toggles logging on the background interrupt pollers
// that opening a card starts.
const VerboseOptionName = "verbose"

// NewRootCommand builds the mrfctl command tree.
func NewRootCommand(out io.Writer) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "mrfctl",
		Short: "Operator tool for MRF-family event generator/receiver cards",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if !verbose {
				log.SetOutput(io.Discard)
			}
		},
	}
	cmd.SetOut(out)
	cmd.AddCommand(reg.NewCommand())
	cmd.AddCommand(seq.NewCommand())
	cmd.AddCommand(serve.NewCommand())
	cmd.PersistentFlags().BoolVar(&verbose, VerboseOptionName, false, "log background dispatcher activity")
	return cmd
}

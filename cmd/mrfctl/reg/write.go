// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package reg

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ess-dmsc/mrf-core/cmd/mrfctl/device"
)

// NewWriteCommand builds "mrfctl reg write".
func NewWriteCommand() *cobra.Command {
	var kind, uioPath string
	var id int
	var offset int64
	var value uint32

	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write one raw 32-bit register",
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeRegister(cmd.Context(), kind, id, uioPath, offset, value)
		},
	}
	cmd.Flags().StringVar(&kind, KindOptionName, "", "card kind: evr or evg")
	cmd.MarkFlagRequired(KindOptionName)
	cmd.Flags().IntVar(&id, IdOptionName, 0, "card id")
	cmd.Flags().StringVar(&uioPath, DeviceOptionName, "", "UIO device node, e.g. /dev/uio0")
	cmd.MarkFlagRequired(DeviceOptionName)
	cmd.Flags().Int64Var(&offset, OffsetOptionName, 0, "register byte offset (e.g. 0x8)")
	cmd.MarkFlagRequired(OffsetOptionName)
	cmd.Flags().Uint32Var(&value, ValueOptionName, 0, "value to write")
	cmd.MarkFlagRequired(ValueOptionName)
	return cmd
}

func writeRegister(ctx context.Context, kind string, id int, uioPath string, offset int64, value uint32) error {
	switch kind {
	case "evr":
		card, err := device.OpenEVR(ctx, id, uioPath)
		if err != nil {
			return err
		}
		return card.WriteRegister(offset, value)
	case "evg":
		card, err := device.OpenEVG(ctx, id, uioPath, 2)
		if err != nil {
			return err
		}
		return card.WriteRegister(offset, value)
	default:
		return fmt.Errorf("mrfctl: unknown card kind %q, want evr or evg", kind)
	}
}

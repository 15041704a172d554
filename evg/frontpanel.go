// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evg

import (
	"github.com/ess-dmsc/mrf-core/errs"
	"github.com/ess-dmsc/mrf-core/regio"
)

// FrontPanelSource enumerates what a front-panel input pin feeds into: an
// externally-driven event code, an external hardware trigger for a mux
// counter, or unused.
type FrontPanelSource int

const (
	FPUnused FrontPanelSource = iota
	FPEventCode
	FPExternalTrigger
)

// FrontPanelInput binds one front-panel input pin to a source, and (for
// FPEventCode) an external-IRQ arm bit shared with the input's own
// register, mirroring EVR's Input.EnableExternalIRQ but on the EVG side.
type FrontPanelInput struct {
	id   int
	sel  regio.Field8
	ctrl regio.Field32
}

const fpCtrlExtIRQ uint32 = 1 << 0

func newFrontPanelInput(win *regio.Window, id int) *FrontPanelInput {
	base := offFrontPanelBase + int64(id)*8
	return &FrontPanelInput{
		id:   id,
		sel:  regio.NewField8(win, base),
		ctrl: regio.NewField32(win, base+4),
	}
}

// SetSource routes this input.
func (f *FrontPanelInput) SetSource(src FrontPanelSource) error {
	switch src {
	case FPUnused, FPEventCode, FPExternalTrigger:
		return f.sel.Set(uint8(src))
	default:
		return &errs.RangeError{Field: "frontpanel.source", Value: src, Msg: "unknown source kind"}
	}
}

// EnableExternalIRQ arms this input as an external interrupt source, used
// by the timestamp source configuration per component 4.F.
func (f *FrontPanelInput) EnableExternalIRQ(on bool) error {
	if on {
		return f.ctrl.SetBits(fpCtrlExtIRQ)
	}
	return f.ctrl.ClearBits(fpCtrlExtIRQ)
}

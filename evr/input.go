// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr

import "github.com/ess-dmsc/mrf-core/regio"

// Input is a front-panel or backplane trigger input.
type Input struct {
	id   int
	ctrl regio.Field32
}

const (
	inputCtrlExtIRQ uint32 = 1 << 0
	inputCtrlActive uint32 = 1 << 1 // active-high vs. active-low edge select
)

func newInput(win *regio.Window, id int, off int64) *Input {
	return &Input{id: id, ctrl: regio.NewField32(win, off)}
}

// EnableExternalIRQ arms or disarms this input as an external interrupt
// source, used by the timestamp source configuration on EVG cards and by
// auxiliary trigger inputs on EVR cards.
func (in *Input) EnableExternalIRQ(on bool) error {
	if on {
		return in.ctrl.SetBits(inputCtrlExtIRQ)
	}
	return in.ctrl.ClearBits(inputCtrlExtIRQ)
}

// ActiveHigh selects the edge polarity this input triggers on.
func (in *Input) ActiveHigh(high bool) error {
	if high {
		return in.ctrl.SetBits(inputCtrlActive)
	}
	return in.ctrl.ClearBits(inputCtrlActive)
}

// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr

import (
	"github.com/ess-dmsc/mrf-core/errs"
	"github.com/ess-dmsc/mrf-core/regio"
)

// Pulser is a programmable delay/width output generator.
type Pulser struct {
	id int

	ctrl  regio.Field32
	delay regio.Field32
	width regio.Field32

	prescale uint32
}

const (
	pulserCtrlEnable   uint32 = 1 << 31
	pulserCtrlPolarity uint32 = 1 << 30
)

func newPulser(win *regio.Window, id int, base int64) *Pulser {
	return &Pulser{
		id:    id,
		ctrl:  regio.NewField32(win, base+0x00),
		delay: regio.NewField32(win, base+0x04),
		width: regio.NewField32(win, base+0x08),
	}
}

// Enable turns the pulser output on or off.
func (p *Pulser) Enable(on bool) error {
	if on {
		return p.ctrl.SetBits(pulserCtrlEnable)
	}
	return p.ctrl.ClearBits(pulserCtrlEnable)
}

// Polarity sets the output polarity: false is normal, true is inverted.
func (p *Pulser) Polarity(inverted bool) error {
	if inverted {
		return p.ctrl.SetBits(pulserCtrlPolarity)
	}
	return p.ctrl.ClearBits(pulserCtrlPolarity)
}

// Delay sets the pulser's delay in event clock ticks.
func (p *Pulser) Delay(ticks uint32) error { return p.delay.Set(ticks) }

// Width sets the pulser's width in event clock ticks. Zero is rejected: a
// zero-width pulse cannot appear on the output.
func (p *Pulser) Width(ticks uint32) error {
	if ticks == 0 {
		return &errs.RangeError{Field: "width", Value: ticks, Msg: "pulser width must be > 0"}
	}
	return p.width.Set(ticks)
}

// Prescaler records the divider applied to this pulser's clock input; the
// EVR-wide prescaler bank (see prescaler.go) is the actual hardware target,
// this only stores the divisor in software and writes no register.
func (p *Pulser) Prescaler(divisor uint32) error {
	if divisor == 0 {
		return &errs.RangeError{Field: "prescaler", Value: divisor, Msg: "divisor must be > 0"}
	}
	p.prescale = divisor
	return nil
}

// MaskedBy reports whether this pulser is currently gated by output mask
// maskID. The mrmShared drivers gate pulsers per-mask through a separate
// mask-enable register bank; here it degenerates to a bit test against a
// caller-provided snapshot since no dedicated mask register is modeled.
func (p *Pulser) MaskedBy(maskID uint32, snapshot uint32) bool {
	return snapshot&(1<<maskID) != 0
}

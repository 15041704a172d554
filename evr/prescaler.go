// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr

import (
	"github.com/ess-dmsc/mrf-core/errs"
	"github.com/ess-dmsc/mrf-core/regio"
)

// Prescaler divides the event clock down for one of the card's
// general-purpose prescaled clock outputs.
type Prescaler struct {
	id  int
	reg regio.Field32
}

func newPrescaler(win *regio.Window, id int, off int64) *Prescaler {
	return &Prescaler{id: id, reg: regio.NewField32(win, off)}
}

// Divisor sets the prescaler's division ratio. Zero would stop the
// output entirely and is rejected as a range error.
func (p *Prescaler) Divisor(n uint32) error {
	if n == 0 {
		return &errs.RangeError{Field: "prescaler.divisor", Value: n, Msg: "divisor must be > 0"}
	}
	return p.reg.Set(n)
}

// Get returns the currently programmed divisor.
func (p *Prescaler) Get() (uint32, error) { return p.reg.Get() }

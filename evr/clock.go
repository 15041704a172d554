// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr

import (
	"math"

	"github.com/ess-dmsc/mrf-core/synth"
)

// ClockSet reprograms the event-clock synthesizer to freqMHz. Both FracDiv
// and USecDiv are left untouched when they already hold the values freqMHz
// computes, so a ClockSet repeated with the same frequency is glitch-free:
// it performs no register writes at all.
func (c *Card) ClockSet(freqMHz float64) error {
	word, _, err := synth.CtlWord(freqMHz, synth.DefaultRefMHz, 0)
	if err != nil {
		return err
	}
	usec := uint16(math.Floor(freqMHz))

	cur, err := c.reg.fracDiv.Get()
	if err != nil {
		return err
	}
	if cur != word {
		if err := c.reg.fracDiv.Set(word); err != nil {
			return err
		}
	}

	curUsec, err := c.reg.usecDiv.Get()
	if err != nil {
		return err
	}
	if curUsec != usec {
		return c.reg.usecDiv.Set(usec)
	}
	return nil
}

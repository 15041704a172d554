// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evg

import (
	"github.com/ess-dmsc/mrf-core/errs"
	"github.com/ess-dmsc/mrf-core/regio"
)

// MuxCounter is one of the card's multiplexed event-rate counters: a
// prescaler driven by the event clock whose rollover can be routed to a
// sequence RAM as trigger source 0..7.
type MuxCounter struct {
	id int

	prescale regio.Field32
	trigEna  regio.Field8
}

func newMuxCounter(win *regio.Window, id int) *MuxCounter {
	base := offMuxCounterBase + int64(id)*8
	return &MuxCounter{
		id:       id,
		prescale: regio.NewField32(win, base),
		trigEna:  regio.NewField8(win, base+4),
	}
}

// Prescaler sets the counter's divide ratio against the event clock.
func (m *MuxCounter) Prescaler(n uint32) error {
	if n == 0 {
		return &errs.RangeError{Field: "muxcounter.prescaler", Value: n, Msg: "divisor must be > 0"}
	}
	return m.prescale.Set(n)
}

// TriggerEnable arms or disarms this counter as a sequence-RAM trigger
// source.
func (m *MuxCounter) TriggerEnable(on bool) error {
	var v uint8
	if on {
		v = 1
	}
	return m.trigEna.Set(v)
}

// ID returns 0..7, the trigger-source number this counter corresponds to.
func (m *MuxCounter) ID() int { return m.id }

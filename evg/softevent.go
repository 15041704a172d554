// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evg

import "github.com/ess-dmsc/mrf-core/errs"

// SoftEvent lets software inject an arbitrary event code directly onto the
// link, bypassing the sequence RAM entirely.
type SoftEvent struct {
	regs *regs
}

func newSoftEvent(r *regs) *SoftEvent { return &SoftEvent{regs: r} }

// Enable arms or disarms the software event generator.
func (s *SoftEvent) Enable(on bool) error {
	if on {
		return s.regs.swEventControl.SetBits(swEvtEnable)
	}
	return s.regs.swEventControl.ClearBits(swEvtEnable)
}

// Send writes code and sets the generator's pending bit; it does not wait
// for the pending bit of a prior send to clear. code 0 is reserved as "no
// event" and rejected.
func (s *SoftEvent) Send(code uint8) error {
	if code == 0 {
		return &errs.RangeError{Field: "softevent.code", Value: code, Msg: "event code 0 is reserved"}
	}
	if err := s.regs.swEventCode.Set(uint32(code)); err != nil {
		return err
	}
	return s.regs.swEventControl.SetBits(swEvtPend)
}

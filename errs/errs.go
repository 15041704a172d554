// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errs holds the error kinds shared by every card-facing package
// in this module, per the error handling design: ProgrammerError and
// BadDevice are fatal at the call site, RangeError is returned to the
// caller with no side effect, and TransientLink/HardwareGlitch describe
// conditions the packages themselves recover from.
package errs // import "github.com/ess-dmsc/mrf-core/errs"

import "fmt"

// ProgrammerError marks a misuse of the API that a caller should never
// be able to trigger from valid control-system configuration: an
// out-of-range register offset, a duplicate card id, an illegal BAR
// access. Code that detects one should panic with it rather than
// return it, since there is no sensible recovery.
type ProgrammerError struct {
	Op  string
	Msg string
}

func (e *ProgrammerError) Error() string {
	return fmt.Sprintf("mrf: programmer error in %s: %s", e.Op, e.Msg)
}

// BadDevice reports that a card's register signature does not match an
// EVR/EVG, or that its firmware is older than this driver requires.
type BadDevice struct {
	Card   int
	Reason string
}

func (e *BadDevice) Error() string {
	return fmt.Sprintf("mrf: card %d: bad device: %s", e.Card, e.Reason)
}

// RangeError reports an invalid caller-supplied value: an event code,
// action bit, prescaler value, clock frequency, sequence size or
// timestamp ordering violation. It carries no side effect: whatever
// operation returned it left state unchanged.
type RangeError struct {
	Field string
	Value interface{}
	Msg   string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("mrf: invalid %s=%v: %s", e.Field, e.Value, e.Msg)
}

// TransientLink reports that the fiber link's RXErr condition is
// asserted. It is handled internally (timestamp invalidated, FIFO
// reset, poll callback rescheduled) and recovers on its own; it is
// exposed here only so callers of GetTimeStamp can distinguish "link is
// down" from other errors.
type TransientLink struct {
	Card int
}

func (e *TransientLink) Error() string {
	return fmt.Sprintf("mrf: card %d: link down (RXErr)", e.Card)
}

// HardwareGlitch reports that a known hardware defect corrupted the
// Control register across a timestamp latch, and that the driver
// re-wrote it to compensate.
type HardwareGlitch struct {
	Card int
	Reg  string
}

func (e *HardwareGlitch) Error() string {
	return fmt.Sprintf("mrf: card %d: hardware glitch corrupted %s across latch, corrected", e.Card, e.Reg)
}

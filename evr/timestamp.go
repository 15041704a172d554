// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr

import (
	"sync"
	"time"

	"github.com/ess-dmsc/mrf-core/errs"
)

// posixTimeAtEPICSEpoch is the offset between the POSIX epoch and the
// EPICS epoch (1990-01-01 00:00:00 UTC), per mrfCommon.h's
// POSIX_TIME_AT_EPICS_EPOCH.
const posixTimeAtEPICSEpoch = 631152000

// TimeStamp is a resolved (seconds, nanoseconds) pair relative to the
// EPICS epoch (1990-01-01 00:00:00 UTC).
type TimeStamp struct {
	Sec  uint32
	NSec uint32
}

// timestampEngine implements the validity state machine of component 4.E.
type timestampEngine struct {
	regs   *regs
	clkHz  float64
	cardID int

	mu                 sync.Mutex
	valid              bool
	lastValidSeconds   uint32
	lastInvalidSeconds uint32

	linkDown bool
}

func newTimestampEngine(r *regs, clkHz float64, cardID int) *timestampEngine {
	return &timestampEngine{regs: r, clkHz: clkHz, cardID: cardID}
}

// SecondsTick is the ISR-fired callback invoked when the seconds-counter
// reset event arrives. It returns true if validity changed.
func (e *timestampEngine) SecondsTick() (changed bool, err error) {
	sec, err := e.regs.tsSec.Get()
	if err != nil {
		return false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	wasValid := e.valid
	if sec == 0 || sec == e.lastValidSeconds || sec == e.lastInvalidSeconds {
		e.valid = false
		e.lastInvalidSeconds = sec
	} else {
		e.valid = true
		e.lastValidSeconds = sec
	}
	return wasValid != e.valid, nil
}

// LinkPoll is the periodic (100ms) callback that watches RXErr while the
// link is down; it self-reschedules by returning the delay to wait before
// the caller invokes it again, or zero once the link recovers.
func (e *timestampEngine) LinkPoll() (nextDelay time.Duration, changed bool, err error) {
	status, err := e.regs.irqFlag.Get()
	if err != nil {
		return 0, false, err
	}
	down := status&irqRXErr != 0

	e.mu.Lock()
	defer e.mu.Unlock()

	if !down {
		e.linkDown = false
		return 0, false, nil
	}

	wasValid := e.valid
	e.linkDown = true
	e.valid = false
	e.lastInvalidSeconds = e.lastValidSeconds

	return 100 * time.Millisecond, wasValid != e.valid, nil
}

// GetTimeStamp resolves the timestamp for event, either from the FIFO's
// last-seen (sec,evt) for that code, or by latching Control_tsltch and
// reading the latch registers directly.
func (e *timestampEngine) GetTimeStamp(event uint8, table *mappingTable) (TimeStamp, error) {
	e.mu.Lock()
	valid := e.valid
	e.mu.Unlock()
	if !valid {
		return TimeStamp{}, &errs.TransientLink{Card: e.cardID}
	}

	var sec, evt uint32
	var err error
	if event >= 1 && table != nil {
		table.mu.Lock()
		s := table.slots[event]
		haveEntry := s.lastSec != 0 || s.lastEvt != 0
		table.mu.Unlock()
		if haveEntry {
			sec, evt = s.lastSec, s.lastEvt
			return e.resolve(sec, evt)
		}
	}

	sec, evt, err = e.latch()
	if err != nil {
		return TimeStamp{}, err
	}
	return e.resolve(sec, evt)
}

// latch performs the Control_tsltch dance, including detection and
// correction of the known Control-register corruption glitch.
func (e *timestampEngine) latch() (sec, evt uint32, err error) {
	unlock := e.regs.win.LockIRQ()
	defer unlock()

	before, err := e.regs.control.Get()
	if err != nil {
		return 0, 0, err
	}
	if err := e.regs.control.Set(before | ctrlTSLtch); err != nil {
		return 0, 0, err
	}

	sec, err = e.regs.tsSecLatch.Get()
	if err != nil {
		return 0, 0, err
	}
	evt, err = e.regs.tsEvtLatch.Get()
	if err != nil {
		return 0, 0, err
	}

	after, err := e.regs.control.Get()
	if err != nil {
		return 0, 0, err
	}
	if err := e.regs.control.Set(after &^ ctrlTSLtch); err != nil {
		return 0, 0, err
	}

	if after&^ctrlTSLtch != before&^ctrlTSLtch {
		if err := e.regs.control.Set(before &^ ctrlTSLtch); err != nil {
			return 0, 0, err
		}
		return sec, evt, &errs.HardwareGlitch{Card: e.cardID, Reg: "Control"}
	}
	return sec, evt, nil
}

// resolve converts raw (POSIX sec, evt ticks) into an EPICS-epoch
// TimeStamp, applying the invalidation rules from §4.E.
func (e *timestampEngine) resolve(sec, evt uint32) (TimeStamp, error) {
	nsec := uint64(float64(evt) * (1e9 / e.clkHz))

	e.mu.Lock()
	lastInvalid := e.lastInvalidSeconds
	lastValid := e.lastValidSeconds
	e.mu.Unlock()

	if nsec >= 1e9 {
		e.invalidate()
		return TimeStamp{}, &errs.RangeError{Field: "nsec", Value: nsec, Msg: "late one-second reset"}
	}
	if sec == lastInvalid || (lastValid != 0 && sec > lastValid+1) {
		e.invalidate()
		return TimeStamp{}, &errs.RangeError{Field: "sec", Value: sec, Msg: "timestamp out of sequence"}
	}

	return TimeStamp{Sec: sec - posixTimeAtEPICSEpoch, NSec: uint32(nsec)}, nil
}

func (e *timestampEngine) invalidate() {
	e.mu.Lock()
	e.valid = false
	e.mu.Unlock()
}

// Valid reports the current validity flag.
func (e *timestampEngine) Valid() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.valid
}

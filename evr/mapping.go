// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr

import (
	"sync"

	"github.com/ess-dmsc/mrf-core/errs"
	"github.com/ess-dmsc/mrf-core/regio"
)

// Callback is invoked once per delivered event-FIFO entry for a code.
type Callback func(sec, evt uint32)

// SubscriptionHandle identifies one Subscribe call for a later Unsubscribe.
// Go function values carry no reliable, comparable identity of their own, so
// each subscription is tagged with a handle at Subscribe time instead.
type SubscriptionHandle uint64

// subscription pairs a callback with the handle Subscribe returned for it.
type subscription struct {
	handle SubscriptionHandle
	fn     Callback
}

// slot is the event-action table's per-code bookkeeping: the number of
// interested subscribers and their callbacks, plus the FIFO re-arm state
// machine fields the drain loop drives.
type slot struct {
	interested int
	callbacks  []subscription

	lastSec, lastEvt uint32

	// re-arm state machine, per §4.D.
	waitingFor int  // sentinels still outstanding for the in-flight dispatch
	again      bool // an event re-arrived while waitingFor > 0
}

// mappingTable is the 256-slot event-action table (component 4.D). It owns
// the callback lists and re-arm bookkeeping; the actual mapping RAM bits
// live in hardware and are mirrored here only as write targets.
type mappingTable struct {
	mu    sync.Mutex
	slots [mappingRows]slot

	regs *regs

	nextHandle SubscriptionHandle

	countFIFOSwOverrate uint64
}

func newMappingTable(r *regs) *mappingTable {
	return &mappingTable{regs: r}
}

// MapAction flips a single logical action bit (0..127, never 126) in the
// mapping RAM row for code, under the window's ISR-safe critical section.
// Code 0 is the reserved no-event code and is always inert: it is silently
// ignored rather than ever touching the mapping RAM. Setting an action that
// is already set is a duplicate mapping and is rejected.
func (t *mappingTable) MapAction(code uint8, action Action, enable bool) error {
	if code == 0 {
		return nil
	}
	if action == reservedAction {
		return &errs.RangeError{Field: "action", Value: action, Msg: "action 126 is reserved"}
	}
	if action > 127 {
		return &errs.RangeError{Field: "action", Value: action, Msg: "action must be in 0..127"}
	}
	word, mask := actionWordBit(action)
	off := mappingOffset(code, word)
	if enable {
		v, err := t.regs.win.ReadU32(off)
		if err != nil {
			return err
		}
		if v&mask != 0 {
			return &errs.RangeError{Field: "code,action", Value: action, Msg: "duplicate mapping for this (code, action) pair"}
		}
		return t.regs.win.SetBits(regio.Width32, off, mask)
	}
	return t.regs.win.ClearBits(regio.Width32, off, mask)
}

// IsMapped reports whether action is currently set for code. Code 0 is
// always reported unmapped, since it can never carry a mapping.
func (t *mappingTable) IsMapped(code uint8, action Action) (bool, error) {
	if code == 0 {
		return false, nil
	}
	word, mask := actionWordBit(action)
	v, err := t.regs.win.ReadU32(mappingOffset(code, word))
	if err != nil {
		return false, err
	}
	return v&mask != 0, nil
}

// Subscribe appends cb to code's callback list and returns a handle
// identifying it for a later Unsubscribe. The first subscriber for a code
// enables ActionFIFOSave so the hardware starts pushing FIFO entries for it.
// Code 0 is the reserved no-event code, which the FIFO drain treats as its
// empty sentinel, so it never carries a live subscription: Subscribe(0, …)
// is a no-op and returns the zero handle.
func (t *mappingTable) Subscribe(code uint8, cb Callback) (SubscriptionHandle, error) {
	if code == 0 {
		return 0, nil
	}
	t.mu.Lock()
	s := &t.slots[code]
	t.nextHandle++
	h := t.nextHandle
	s.callbacks = append(s.callbacks, subscription{handle: h, fn: cb})
	first := s.interested == 0
	s.interested++
	t.mu.Unlock()

	if first {
		if err := t.setInternalAction(code, ActionFIFOSave, true); err != nil {
			return h, err
		}
	}
	return h, nil
}

// Unsubscribe removes the callback identified by h from code's callback
// list. When the refcount reaches zero, ActionFIFOSave is disabled. An
// unknown handle is a no-op: the refcount is only decremented on an actual
// match, so a stray Unsubscribe can't underflow it.
func (t *mappingTable) Unsubscribe(code uint8, h SubscriptionHandle) error {
	t.mu.Lock()
	s := &t.slots[code]
	found := false
	for i, sub := range s.callbacks {
		if sub.handle == h {
			s.callbacks = append(s.callbacks[:i], s.callbacks[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		t.mu.Unlock()
		return nil
	}
	s.interested--
	last := s.interested == 0
	t.mu.Unlock()

	if last {
		return t.setInternalAction(code, ActionFIFOSave, false)
	}
	return nil
}

// setInternalAction is the FIFO drain machinery's entry point for the
// Internal-word actions it manages directly; it passes straight through to
// MapAction and does not check which action it is given.
func (t *mappingTable) setInternalAction(code uint8, a Action, enable bool) error {
	return t.MapAction(code, a, enable)
}

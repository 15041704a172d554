// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evg

import (
	"sync"

	"github.com/ess-dmsc/mrf-core/errs"
	"github.com/ess-dmsc/mrf-core/regio"
)

// slotBinding is one sequence RAM's half of the arena binding table:
// which sequence (by id, not pointer) currently owns it, per design notes
// item 1.
type slotBinding struct {
	ownerID  int // -1 when free
	needSync bool
}

// Manager is the sequence-RAM arena: it owns every SoftSequence and every
// RAM slot binding, and is the only mutator of the binding table. All
// bindings are by index into the manager's own tables, never by pointer,
// so a sequence and a slot can each be freed independently without
// leaving a dangling reference in the other.
type Manager struct {
	win   *regio.Window
	regs  *regs
	clkHz float64

	mu       sync.Mutex
	nextID   int
	sequences map[int]*SoftSequence
	slots    [numSeqRAMs]slotBinding
}

// NewManager creates a sequence-RAM manager bound to win, using clockHz to
// rescale seconds-denominated timestamps at commit time.
func NewManager(win *regio.Window, clockHz float64) *Manager {
	m := &Manager{win: win, regs: newRegs(win), clkHz: clockHz, sequences: make(map[int]*SoftSequence)}
	for i := range m.slots {
		m.slots[i].ownerID = -1
	}
	return m
}

// NewSequence allocates a fresh Empty sequence bound to this manager.
func (m *Manager) NewSequence() *SoftSequence {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	seq := &SoftSequence{id: id, state: Empty, slot: -1, mgr: m}
	m.sequences[id] = seq
	return seq
}

// Commit validates and commits seq using this manager's clock rate.
func (m *Manager) Commit(seq *SoftSequence) error { return seq.Commit(m.clkHz) }

// Load picks a free slot (or uses preferred if >= 0 and free) and writes
// seq's committed rows into it, moving seq to Loaded(slot).
func (m *Manager) Load(seq *SoftSequence, preferred int) (int, error) {
	seq.mu.Lock()
	if seq.state != Committed {
		state := seq.state
		seq.mu.Unlock()
		return -1, &errs.RangeError{Field: "state", Value: state.String(), Msg: "load requires Committed"}
	}
	codes := append([]uint8(nil), seq.codes...)
	times := append([]uint64(nil), seq.times...)
	runMode := seq.runMode
	trigSrc := seq.trigSrc
	seq.mu.Unlock()

	m.mu.Lock()
	slot, err := m.pickFreeSlot(preferred)
	if err != nil {
		m.mu.Unlock()
		return -1, err
	}
	m.slots[slot] = slotBinding{ownerID: seq.id}
	m.mu.Unlock()

	if err := m.writeRAM(slot, codes, times, runMode, trigSrc, false); err != nil {
		m.mu.Lock()
		m.slots[slot] = slotBinding{ownerID: -1}
		m.mu.Unlock()
		return -1, err
	}

	seq.mu.Lock()
	seq.slot = slot
	seq.state = Loaded
	seq.mu.Unlock()

	return slot, nil
}

func (m *Manager) pickFreeSlot(preferred int) (int, error) {
	if preferred >= 0 {
		if preferred >= numSeqRAMs {
			return -1, &errs.RangeError{Field: "slot", Value: preferred, Msg: "no such sequence RAM"}
		}
		if m.slots[preferred].ownerID != -1 {
			return -1, &errs.RangeError{Field: "slot", Value: preferred, Msg: "slot already loaded"}
		}
		return preferred, nil
	}
	for i, s := range m.slots {
		if s.ownerID == -1 {
			return i, nil
		}
	}
	return -1, &errs.RangeError{Field: "slot", Value: nil, Msg: "no free sequence RAM"}
}

// writeRAM copies rows into slot's hardware RAM and programs its control
// block. enable also sets the trigger-enable bit.
func (m *Manager) writeRAM(slot int, codes []uint8, times []uint64, mode RunMode, trigSrc int, enable bool) error {
	unlock := m.win.LockIRQ()
	defer unlock()

	for i, code := range codes {
		off := seqRAMRowOffset(slot, i)
		if err := m.win.WriteU8(off, code); err != nil {
			return err
		}
		if err := m.win.WriteU32(off+4, uint32(times[i])); err != nil {
			return err
		}
	}

	base := seqRAMBase(slot)
	if err := m.win.WriteU8(base+seqCtrlRunMode, uint8(mode)); err != nil {
		return err
	}
	if err := m.win.WriteU8(base+seqCtrlTrigSrc, uint8(trigSrc)); err != nil {
		return err
	}
	var enBit uint8
	if enable {
		enBit = 1
	}
	return m.win.WriteU8(base+seqCtrlEnable, enBit)
}

// Enable moves seq from Loaded to Running, arming its trigger.
func (m *Manager) Enable(seq *SoftSequence) error {
	seq.mu.Lock()
	if seq.state != Loaded {
		state := seq.state
		seq.mu.Unlock()
		return &errs.RangeError{Field: "state", Value: state.String(), Msg: "enable requires Loaded"}
	}
	slot := seq.slot
	seq.mu.Unlock()

	base := seqRAMBase(slot)
	if err := m.win.WriteU8(base+seqCtrlEnable, 1); err != nil {
		return err
	}

	seq.mu.Lock()
	seq.state = Running
	seq.mu.Unlock()
	return nil
}

// Disable moves seq from Running back to Loaded.
func (m *Manager) Disable(seq *SoftSequence) error {
	seq.mu.Lock()
	if seq.state != Running {
		state := seq.state
		seq.mu.Unlock()
		return &errs.RangeError{Field: "state", Value: state.String(), Msg: "disable requires Running"}
	}
	slot := seq.slot
	seq.mu.Unlock()

	base := seqRAMBase(slot)
	if err := m.win.WriteU8(base+seqCtrlEnable, 0); err != nil {
		return err
	}

	seq.mu.Lock()
	seq.state = Loaded
	seq.mu.Unlock()
	return nil
}

// Unload frees seq's slot binding and moves it back to Committed.
func (m *Manager) Unload(seq *SoftSequence) error {
	seq.mu.Lock()
	if seq.state != Loaded {
		state := seq.state
		seq.mu.Unlock()
		return &errs.RangeError{Field: "state", Value: state.String(), Msg: "unload requires Loaded"}
	}
	slot := seq.slot
	seq.slot = -1
	seq.state = Committed
	seq.mu.Unlock()

	m.mu.Lock()
	m.slots[slot] = slotBinding{ownerID: -1}
	m.mu.Unlock()
	return nil
}

// OnHardwareStop handles the interrupt dispatcher's stop notification for
// slot: it moves the owning sequence from Running to Loaded and marks the
// slot as needing a sync pass.
func (m *Manager) OnHardwareStop(slot int) {
	m.mu.Lock()
	if slot < 0 || slot >= numSeqRAMs || m.slots[slot].ownerID == -1 {
		m.mu.Unlock()
		return
	}
	id := m.slots[slot].ownerID
	m.slots[slot].needSync = true
	m.mu.Unlock()

	m.mu.Lock()
	seq, ok := m.sequences[id]
	m.mu.Unlock()
	if !ok {
		return
	}

	seq.mu.Lock()
	if seq.state == Running {
		seq.state = Loaded
	}
	seq.mu.Unlock()
}

// Sync re-reads seq's committed contents under its own lock and, if they
// differ from what is currently in its RAM slot, rewrites the slot. This
// is the only path allowed to rewrite the RAM of a currently-stopped slot,
// per the design notes.
func (m *Manager) Sync(seq *SoftSequence) error {
	seq.mu.Lock()
	if seq.state != Loaded {
		seq.mu.Unlock()
		return nil
	}
	slot := seq.slot
	codes := append([]uint8(nil), seq.codes...)
	times := append([]uint64(nil), seq.times...)
	runMode := seq.runMode
	trigSrc := seq.trigSrc
	seq.mu.Unlock()

	m.mu.Lock()
	needSync := slot >= 0 && slot < numSeqRAMs && m.slots[slot].needSync
	m.mu.Unlock()
	if !needSync {
		return nil
	}

	differs, err := m.ramDiffers(slot, codes, times)
	if err != nil {
		return err
	}
	if differs {
		if err := m.writeRAM(slot, codes, times, runMode, trigSrc, false); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.slots[slot].needSync = false
	m.mu.Unlock()
	return nil
}

func (m *Manager) ramDiffers(slot int, codes []uint8, times []uint64) (bool, error) {
	for i, code := range codes {
		off := seqRAMRowOffset(slot, i)
		gotCode, err := m.win.ReadU8(off)
		if err != nil {
			return false, err
		}
		gotTime, err := m.win.ReadU32(off + 4)
		if err != nil {
			return false, err
		}
		if gotCode != code || uint64(gotTime) != times[i] {
			return true, nil
		}
	}
	return false, nil
}

// FreeSlotCount reports how many sequence RAMs are currently unbound.
func (m *Manager) FreeSlotCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.slots {
		if s.ownerID == -1 {
			n++
		}
	}
	return n
}

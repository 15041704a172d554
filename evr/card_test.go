// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr_test

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/ess-dmsc/mrf-core/evr"
	"github.com/ess-dmsc/mrf-core/regio"
)

// fifoEntry is one simulated event-FIFO push.
type fifoEntry struct{ code, sec, evt uint32 }

// fifoFakeRW wraps a regio.Memory register bank and additionally emulates
// the event FIFO's read-to-pop semantics at a fixed set of offsets: each
// read of codeOff pops the next queued entry (returning 0 once empty), and
// reads of secOff/evtOff return the most recently popped entry's fields.
// Everything else falls through to the plain register bank.
type fifoFakeRW struct {
	mem                     *regio.Memory
	codeOff, secOff, evtOff int64

	mu      sync.Mutex
	entries []fifoEntry
	idx     int
	cur     fifoEntry
}

func newFIFOFakeRW(size int, codeOff, secOff, evtOff int64) *fifoFakeRW {
	return &fifoFakeRW{mem: regio.NewMemory(size), codeOff: codeOff, secOff: secOff, evtOff: evtOff}
}

func (f *fifoFakeRW) push(e fifoEntry) {
	f.mu.Lock()
	f.entries = append(f.entries, e)
	f.mu.Unlock()
}

func (f *fifoFakeRW) ReadAt(p []byte, off int64) (int, error) {
	switch off {
	case f.codeOff:
		f.mu.Lock()
		var v uint32
		if f.idx < len(f.entries) {
			f.cur = f.entries[f.idx]
			v = f.cur.code
			f.idx++
		}
		f.mu.Unlock()
		binary.LittleEndian.PutUint32(p, v)
		return len(p), nil
	case f.secOff:
		binary.LittleEndian.PutUint32(p, f.cur.sec)
		return len(p), nil
	case f.evtOff:
		binary.LittleEndian.PutUint32(p, f.cur.evt)
		return len(p), nil
	default:
		return f.mem.ReadAt(p, off)
	}
}

func (f *fifoFakeRW) WriteAt(p []byte, off int64) (int, error) {
	if off == f.codeOff || off == f.secOff || off == f.evtOff {
		return len(p), nil
	}
	return f.mem.WriteAt(p, off)
}

// The event-FIFO read port sits at these fixed offsets per evr/regs.go.
const (
	testEvtFIFOCode int64 = 0x030
	testEvtFIFOSec  int64 = 0x034
	testEvtFIFOEvt  int64 = 0x038
	testIRQFlag     int64 = 0x008
	testTSSec       int64 = 0x020
	testTSSecLatch  int64 = 0x028
)

func newFIFOTestCard(t *testing.T) (*evr.Card, *fifoFakeRW) {
	t.Helper()
	rw := newFIFOFakeRW(0x3000, testEvtFIFOCode, testEvtFIFOSec, testEvtFIFOEvt)
	win := regio.NewWindow(rw, 0x3000, false)
	card, err := evr.New(0, win)
	if err != nil {
		t.Fatalf("evr.New: %+v", err)
	}
	t.Cleanup(func() { _ = card.Close() })
	return card, rw
}

// TestMapReceiveNotify is end-to-end scenario 1: subscribing to a code,
// injecting one FIFO entry and an Event IRQ delivers exactly one callback.
func TestMapReceiveNotify(t *testing.T) {
	card, rw := newFIFOTestCard(t)

	var mu sync.Mutex
	var calls int
	done := make(chan struct{}, 1)
	if _, err := card.Subscribe(10, func(sec, evt uint32) {
		mu.Lock()
		calls++
		mu.Unlock()
		done <- struct{}{}
	}); err != nil {
		t.Fatalf("subscribe: %+v", err)
	}

	rw.push(fifoEntry{code: 10, sec: 0x60000001, evt: 0x12345678})
	setIRQFlag(t, rw, testIRQFlag, 1<<3) // irqEvent

	card.HandleIRQ(1 << 3)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("callback never ran")
	}

	mu.Lock()
	n := calls
	mu.Unlock()
	if n != 1 {
		t.Fatalf("expected exactly one callback, got %d", n)
	}
}

// TestFIFOOverrunRearm is end-to-end scenario 2.
func TestFIFOOverrunRearm(t *testing.T) {
	card, rw := newFIFOTestCard(t)

	release := make(chan struct{})
	done := make(chan struct{}, 1)
	if _, err := card.Subscribe(10, func(sec, evt uint32) {
		<-release
		done <- struct{}{}
	}); err != nil {
		t.Fatalf("subscribe: %+v", err)
	}

	rw.push(fifoEntry{code: 10, sec: 1, evt: 1})
	rw.push(fifoEntry{code: 10, sec: 2, evt: 2})
	rw.push(fifoEntry{code: 10, sec: 3, evt: 3})
	setIRQFlag(t, rw, testIRQFlag, 1<<3)

	card.HandleIRQ(1 << 3)
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("callback never completed")
	}

	// give the sentinel a moment to run onDispatchIdle and restore FIFOSave.
	time.Sleep(50 * time.Millisecond)

	stats := card.Stats()
	if stats.FIFOSwOverrate != 2 {
		t.Fatalf("expected 2 sw-overrate events, got %d", stats.FIFOSwOverrate)
	}
	mapped, err := card.IsMapped(10, evr.ActionFIFOSave)
	if err != nil {
		t.Fatalf("is_mapped: %+v", err)
	}
	if !mapped {
		t.Fatalf("ActionFIFOSave must be restored once the sentinel drains")
	}
}

func setIRQFlag(t *testing.T, rw *fifoFakeRW, off int64, bits uint32) {
	t.Helper()
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], bits)
	if _, err := rw.mem.WriteAt(buf[:], off); err != nil {
		t.Fatalf("setIRQFlag: %v", err)
	}
}

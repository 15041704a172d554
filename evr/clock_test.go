// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr_test

import (
	"testing"

	"github.com/ess-dmsc/mrf-core/evr"
	"github.com/ess-dmsc/mrf-core/regio"
	"github.com/ess-dmsc/mrf-core/synth"
)

// FracDiv/USecDiv sit at these fixed offsets per evr/regs.go.
const (
	testFracDiv int64 = 0x010
	testUSecDiv int64 = 0x014
)

// writeCountingRW wraps a regio.Memory register bank and tallies writes at
// a fixed set of offsets, so a test can assert a register was left alone.
type writeCountingRW struct {
	mem     *regio.Memory
	offsets map[int64]*int
}

func (w *writeCountingRW) ReadAt(p []byte, off int64) (int, error) { return w.mem.ReadAt(p, off) }

func (w *writeCountingRW) WriteAt(p []byte, off int64) (int, error) {
	if c, ok := w.offsets[off]; ok {
		*c++
	}
	return w.mem.WriteAt(p, off)
}

func TestClockSetProgramsFracDivAndUSecDiv(t *testing.T) {
	card := newTestCard(t)

	if err := card.ClockSet(125.0); err != nil {
		t.Fatalf("ClockSet: %+v", err)
	}

	want, _, err := synth.CtlWord(125.0, synth.DefaultRefMHz, 0)
	if err != nil {
		t.Fatalf("synth.CtlWord: %+v", err)
	}
	if got, err := card.ReadRegister(testFracDiv); err != nil || got != want {
		t.Fatalf("FracDiv = (0x%x, %v), want (0x%x, nil)", got, err, want)
	}
}

// TestClockSetIdempotentIsGlitchFree is end-to-end scenario 4.
func TestClockSetIdempotentIsGlitchFree(t *testing.T) {
	mem := regio.NewMemory(0x3000)
	seedWin := regio.NewWindow(mem, 0x3000, false)

	word, _, err := synth.CtlWord(125.0, synth.DefaultRefMHz, 0)
	if err != nil {
		t.Fatalf("synth.CtlWord: %+v", err)
	}
	if err := seedWin.WriteU32(testFracDiv, word); err != nil {
		t.Fatalf("seed FracDiv: %+v", err)
	}

	var fracWrites, usecWrites int
	rw := &writeCountingRW{
		mem: mem,
		offsets: map[int64]*int{
			testFracDiv: &fracWrites,
			testUSecDiv: &usecWrites,
		},
	}
	win := regio.NewWindow(rw, 0x3000, false)
	card, err := evr.New(0, win)
	if err != nil {
		t.Fatalf("evr.New: %+v", err)
	}
	t.Cleanup(func() { _ = card.Close() })

	if err := card.ClockSet(125.0); err != nil {
		t.Fatalf("ClockSet: %+v", err)
	}
	if err := card.ClockSet(125.0); err != nil {
		t.Fatalf("ClockSet (idempotent): %+v", err)
	}

	if fracWrites != 0 {
		t.Fatalf("FracDiv writes = %d, want 0 (control word already matched)", fracWrites)
	}
	if usecWrites > 1 {
		t.Fatalf("USecDiv writes = %d, want at most 1", usecWrites)
	}
}

// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evg_test

import (
	"encoding/binary"
	"testing"

	"github.com/ess-dmsc/mrf-core/errs"
	"github.com/ess-dmsc/mrf-core/evg"
	"github.com/ess-dmsc/mrf-core/regio"
)

// The FPGAVersion register sits at this fixed offset per evg/regs.go.
const testFPGAVersion int64 = 0x018

func testWindowSize() int {
	return 0x4000 + 2*(8+2048*8) + 0x100
}

func TestNewRejectsWrongBoardKind(t *testing.T) {
	size := testWindowSize()
	mem := regio.NewMemory(size)
	win := regio.NewWindow(mem, int64(size), false)

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], 0x1001_0100) // vendor 1, kind 0 (neither EVG nor EVR), version 0x0100
	if _, err := mem.WriteAt(buf[:], testFPGAVersion); err != nil {
		t.Fatalf("seed FPGAVersion: %v", err)
	}

	_, err := evg.New(0, win)
	if err == nil {
		t.Fatalf("expected a BadDevice error for a non-EVG board kind")
	}
	if _, ok := err.(*errs.BadDevice); !ok {
		t.Fatalf("expected *errs.BadDevice, got %T: %v", err, err)
	}
}

func TestNewAcceptsUnprogrammedSignature(t *testing.T) {
	size := testWindowSize()
	mem := regio.NewMemory(size)
	win := regio.NewWindow(mem, int64(size), false)

	card, err := evg.New(0, win)
	if err != nil {
		t.Fatalf("evg.New with an all-zero FPGAVersion register: %+v", err)
	}
	_ = card.Close()
}

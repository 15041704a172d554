// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr_test

import (
	"encoding/binary"
	"testing"

	"github.com/ess-dmsc/mrf-core/errs"
	"github.com/ess-dmsc/mrf-core/evr"
	"github.com/ess-dmsc/mrf-core/regio"
)

// The FPGAVersion register sits at this fixed offset per evr/regs.go.
const testFPGAVersion int64 = 0x03C

func TestNewRejectsWrongBoardKind(t *testing.T) {
	mem := regio.NewMemory(0x3000)
	win := regio.NewWindow(mem, 0x3000, false)

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], 0x2001_0100) // vendor 2, kind 0 (neither EVR nor EVG), version 0x0100
	if _, err := mem.WriteAt(buf[:], testFPGAVersion); err != nil {
		t.Fatalf("seed FPGAVersion: %v", err)
	}

	_, err := evr.New(0, win)
	if err == nil {
		t.Fatalf("expected a BadDevice error for a non-EVR board kind")
	}
	if _, ok := err.(*errs.BadDevice); !ok {
		t.Fatalf("expected *errs.BadDevice, got %T: %v", err, err)
	}
}

func TestNewAcceptsUnprogrammedSignature(t *testing.T) {
	mem := regio.NewMemory(0x3000)
	win := regio.NewWindow(mem, 0x3000, false)

	card, err := evr.New(0, win)
	if err != nil {
		t.Fatalf("evr.New with an all-zero FPGAVersion register: %+v", err)
	}
	_ = card.Close()
}

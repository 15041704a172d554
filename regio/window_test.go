// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package regio_test

import (
	"testing"

	"github.com/ess-dmsc/mrf-core/errs"
	"github.com/ess-dmsc/mrf-core/regio"
)

func TestReadWriteU32(t *testing.T) {
	mem := regio.NewMemory(16)
	win := regio.NewWindow(mem, 16, false)

	if err := win.WriteU32(4, 0xdeadbeef); err != nil {
		t.Fatalf("could not write: %+v", err)
	}
	got, err := win.ReadU32(4)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if want := uint32(0xdeadbeef); got != want {
		t.Fatalf("invalid u32: got=0x%x, want=0x%x", got, want)
	}
}

func TestWordSwap(t *testing.T) {
	mem := regio.NewMemory(4)
	win := regio.NewWindow(mem, 4, true)

	if err := win.WriteU32(0, 0x01020304); err != nil {
		t.Fatalf("could not write: %+v", err)
	}

	raw := make([]byte, 4)
	if _, err := mem.ReadAt(raw, 0); err != nil {
		t.Fatalf("could not read raw bytes: %+v", err)
	}
	want := []byte{0x01, 0x02, 0x03, 0x04}
	for i := range want {
		if raw[i] != want[i] {
			t.Fatalf("invalid wire bytes: got=%v, want=%v", raw, want)
		}
	}

	got, err := win.ReadU32(0)
	if err != nil {
		t.Fatalf("could not read back: %+v", err)
	}
	if got != 0x01020304 {
		t.Fatalf("word-swap round trip failed: got=0x%x", got)
	}
}

func TestOutOfRangePanics(t *testing.T) {
	mem := regio.NewMemory(4)
	win := regio.NewWindow(mem, 4, false)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic for out-of-range access")
		}
		if _, ok := r.(*errs.ProgrammerError); !ok {
			t.Fatalf("expected *errs.ProgrammerError, got %T", r)
		}
	}()

	_, _ = win.ReadU32(2) // [2,6) overruns a 4-byte window
}

func TestSetClearBits(t *testing.T) {
	mem := regio.NewMemory(4)
	win := regio.NewWindow(mem, 4, false)

	if err := win.SetBits(regio.Width32, 0, 0x0F); err != nil {
		t.Fatalf("could not set bits: %+v", err)
	}
	if err := win.SetBits(regio.Width32, 0, 0xF0); err != nil {
		t.Fatalf("could not set bits: %+v", err)
	}
	v, err := win.ReadU32(0)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if v != 0xFF {
		t.Fatalf("invalid bits after set: got=0x%x, want=0xff", v)
	}

	if err := win.ClearBits(regio.Width32, 0, 0x0F); err != nil {
		t.Fatalf("could not clear bits: %+v", err)
	}
	v, err = win.ReadU32(0)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if v != 0xF0 {
		t.Fatalf("invalid bits after clear: got=0x%x, want=0xf0", v)
	}
}

func TestFields(t *testing.T) {
	mem := regio.NewMemory(8)
	win := regio.NewWindow(mem, 8, false)

	f32 := regio.NewField32(win, 0)
	if err := f32.Set(42); err != nil {
		t.Fatalf("set: %+v", err)
	}
	v, err := f32.Get()
	if err != nil || v != 42 {
		t.Fatalf("get: v=%d err=%+v", v, err)
	}

	f16 := regio.NewField16(win, 4)
	if err := f16.Set(7); err != nil {
		t.Fatalf("set: %+v", err)
	}
	v16, err := f16.Get()
	if err != nil || v16 != 7 {
		t.Fatalf("get: v=%d err=%+v", v16, err)
	}

	f8 := regio.NewField8(win, 6)
	if err := f8.Set(3); err != nil {
		t.Fatalf("set: %+v", err)
	}
	v8, err := f8.Get()
	if err != nil || v8 != 3 {
		t.Fatalf("get: v=%d err=%+v", v8, err)
	}
}

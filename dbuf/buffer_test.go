// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dbuf_test

import (
	"bytes"
	"testing"

	"github.com/ess-dmsc/mrf-core/dbuf"
	"github.com/ess-dmsc/mrf-core/regio"
)

// TestFlushWiresProtocolFraming is end-to-end scenario 6.
func TestFlushWiresProtocolFraming(t *testing.T) {
	mem := regio.NewMemory(0x800 + dbuf.MaxPayload)
	win := regio.NewWindow(mem, int64(0x800+dbuf.MaxPayload), false)

	buf := dbuf.New(win, 0xDEADBEEF, false)
	if err := buf.WriteAt(4, []byte{0xAA, 0xBB, 0xCC, 0xDD}); err != nil {
		t.Fatalf("WriteAt: %+v", err)
	}

	want := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0xAA, 0xBB, 0xCC, 0xDD}
	if got := buf.WireBytes(); !bytes.Equal(got, want) {
		t.Fatalf("WireBytes = % X, want % X", got, want)
	}

	if err := buf.Flush(); err != nil {
		t.Fatalf("Flush: %+v", err)
	}

	gotWire := make([]byte, len(want))
	if err := win.ReadRaw(0x800, gotWire); err != nil {
		t.Fatalf("ReadRaw: %+v", err)
	}
	if !bytes.Equal(gotWire, want) {
		t.Fatalf("wire bytes = % X, want % X", gotWire, want)
	}

	ctrl, err := win.ReadU32(0x00)
	if err != nil {
		t.Fatalf("ReadU32(DBCR): %+v", err)
	}
	const (
		dbcrEna    = 1 << 31
		dbcrMode   = 1 << 30
		dbcrTrig   = 1 << 29
		dbcrLenMsk = 0xFFF
	)
	if ctrl&(dbcrEna|dbcrMode|dbcrTrig) != dbcrEna|dbcrMode|dbcrTrig {
		t.Fatalf("DBCR = 0x%x, want ENA|MODE|TRIG set", ctrl)
	}
	if got := ctrl & dbcrLenMsk; got != 8 {
		t.Fatalf("DBCR length = %d, want 8", got)
	}
}

func TestReceiverAcceptFilter(t *testing.T) {
	var got *dbuf.ScanRequest
	recv := dbuf.NewReceiver(0, false, func(sr dbuf.ScanRequest) {
		local := sr
		got = &local
	})

	recv.Deliver(0xDE, []byte{0xAD, 0xBE, 0xEF, 0xAA, 0xBB, 0xCC, 0xDD})

	if got == nil {
		t.Fatalf("expected a scan request to be delivered")
	}
	if got.ProtocolID != 0xDEADBEEF {
		t.Fatalf("ProtocolID = 0x%x, want 0xDEADBEEF", got.ProtocolID)
	}
	if got.Length != 8 {
		t.Fatalf("Length = %d, want 8", got.Length)
	}

	payload := make([]byte, 4)
	if err := recv.ReadAt(4, payload); err != nil {
		t.Fatalf("ReadAt: %+v", err)
	}
	if !bytes.Equal(payload, []byte{0xAA, 0xBB, 0xCC, 0xDD}) {
		t.Fatalf("payload = % X, want AA BB CC DD", payload)
	}

	if err := recv.ReadAt(0, make([]byte, 4)); err == nil {
		t.Fatalf("expected reading the protocol-id region to fail")
	}
}

func TestReceiverRejectFilter(t *testing.T) {
	notified := false
	recv := dbuf.NewReceiver(0xDEADBEE0, false, func(dbuf.ScanRequest) {
		notified = true
	})

	recv.Deliver(0xDE, []byte{0xAD, 0xBE, 0xEF, 0xAA, 0xBB, 0xCC, 0xDD})

	if notified {
		t.Fatalf("receiver with a mismatched filter must not notify")
	}
	if got := recv.Dropped(); got != 1 {
		t.Fatalf("Dropped() = %d, want 1", got)
	}
}

func TestBufferRejectsProtocolIDRegionWrite(t *testing.T) {
	mem := regio.NewMemory(0x800 + dbuf.MaxPayload)
	win := regio.NewWindow(mem, int64(0x800+dbuf.MaxPayload), false)
	buf := dbuf.New(win, 1, false)

	if err := buf.WriteAt(0, []byte{0}); err == nil {
		t.Fatalf("expected write at offset 0 to be rejected")
	}
	if err := buf.WriteAt(3, []byte{0}); err == nil {
		t.Fatalf("expected write at offset 3 to be rejected")
	}
}

func TestChecksumAppended(t *testing.T) {
	mem := regio.NewMemory(0x800 + dbuf.MaxPayload)
	win := regio.NewWindow(mem, int64(0x800+dbuf.MaxPayload), false)
	buf := dbuf.New(win, 1, false).WithChecksum(true)

	if err := buf.WriteAt(4, []byte{1, 2, 3, 4, 5}); err != nil {
		t.Fatalf("WriteAt: %+v", err)
	}
	before := len(buf.WireBytes())
	if err := buf.Flush(); err != nil {
		t.Fatalf("Flush: %+v", err)
	}

	ctrl, err := win.ReadU32(0x00)
	if err != nil {
		t.Fatalf("ReadU32(DBCR): %+v", err)
	}
	if got := ctrl & 0xFFF; int(got) != before+4 {
		t.Fatalf("DBCR length = %d, want %d (payload + 4-byte checksum trailer)", got, before+4)
	}
}

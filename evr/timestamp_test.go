// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr_test

import (
	"testing"
	"time"

	"github.com/ess-dmsc/mrf-core/evr"
	"github.com/ess-dmsc/mrf-core/regio"
)

// TestTimestampInvalidationOnLinkLoss is end-to-end scenario 3.
func TestTimestampInvalidationOnLinkLoss(t *testing.T) {
	mem := regio.NewMemory(0x3000)
	win := regio.NewWindow(mem, 0x3000, false)
	card, err := evr.New(0, win)
	if err != nil {
		t.Fatalf("evr.New: %+v", err)
	}
	defer card.Close()

	// Seed a first valid seconds tick. The latch registers are written
	// directly too, since the in-process fake register bank has no
	// hardware behind Control_tsltch to couple them to TSSec on its own.
	writeU32(t, win, testTSSec, 0x60000010)
	writeU32(t, win, testTSSecLatch, 0x60000010)
	card.HandleIRQ(1 << 2) // irqHeartbeat

	if _, err := card.GetTimeStamp(0); err != nil {
		t.Fatalf("expected a valid timestamp before link loss, got %+v", err)
	}

	// Assert RXErr; the background link-poll loop invalidates within
	// ~100ms.
	writeU32(t, win, testIRQFlag, 1<<0) // irqRXErr
	time.Sleep(250 * time.Millisecond)

	if _, err := card.GetTimeStamp(0); err == nil {
		t.Fatalf("expected an error while the link is down")
	}

	// Clear RXErr and deliver a new, distinct seconds value.
	writeU32(t, win, testIRQFlag, 0)
	writeU32(t, win, testTSSec, 0x60000012)
	writeU32(t, win, testTSSecLatch, 0x60000012)
	card.HandleIRQ(1 << 2)

	ts, err := card.GetTimeStamp(0)
	if err != nil {
		t.Fatalf("expected a valid timestamp after recovery, got %+v", err)
	}
	const posixEpochOffset = 631152000
	if want := uint32(0x60000012 - posixEpochOffset); ts.Sec != want {
		t.Fatalf("unexpected seconds: got %d, want %d", ts.Sec, want)
	}
}

func writeU32(t *testing.T, win *regio.Window, off int64, v uint32) {
	t.Helper()
	if err := win.WriteU32(off, v); err != nil {
		t.Fatalf("writeU32(0x%x): %v", off, err)
	}
}

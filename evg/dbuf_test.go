// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evg_test

import "testing"

func TestCardTransmitsDataBuffer(t *testing.T) {
	card := newTestCard(t)

	if err := card.WriteDataBuffer(4, []byte{0xAA, 0xBB, 0xCC, 0xDD}); err != nil {
		t.Fatalf("WriteDataBuffer: %+v", err)
	}
	if err := card.FlushDataBuffer(); err != nil {
		t.Fatalf("FlushDataBuffer: %+v", err)
	}

	if err := card.WriteDataBuffer(0, []byte{0}); err == nil {
		t.Fatalf("expected write at offset 0 to be rejected")
	}
}

// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dbuf

import (
	"encoding/binary"
	"sync"

	"github.com/ess-dmsc/mrf-core/errs"
)

// ScanRequest is the notification a Receiver emits once a frame has passed
// its protocol filter and been copied into the per-device RX buffer. It
// carries no payload of its own: callers read it back out through ReadAt,
// the same way EPICS record processing reads a device support buffer after
// a scan_io request fires.
type ScanRequest struct {
	ProtocolID uint32
	Length     int
}

// Receiver is the EVR-side half of the distributed data buffer: an
// interrupt-driven callback that reassembles the protocol-id word from a
// completed transfer, applies a filter, and copies the payload into a
// per-device RX buffer with the same word-wise byte reversal the transmit
// side applies.
type Receiver struct {
	filter   uint32 // 0 accepts any protocol id
	wordSwap bool
	notify   func(ScanRequest)

	mu      sync.Mutex
	rx      [MaxPayload]byte
	length  int
	dropped uint64
}

// NewReceiver constructs a Receiver that only accepts frames whose protocol
// id equals filter, or any frame when filter is 0. notify is called
// synchronously from Deliver with the completed ScanRequest; it should hand
// off to a worker rather than block, the same way the FIFO drain hands
// callbacks off to the workqueue pool.
func NewReceiver(filter uint32, wordSwap bool, notify func(ScanRequest)) *Receiver {
	return &Receiver{filter: filter, wordSwap: wordSwap, notify: notify}
}

// Deliver is the interrupt-driven callback. The link only ever hands back a
// one-byte protocol tag and the payload separately (the protocol-id word's
// remaining three bytes are folded into the front of the payload); Deliver
// reassembles the 4-byte protocol id from proto plus the payload's first
// three bytes, then filters and stages the rest exactly as it arrived.
func (r *Receiver) Deliver(proto uint8, payload []byte) {
	if len(payload) < 3 || len(payload)+1 > MaxPayload {
		return
	}
	buf := make([]byte, len(payload)+1)
	buf[0] = proto
	copy(buf[1:], payload)
	if r.wordSwap {
		for i := 0; i+4 <= len(buf); i += 4 {
			buf[i], buf[i+1], buf[i+2], buf[i+3] = buf[i+3], buf[i+2], buf[i+1], buf[i]
		}
	}
	protocolID := binary.BigEndian.Uint32(buf[0:4])

	r.mu.Lock()
	if r.filter != 0 && protocolID != r.filter {
		r.dropped++
		r.mu.Unlock()
		return
	}
	copy(r.rx[:], buf)
	r.length = len(buf)
	r.mu.Unlock()

	if r.notify != nil {
		r.notify(ScanRequest{ProtocolID: protocolID, Length: len(buf)})
	}
}

// ReadAt copies len(p) bytes from the RX buffer starting at off into p.
// Offsets [0,4) hold the protocol id and are not readable through this
// call, matching the write-side restriction on Buffer.WriteAt: callers get
// the id back through the ScanRequest, not by reading the payload region.
func (r *Receiver) ReadAt(off int, p []byte) error {
	if off < 4 {
		return &errs.RangeError{Field: "dbuf.offset", Value: off, Msg: "offsets [0,4) are reserved for the protocol id"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if off+len(p) > r.length {
		return &errs.RangeError{Field: "dbuf.offset", Value: off + len(p), Msg: "past the last delivered frame's length"}
	}
	copy(p, r.rx[off:off+len(p)])
	return nil
}

// Dropped reports how many delivered frames failed the protocol filter.
func (r *Receiver) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

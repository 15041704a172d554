// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dbuf implements the distributed data buffer (component 4.H): a
// 2 KB staging window per direction, big-endian protocol-id framing over
// the link, and word-wise byte reversal to match the PCI bridge's wire
// format.
package dbuf // import "github.com/ess-dmsc/mrf-core/dbuf"

import (
	"encoding/binary"
	"sync"

	"golang.org/x/xerrors"

	"github.com/ess-dmsc/mrf-core/errs"
	"github.com/ess-dmsc/mrf-core/internal/crc16"
	"github.com/ess-dmsc/mrf-core/regio"
)

// MaxPayload is the size of the staging buffer in bytes, per
// MRF_MAX_DATA_BUFFER.
const MaxPayload = 2048

// Control register bits, programmed on flush.
const (
	dbcrEna    uint32 = 1 << 31
	dbcrMode   uint32 = 1 << 30
	dbcrTrig   uint32 = 1 << 29
	dbcrLenMsk uint32 = 0xFFF
)

// Register layout of the buffer's control block and data window, relative
// to the window passed to New.
const (
	offDBCR    int64 = 0x00
	offDataBuf int64 = 0x800
)

// Buffer is the transmit-side staging area described by §4.H: writes
// accumulate at offsets [4, 2048) until Flush copies them to the card's
// buffer window and programs the control register.
type Buffer struct {
	win     *regio.Window
	regs    regio.Field32
	staging [MaxPayload]byte

	mu        sync.Mutex
	highWater int // next multiple of 4 at or above the last written byte
	checksum  bool
	wordSwap  bool
}

// New binds a Buffer to win, a register window whose offset 0 is the data
// buffer control register and whose offset 0x800 is the 2 KB data window.
// wordSwap reverses each 4-byte chunk of the frame on the way out, to match
// links whose bridge does the same per-word reversal that regio's Window
// applies to typed register fields; the data buffer moves an opaque byte
// stream rather than typed values, so it carries its own flag rather than
// inheriting win's.
func New(win *regio.Window, protocolID uint32, wordSwap bool) *Buffer {
	b := &Buffer{win: win, regs: regio.NewField32(win, offDBCR), highWater: 4, wordSwap: wordSwap}
	binary.BigEndian.PutUint32(b.staging[0:4], protocolID)
	return b
}

// WithChecksum enables an optional trailing CRC-16/CCITT-FALSE over the
// payload, appended just past the high-water mark on Flush. It is not
// part of the wire protocol described by the register map; receivers that
// do not expect it must be configured with WithChecksum too.
func (b *Buffer) WithChecksum(on bool) *Buffer {
	b.mu.Lock()
	b.checksum = on
	b.mu.Unlock()
	return b
}

// WriteAt writes p into the staging buffer at offset off (must be >= 4)
// and advances the high-water mark to the next multiple of 4 at or above
// off+len(p).
func (b *Buffer) WriteAt(off int, p []byte) error {
	if off < 4 {
		return &errs.RangeError{Field: "dbuf.offset", Value: off, Msg: "offsets [0,4) are reserved for the protocol id"}
	}
	if off+len(p) > MaxPayload {
		return &errs.RangeError{Field: "dbuf.offset", Value: off + len(p), Msg: "exceeds 2048-byte staging buffer"}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	copy(b.staging[off:], p)
	end := off + len(p)
	hw := (end + 3) &^ 3
	if hw > b.highWater {
		b.highWater = hw
	}
	return nil
}

// Flush copies the staging buffer to the card's buffer window in 32-bit
// units, applying word-wise byte reversal when the buffer was built with
// word swapping enabled, and programs the data buffer
// control register with ENA|MODE|TRIG|length.
func (b *Buffer) Flush() error {
	b.mu.Lock()
	length := b.highWater
	if b.checksum {
		sum := crc16.New(nil)
		_, _ = sum.Write(b.staging[4:length])
		var crcBuf [4]byte
		binary.BigEndian.PutUint16(crcBuf[2:], sum.Sum16())
		if length+4 > MaxPayload {
			b.mu.Unlock()
			return &errs.RangeError{Field: "dbuf.length", Value: length + 4, Msg: "no room for trailing checksum"}
		}
		copy(b.staging[length:length+4], crcBuf[:])
		length += 4
	}
	frame := append([]byte(nil), b.staging[:length]...)
	b.mu.Unlock()

	if b.wordSwap {
		for i := 0; i+4 <= length; i += 4 {
			frame[i], frame[i+1], frame[i+2], frame[i+3] = frame[i+3], frame[i+2], frame[i+1], frame[i]
		}
	}

	unlock := b.win.LockIRQ()
	defer unlock()

	if err := b.win.WriteRaw(offDataBuf, frame); err != nil {
		return xerrors.Errorf("dbuf: flush frame: %w", err)
	}

	ctrl := dbcrEna | dbcrMode | dbcrTrig | (uint32(length) & dbcrLenMsk)
	if err := b.regs.Set(ctrl); err != nil {
		return xerrors.Errorf("dbuf: program DBCR: %w", err)
	}
	return nil
}

// WireBytes returns the bytes as they would appear on the link for the
// buffer's currently staged contents, without touching hardware. It exists
// for tests and for the offline framing helpers used by seqstore/cmd.
func (b *Buffer) WireBytes() []byte {
	b.mu.Lock()
	frame := append([]byte(nil), b.staging[:b.highWater]...)
	swap := b.wordSwap
	b.mu.Unlock()
	if swap {
		for i := 0; i+4 <= len(frame); i += 4 {
			frame[i], frame[i+1], frame[i+2], frame[i+3] = frame[i+3], frame[i+2], frame[i+1], frame[i]
		}
	}
	return frame
}

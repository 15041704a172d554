// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regio implements the register window and volatile I/O
// primitives shared by every EVG/EVR sub-unit: typed, endianness-correct
// reads/writes of 8/16/32-bit register fields, and an ISR-safe critical
// section for read-modify-write bit twiddling that can race with the
// card's interrupt handler.
package regio // import "github.com/ess-dmsc/mrf-core/regio"

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/ess-dmsc/mrf-core/errs"
)

// RW is the minimal backing store a Window needs: a byte-addressable,
// randomly accessible register BAR (typically an *mmap.Handle, or an
// in-memory fake in tests).
type RW interface {
	io.ReaderAt
	io.WriterAt
}

// Width is the bit-width of a register field accessed through a Window.
type Width int

// Supported field widths.
const (
	Width8  Width = 8
	Width16 Width = 16
	Width32 Width = 32
)

// Window is a typed, endianness-correct view over a card's register BAR
// or UIO window. All accesses go through it; callers never touch the
// backing store directly.
type Window struct {
	rw     RW
	length int64

	// wordSwap is true when the bus reverses the byte order of every
	// 32-bit word (the PLX PCI bridge and MRF's VME bridges both do
	// this), so that a natural-endian value must be byte-swapped at
	// the boundary rather than in every caller.
	wordSwap bool

	mu sync.Mutex // lock_irq() surrogate: see LockIRQ.
}

// NewWindow wraps rw, a length-byte register BAR, presenting natural
// host endianness to callers. wordSwap should be true for bus variants
// (PLX PCI bridge) that reverse bytes per 32-bit word on the wire.
func NewWindow(rw RW, length int64, wordSwap bool) *Window {
	return &Window{rw: rw, length: length, wordSwap: wordSwap}
}

func (w *Window) checkRange(op string, off int64, width Width) {
	n := int64(width / 8)
	if off < 0 || off+n > w.length {
		panic(&errs.ProgrammerError{
			Op:  op,
			Msg: fmt.Sprintf("offset 0x%x width=%d out of range [0,0x%x)", off, width, w.length),
		})
	}
}

// LockIRQ acquires the window's ISR-safe critical section and returns a
// function that releases it. Every read-modify-write sequence that can
// race with the card's interrupt handler must be bracketed by it:
//
//	unlock := win.LockIRQ()
//	defer unlock()
//
// In firmware this masks the CPU's interrupt line; in this driver it is
// a plain mutex, since the "ISR" here is a goroutine like any other and
// a mutex gives the same mutual-exclusion guarantee on a single process.
func (w *Window) LockIRQ() func() {
	w.mu.Lock()
	return w.mu.Unlock
}

func (w *Window) swap32(b []byte) {
	if w.wordSwap {
		b[0], b[1], b[2], b[3] = b[3], b[2], b[1], b[0]
	}
}

// ReadU8 reads an 8-bit field at off.
func (w *Window) ReadU8(off int64) (uint8, error) {
	w.checkRange("ReadU8", off, Width8)
	var buf [1]byte
	if _, err := w.rw.ReadAt(buf[:], off); err != nil {
		return 0, fmt.Errorf("regio: could not read u8 at 0x%x: %w", off, err)
	}
	return buf[0], nil
}

// WriteU8 writes an 8-bit field at off.
func (w *Window) WriteU8(off int64, v uint8) error {
	w.checkRange("WriteU8", off, Width8)
	buf := [1]byte{v}
	if _, err := w.rw.WriteAt(buf[:], off); err != nil {
		return fmt.Errorf("regio: could not write u8 at 0x%x: %w", off, err)
	}
	return nil
}

// ReadU16 reads a 16-bit field at off, in host-natural byte order.
func (w *Window) ReadU16(off int64) (uint16, error) {
	w.checkRange("ReadU16", off, Width16)
	var buf [2]byte
	if _, err := w.rw.ReadAt(buf[:], off); err != nil {
		return 0, fmt.Errorf("regio: could not read u16 at 0x%x: %w", off, err)
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

// WriteU16 writes a 16-bit field at off, in host-natural byte order.
func (w *Window) WriteU16(off int64, v uint16) error {
	w.checkRange("WriteU16", off, Width16)
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	if _, err := w.rw.WriteAt(buf[:], off); err != nil {
		return fmt.Errorf("regio: could not write u16 at 0x%x: %w", off, err)
	}
	return nil
}

// ReadU32 reads a 32-bit field at off, undoing the bus's per-word byte
// reversal if configured.
func (w *Window) ReadU32(off int64) (uint32, error) {
	w.checkRange("ReadU32", off, Width32)
	var buf [4]byte
	if _, err := w.rw.ReadAt(buf[:], off); err != nil {
		return 0, fmt.Errorf("regio: could not read u32 at 0x%x: %w", off, err)
	}
	w.swap32(buf[:])
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// WriteU32 writes a 32-bit field at off, applying the bus's per-word
// byte reversal if configured.
func (w *Window) WriteU32(off int64, v uint32) error {
	w.checkRange("WriteU32", off, Width32)
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	w.swap32(buf[:])
	if _, err := w.rw.WriteAt(buf[:], off); err != nil {
		return fmt.Errorf("regio: could not write u32 at 0x%x: %w", off, err)
	}
	return nil
}

// SetBits sets the bits of mask in the width-wide field at off, as a
// single LockIRQ-guarded read-modify-write.
func (w *Window) SetBits(width Width, off int64, mask uint32) error {
	unlock := w.LockIRQ()
	defer unlock()
	return w.rmw(width, off, func(v uint32) uint32 { return v | mask })
}

// ClearBits clears the bits of mask in the width-wide field at off, as
// a single LockIRQ-guarded read-modify-write.
func (w *Window) ClearBits(width Width, off int64, mask uint32) error {
	unlock := w.LockIRQ()
	defer unlock()
	return w.rmw(width, off, func(v uint32) uint32 { return v &^ mask })
}

func (w *Window) rmw(width Width, off int64, f func(uint32) uint32) error {
	switch width {
	case Width8:
		v, err := w.ReadU8(off)
		if err != nil {
			return err
		}
		return w.WriteU8(off, uint8(f(uint32(v))))
	case Width16:
		v, err := w.ReadU16(off)
		if err != nil {
			return err
		}
		return w.WriteU16(off, uint16(f(uint32(v))))
	case Width32:
		v, err := w.ReadU32(off)
		if err != nil {
			return err
		}
		return w.WriteU32(off, f(v))
	default:
		panic(&errs.ProgrammerError{Op: "rmw", Msg: fmt.Sprintf("unsupported width %d", width)})
	}
}

// Len returns the size in bytes of the window.
func (w *Window) Len() int64 { return w.length }

// WriteRaw copies b verbatim into the window at off, with no endianness
// conversion and no per-word byte reversal. It exists for callers that
// move an opaque byte frame (the distributed data buffer) rather than a
// typed register value, and who apply whatever wire-level reversal they
// need themselves.
func (w *Window) WriteRaw(off int64, b []byte) error {
	if off < 0 || off+int64(len(b)) > w.length {
		panic(&errs.ProgrammerError{
			Op:  "WriteRaw",
			Msg: fmt.Sprintf("range [0x%x,0x%x) out of range [0,0x%x)", off, off+int64(len(b)), w.length),
		})
	}
	if _, err := w.rw.WriteAt(b, off); err != nil {
		return fmt.Errorf("regio: could not write raw bytes at 0x%x: %w", off, err)
	}
	return nil
}

// ReadRaw reads len(b) bytes verbatim from the window at off into b.
func (w *Window) ReadRaw(off int64, b []byte) error {
	if off < 0 || off+int64(len(b)) > w.length {
		panic(&errs.ProgrammerError{
			Op:  "ReadRaw",
			Msg: fmt.Sprintf("range [0x%x,0x%x) out of range [0,0x%x)", off, off+int64(len(b)), w.length),
		})
	}
	if _, err := w.rw.ReadAt(b, off); err != nil {
		return fmt.Errorf("regio: could not read raw bytes at 0x%x: %w", off, err)
	}
	return nil
}

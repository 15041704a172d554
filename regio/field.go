// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package regio

// Field32 is a bound accessor for a single 32-bit register, the way
// sub-units describe "the register at this offset" without repeating
// the offset at every call site. It mirrors the teacher driver's reg32
// helper (github.com/go-lpc/mim/eda's newReg32), generalized to surface
// the I/O error instead of stashing it on a shared sticky-error field.
type Field32 struct {
	win *Window
	off int64
}

// NewField32 binds a Field32 to offset off of win.
func NewField32(win *Window, off int64) Field32 {
	return Field32{win: win, off: off}
}

// Get reads the field.
func (f Field32) Get() (uint32, error) { return f.win.ReadU32(f.off) }

// Set writes the field.
func (f Field32) Set(v uint32) error { return f.win.WriteU32(f.off, v) }

// SetBits sets mask under the window's critical section.
func (f Field32) SetBits(mask uint32) error { return f.win.SetBits(Width32, f.off, mask) }

// ClearBits clears mask under the window's critical section.
func (f Field32) ClearBits(mask uint32) error { return f.win.ClearBits(Width32, f.off, mask) }

// Field16 is the 16-bit analogue of Field32.
type Field16 struct {
	win *Window
	off int64
}

// NewField16 binds a Field16 to offset off of win.
func NewField16(win *Window, off int64) Field16 { return Field16{win: win, off: off} }

// Get reads the field.
func (f Field16) Get() (uint16, error) { return f.win.ReadU16(f.off) }

// Set writes the field.
func (f Field16) Set(v uint16) error { return f.win.WriteU16(f.off, v) }

// Field8 is the 8-bit analogue of Field32.
type Field8 struct {
	win *Window
	off int64
}

// NewField8 binds a Field8 to offset off of win.
func NewField8(win *Window, off int64) Field8 { return Field8{win: win, off: off} }

// Get reads the field.
func (f Field8) Get() (uint8, error) { return f.win.ReadU8(f.off) }

// Set writes the field.
func (f Field8) Set(v uint8) error { return f.win.WriteU8(f.off, v) }

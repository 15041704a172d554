// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr

import (
	"fmt"

	"github.com/ess-dmsc/mrf-core/errs"
	"github.com/ess-dmsc/mrf-core/regio"
)

// CMLMode selects one of the three output-generation modes a CML output
// front-end can run: a fixed pattern of two 32-bit half-periods (Classic),
// a programmable frequency divider (Frequency), or an arbitrary bit
// pattern replayed from a small RAM (Pattern).
type CMLMode int

const (
	CMLClassic CMLMode = iota
	CMLFrequency
	CMLPattern
)

const (
	cmlCtrlEnable  uint32 = 1 << 31
	cmlCtrlModeLSB        = 28 // 2-bit mode field
)

// CMLOutput is a high-speed serializer output found on EVR fan-out
// hardware. In Pattern mode, a short bit pattern is replayed from a
// dedicated RAM: patternLen is the total number of words held in that RAM,
// patternRecycle is how many of those words are actually played before
// playback wraps back to the start (recycle length may be shorter than the
// buffer, letting a caller shrink the effective pattern without reloading
// the RAM). countRecycle tracks how many times playback has wrapped,
// mirroring the hardware's own recycle counter register.
type CMLOutput struct {
	id   int
	ctrl regio.Field32
	low  regio.Field32
	high regio.Field32

	patternLen     regio.Field16
	patternRecycle regio.Field16

	countRecycle uint64
}

func newCMLOutput(win *regio.Window, id int, base int64) *CMLOutput {
	return &CMLOutput{
		id:             id,
		ctrl:           regio.NewField32(win, base+0x00),
		low:            regio.NewField32(win, base+0x04),
		high:           regio.NewField32(win, base+0x08),
		patternLen:     regio.NewField16(win, base+0x0C),
		patternRecycle: regio.NewField16(win, base+0x0E),
	}
}

// SetMode selects the output-generation mode.
func (c *CMLOutput) SetMode(mode CMLMode) error {
	v, err := c.ctrl.Get()
	if err != nil {
		return err
	}
	v &^= 0x3 << cmlCtrlModeLSB
	v |= uint32(mode&0x3) << cmlCtrlModeLSB
	return c.ctrl.Set(v)
}

// Enable turns the output driver on or off.
func (c *CMLOutput) Enable(on bool) error {
	if on {
		return c.ctrl.SetBits(cmlCtrlEnable)
	}
	return c.ctrl.ClearBits(cmlCtrlEnable)
}

// SetClassicPattern programs the two 32-bit half-period words used in
// Classic mode.
func (c *CMLOutput) SetClassicPattern(low, high uint32) error {
	if err := c.low.Set(low); err != nil {
		return err
	}
	return c.high.Set(high)
}

// SetFrequencyDivisor programs the divide ratio used in Frequency mode.
func (c *CMLOutput) SetFrequencyDivisor(n uint32) error {
	if n == 0 {
		return &errs.RangeError{Field: "cml.divisor", Value: n, Msg: "divisor must be > 0"}
	}
	return c.low.Set(n)
}

// SetPatternLength programs the total number of words held in the pattern
// RAM for Pattern mode.
func (c *CMLOutput) SetPatternLength(words uint16) error { return c.patternLen.Set(words) }

// PatternLength returns the programmed pattern-RAM word count.
func (c *CMLOutput) PatternLength() (uint16, error) { return c.patternLen.Get() }

// SetPatternRecycle programs how many pattern-RAM words are replayed before
// playback wraps, which may be less than PatternLength. words must not
// exceed the last programmed pattern length.
func (c *CMLOutput) SetPatternRecycle(words uint16) error {
	length, err := c.patternLen.Get()
	if err != nil {
		return err
	}
	if words > length {
		return &errs.RangeError{Field: "cml.patternRecycle", Value: uint32(words), Msg: fmt.Sprintf("recycle length exceeds pattern length %d", length)}
	}
	return c.patternRecycle.Set(words)
}

// PatternRecycle returns the programmed recycle length.
func (c *CMLOutput) PatternRecycle() (uint16, error) { return c.patternRecycle.Get() }

// NotePatternWrap records one pass of the pattern RAM completing and
// wrapping back to the start. Nothing in this package calls it; the caller
// that observes the wrap is responsible for reporting it.
func (c *CMLOutput) NotePatternWrap() { c.countRecycle++ }

// RecycleCount returns how many pattern-RAM wraps have been observed.
func (c *CMLOutput) RecycleCount() uint64 { return c.countRecycle }

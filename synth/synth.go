// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package synth is the pure-function fractional synthesizer helper: it
// converts between an event-clock frequency and the 32-bit control word
// an EVG/EVR's on-board frequency synthesizer is programmed with, and
// back. It has no knowledge of registers, cards, or I/O — callers own
// deciding whether reprogramming is necessary and writing the result.
package synth // import "github.com/ess-dmsc/mrf-core/synth"

import (
	"math"

	"github.com/ess-dmsc/mrf-core/errs"
)

// DefaultRefMHz is the synthesizer's reference oscillator frequency used
// across the MRF EVG/EVR product line.
const DefaultRefMHz = 24.0

// fracBits is the number of fractional bits in the Q4.28 fixed-point
// ratio the control word encodes: word = round((freq/ref) * 2^fracBits).
// 28 fractional bits over the 24 MHz reference give about 0.09 Hz
// resolution, several orders of magnitude below the 100ppm round-trip
// bound this package is held to; the 4 integer bits cap the ratio below
// 16, i.e. outputs under 384 MHz at that reference (192 MHz with HalfRate).
const fracBits = 28

// Flags selects among synthesizer wiring variants present on different
// card revisions.
type Flags uint32

// HalfRate indicates the synthesizer's VCO is followed by a fixed /2
// divider on this card revision, so the programmed ratio is twice the
// nominal output/reference ratio.
const HalfRate Flags = 1 << 0

// CtlWord computes the 32-bit control word that programs the
// synthesizer to produce freqMHz from a refMHz reference, and the
// resulting rounding error in parts-per-million. It returns a
// *errs.RangeError if freqMHz cannot be represented (non-positive, or
// requiring a ratio the Q4.28 encoding cannot hold).
func CtlWord(freqMHz, refMHz float64, flags Flags) (word uint32, errPPM float64, err error) {
	if refMHz <= 0 {
		return 0, 0, &errs.RangeError{Field: "refMHz", Value: refMHz, Msg: "must be positive"}
	}
	if freqMHz <= 0 {
		return 0, 0, &errs.RangeError{Field: "freqMHz", Value: freqMHz, Msg: "must be positive"}
	}

	ratio := freqMHz / refMHz
	if flags&HalfRate != 0 {
		ratio *= 2
	}

	scaled := ratio * float64(uint64(1)<<fracBits)
	if scaled <= 0 || scaled >= math.MaxUint32 {
		return 0, 0, &errs.RangeError{
			Field: "freqMHz", Value: freqMHz,
			Msg: "out of the synthesizer's representable range for this reference",
		}
	}

	word = uint32(math.Round(scaled))
	achieved := analyzeRatio(word, flags)
	errPPM = (achieved - ratio) / ratio * 1e6
	return word, errPPM, nil
}

// Analyze is the inverse of CtlWord: it reports the frequency, in MHz,
// that control word ctl programs the synthesizer to when driven by a
// refMHz reference.
func Analyze(ctl uint32, refMHz float64, flags Flags) float64 {
	return analyzeRatio(ctl, flags) * refMHz
}

func analyzeRatio(ctl uint32, flags Flags) float64 {
	ratio := float64(ctl) / float64(uint64(1)<<fracBits)
	if flags&HalfRate != 0 {
		ratio /= 2
	}
	return ratio
}

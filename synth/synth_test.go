// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package synth_test

import (
	"math"
	"testing"

	"github.com/ess-dmsc/mrf-core/errs"
	"github.com/ess-dmsc/mrf-core/synth"
)

func TestRoundTrip(t *testing.T) {
	for _, freq := range []float64{125.0, 119.0, 108.123, 24.0, 499.654} {
		word, ppm, err := synth.CtlWord(freq, synth.DefaultRefMHz, 0)
		if err != nil {
			t.Fatalf("freq=%v: unexpected error: %+v", freq, err)
		}
		if math.Abs(ppm) > 100 {
			t.Fatalf("freq=%v: rounding error too large: %v ppm", freq, ppm)
		}

		got := synth.Analyze(word, synth.DefaultRefMHz, 0)
		gotPPM := (got - freq) / freq * 1e6
		if math.Abs(gotPPM) > 100 {
			t.Fatalf("freq=%v: analyze mismatch: got=%v (%v ppm)", freq, got, gotPPM)
		}
	}
}

func TestHalfRateRoundTrip(t *testing.T) {
	word, _, err := synth.CtlWord(125.0, synth.DefaultRefMHz, synth.HalfRate)
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	got := synth.Analyze(word, synth.DefaultRefMHz, synth.HalfRate)
	if math.Abs(got-125.0) > 1e-6 {
		t.Fatalf("half-rate round trip: got=%v, want=125.0", got)
	}
}

func TestInvalidFrequency(t *testing.T) {
	for _, freq := range []float64{0, -1} {
		_, _, err := synth.CtlWord(freq, synth.DefaultRefMHz, 0)
		if err == nil {
			t.Fatalf("freq=%v: expected error", freq)
		}
		var rerr *errs.RangeError
		if !asRangeError(err, &rerr) {
			t.Fatalf("freq=%v: expected *errs.RangeError, got %T", freq, err)
		}
	}
}

func asRangeError(err error, target **errs.RangeError) bool {
	if re, ok := err.(*errs.RangeError); ok {
		*target = re
		return true
	}
	return false
}

func TestIdempotentControlWord(t *testing.T) {
	w1, _, err := synth.CtlWord(125.0, synth.DefaultRefMHz, 0)
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	w2, _, err := synth.CtlWord(125.0, synth.DefaultRefMHz, 0)
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if w1 != w2 {
		t.Fatalf("control word is not deterministic: %d != %d", w1, w2)
	}
}

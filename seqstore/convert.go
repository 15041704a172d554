// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package seqstore

import (
	"fmt"

	"github.com/ess-dmsc/mrf-core/evg"
)

// FromSequence builds a Playlist snapshot of seq's committed contents. seq
// must be Committed or later so Rows() reflects the terminator-appended,
// tick-rescaled form.
func FromSequence(name string, seq *evg.SoftSequence) Playlist {
	codes, times := seq.Rows()
	rows := make([]Row, len(codes))
	for i := range codes {
		rows[i] = Row{Code: codes[i], Timestamp: times[i]}
	}
	return Playlist{
		Name:    name,
		RunMode: seq.RunMode().String(),
		TrigSrc: seq.TriggerSource(),
		Unit:    "Ticks",
		Rows:    rows,
	}
}

// ApplyTo loads p's rows and configuration into seq, leaving seq Dirty and
// ready for Commit. Rows are always applied as ticks and a playlist's
// Unit field is ignored: FromSequence always records "Ticks", since it
// snapshots post-commit (already-tick) values.
func ApplyTo(seq *evg.SoftSequence, p Playlist) error {
	codes := make([]uint8, len(p.Rows))
	times := make([]uint64, len(p.Rows))
	for i, r := range p.Rows {
		codes[i] = r.Code
		times[i] = r.Timestamp
	}
	if err := seq.SetEvents(codes, times, evg.Ticks); err != nil {
		return fmt.Errorf("seqstore: could not apply playlist %q: %w", p.Name, err)
	}
	mode, err := evg.ParseRunMode(p.RunMode)
	if err != nil {
		return fmt.Errorf("seqstore: could not apply playlist %q: %w", p.Name, err)
	}
	seq.SetRunMode(mode)
	if err := seq.SetTriggerSource(p.TrigSrc); err != nil {
		return fmt.Errorf("seqstore: could not apply playlist %q: %w", p.Name, err)
	}
	return nil
}

// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evg

import (
	"sort"
	"sync"

	"github.com/ess-dmsc/mrf-core/errs"
)

// SequenceState is a soft sequence's position in the lifecycle state
// machine of component 4.G.
type SequenceState int

// States, in the order a sequence normally progresses through them.
const (
	Empty SequenceState = iota
	Dirty
	Committed
	Loaded
	Running
)

func (s SequenceState) String() string {
	switch s {
	case Empty:
		return "Empty"
	case Dirty:
		return "Dirty"
	case Committed:
		return "Committed"
	case Loaded:
		return "Loaded"
	case Running:
		return "Running"
	default:
		return "Unknown"
	}
}

// RunMode selects how a loaded sequence re-triggers.
type RunMode int

// Run modes a loaded sequence RAM can be programmed with.
const (
	RunSingle RunMode = iota
	RunAuto
	RunExternal
)

func (m RunMode) String() string {
	switch m {
	case RunSingle:
		return "Single"
	case RunAuto:
		return "Auto"
	case RunExternal:
		return "External"
	default:
		return "Unknown"
	}
}

// ParseRunMode parses the String() form back into a RunMode.
func ParseRunMode(s string) (RunMode, error) {
	switch s {
	case "Single":
		return RunSingle, nil
	case "Auto":
		return RunAuto, nil
	case "External":
		return RunExternal, nil
	default:
		return 0, &errs.RangeError{Field: "run_mode", Value: s, Msg: "must be Single, Auto or External"}
	}
}

// TimeUnit tags whether times passed to SetEvents are already event-clock
// ticks or need converting from seconds at commit time.
type TimeUnit int

// Units accepted by SetEvents.
const (
	Ticks TimeUnit = iota
	Seconds
)

const maxSequenceRows = 2048

// SoftSequence is one ordered event/timestamp list moving through the
// lifecycle state machine. It holds its own lock covering the committed
// event/time vectors, per the concurrency model; the manager's slot
// binding table is covered by the manager's own lock, not this one.
type SoftSequence struct {
	id int

	mu    sync.Mutex
	state SequenceState

	codes []uint8
	times []uint64
	unit  TimeUnit

	runMode  RunMode
	trigSrc  int
	slot     int // -1 when not loaded
	needSync bool

	mgr *Manager
}

// State returns the sequence's current lifecycle state.
func (s *SoftSequence) State() SequenceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Slot returns the RAM slot this sequence is loaded into, or -1.
func (s *SoftSequence) Slot() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slot
}

// SetEvents replaces the sequence's event/timestamp lists and moves it to
// Dirty from any state except Running, which is rejected with a
// *errs.RangeError. codes and times must be the same length.
func (s *SoftSequence) SetEvents(codes []uint8, times []uint64, unit TimeUnit) error {
	if len(codes) != len(times) {
		return &errs.RangeError{Field: "events", Value: len(codes), Msg: "codes and times must be the same length"}
	}
	if len(codes) > maxSequenceRows {
		return &errs.RangeError{Field: "events", Value: len(codes), Msg: "sequence exceeds 2048 rows"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Running {
		return &errs.RangeError{Field: "state", Value: s.state.String(), Msg: "disable a running sequence before editing it"}
	}

	s.codes = append([]uint8(nil), codes...)
	s.times = append([]uint64(nil), times...)
	s.unit = unit
	s.state = Dirty
	return nil
}

// RunMode returns the sequence's configured run mode.
func (s *SoftSequence) RunMode() RunMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runMode
}

// TriggerSource returns the sequence's configured trigger source.
func (s *SoftSequence) TriggerSource() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trigSrc
}

// SetRunMode selects how the sequence re-triggers once loaded.
func (s *SoftSequence) SetRunMode(mode RunMode) {
	s.mu.Lock()
	s.runMode = mode
	s.mu.Unlock()
}

// SetTriggerSource selects the trigger: 0..7 for a mux counter, 16..18 for
// an external/bus trigger.
func (s *SoftSequence) SetTriggerSource(src int) error {
	if !validTriggerSource(src) {
		return &errs.RangeError{Field: "trigger.source", Value: src, Msg: "must be 0..7 or 16..18"}
	}
	s.mu.Lock()
	s.trigSrc = src
	s.mu.Unlock()
	return nil
}

func validTriggerSource(src int) bool {
	return (src >= 0 && src <= 7) || (src >= 16 && src <= 18)
}

// Commit validates the sequence and moves it from Dirty to Committed.
// Timestamps must be non-decreasing; the terminator code 0x7F is appended
// automatically if the caller did not supply one; seconds-based times are
// rescaled to ticks using clockHz.
func (s *SoftSequence) Commit(clockHz float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Dirty {
		return &errs.RangeError{Field: "state", Value: s.state.String(), Msg: "commit requires Dirty"}
	}

	codes := append([]uint8(nil), s.codes...)
	times := append([]uint64(nil), s.times...)

	if s.unit == Seconds {
		for i, t := range times {
			times[i] = uint64(float64(t) * clockHz)
		}
	}

	if !sort.SliceIsSorted(times, func(i, j int) bool { return times[i] < times[j] }) {
		return &errs.RangeError{Field: "times", Value: nil, Msg: "timestamps must be non-decreasing"}
	}

	if len(codes) == 0 || codes[len(codes)-1] != terminatorCode {
		if len(codes) >= maxSequenceRows {
			return &errs.RangeError{Field: "events", Value: len(codes), Msg: "no room for terminator row"}
		}
		codes = append(codes, terminatorCode)
		last := uint64(0)
		if len(times) > 0 {
			last = times[len(times)-1]
		}
		times = append(times, last)
	}

	s.codes, s.times = codes, times
	s.state = Committed
	return nil
}

// Rows returns the committed (code, ticks) pairs, including the
// terminator. It is only meaningful once the sequence is Committed or
// later.
func (s *SoftSequence) Rows() ([]uint8, []uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint8(nil), s.codes...), append([]uint64(nil), s.times...)
}

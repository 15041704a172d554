// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package irqdisp_test

import (
	"sync"
	"testing"

	"github.com/ess-dmsc/mrf-core/irqdisp"
)

// fakeSource is a plain in-memory IRQSource, standing in for a card's
// register window in tests, per SPEC_FULL's test-tooling guidance
// (fake register windows implementing the same read/write pair the
// production code uses).
type fakeSource struct {
	mu     sync.Mutex
	flag   uint32
	enable uint32

	writes []uint32
}

func newFakeSource(enable uint32) *fakeSource {
	return &fakeSource{enable: enable}
}

func (s *fakeSource) raise(bits uint32) {
	s.mu.Lock()
	s.flag |= bits
	s.mu.Unlock()
}

func (s *fakeSource) ReadIRQFlag() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flag, nil
}

func (s *fakeSource) ReadIRQEnable() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enable, nil
}

func (s *fakeSource) WriteIRQFlag(v uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flag &^= v
	s.writes = append(s.writes, v)
	return nil
}

func (s *fakeSource) SetBitsIRQEnable(mask uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enable |= mask
	return nil
}

func (s *fakeSource) ClearBitsIRQEnable(mask uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enable &^= mask
	return nil
}

func TestDispatchFansOutAndClearsFlag(t *testing.T) {
	src := newFakeSource(uint32(irqdisp.Event | irqdisp.Heartbeat))
	d := irqdisp.New(src)

	var eventFired, heartbeatFired bool
	d.OnCause(irqdisp.Event, func() { eventFired = true })
	d.OnCause(irqdisp.Heartbeat, func() { heartbeatFired = true })

	src.raise(uint32(irqdisp.Event | irqdisp.Heartbeat))

	if err := d.Dispatch(); err != nil {
		t.Fatalf("Dispatch: %+v", err)
	}
	if !eventFired || !heartbeatFired {
		t.Fatalf("expected both callbacks to fire: event=%v heartbeat=%v", eventFired, heartbeatFired)
	}
	if d.Count(irqdisp.Event) != 1 || d.Count(irqdisp.Heartbeat) != 1 {
		t.Fatalf("expected each cause counted once")
	}

	flag, _ := src.ReadIRQFlag()
	if flag != 0 {
		t.Fatalf("IRQFlag = 0x%x, want 0 after write-one-to-clear", flag)
	}
}

func TestDispatchDisablesLevelSensitiveCause(t *testing.T) {
	src := newFakeSource(uint32(irqdisp.Event))
	d := irqdisp.New(src)
	d.OnCause(irqdisp.Event, func() {})

	src.raise(uint32(irqdisp.Event))
	if err := d.Dispatch(); err != nil {
		t.Fatalf("Dispatch: %+v", err)
	}

	enable, _ := src.ReadIRQEnable()
	if enable&uint32(irqdisp.Event) != 0 {
		t.Fatalf("Event must be disabled in IRQEnable after dispatch, still enabled: 0x%x", enable)
	}

	if err := d.Rearm(irqdisp.Event); err != nil {
		t.Fatalf("Rearm: %+v", err)
	}
	enable, _ = src.ReadIRQEnable()
	if enable&uint32(irqdisp.Event) == 0 {
		t.Fatalf("Event must be re-enabled after Rearm")
	}
}

func TestDispatchNoopWhenNothingPending(t *testing.T) {
	src := newFakeSource(uint32(irqdisp.Event))
	d := irqdisp.New(src)
	if err := d.Dispatch(); err != nil {
		t.Fatalf("Dispatch: %+v", err)
	}
	if len(src.writes) != 0 {
		t.Fatalf("expected no IRQFlag write when nothing is pending, got %v", src.writes)
	}
}

func TestAlertHookFiresAtThreshold(t *testing.T) {
	var alerted []uint64
	src := newFakeSource(uint32(irqdisp.RXErr))
	d := irqdisp.New(src, irqdisp.WithAlertHook(3, func(cause irqdisp.Cause, count uint64) {
		alerted = append(alerted, count)
	}))
	d.OnCause(irqdisp.RXErr, func() {})

	for i := 0; i < 5; i++ {
		src.raise(uint32(irqdisp.RXErr))
		if err := d.Dispatch(); err != nil {
			t.Fatalf("Dispatch: %+v", err)
		}
	}

	if len(alerted) != 1 {
		t.Fatalf("expected exactly one alert (latched), got %v", alerted)
	}
	if alerted[0] != 3 {
		t.Fatalf("expected the alert to fire at count 3, got %d", alerted[0])
	}
}

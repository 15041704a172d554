// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package irqdisp implements the interrupt dispatcher (component 4.I): a
// single top-half that reads IRQFlag & IRQEnable, fans each set cause out
// to a registered callback and counter, then writes IRQFlag back
// (write-one-to-clear) and re-reads it to force ordering before returning.
package irqdisp // import "github.com/ess-dmsc/mrf-core/irqdisp"

import (
	"log"
	"os"
	"sync"

	"github.com/ess-dmsc/mrf-core/regio"
)

// Cause identifies one of the IRQFlag bits the dispatcher demultiplexes.
type Cause uint32

// Causes handled, per §4.I: RXErr, BufFull, HWMapped, Event, Heartbeat,
// FIFOFull.
const (
	RXErr     Cause = 1 << 0
	FIFOFull  Cause = 1 << 1
	Heartbeat Cause = 1 << 2
	Event     Cause = 1 << 3
	HWMapped  Cause = 1 << 4
	BufFull   Cause = 1 << 5
)

var allCauses = [...]Cause{RXErr, FIFOFull, Heartbeat, Event, HWMapped, BufFull}

func (c Cause) String() string {
	switch c {
	case RXErr:
		return "RXErr"
	case FIFOFull:
		return "FIFOFull"
	case Heartbeat:
		return "Heartbeat"
	case Event:
		return "Event"
	case HWMapped:
		return "HWMapped"
	case BufFull:
		return "BufFull"
	default:
		return "Unknown"
	}
}

// IRQSource is whatever hands the dispatcher a raw IRQFlag/IRQEnable
// register pair: a card's regio.Window in production, a UIO interrupt
// count fd wrapper (UIOInterruptSource) on Linux, or a fake channel-driven
// source in tests. The dispatcher only ever reads/writes through it.
type IRQSource interface {
	ReadIRQFlag() (uint32, error)
	ReadIRQEnable() (uint32, error)
	WriteIRQFlag(uint32) error
	SetBitsIRQEnable(mask uint32) error
	ClearBitsIRQEnable(mask uint32) error
}

// WindowSource adapts a regio.Window whose IRQFlag/IRQEnable registers sit
// at fixed offsets into an IRQSource.
type WindowSource struct {
	Win          *regio.Window
	FlagOffset   int64
	EnableOffset int64
}

func (s *WindowSource) ReadIRQFlag() (uint32, error)   { return s.Win.ReadU32(s.FlagOffset) }
func (s *WindowSource) ReadIRQEnable() (uint32, error) { return s.Win.ReadU32(s.EnableOffset) }
func (s *WindowSource) WriteIRQFlag(v uint32) error    { return s.Win.WriteU32(s.FlagOffset, v) }
func (s *WindowSource) SetBitsIRQEnable(mask uint32) error {
	return s.Win.SetBits(regio.Width32, s.EnableOffset, mask)
}
func (s *WindowSource) ClearBitsIRQEnable(mask uint32) error {
	return s.Win.ClearBits(regio.Width32, s.EnableOffset, mask)
}

// levelSensitive causes are disabled in IRQEnable by the top-half and must
// be re-enabled by their own callback once the condition that raised them
// has been serviced (Event by the FIFO drain re-arm, BufFull by the data
// buffer's own re-arm); the rest are left enabled across calls.
var levelSensitive = map[Cause]bool{
	Event:    true,
	BufFull:  true,
	FIFOFull: true,
}

// Dispatcher is the single top-half for one card's interrupt line.
type Dispatcher struct {
	src IRQSource
	log *log.Logger

	mu        sync.Mutex
	callbacks map[Cause]func()
	counters  map[Cause]uint64

	alert *alertGate
}

// Option configures a Dispatcher at construction.
type Option func(*Dispatcher)

// WithLogger overrides the default stdout logger.
func WithLogger(l *log.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithAlertHook registers fn to run once RXErr or FIFOFull has fired at
// least threshold times within a sustained burst (the top-half never
// clears the run, a call to ResetAlert does); see WithAlerting for the
// gomail.v2-backed operator page this is meant to drive.
func WithAlertHook(threshold uint64, fn func(cause Cause, count uint64)) Option {
	return func(d *Dispatcher) { d.alert = newAlertGate(threshold, fn) }
}

// New builds a Dispatcher reading/writing through src.
func New(src IRQSource, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		src:       src,
		log:       log.New(os.Stdout, "irqdisp: ", 0),
		callbacks: make(map[Cause]func()),
		counters:  make(map[Cause]uint64),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnCause registers cb to run when cause fires. Only one callback per
// cause is supported; a later call replaces an earlier one.
func (d *Dispatcher) OnCause(cause Cause, cb func()) {
	d.mu.Lock()
	d.callbacks[cause] = cb
	d.mu.Unlock()
}

// Count reports how many times cause has fired.
func (d *Dispatcher) Count(cause Cause) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counters[cause]
}

// Dispatch is the top-half itself. It never blocks: registered callbacks
// must hand off to a worker (the workqueue.Pool, a channel) rather than do
// real work inline, the same discipline the FIFO drain's Wake follows.
func (d *Dispatcher) Dispatch() error {
	enable, err := d.src.ReadIRQEnable()
	if err != nil {
		return err
	}
	flag, err := d.src.ReadIRQFlag()
	if err != nil {
		return err
	}
	pending := flag & enable
	if pending == 0 {
		return nil
	}

	d.mu.Lock()
	var toDisable uint32
	for _, cause := range allCauses {
		bit := uint32(cause)
		if pending&bit == 0 {
			continue
		}
		d.counters[cause]++
		count := d.counters[cause]
		cb := d.callbacks[cause]
		if levelSensitive[cause] {
			toDisable |= bit
		}
		d.mu.Unlock()

		if cb != nil {
			cb()
		}
		if (cause == RXErr || cause == FIFOFull) && d.alert != nil {
			d.alert.observe(cause, count)
		}

		d.mu.Lock()
	}
	d.mu.Unlock()

	if toDisable != 0 {
		if err := d.src.ClearBitsIRQEnable(toDisable); err != nil {
			return err
		}
	}

	if err := d.src.WriteIRQFlag(pending); err != nil {
		return err
	}
	if _, err := d.src.ReadIRQFlag(); err != nil {
		return err
	}
	return nil
}

// ResetAlert clears cause's alert latch, letting a fresh burst page again.
// Callers reset RXErr's latch once the link recovers.
func (d *Dispatcher) ResetAlert(cause Cause) {
	if d.alert != nil {
		d.alert.reset(cause)
	}
}

// Rearm re-enables cause in IRQEnable, for callbacks that disabled
// themselves as level-sensitive (Event, BufFull, FIFOFull) once they have
// finished servicing the condition.
func (d *Dispatcher) Rearm(cause Cause) error {
	return d.src.SetBitsIRQEnable(uint32(cause))
}

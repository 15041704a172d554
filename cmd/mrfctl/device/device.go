// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package device is mrfctl's card bring-up helper: it mmaps a UIO device
// node, constructs an evr.Card or evg.Card over it, registers the card in
// a process-wide registry.Registry, and wires an irqdisp.Dispatcher to
// poll it in the background. Every mrfctl subcommand that addresses a
// card by id goes through the Reg registry this package owns.
package device // import "github.com/ess-dmsc/mrf-core/cmd/mrfctl/device"

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ess-dmsc/mrf-core/evg"
	"github.com/ess-dmsc/mrf-core/evr"
	"github.com/ess-dmsc/mrf-core/internal/mmap"
	"github.com/ess-dmsc/mrf-core/irqdisp"
	"github.com/ess-dmsc/mrf-core/regio"
	"github.com/ess-dmsc/mrf-core/registry"
)

// windowSize is large enough to cover every register block either card
// type addresses (mapping RAM / sequence RAMs included).
const windowSize = 0x10000

// Reg is the process-wide card registry. Subcommands that address a card
// by id (reg read/write, seq load/enable) look it up here after an Open*
// call has populated it.
var Reg = registry.New()

// dispatchers tracks the irqdisp.Dispatcher built for each opened card,
// keyed the same way Reg is, so "serve" can report interrupt counters
// without re-deriving the wiring.
var dispatchers = map[int]*irqdisp.Dispatcher{}

// Dispatcher returns the interrupt dispatcher backing card id, or nil if
// none has been opened under that id.
func Dispatcher(id int) *irqdisp.Dispatcher { return dispatchers[id] }

// OpenEVR mmaps the UIO device node at uioPath, brings up an evr.Card
// over it under id, registers it in Reg, and starts a background
// goroutine polling its interrupt dispatcher until ctx is cancelled.
func OpenEVR(ctx context.Context, id int, uioPath string) (*evr.Card, error) {
	win, err := openWindow(uioPath)
	if err != nil {
		return nil, err
	}
	card, err := evr.New(id, win)
	if err != nil {
		return nil, fmt.Errorf("mrfctl: could not bring up evr%d: %w", id, err)
	}
	if err := Reg.Register(id, card); err != nil {
		_ = card.Close()
		return nil, err
	}
	d := irqdisp.New(card.IRQSource())
	d.OnCause(irqdisp.Event, func() { card.HandleIRQ(uint32(irqdisp.Event)) })
	d.OnCause(irqdisp.Heartbeat, func() { card.HandleIRQ(uint32(irqdisp.Heartbeat)) })
	d.OnCause(irqdisp.RXErr, func() { card.HandleIRQ(uint32(irqdisp.RXErr)) })
	dispatchers[id] = d
	go pollDispatcher(ctx, d)
	return card, nil
}

// OpenEVG mmaps the UIO device node at uioPath, brings up an evg.Card
// over it under id, registers it in Reg, and starts a background
// interrupt-poll goroutine. The hardware stop cause (component 4.G's
// per-sequence-RAM "finished" notification) is a single register bit
// OR'd across every sequence RAM slot, unlike irqdisp's other per-cause
// bits, so it is not routed through the dispatcher's OnCause table on its
// own: HandleIRQ is called once per slot on every dispatch pass, relying
// on Manager.OnHardwareStop being a no-op for slots that are not both
// loaded and actually stopped.
func OpenEVG(ctx context.Context, id int, uioPath string, numSlots int) (*evg.Card, error) {
	win, err := openWindow(uioPath)
	if err != nil {
		return nil, err
	}
	card, err := evg.New(id, win)
	if err != nil {
		return nil, fmt.Errorf("mrfctl: could not bring up evg%d: %w", id, err)
	}
	if err := Reg.Register(id, card); err != nil {
		_ = card.Close()
		return nil, err
	}
	d := irqdisp.New(card.IRQSource())
	d.OnCause(irqdisp.Heartbeat, func() {
		for slot := 0; slot < numSlots; slot++ {
			card.HandleIRQ(uint32(irqdisp.Heartbeat), slot)
		}
	})
	dispatchers[id] = d
	go pollDispatcher(ctx, d)
	return card, nil
}

func openWindow(uioPath string) (*regio.Window, error) {
	if uioPath == "" {
		return nil, fmt.Errorf("mrfctl: no device path given")
	}
	f, err := os.OpenFile(uioPath, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("mrfctl: could not open %s: %w", uioPath, err)
	}
	handle, err := mmap.Open(f.Fd(), 0, windowSize)
	closeErr := f.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, fmt.Errorf("mrfctl: could not close %s after mapping: %w", uioPath, closeErr)
	}
	return regio.NewWindow(handle, windowSize, false), nil
}

// pollDispatcher runs a card's interrupt dispatcher at a steady cadence.
// Real deployments can additionally run irqdisp.UIOInterruptSource.RunLoop
// off the same UIO node for lower-latency, blocking-read delivery; this
// ticker keeps register state converging even without that wired in.
func pollDispatcher(ctx context.Context, d *irqdisp.Dispatcher) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Dispatch(); err != nil {
				log.Printf("mrfctl: dispatch: %v", err)
			}
		}
	}
}

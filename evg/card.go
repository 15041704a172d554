// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package evg implements the Event Generator card: its sub-units (mux
// counters, distributed-bus sources, front-panel inputs, the software
// event generator), and the soft-sequence lifecycle and sequence-RAM
// arena manager.
package evg // import "github.com/ess-dmsc/mrf-core/evg"

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ess-dmsc/mrf-core/dbuf"
	"github.com/ess-dmsc/mrf-core/errs"
	"github.com/ess-dmsc/mrf-core/irqdisp"
	"github.com/ess-dmsc/mrf-core/regio"
	"github.com/ess-dmsc/mrf-core/workqueue"
)

const defaultClockHz = 125e6

// Option configures a Card at construction.
type Option func(*Card)

// WithClockHz overrides the default 125 MHz event clock.
func WithClockHz(hz float64) Option {
	return func(c *Card) { c.clkHz = hz }
}

// WithDBufProtocolID sets the protocol id framed into every transmitted
// distributed-data-buffer frame. Defaults to 0.
func WithDBufProtocolID(id uint32) Option {
	return func(c *Card) { c.dbufProtocol = id }
}

// Card is one Event Generator: a register window, its sub-units, the
// software event generator, and the sequence-RAM manager with its
// dedicated sync worker.
type Card struct {
	id  int
	win *regio.Window
	reg *regs

	clkHz float64

	muxCounters [numMuxCounters]*MuxCounter
	dbus        [numDbusBits]*DBus
	frontPanel  [numFrontPanel]*FrontPanelInput
	softEvent   *SoftEvent

	seqMgr *Manager
	pool   *workqueue.Pool

	tx           *dbuf.Buffer
	dbufProtocol uint32

	syncRequests chan *SoftSequence
	onSynced     func(*SoftSequence)

	group  *errgroup.Group
	cancel context.CancelFunc
}

// WithSyncCallback registers a hook run on the high-priority callback pool
// once a sequence's post-stop sync pass finishes (the "FinishUpdate" leg
// of the concurrency model), analogous to a scan_io(mapped_event) request.
func WithSyncCallback(fn func(*SoftSequence)) Option {
	return func(c *Card) { c.onSynced = fn }
}

// New brings up an EVG card over win.
func New(id int, win *regio.Window, opts ...Option) (*Card, error) {
	c := &Card{id: id, win: win, clkHz: defaultClockHz}
	for _, opt := range opts {
		opt(c)
	}

	if err := checkSignature(id, win); err != nil {
		return nil, err
	}

	c.reg = newRegs(win)
	c.seqMgr = NewManager(win, c.clkHz)
	c.softEvent = newSoftEvent(c.reg)
	c.pool = workqueue.NewPool(2, 32)
	c.syncRequests = make(chan *SoftSequence, 16)
	dbufWin := regio.NewWindow(&windowSlice{win: win, base: offDataBufBase}, 0x800+dbuf.MaxPayload, false)
	c.tx = dbuf.New(dbufWin, c.dbufProtocol, false)

	for i := range c.muxCounters {
		c.muxCounters[i] = newMuxCounter(win, i)
	}
	for i := range c.dbus {
		c.dbus[i] = newDBus(win, uint32(i))
	}
	for i := range c.frontPanel {
		c.frontPanel[i] = newFrontPanelInput(win, i)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	g, ctx := errgroup.WithContext(ctx)
	c.group = g

	g.Go(func() error {
		return c.syncLoop(ctx)
	})

	if err := c.reg.irqEnable.Set(irqHeartbeat | irqStop | irqEnableAll); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("evg: card %d: irq enable: %w", id, err)
	}

	if err := c.reg.control.Set(ctrlEnable); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("evg: card %d: enable: %w", id, err)
	}

	return c, nil
}

// kindEVG is the board-kind nibble FPGAVersion reports on an Event
// Generator, decoded by regio.Identify.
const kindEVG uint8 = 0x2

// checkSignature verifies the window is large enough to hold the sequence
// RAM and register block this driver addresses, then decodes the
// FPGAVersion register. A zero vendor nibble means the register was never
// programmed (a bare test fixture, not a real card) and is not treated as
// a mismatch; a nonzero vendor reporting any board kind other than EVG is.
func checkSignature(id int, win *regio.Window) error {
	need := offSeqRAMBase + numSeqRAMs*seqRAMStride
	if win.Len() < need {
		return &errs.BadDevice{Card: id, Reason: fmt.Sprintf("register window too small: have %d bytes, need %d", win.Len(), need)}
	}
	sig, err := regio.Identify(win, offFPGAVersion)
	if err != nil {
		return err
	}
	if sig.Vendor != 0 && sig.Kind != kindEVG {
		return &errs.BadDevice{Card: id, Reason: fmt.Sprintf("FPGAVersion reports board kind 0x%x, want EVG (0x%x)", sig.Kind, kindEVG)}
	}
	return nil
}

// syncLoop is the sequence-update worker: it drains pending sync requests
// (posted from HandleIRQ's stop-cause handling), runs Update (the manager
// Sync pass) on this thread, then hands FinishUpdate off to the
// higher-priority callback pool per the concurrency model.
func (c *Card) syncLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case seq := <-c.syncRequests:
			if err := c.seqMgr.Sync(seq); err != nil {
				continue
			}
			if c.onSynced != nil {
				c.pool.Enqueue(workqueue.High, func() { c.onSynced(seq) })
			}
		}
	}
}

// HandleIRQ is the ISR entry point for stop-cause notifications for slot.
func (c *Card) HandleIRQ(flag uint32, slot int) {
	if flag&irqStop != 0 {
		c.seqMgr.OnHardwareStop(slot)
		if seq := c.sequenceInSlot(slot); seq != nil {
			select {
			case c.syncRequests <- seq:
			default:
			}
		}
	}
}

func (c *Card) sequenceInSlot(slot int) *SoftSequence {
	c.seqMgr.mu.Lock()
	defer c.seqMgr.mu.Unlock()
	if slot < 0 || slot >= numSeqRAMs {
		return nil
	}
	id := c.seqMgr.slots[slot].ownerID
	if id == -1 {
		return nil
	}
	return c.seqMgr.sequences[id]
}

// SequenceInSlot returns the sequence currently loaded into slot, or nil
// if the slot is out of range or unloaded.
func (c *Card) SequenceInSlot(slot int) *SoftSequence { return c.sequenceInSlot(slot) }

// NewSequence allocates a fresh soft sequence.
func (c *Card) NewSequence() *SoftSequence { return c.seqMgr.NewSequence() }

// Commit validates and commits seq.
func (c *Card) Commit(seq *SoftSequence) error { return c.seqMgr.Commit(seq) }

// Load loads seq into a free slot, or the given slot if >= 0.
func (c *Card) Load(seq *SoftSequence, slot int) (int, error) { return c.seqMgr.Load(seq, slot) }

// Enable arms seq's trigger.
func (c *Card) Enable(seq *SoftSequence) error { return c.seqMgr.Enable(seq) }

// Disable disarms seq's trigger.
func (c *Card) Disable(seq *SoftSequence) error { return c.seqMgr.Disable(seq) }

// Unload frees seq's slot.
func (c *Card) Unload(seq *SoftSequence) error { return c.seqMgr.Unload(seq) }

// MuxCounter returns sub-unit i, or nil if out of range.
func (c *Card) MuxCounter(i int) *MuxCounter {
	if i < 0 || i >= len(c.muxCounters) {
		return nil
	}
	return c.muxCounters[i]
}

// DBus returns bit i, or nil if out of range.
func (c *Card) DBus(i int) *DBus {
	if i < 0 || i >= len(c.dbus) {
		return nil
	}
	return c.dbus[i]
}

// FrontPanel returns input i, or nil if out of range.
func (c *Card) FrontPanel(i int) *FrontPanelInput {
	if i < 0 || i >= len(c.frontPanel) {
		return nil
	}
	return c.frontPanel[i]
}

// SoftEvent returns the card's software event generator.
func (c *Card) SoftEvent() *SoftEvent { return c.softEvent }

// WriteDataBuffer stages p into the transmit-side distributed data buffer
// at offset off (must be >= 4; offsets [0,4) hold the protocol id).
func (c *Card) WriteDataBuffer(off int, p []byte) error { return c.tx.WriteAt(off, p) }

// FlushDataBuffer sends the staged distributed-data-buffer frame over the
// link.
func (c *Card) FlushDataBuffer() error { return c.tx.Flush() }

// FreeSlotCount reports how many sequence RAMs are unloaded.
func (c *Card) FreeSlotCount() int { return c.seqMgr.FreeSlotCount() }

// ReadRegister reads the raw 32-bit register at byte offset off, for
// operator diagnostic tooling.
func (c *Card) ReadRegister(off int64) (uint32, error) { return c.win.ReadU32(off) }

// WriteRegister writes v to the raw 32-bit register at byte offset off.
func (c *Card) WriteRegister(off int64, v uint32) error { return c.win.WriteU32(off, v) }

// IRQSource returns the register-level IRQFlag/IRQEnable transport for
// this card, for wiring an irqdisp.Dispatcher up to it.
func (c *Card) IRQSource() *irqdisp.WindowSource {
	return &irqdisp.WindowSource{Win: c.win, FlagOffset: offIRQFlag, EnableOffset: offIRQEnable}
}

// String satisfies registry.Card.
func (c *Card) String() string { return fmt.Sprintf("evg%d", c.id) }

// Close tears the card's workers down: stop the sync loop, stop the pool.
func (c *Card) Close() error {
	c.cancel()
	_ = c.group.Wait()
	c.pool.Close()
	return nil
}

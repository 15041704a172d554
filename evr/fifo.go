// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr

import (
	"log"
	"time"

	"github.com/ess-dmsc/mrf-core/workqueue"
)

// fifoDrain is the dedicated high-priority worker that pops the event FIFO
// and drives the per-slot re-arm state machine (component 4.D).
type fifoDrain struct {
	regs  *regs
	table *mappingTable
	pool  *workqueue.Pool
	mbox  *workqueue.Mailbox

	throttle time.Duration
	lastRun  time.Time

	countFIFOOverflow uint64

	done chan struct{}
}

const maxDrainIterations = 512

// defaultThrottle is 1/2000s per the design's default minimum drain
// period; zero disables throttling entirely.
const defaultThrottle = time.Second / 2000

func newFIFODrain(r *regs, t *mappingTable, pool *workqueue.Pool) *fifoDrain {
	return &fifoDrain{
		regs:     r,
		table:    t,
		pool:     pool,
		mbox:     workqueue.NewMailbox(),
		throttle: defaultThrottle,
		done:     make(chan struct{}),
	}
}

// Wake posts a non-blocking wake token, called from the ISR path.
func (d *fifoDrain) Wake() { d.mbox.Send(workqueue.Wake) }

// Stop posts the stop token, retrying while the mailbox is full, and waits
// for the loop to exit.
func (d *fifoDrain) Stop() {
	for !d.mbox.Send(workqueue.Stop) {
		time.Sleep(time.Millisecond)
	}
	<-d.done
}

// Run is the drain loop's goroutine body; the card starts it once at
// construction.
func (d *fifoDrain) Run() {
	defer close(d.done)
	for {
		tok := d.mbox.Recv()
		if tok == workqueue.Stop {
			return
		}
		d.drainOnce()
	}
}

func (d *fifoDrain) drainOnce() {
	if d.throttle > 0 {
		if elapsed := time.Since(d.lastRun); elapsed < d.throttle {
			time.Sleep(d.throttle - elapsed)
		}
	}
	defer func() { d.lastRun = time.Now() }()

	var fifoFull, rxErr bool
	for i := 0; i < maxDrainIterations; i++ {
		flag, err := d.regs.irqFlag.Get()
		if err != nil {
			log.Printf("evr: fifo drain: read IRQFlag: %v", err)
			break
		}
		if flag&irqFIFOFull != 0 {
			fifoFull = true
		}
		if flag&irqRXErr != 0 {
			rxErr = true
		}
		if flag&irqEvent == 0 || rxErr {
			break
		}

		code, err := d.readFIFOCode()
		if err != nil {
			log.Printf("evr: fifo drain: %v", err)
			break
		}
		if code == 0 {
			break
		}

		sec, errSec := d.regs.evtFIFOSec.Get()
		evt, errEvt := d.regs.evtFIFOEvt.Get()
		if errSec != nil || errEvt != nil {
			log.Printf("evr: fifo drain: read fifo sec/evt: %v / %v", errSec, errEvt)
			break
		}

		d.deliver(code, sec, evt)
	}

	if fifoFull {
		d.countFIFOOverflow++
	}
	if fifoFull || rxErr {
		_ = d.regs.control.SetBits(ctrlFIFORst)
	}

	_ = d.regs.irqEnable.SetBits(irqEvent | irqFIFOFull)
}

// readFIFOCode reads EvtFIFOCode, retrying once on an out-of-range glitch.
func (d *fifoDrain) readFIFOCode() (uint8, error) {
	v, err := d.regs.evtFIFOCode.Get()
	if err != nil {
		return 0, err
	}
	if v > 255 {
		v, err = d.regs.evtFIFOCode.Get()
		if err != nil {
			return 0, err
		}
		if v > 255 {
			log.Printf("evr: fifo drain: EvtFIFOCode out of range after retry: 0x%x", v)
			return 0, nil // treat as "log and break", per §4.D
		}
	}
	return uint8(v), nil
}

// deliver runs the re-arm state machine for one popped FIFO entry.
func (d *fifoDrain) deliver(code uint8, sec, evt uint32) {
	d.table.mu.Lock()
	s := &d.table.slots[code]
	s.lastSec, s.lastEvt = sec, evt

	if s.waitingFor == 0 {
		subs := append([]subscription(nil), s.callbacks...)
		n := len(subs)
		s.waitingFor = n
		d.table.mu.Unlock()

		if n == 0 {
			return
		}
		group := workqueue.NewSentinelGroup(n, func() {
			d.onDispatchIdle(code)
		})
		for _, sub := range subs {
			cb := sub.fn
			d.pool.Enqueue(workqueue.Medium, func() {
				cb(sec, evt)
				group.Done()
			})
		}
		return
	}

	// A dispatch for this code is already in flight: mark the overrun,
	// temporarily silence the FIFO for this code so it stops flooding.
	s.again = true
	d.table.countFIFOSwOverrate++
	still := s.interested > 0
	d.table.mu.Unlock()

	if still {
		_ = d.table.setInternalAction(code, ActionFIFOSave, false)
	}
}

// onDispatchIdle runs when every callback item enqueued for one dispatch
// of code has returned.
func (d *fifoDrain) onDispatchIdle(code uint8) {
	d.table.mu.Lock()
	s := &d.table.slots[code]
	s.waitingFor = 0
	again := s.again
	s.again = false
	stillSubscribed := s.interested > 0
	d.table.mu.Unlock()

	if again && stillSubscribed {
		_ = d.table.setInternalAction(code, ActionFIFOSave, true)
	}
}

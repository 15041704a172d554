// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package workqueue implements the bounded ISR-to-worker mailbox and the
// three priority classes of deferred-work queues that the interrupt
// dispatcher, the FIFO drain loop and the sequence engine hand work off
// to. It generalizes the "C callback block" pattern of the original
// driver (a framework-supplied deferred-work struct) into an
// (fn, priority) pair dispatched on a small worker pool, with a
// SentinelGroup used to detect when every deferred item dispatched for
// one event has drained.
package workqueue // import "github.com/ess-dmsc/mrf-core/workqueue"

import "sync"

// Priority is one of the three deferred-work classes callbacks run at.
type Priority int

// Priority classes, low to high. The EVR FIFO drain's callback fan-out
// enqueues one item per subscriber callback, all at Medium; it does not
// enqueue a separate sentinel per priority class. Its re-arm logic treats
// a slot as idle only once every item enqueued for that dispatch has
// returned.
const (
	Low Priority = iota
	Medium
	High
	numPriorities
)

// Pool is a small fixed worker pool with one FIFO queue per priority
// class. On each pass a worker takes a waiting High item first; only when
// High is empty does it wait on all three queues, and then it picks among
// whichever are ready at random (Medium is not preferred over Low). A
// steady stream of High items can therefore hold off Medium and Low work
// indefinitely.
type Pool struct {
	queues [numPriorities]chan func()
	wg     sync.WaitGroup
	quit   chan struct{}
}

// NewPool creates a pool with the given per-priority queue depth and
// starts n workers pulling from it.
func NewPool(n, depth int) *Pool {
	p := &Pool{quit: make(chan struct{})}
	for i := range p.queues {
		p.queues[i] = make(chan func(), depth)
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.loop()
	}
	return p
}

func (p *Pool) loop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case fn := <-p.queues[High]:
			fn()
		default:
			select {
			case <-p.quit:
				return
			case fn := <-p.queues[High]:
				fn()
			case fn := <-p.queues[Medium]:
				fn()
			case fn := <-p.queues[Low]:
				fn()
			}
		}
	}
}

// Enqueue schedules fn to run on a worker at the given priority. It
// blocks if that priority's queue is full: callers on the ISR path must
// never call Enqueue directly (that is exactly why the ISR only ever
// signals the drain loop through a Mailbox, never a Pool).
func (p *Pool) Enqueue(pr Priority, fn func()) {
	p.queues[pr] <- fn
}

// Close stops accepting new work and waits for in-flight items to
// finish. It does not drain queued-but-not-started items.
func (p *Pool) Close() {
	close(p.quit)
	p.wg.Wait()
}

// SentinelGroup tracks completion of exactly n deferred-work items
// dispatched together — one per subscriber callback for a single
// mapped-event delivery: a slot is idle only when every item it
// dispatched has returned.
type SentinelGroup struct {
	mu        sync.Mutex
	remaining int
	onIdle    func()
	fired     bool
}

// NewSentinelGroup creates a group awaiting n completions; onIdle is
// called exactly once, when the nth completion arrives.
func NewSentinelGroup(n int, onIdle func()) *SentinelGroup {
	g := &SentinelGroup{remaining: n, onIdle: onIdle}
	if n == 0 {
		g.fired = true
		if onIdle != nil {
			onIdle()
		}
	}
	return g
}

// Done marks one dispatched item complete.
func (g *SentinelGroup) Done() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fired {
		return
	}
	g.remaining--
	if g.remaining <= 0 {
		g.fired = true
		if g.onIdle != nil {
			g.onIdle()
		}
	}
}

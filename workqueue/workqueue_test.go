// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package workqueue_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ess-dmsc/mrf-core/workqueue"
)

func TestPoolRunsAllPriorities(t *testing.T) {
	pool := workqueue.NewPool(2, 4)
	defer pool.Close()

	var n int32
	var wg sync.WaitGroup
	wg.Add(3)
	for _, pr := range []workqueue.Priority{workqueue.Low, workqueue.Medium, workqueue.High} {
		pr := pr
		pool.Enqueue(pr, func() {
			atomic.AddInt32(&n, 1)
			wg.Done()
		})
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for all priorities to run")
	}
	if got := atomic.LoadInt32(&n); got != 3 {
		t.Fatalf("invalid run count: got=%d, want=3", got)
	}
}

func TestSentinelGroupFiresOnce(t *testing.T) {
	var fired int32
	g := workqueue.NewSentinelGroup(3, func() { atomic.AddInt32(&fired, 1) })

	g.Done()
	g.Done()
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatalf("fired before all sentinels returned")
	}
	g.Done()
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatalf("did not fire after all sentinels returned")
	}
	g.Done() // extra completions must not double-fire
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatalf("fired more than once")
	}
}

func TestSentinelGroupZero(t *testing.T) {
	var fired int32
	workqueue.NewSentinelGroup(0, func() { atomic.AddInt32(&fired, 1) })
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatalf("zero-count group must fire immediately")
	}
}

func TestMailboxDropsWhenFull(t *testing.T) {
	mb := workqueue.NewMailbox()
	for i := 0; i < 3; i++ {
		if !mb.Send(workqueue.Wake) {
			t.Fatalf("send %d should have been accepted", i)
		}
	}
	if mb.Send(workqueue.Wake) {
		t.Fatalf("send into a full mailbox should be dropped, not accepted")
	}
	for i := 0; i < 3; i++ {
		if got := mb.Recv(); got != workqueue.Wake {
			t.Fatalf("unexpected token: %v", got)
		}
	}
}

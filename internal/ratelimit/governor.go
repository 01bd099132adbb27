// Package ratelimit provides the outbound request governor shared by all
// upstream clients. One governor bounds one third-party budget: a sliding
// 60-second window caps total throughput and an in-flight counter caps
// concurrency. Waiters are granted strictly in arrival order.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// wakeEpsilon pads the scheduled wake after a full window so the oldest
// timestamp has definitely left the window by the time we re-check.
const wakeEpsilon = 5 * time.Millisecond

// Governor throttles outbound calls to a requests-per-minute and
// max-concurrency budget. Acquire blocks until both constraints are
// satisfied; it has no timeout of its own - callers needing cancellation
// pass a context.
type Governor struct {
	mu            sync.Mutex
	limit         int           // grants allowed per window
	maxConcurrent int           // in-flight ceiling
	window        time.Duration // sliding window span (60s in production)
	grants        []time.Time   // grant timestamps still inside the window
	inFlight      int
	waiters       []chan struct{} // FIFO
	wakeTimer     *time.Timer

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) *time.Timer
}

// New creates a governor with the production 60-second window.
func New(requestsPerMinute, maxConcurrent int) *Governor {
	return NewWithClock(requestsPerMinute, maxConcurrent, time.Minute, time.Now)
}

// NewWithClock creates a governor with an explicit window span and clock.
// Tests use this to drive the window deterministically.
func NewWithClock(limit, maxConcurrent int, window time.Duration, now func() time.Time) *Governor {
	if limit < 1 {
		limit = 1
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Governor{
		limit:         limit,
		maxConcurrent: maxConcurrent,
		window:        window,
		now:           now,
		afterFunc:     time.AfterFunc,
	}
}

// Acquire blocks until a slot is granted or ctx is cancelled.
// Every successful Acquire must be paired with exactly one Release.
func (g *Governor) Acquire(ctx context.Context) error {
	ready := make(chan struct{})

	g.mu.Lock()
	g.waiters = append(g.waiters, ready)
	g.grantLocked()
	g.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		g.mu.Lock()
		removed := g.removeWaiterLocked(ready)
		g.mu.Unlock()
		if !removed {
			// The grant raced the cancellation; give the slot back.
			g.Release()
		}
		return ctx.Err()
	}
}

// Release returns an in-flight slot and wakes the next waiter if possible.
func (g *Governor) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight > 0 {
		g.inFlight--
	}
	g.grantLocked()
}

// InFlight reports the number of currently held slots.
func (g *Governor) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

// GrantedInWindow reports how many grants are still inside the sliding window.
func (g *Governor) GrantedInWindow() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pruneLocked(g.now())
	return len(g.grants)
}

// grantLocked wakes queued waiters, oldest first, while both budgets allow.
// When the throughput window is full it schedules a wake for the moment the
// oldest grant slides out.
func (g *Governor) grantLocked() {
	now := g.now()
	g.pruneLocked(now)

	for len(g.waiters) > 0 {
		if g.inFlight >= g.maxConcurrent {
			return // a Release will re-run the grant loop
		}
		if len(g.grants) >= g.limit {
			g.scheduleWakeLocked(now)
			return
		}

		ready := g.waiters[0]
		g.waiters = g.waiters[1:]
		g.grants = append(g.grants, now)
		g.inFlight++
		close(ready)
	}
}

// pruneLocked drops grant timestamps that have left the sliding window.
func (g *Governor) pruneLocked(now time.Time) {
	cutoff := now.Add(-g.window)
	idx := 0
	for idx < len(g.grants) && !g.grants[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		g.grants = g.grants[idx:]
	}
}

// scheduleWakeLocked arms a timer for when the oldest grant exits the window.
func (g *Governor) scheduleWakeLocked(now time.Time) {
	if g.wakeTimer != nil || len(g.grants) == 0 {
		return
	}
	wait := g.window - now.Sub(g.grants[0]) + wakeEpsilon
	if wait < wakeEpsilon {
		wait = wakeEpsilon
	}
	g.wakeTimer = g.afterFunc(wait, func() {
		g.mu.Lock()
		g.wakeTimer = nil
		g.grantLocked()
		g.mu.Unlock()
	})
}

// removeWaiterLocked drops a waiter that gave up. Returns false when the
// waiter had already been granted (its channel is no longer queued).
func (g *Governor) removeWaiterLocked(ready chan struct{}) bool {
	for i, w := range g.waiters {
		if w == ready {
			g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
			return true
		}
	}
	return false
}

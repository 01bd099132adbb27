package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives the governor deterministically: time only moves when the
// test says so, and scheduled wakes are fired by hand.
type fakeClock struct {
	mu  sync.Mutex
	t   time.Time
	cbs []func()
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) afterFunc(_ time.Duration, f func()) *time.Timer {
	c.mu.Lock()
	c.cbs = append(c.cbs, f)
	c.mu.Unlock()
	// Return a dormant timer; the test fires callbacks explicitly.
	return time.NewTimer(time.Hour)
}

func (c *fakeClock) fire(t *testing.T) {
	t.Helper()
	c.mu.Lock()
	cbs := c.cbs
	c.cbs = nil
	c.mu.Unlock()
	require.NotEmpty(t, cbs, "expected a scheduled wake")
	for _, f := range cbs {
		f()
	}
}

func newTestGovernor(limit, maxConcurrent int, clock *fakeClock) *Governor {
	g := NewWithClock(limit, maxConcurrent, time.Minute, clock.now)
	g.afterFunc = clock.afterFunc
	return g
}

func mustAcquire(t *testing.T, g *Governor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, g.Acquire(ctx))
}

func TestAcquireWithinBudgetDoesNotBlock(t *testing.T) {
	clock := newFakeClock()
	g := newTestGovernor(5, 5, clock)

	for i := 0; i < 5; i++ {
		mustAcquire(t, g)
	}

	assert.Equal(t, 5, g.InFlight())
	assert.Equal(t, 5, g.GrantedInWindow())
}

func TestWindowBoundsThroughput(t *testing.T) {
	clock := newFakeClock()
	g := newTestGovernor(3, 10, clock)

	for i := 0; i < 3; i++ {
		mustAcquire(t, g)
		g.Release()
	}

	// Window is full; the fourth acquire must queue.
	granted := make(chan struct{})
	go func() {
		_ = g.Acquire(context.Background())
		close(granted)
	}()

	select {
	case <-granted:
		t.Fatal("acquire should block while the window is full")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 3, g.GrantedInWindow())

	// Slide the oldest grant out of the window, then fire the scheduled wake.
	clock.advance(61 * time.Second)
	clock.fire(t)

	select {
	case <-granted:
	case <-time.After(time.Second):
		t.Fatal("acquire should proceed once the window slides")
	}
}

func TestConcurrencyBound(t *testing.T) {
	g := New(1000, 2)

	var active, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, g.Acquire(context.Background()))
			n := atomic.AddInt64(&active, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&active, -1)
			g.Release()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2), "in-flight acquisitions must respect max concurrency")
}

func TestFIFOOrder(t *testing.T) {
	clock := newFakeClock()
	g := newTestGovernor(10, 1, clock)

	mustAcquire(t, g) // occupy the single concurrency slot

	var mu sync.Mutex
	var order []int
	started := make(chan struct{}, 3)
	done := make(chan struct{}, 3)

	for i := 1; i <= 3; i++ {
		i := i
		go func() {
			// Signal right before queueing so the test can sequence arrivals.
			started <- struct{}{}
			_ = g.Acquire(context.Background())
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			g.Release()
			done <- struct{}{}
		}()
		<-started
		// Give the goroutine time to enqueue before starting the next one.
		time.Sleep(20 * time.Millisecond)
	}

	g.Release()
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("queued acquire never completed")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, order, "waiters must be granted in arrival order")
}

func TestCancelledWaiterDoesNotLeakSlot(t *testing.T) {
	clock := newFakeClock()
	g := newTestGovernor(10, 1, clock)

	mustAcquire(t, g)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- g.Acquire(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	require.ErrorIs(t, <-errCh, context.Canceled)

	// The cancelled waiter must not consume the slot freed next.
	g.Release()
	mustAcquire(t, g)
	assert.Equal(t, 1, g.InFlight())
}

func TestRealWindowSlides(t *testing.T) {
	g := NewWithClock(2, 5, 80*time.Millisecond, time.Now)

	start := time.Now()
	mustAcquire(t, g)
	g.Release()
	mustAcquire(t, g)
	g.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, g.Acquire(ctx))
	g.Release()

	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond,
		"third grant must wait for the window to slide")
}

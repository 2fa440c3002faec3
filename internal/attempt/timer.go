package attempt

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Countdown tracks the fixed attempt duration. Remaining seconds only ever
// decrease; reaching zero closes the expiry channel exactly once. It does
// not pause, and a new session always starts from the full duration.
type Countdown struct {
	total     int64
	remaining atomic.Int64
	fired     atomic.Bool
	expired   chan struct{}
	stopOnce  sync.Once
	stopped   chan struct{}
}

func NewCountdown(d time.Duration) *Countdown {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	c := &Countdown{
		total:   total,
		expired: make(chan struct{}),
		stopped: make(chan struct{}),
	}
	c.remaining.Store(total)
	return c
}

// Start begins ticking once per second until expiry, Stop, or ctx
// cancellation. Ticking never blocks on in-flight work elsewhere.
func (c *Countdown) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopped:
				return
			case <-ticker.C:
				if c.Tick() == 0 {
					return
				}
			}
		}
	}()
}

// Tick advances the countdown by one second and returns the new remaining
// value. Exported so tests can drive simulated time.
func (c *Countdown) Tick() int64 {
	for {
		r := c.remaining.Load()
		if r == 0 {
			return 0
		}
		if c.remaining.CompareAndSwap(r, r-1) {
			if r-1 == 0 {
				c.fire()
			}
			return r - 1
		}
	}
}

func (c *Countdown) fire() {
	if c.fired.CompareAndSwap(false, true) {
		close(c.expired)
	}
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int {
	return int(c.remaining.Load())
}

// Total returns the configured duration in seconds.
func (c *Countdown) Total() int {
	return int(c.total)
}

// Expired is closed once when the countdown reaches zero.
func (c *Countdown) Expired() <-chan struct{} {
	return c.expired
}

// Stop halts ticking. The expiry signal never fires after Stop on a
// countdown that had time left; teardown must not fire into a destroyed
// session.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopped)
	})
}

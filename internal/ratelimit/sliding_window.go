package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindowCounter approximates a rolling window with two fixed windows:
//
//	effective = current + previous * (remaining part of current window / window)
//
// A nil counter is unlimited.
type SlidingWindowCounter struct {
	mu          sync.Mutex
	curr, prev  int
	windowStart time.Time
	window      time.Duration
	limit       int
	now         func() time.Time
}

// NewSlidingWindowCounter returns nil (unlimited) when limit <= 0.
func NewSlidingWindowCounter(limit int, window time.Duration) *SlidingWindowCounter {
	return newSlidingWindowWithClock(limit, window, time.Now)
}

func newSlidingWindowWithClock(limit int, window time.Duration, now func() time.Time) *SlidingWindowCounter {
	if limit <= 0 {
		return nil
	}
	return &SlidingWindowCounter{
		windowStart: now(),
		window:      window,
		limit:       limit,
		now:         now,
	}
}

// rotate must be called with mu held.
func (c *SlidingWindowCounter) rotate() {
	elapsed := c.now().Sub(c.windowStart)
	if elapsed < c.window {
		return
	}
	passed := int(elapsed / c.window)
	if passed == 1 {
		c.prev = c.curr
	} else {
		c.prev = 0
	}
	c.curr = 0
	c.windowStart = c.windowStart.Add(time.Duration(passed) * c.window)
}

// effective must be called with mu held, after rotate.
func (c *SlidingWindowCounter) effective() float64 {
	overlap := float64(c.window-c.now().Sub(c.windowStart)) / float64(c.window)
	overlap = max(0, min(1, overlap))
	return float64(c.curr) + float64(c.prev)*overlap
}

// Check reports whether another request fits in the window.
func (c *SlidingWindowCounter) Check() bool {
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rotate()
	return c.effective() < float64(c.limit)
}

// Consume counts a request if it still fits.
func (c *SlidingWindowCounter) Consume() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rotate()
	if c.effective() < float64(c.limit) {
		c.curr++
	}
}

// Remaining returns the approximate remaining quota, or -1 when unlimited.
func (c *SlidingWindowCounter) Remaining() int {
	if c == nil {
		return -1
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rotate()
	return max(0, int(float64(c.limit)-c.effective()))
}

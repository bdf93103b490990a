// Package ratelimit provides token bucket and sliding window limiters, plus a
// keyed limiter that tracks one bucket per conversation.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter implements a token bucket rate limiter.
// It is safe for concurrent use.
//
// Tokens are added at refillRate per second up to maxTokens; each request
// takes one token.
type Limiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	now        func() time.Time
}

// New creates a limiter that starts full.
func New(maxTokens, refillRate float64) *Limiter {
	return newWithClock(maxTokens, refillRate, time.Now)
}

func newWithClock(maxTokens, refillRate float64, now func() time.Time) *Limiter {
	return &Limiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: now(),
		now:        now,
	}
}

// refill must be called with mu held.
func (l *Limiter) refill() {
	now := l.now()
	l.tokens = min(l.maxTokens, l.tokens+now.Sub(l.lastRefill).Seconds()*l.refillRate)
	l.lastRefill = now
}

// tryTake refills and, if take is set, spends a token. It returns whether a
// token was available and, when none was, how long until one will be.
func (l *Limiter) tryTake(take bool) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens < 1 {
		if l.refillRate <= 0 {
			return false, time.Hour
		}
		return false, time.Duration((1 - l.tokens) / l.refillRate * float64(time.Second))
	}
	if take {
		l.tokens--
	}
	return true, 0
}

// Allow takes a token if one is available.
func (l *Limiter) Allow() bool {
	ok, _ := l.tryTake(true)
	return ok
}

// Check reports whether a token is available without taking it. KeyedLimiter
// pairs it with Consume under its own lock to check several layers first.
func (l *Limiter) Check() bool {
	ok, _ := l.tryTake(false)
	return ok
}

// Consume takes a token if one is available.
func (l *Limiter) Consume() {
	l.tryTake(true)
}

// Wait blocks until a token is taken or ctx is done. The webhook handler
// uses it to pace replies under the channel-wide limit.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		ok, wait := l.tryTake(true)
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Available returns the current number of tokens.
func (l *Limiter) Available() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return l.tokens
}

// IsFull reports whether the bucket is at capacity. KeyedLimiter sweeps
// conversations whose buckets are full as idle.
func (l *Limiter) IsFull() bool {
	return l.Available() >= l.maxTokens
}

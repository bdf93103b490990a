package ratelimit

import (
	"sync"
	"time"

	"github.com/kewalaka/muffinbot/internal/metrics"
)

// KeyedConfig configures a KeyedLimiter instance.
type KeyedConfig struct {
	Name string // Metrics label, e.g. "conversation", "nlu"

	Burst      float64 // Bucket capacity
	RefillRate float64 // Tokens per second

	DailyLimit int // Rolling 24h quota, 0 = disabled

	CleanupPeriod time.Duration // How often idle keys are dropped

	Metrics *metrics.Metrics
}

// KeyedLimiter keeps one token bucket (and optional daily window) per key,
// typically a conversation ID. Idle keys are removed periodically.
type KeyedLimiter struct {
	mu      sync.RWMutex
	entries map[string]*keyedEntry
	cfg     KeyedConfig
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// keyedEntry's mutex makes the two-layer check-then-consume atomic.
type keyedEntry struct {
	mu     sync.Mutex
	bucket *Limiter
	daily  *SlidingWindowCounter
}

// NewKeyedLimiter starts the cleanup goroutine; call Stop when done.
func NewKeyedLimiter(cfg KeyedConfig) *KeyedLimiter {
	if cfg.CleanupPeriod <= 0 {
		cfg.CleanupPeriod = 5 * time.Minute
	}
	kl := &KeyedLimiter{
		entries: make(map[string]*keyedEntry),
		cfg:     cfg,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go kl.cleanupLoop()
	return kl
}

// Allow takes a token for key when both the bucket and the daily window
// permit it. An empty key is always allowed.
func (kl *KeyedLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}

	e := kl.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.daily.Check() || !e.bucket.Check() {
		kl.cfg.Metrics.RecordRateLimiterDrop(kl.cfg.Name)
		return false
	}
	e.daily.Consume()
	e.bucket.Consume()
	return true
}

func (kl *KeyedLimiter) entry(key string) *keyedEntry {
	kl.mu.RLock()
	e, ok := kl.entries[key]
	kl.mu.RUnlock()
	if ok {
		return e
	}

	kl.mu.Lock()
	defer kl.mu.Unlock()
	if e, ok = kl.entries[key]; ok {
		return e
	}
	e = &keyedEntry{
		bucket: newWithClock(kl.cfg.Burst, kl.cfg.RefillRate, kl.now),
		daily:  newSlidingWindowWithClock(kl.cfg.DailyLimit, 24*time.Hour, kl.now),
	}
	kl.entries[key] = e
	return e
}

// DailyRemaining returns the remaining daily quota for key, or -1 when disabled.
func (kl *KeyedLimiter) DailyRemaining(key string) int {
	if kl.cfg.DailyLimit <= 0 {
		return -1
	}
	kl.mu.RLock()
	e, ok := kl.entries[key]
	kl.mu.RUnlock()
	if !ok {
		return kl.cfg.DailyLimit
	}
	return e.daily.Remaining()
}

// ActiveCount returns the number of tracked keys.
func (kl *KeyedLimiter) ActiveCount() int {
	kl.mu.RLock()
	defer kl.mu.RUnlock()
	return len(kl.entries)
}

// sweep drops keys whose bucket has refilled and whose daily window is unused.
func (kl *KeyedLimiter) sweep() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	for key, e := range kl.entries {
		if e.bucket.IsFull() && (e.daily == nil || e.daily.Remaining() == kl.cfg.DailyLimit) {
			delete(kl.entries, key)
		}
	}
	return len(kl.entries)
}

func (kl *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(kl.cfg.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-kl.stop:
			return
		case <-ticker.C:
			kl.cfg.Metrics.SetRateLimiterActive(kl.cfg.Name, kl.sweep())
		}
	}
}

// Stop ends the cleanup goroutine. Safe to call multiple times.
func (kl *KeyedLimiter) Stop() {
	kl.once.Do(func() { close(kl.stop) })
}

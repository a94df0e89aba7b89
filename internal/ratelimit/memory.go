package ratelimit

import (
	"context"
	"sync"
	"time"
)

type windowCount struct {
	start time.Time
	count int
}

// MemoryLimiter keeps window counters in process memory. It backs tests and
// single-instance memory-storage deployments. Stale counters are swept
// lazily, matching the self-expiring keys of the Redis implementation.
type MemoryLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	counts    map[string]*windowCount
	lastSweep time.Time
}

func NewMemory(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:     limit,
		window:    window,
		counts:    make(map[string]*windowCount),
		lastSweep: time.Now(),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	windowStart := now.Truncate(l.window)

	l.sweep(now)

	wc, ok := l.counts[key]
	if !ok || !wc.start.Equal(windowStart) {
		wc = &windowCount{start: windowStart}
		l.counts[key] = wc
	}

	wc.count++
	retryAfter := windowStart.Add(l.window).Sub(now)

	return wc.count <= l.limit, retryAfter, nil
}

// sweep drops counters whose window has passed, at most once per window.
// Callers must hold the mutex.
func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now

	for key, wc := range l.counts {
		if !wc.start.Add(l.window).After(now) {
			delete(l.counts, key)
		}
	}
}

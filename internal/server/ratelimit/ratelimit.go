// Package ratelimit implements a fixed-window request counter keyed by
// client. Good enough to keep a single instance from being hammered; a
// shared store would be needed across replicas.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter counts requests per key within a fixed window. A limit of zero
// or less disables limiting entirely.
type Limiter struct {
	limit  int
	window time.Duration

	mu     sync.Mutex
	start  time.Time
	counts map[string]int

	now func() time.Time // test hook
}

// New creates a limiter allowing limit requests per key per window.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:  limit,
		window: window,
		counts: make(map[string]int),
		now:    time.Now,
	}
}

// Allow reports whether a request from key fits the current window, and
// counts it if so.
func (l *Limiter) Allow(key string) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.start.IsZero() || now.Sub(l.start) >= l.window {
		l.start = now
		clear(l.counts)
	}

	if l.counts[key] >= l.limit {
		return false
	}
	l.counts[key]++
	return true
}

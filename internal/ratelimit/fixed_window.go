// Package ratelimit implements in-process fixed-window request admission.
package ratelimit

import (
	"context"
	"sync"
	"time"

	domain "github.com/ahava-health/ahava-api/internal/domain/ratelimit"
)

// Clock supplies the current time. data.TimeProvider satisfies it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type window struct {
	count   int
	resetAt time.Time
}

// Options configures a FixedWindow limiter.
type Options struct {
	Clock Clock // Optional: defaults to the system clock
}

// FixedWindow counts requests per key inside fixed windows. A window starts on the
// first request for a key and is replaced, not extended, once it has elapsed, so up
// to twice the limit may be admitted across a window boundary.
//
// All state lives in one map guarded by a mutex; counters are only ever read and
// updated while holding it.
type FixedWindow struct {
	mu      sync.Mutex
	windows map[string]*window
	clock   Clock
}

// NewFixedWindow constructs an empty limiter.
func NewFixedWindow(opts Options) *FixedWindow {
	clock := opts.Clock
	if clock == nil {
		clock = systemClock{}
	}
	return &FixedWindow{
		windows: make(map[string]*window),
		clock:   clock,
	}
}

// Check implements ports.RateLimiter. It never fails.
func (l *FixedWindow) Check(_ context.Context, key string, limit int, win time.Duration) (domain.Decision, error) {
	return l.Allow(key, limit, win), nil
}

// Allow records one request for key and reports whether it is within limit per win.
// A limit below one is treated as one.
func (l *FixedWindow) Allow(key string, limit int, win time.Duration) domain.Decision {
	if limit < 1 {
		limit = 1
	}
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)

	w, ok := l.windows[key]
	if !ok {
		w = &window{count: 1, resetAt: now.Add(win)}
		l.windows[key] = w
		return domain.Decision{Allowed: true, Limit: limit, Remaining: limit - 1, ResetAt: w.resetAt}
	}

	if w.count < limit {
		w.count++
		return domain.Decision{Allowed: true, Limit: limit, Remaining: limit - w.count, ResetAt: w.resetAt}
	}

	return domain.Decision{
		Allowed:    false,
		Limit:      limit,
		Remaining:  0,
		ResetAt:    w.resetAt,
		RetryAfter: w.resetAt.Sub(now),
	}
}

// Sweep removes every elapsed window and returns how many were dropped.
func (l *FixedWindow) Sweep() int {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sweepLocked(now)
}

// Len returns the number of live windows.
func (l *FixedWindow) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

func (l *FixedWindow) sweepLocked(now time.Time) int {
	removed := 0
	for k, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, k)
			removed++
		}
	}
	return removed
}

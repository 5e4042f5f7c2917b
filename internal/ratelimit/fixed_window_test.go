package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ahava-health/ahava-api/internal/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func TestFixedWindow_AllowsUpToLimitThenRejects(t *testing.T) {
	clock := data.NewFixedTimeProvider(t0)
	l := NewFixedWindow(Options{Clock: clock})

	for i := 1; i <= 10; i++ {
		d := l.Allow("ip:1.2.3.4", 10, time.Minute)
		require.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 10-i, d.Remaining)
		clock.AddTime(time.Second)
	}

	d := l.Allow("ip:1.2.3.4", 10, time.Minute)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 50*time.Second, d.RetryAfter)
	assert.Equal(t, t0.Add(time.Minute), d.ResetAt)

	// Rejections do not consume the window.
	d = l.Allow("ip:1.2.3.4", 10, time.Minute)
	assert.False(t, d.Allowed)
}

func TestFixedWindow_KeysAreIndependent(t *testing.T) {
	l := NewFixedWindow(Options{Clock: data.NewFixedTimeProvider(t0)})

	assert.True(t, l.Allow("user:a", 1, time.Minute).Allowed)
	assert.False(t, l.Allow("user:a", 1, time.Minute).Allowed)
	assert.True(t, l.Allow("user:b", 1, time.Minute).Allowed)
}

func TestFixedWindow_ResetsAfterWindow(t *testing.T) {
	clock := data.NewFixedTimeProvider(t0)
	l := NewFixedWindow(Options{Clock: clock})

	for range 10 {
		require.True(t, l.Allow("k", 10, time.Minute).Allowed)
	}
	require.False(t, l.Allow("k", 10, time.Minute).Allowed)

	clock.SetTime(t0.Add(time.Minute))
	d := l.Allow("k", 10, time.Minute)
	assert.True(t, d.Allowed)
	assert.Equal(t, 9, d.Remaining, "fresh window starts at count 1")
	assert.Equal(t, t0.Add(2*time.Minute), d.ResetAt)
}

func TestFixedWindow_BoundaryBurst(t *testing.T) {
	clock := data.NewFixedTimeProvider(t0)
	l := NewFixedWindow(Options{Clock: clock})

	allowed := 0
	clock.SetTime(t0.Add(59 * time.Second))
	l.Allow("k", 10, time.Minute) // opens the window at t0+59s
	allowed++
	for range 9 {
		if l.Allow("k", 10, time.Minute).Allowed {
			allowed++
		}
	}
	clock.SetTime(t0.Add(59*time.Second + time.Minute))
	for range 10 {
		if l.Allow("k", 10, time.Minute).Allowed {
			allowed++
		}
	}

	assert.Equal(t, 20, allowed, "two adjacent windows admit up to twice the limit")
}

func TestFixedWindow_SweepsExpiredWindowsOnEachCall(t *testing.T) {
	clock := data.NewFixedTimeProvider(t0)
	l := NewFixedWindow(Options{Clock: clock})

	l.Allow("a", 5, time.Minute)
	l.Allow("b", 5, time.Minute)
	clock.AddTime(30 * time.Second)
	l.Allow("c", 5, time.Minute)
	require.Equal(t, 3, l.Len())

	clock.AddTime(30 * time.Second)
	l.Allow("d", 5, time.Minute)
	assert.Equal(t, 2, l.Len(), "a and b expired and were swept")

	clock.AddTime(time.Hour)
	assert.Equal(t, 2, l.Sweep())
	assert.Equal(t, 0, l.Len())
}

func TestFixedWindow_NonPositiveLimit(t *testing.T) {
	l := NewFixedWindow(Options{Clock: data.NewFixedTimeProvider(t0)})
	assert.True(t, l.Allow("k", 0, time.Minute).Allowed)
	assert.False(t, l.Allow("k", 0, time.Minute).Allowed)
}

func TestFixedWindow_ConcurrentRequestsNeverExceedLimit(t *testing.T) {
	l := NewFixedWindow(Options{Clock: data.NewFixedTimeProvider(t0)})

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Check(context.Background(), "shared", 30, time.Minute)
			if err == nil && d.Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(30), admitted.Load())
}

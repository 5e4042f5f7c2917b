package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ahava-health/ahava-api/internal/domain/ratelimit"
)

// fixedWindowScript counts one request against KEYS[1].
// ARGV[1] is the limit, ARGV[2] the window in milliseconds.
// Returns {allowed, count, pttl}. A rejected request does not increment.
var fixedWindowScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local ttl = redis.call('PTTL', KEYS[1])
if current > 0 and ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], window)
  ttl = window
end
if current >= limit then
  return {0, current, ttl}
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], window)
  ttl = window
end
return {1, current, ttl}
`)

// RateLimitStoreOptions configures a RateLimitStore.
type RateLimitStoreOptions struct {
	Client redis.UniversalClient
	Prefix string // Optional: defaults to "ratelimit:"
	Clock  Clock  // Optional: defaults to the system clock
}

// RateLimitStore shares fixed-window counters across instances through Redis.
type RateLimitStore struct {
	client redis.UniversalClient
	prefix string
	clock  Clock
}

// NewRateLimitStore creates a Redis-backed limiter.
func NewRateLimitStore(opts RateLimitStoreOptions) *RateLimitStore {
	s := &RateLimitStore{client: opts.Client, prefix: opts.Prefix, clock: opts.Clock}
	if s.prefix == "" {
		s.prefix = "ratelimit:"
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	return s
}

// Check implements ports.RateLimiter. Errors are returned to the caller, which decides
// whether to fail open.
func (s *RateLimitStore) Check(ctx context.Context, key string, limit int, window time.Duration) (ratelimit.Decision, error) {
	if limit < 1 {
		limit = 1
	}
	ms := window.Milliseconds()
	if ms < 1 {
		ms = 1
	}

	res, err := fixedWindowScript.Run(ctx, s.client, []string{s.prefix + key}, limit, ms).Int64Slice()
	if err != nil {
		return ratelimit.Decision{}, fmt.Errorf("redis rate limit: %w", err)
	}
	if len(res) != 3 {
		return ratelimit.Decision{}, fmt.Errorf("redis rate limit: unexpected reply length %d", len(res))
	}

	allowed := res[0] == 1
	count := int(res[1])
	ttl := time.Duration(res[2]) * time.Millisecond
	if ttl < 0 {
		ttl = window
	}

	remaining := limit - count
	if remaining < 0 || !allowed {
		remaining = 0
	}
	d := ratelimit.Decision{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   s.clock.Now().Add(ttl),
	}
	if !allowed {
		d.RetryAfter = ttl
	}
	return d, nil
}

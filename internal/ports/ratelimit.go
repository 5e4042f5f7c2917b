package ports

import (
	"context"
	"time"

	"github.com/ahava-health/ahava-api/internal/domain/ratelimit"
)

// RateLimiter admits or rejects a request for key under a fixed-window ceiling.
type RateLimiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (ratelimit.Decision, error)
}

package bootstrap

import (
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/ahava-health/ahava-api/config"
	redisadapter "github.com/ahava-health/ahava-api/internal/adapters/redis"
	domain "github.com/ahava-health/ahava-api/internal/domain/ratelimit"
	httpx "github.com/ahava-health/ahava-api/internal/http"
	"github.com/ahava-health/ahava-api/internal/observability/statsd"
	"github.com/ahava-health/ahava-api/internal/ratelimit"
	"github.com/ahava-health/ahava-api/internal/service"
)

// RateLimitDeps groups what BuildRateLimit needs.
type RateLimitDeps struct {
	Config  config.RateLimitConfig
	Redis   redis.UniversalClient
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// RateLimitComponents is the assembled admission layer.
type RateLimitComponents struct {
	Middleware *httpx.RateLimit
	// Sweeper drops elapsed in-process windows. Nil for the redis backend, whose
	// counters expire on their own.
	Sweeper service.WindowSweeper
}

// TiersFromConfig maps configured ceilings onto the three tiers, sharing one window.
func TiersFromConfig(cfg config.RateLimitConfig) domain.Tiers {
	return domain.Tiers{
		domain.TierStrict:  {Limit: cfg.Strict, Window: cfg.Window},
		domain.TierNormal:  {Limit: cfg.Normal, Window: cfg.Window},
		domain.TierRelaxed: {Limit: cfg.Relaxed, Window: cfg.Window},
	}
}

// BuildRateLimit returns nil components when rate limiting is disabled.
func BuildRateLimit(deps RateLimitDeps) (*RateLimitComponents, error) {
	cfg := deps.Config
	if !cfg.Enabled {
		if deps.Logger != nil {
			deps.Logger.Warn("rate limiting disabled")
		}
		return nil, nil
	}

	opts := httpx.RateLimitOptions{
		Tiers:      TiersFromConfig(cfg),
		Backend:    string(cfg.Backend),
		TrustProxy: cfg.TrustProxy,
		Logger:     deps.Logger,
		Metrics:    deps.Metrics,
	}
	comps := &RateLimitComponents{}

	switch cfg.Backend {
	case config.RateLimitBackendRedis:
		if deps.Redis == nil {
			return nil, errors.New("redis rate limit backend selected but redis is not connected")
		}
		opts.Limiter = redisadapter.NewRateLimitStore(redisadapter.RateLimitStoreOptions{
			Client: deps.Redis,
			Prefix: cfg.KeyPrefix,
		})
	default:
		fw := ratelimit.NewFixedWindow(ratelimit.Options{})
		opts.Limiter = fw
		comps.Sweeper = fw
	}

	comps.Middleware = httpx.NewRateLimit(opts)
	return comps, nil
}

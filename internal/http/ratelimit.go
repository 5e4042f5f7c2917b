package httpx

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	domain "github.com/ahava-health/ahava-api/internal/domain/ratelimit"
	"github.com/ahava-health/ahava-api/internal/observability/metrics"
	"github.com/ahava-health/ahava-api/internal/observability/statsd"
	"github.com/ahava-health/ahava-api/internal/ports"
)

// RateLimitOptions configures request admission.
type RateLimitOptions struct {
	Limiter    ports.RateLimiter // Required
	Tiers      domain.Tiers      // Optional: defaults to domain.DefaultTiers()
	Backend    string            // Metric tag naming the limiter backend
	TrustProxy bool              // Honour CF-Connecting-IP and X-Forwarded-For
	Logger     *slog.Logger
	Metrics    statsd.Sink
}

// RateLimit admits requests against fixed-window ceilings per client. Every tier
// counts against the same client window; the tier only sets the ceiling checked.
type RateLimit struct {
	limiter    ports.RateLimiter
	tiers      domain.Tiers
	backend    string
	trustProxy bool
	logger     *slog.Logger
	metrics    statsd.Sink
}

// NewRateLimit constructs a RateLimit middleware factory.
func NewRateLimit(opts RateLimitOptions) *RateLimit {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tiers := opts.Tiers
	if len(tiers) == 0 {
		tiers = domain.DefaultTiers()
	}
	backend := opts.Backend
	if backend == "" {
		backend = "memory"
	}
	return &RateLimit{
		limiter:    opts.Limiter,
		tiers:      tiers,
		backend:    backend,
		trustProxy: opts.TrustProxy,
		logger:     logger.With("component", "rate_limit"),
		metrics:    opts.Metrics,
	}
}

// Tier returns a middleware enforcing the policy of tier. Limiter errors fail open.
func (rl *RateLimit) Tier(tier domain.Tier) func(http.Handler) http.Handler {
	policy := rl.tiers.Policy(tier)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := rl.limiter.Check(r.Context(), ClientKey(r, rl.trustProxy), policy.Limit, policy.Window)
			if err != nil {
				rl.logger.WarnContext(r.Context(), "rate limiter unavailable, admitting request",
					"tier", tier,
					"request_id", RequestIDFromContext(r.Context()),
					"error", err,
				)
				rl.emit(tier, metrics.ResultFailOpen)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

			if !d.Allowed {
				rl.emit(tier, metrics.ResultDenied)
				secs := d.RetryAfterSeconds()
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				WriteError(w, ErrorParams{
					Code:    http.StatusTooManyRequests,
					Error:   msgTooManyRequest,
					Message: fmt.Sprintf("Rate limit exceeded. Please try again in %d seconds.", secs),
				})
				return
			}

			rl.emit(tier, metrics.ResultSuccess)
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimit) emit(tier domain.Tier, result string) {
	metrics.EmitRateLimit(rl.metrics, metrics.RateLimitMetric{
		Tier:    string(tier),
		Backend: rl.backend,
		Result:  result,
	})
}

// ClientKey identifies the requester: "user:<id>" once authenticated, otherwise
// "ip:<address>". Proxy headers are consulted only when trustProxy is set.
func ClientKey(r *http.Request, trustProxy bool) string {
	if id, ok := IdentityFromContext(r.Context()); ok {
		return "user:" + id.UserID
	}
	return "ip:" + ClientIP(r, trustProxy)
}

// ClientIP returns the caller address: CF-Connecting-IP, then the first
// X-Forwarded-For hop, then the RemoteAddr host, else "unknown".
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
			return ip
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

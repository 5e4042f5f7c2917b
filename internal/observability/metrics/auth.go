// Package metrics holds the metric names and tag conventions shared by the auth stack.
package metrics

import (
	"time"

	obserrors "github.com/ahava-health/ahava-api/internal/observability/errors"
	"github.com/ahava-health/ahava-api/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultNoop     = "noop"
	ResultDenied   = "denied"
	ResultFailOpen = "fail_open"
)

// AuthMetric describes one auth operation (signup, login, logout, authenticate).
type AuthMetric struct {
	Operation string
	Result    string
	Duration  time.Duration
	Err       error
}

// EmitAuth emits auth.operation and, when timed, auth.duration.
func EmitAuth(sink statsd.Sink, in AuthMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"operation": in.Operation,
		"result":    in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("auth.operation", 1, tags)

	if in.Duration > 0 {
		sink.Timing("auth.duration", in.Duration, CloneTags(tags))
	}
}

// RateLimitMetric describes one admission decision.
type RateLimitMetric struct {
	Tier    string
	Backend string
	Result  string
}

// EmitRateLimit emits ratelimit.check tagged by tier, backend and result.
func EmitRateLimit(sink statsd.Sink, in RateLimitMetric) {
	if sink == nil {
		return
	}
	sink.Count("ratelimit.check", 1, map[string]string{
		"tier":    in.Tier,
		"backend": in.Backend,
		"result":  in.Result,
	})
}

// EmitGate counts authentication gate outcomes (authorized, no_token, invalid, forbidden, error).
func EmitGate(sink statsd.Sink, outcome string) {
	if sink == nil {
		return
	}
	sink.Count("auth.gate", 1, map[string]string{"outcome": outcome})
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/ahava-health/ahava-api/internal/errors"
	"github.com/ahava-health/ahava-api/internal/observability/statsd"
)

func TestEmitAuth(t *testing.T) {
	rec := statsd.NewRecorder()

	EmitAuth(rec, AuthMetric{Operation: "login", Result: ResultSuccess, Duration: 5 * time.Millisecond})
	EmitAuth(rec, AuthMetric{
		Operation: "login",
		Result:    ResultError,
		Err:       apperrors.Unavailable(errors.New("dial tcp"), "store unavailable"),
	})

	assert.Equal(t, int64(2), rec.CountOf("auth.operation"))
	assert.Equal(t, int64(1), rec.CountTagged("auth.operation", "result", ResultError))
	assert.Equal(t, int64(1), rec.CountTagged("auth.operation", "error_class", "app_unavailable"))
	assert.Len(t, rec.Timings("auth.duration"), 1)
}

func TestEmitNilSink(t *testing.T) {
	assert.NotPanics(t, func() {
		EmitAuth(nil, AuthMetric{Operation: "login"})
		EmitRateLimit(nil, RateLimitMetric{})
		EmitGate(nil, "authorized")
	})
}

func TestEmitRateLimitAndGate(t *testing.T) {
	rec := statsd.NewRecorder()
	EmitRateLimit(rec, RateLimitMetric{Tier: "strict", Backend: "memory", Result: ResultDenied})
	EmitGate(rec, "no_token")

	assert.Equal(t, int64(1), rec.CountTagged("ratelimit.check", "tier", "strict"))
	assert.Equal(t, int64(1), rec.CountTagged("auth.gate", "outcome", "no_token"))
}

func TestCloneTags(t *testing.T) {
	assert.Nil(t, CloneTags(nil))
	src := map[string]string{"a": "1", "": "x"}
	out := CloneTags(src)
	assert.Equal(t, map[string]string{"a": "1"}, out)
	out["a"] = "2"
	assert.Equal(t, "1", src["a"])
}

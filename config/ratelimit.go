package config

import (
	"fmt"
	"strings"
	"time"
)

// RateLimitBackend selects where fixed-window counters live.
type RateLimitBackend string

const (
	// RateLimitBackendMemory keeps counters in process memory (per instance).
	RateLimitBackendMemory RateLimitBackend = "memory"
	// RateLimitBackendRedis shares counters across instances.
	RateLimitBackendRedis RateLimitBackend = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for RateLimitBackend.
func (b *RateLimitBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "memory", "redis":
		*b = RateLimitBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid RateLimitBackend: %q (valid options: memory, redis)", v)
	}
}

// RateLimitConfig configures the request admission tiers.
type RateLimitConfig struct {
	Enabled bool             `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	Backend RateLimitBackend `env:"RATE_LIMIT_BACKEND" envDefault:"memory"`

	Strict  int `env:"RATE_LIMIT_STRICT"  envDefault:"10"`
	Normal  int `env:"RATE_LIMIT_NORMAL"  envDefault:"30"`
	Relaxed int `env:"RATE_LIMIT_RELAXED" envDefault:"60"`

	Window time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`

	// TrustProxy allows CF-Connecting-IP and X-Forwarded-For to identify clients.
	TrustProxy bool `env:"RATE_LIMIT_TRUST_PROXY" envDefault:"true"`

	// KeyPrefix namespaces counters in Redis.
	KeyPrefix string `env:"RATE_LIMIT_KEY_PREFIX" envDefault:"ratelimit:"`
}

// Sanitize applies guardrails to rate limit configuration values.
func (r *RateLimitConfig) Sanitize() {
	if r.Backend == "" {
		r.Backend = RateLimitBackendMemory
	}
	if r.Strict < 1 {
		r.Strict = 1
	}
	if r.Normal < 1 {
		r.Normal = 1
	}
	if r.Relaxed < 1 {
		r.Relaxed = 1
	}
	if r.Window < time.Second {
		r.Window = time.Second
	}
	if r.KeyPrefix == "" {
		r.KeyPrefix = "ratelimit:"
	}
}

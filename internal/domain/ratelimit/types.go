// Package ratelimit defines request admission tiers and decisions.
package ratelimit

import "time"

// Tier names an endpoint sensitivity class.
type Tier string

const (
	TierStrict  Tier = "strict"
	TierNormal  Tier = "normal"
	TierRelaxed Tier = "relaxed"
)

// Default per-window ceilings for each tier.
const (
	DefaultStrictLimit  = 10
	DefaultNormalLimit  = 30
	DefaultRelaxedLimit = 60
	DefaultWindow       = time.Minute
)

// Policy is a ceiling of Limit requests per Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Tiers maps each tier to its policy.
type Tiers map[Tier]Policy

// DefaultTiers returns STRICT=10/min, NORMAL=30/min and RELAXED=60/min.
func DefaultTiers() Tiers {
	return Tiers{
		TierStrict:  {Limit: DefaultStrictLimit, Window: DefaultWindow},
		TierNormal:  {Limit: DefaultNormalLimit, Window: DefaultWindow},
		TierRelaxed: {Limit: DefaultRelaxedLimit, Window: DefaultWindow},
	}
}

// Policy returns the policy for t, falling back to the normal tier.
func (ts Tiers) Policy(t Tier) Policy {
	if p, ok := ts[t]; ok {
		return p
	}
	if p, ok := ts[TierNormal]; ok {
		return p
	}
	return Policy{Limit: DefaultNormalLimit, Window: DefaultWindow}
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration // zero when Allowed
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, never below one.
func (d Decision) RetryAfterSeconds() int {
	secs := int((d.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

package ratelimit

import "time"

// LimitConfig caps the number of requests allowed within a sliding window.
type LimitConfig struct {
	Window time.Duration
	Max    int64
}

// Policy maps each scope to the limits that apply to it.
type Policy struct {
	Limits map[Scope][]LimitConfig
}

// PolicyBuilder assembles a Policy.
type PolicyBuilder struct {
	limits map[Scope][]LimitConfig
}

// NewPolicyBuilder creates an empty policy builder.
func NewPolicyBuilder() *PolicyBuilder {
	return &PolicyBuilder{
		limits: make(map[Scope][]LimitConfig),
	}
}

// AddLimit allows at most limit requests per window in scope.
func (b *PolicyBuilder) AddLimit(scope Scope, limit int64, window time.Duration) *PolicyBuilder {
	b.limits[scope] = append(b.limits[scope], LimitConfig{Window: window, Max: limit})

	return b
}

// Build returns the assembled policy.
func (b *PolicyBuilder) Build() *Policy {
	limits := make(map[Scope][]LimitConfig, len(b.limits))
	for scope, configs := range b.limits {
		limits[scope] = append([]LimitConfig(nil), configs...)
	}

	return &Policy{Limits: limits}
}

// DefaultPolicy returns the per-client limits applied to every API request.
func DefaultPolicy() *Policy {
	return NewPolicyBuilder().
		AddLimit(ScopeGlobal, 1000, time.Minute).
		AddLimit(ScopeRead, 300, time.Minute).
		AddLimit(ScopeWrite, 30, time.Minute).
		Build()
}

package ratelimit_test

import (
	"testing"
	"time"

	"github.com/serroba/shortlink/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyBuilder(t *testing.T) {
	t.Parallel()

	t.Run("collects limits per scope", func(t *testing.T) {
		t.Parallel()

		policy := ratelimit.NewPolicyBuilder().
			AddLimit(ratelimit.ScopeWrite, 10, time.Minute).
			AddLimit(ratelimit.ScopeWrite, 100, time.Hour).
			AddLimit(ratelimit.ScopeRead, 50, time.Minute).
			Build()

		require.Len(t, policy.Limits[ratelimit.ScopeWrite], 2)
		assert.Equal(t, ratelimit.LimitConfig{Window: time.Hour, Max: 100}, policy.Limits[ratelimit.ScopeWrite][1])
		assert.Equal(t, []ratelimit.LimitConfig{{Window: time.Minute, Max: 50}}, policy.Limits[ratelimit.ScopeRead])
		assert.NotContains(t, policy.Limits, ratelimit.ScopeGlobal)
	})

	t.Run("built policies do not share state with the builder", func(t *testing.T) {
		t.Parallel()

		builder := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeRead, 1, time.Second)
		first := builder.Build()

		builder.AddLimit(ratelimit.ScopeRead, 2, time.Minute)

		assert.Len(t, first.Limits[ratelimit.ScopeRead], 1)
	})
}

func TestDefaultPolicy(t *testing.T) {
	t.Parallel()

	policy := ratelimit.DefaultPolicy()

	assert.Equal(t, []ratelimit.LimitConfig{{Window: time.Minute, Max: 1000}}, policy.Limits[ratelimit.ScopeGlobal])
	assert.Equal(t, []ratelimit.LimitConfig{{Window: time.Minute, Max: 300}}, policy.Limits[ratelimit.ScopeRead])
	assert.Equal(t, []ratelimit.LimitConfig{{Window: time.Minute, Max: 30}}, policy.Limits[ratelimit.ScopeWrite])
}

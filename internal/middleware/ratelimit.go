package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink/internal/ratelimit"
	"github.com/serroba/shortlink/internal/session"
	"go.uber.org/zap"
)

// SessionValidator resolves a session credential to a live session id.
type SessionValidator interface {
	Validate(ctx context.Context, credential string) (string, bool)
}

// PolicyRateLimiter returns a Huma middleware that applies policy-based rate limiting.
// It uses a ScopeResolver to determine which scopes apply to each request,
// then checks all applicable limits from the policy.
//
// Per-endpoint configuration can be provided via operation metadata using
// ratelimit.MetadataKey. This allows endpoints to:
//   - Disable rate limiting entirely (Disabled: true)
//   - Override the scope detection (Scope: ratelimit.ScopeRead)
//   - Add route limits on top of the scope limits (Limits: []ratelimit.LimitConfig{...})
//
// Clients are keyed by session only when sessions confirms the cookie names a
// live session. A nil sessions keys every client by IP and User-Agent.
func PolicyRateLimiter(
	api huma.API,
	limiter *ratelimit.PolicyLimiter,
	resolver ratelimit.ScopeResolver,
	sessions SessionValidator,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		cfg := ratelimit.GetEndpointConfig(ctx)
		if cfg != nil && cfg.Disabled {
			next(ctx)

			return
		}

		path := operationPath(ctx)
		key := clientKey(ctx, sessions)

		allowed, exceeded, err := limiter.Allow(ctx.Context(), key, resolver.Resolve(ctx))
		if err == nil && allowed && cfg != nil && len(cfg.Limits) > 0 {
			// Counters are shared by every request matching the route template.
			allowed, exceeded, err = limiter.AllowEndpoint(ctx.Context(), key, path, cfg.Limits)
		}

		if err != nil {
			logger.Error("rate limit check failed", zap.String("path", path), zap.Error(err))
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "internal server error", err)

			return
		}

		if !allowed {
			rateLimitExceeded(api, ctx, exceeded, path, logger)

			return
		}

		next(ctx)
	}
}

func operationPath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil {
		return op.Path
	}

	return ""
}

func rateLimitExceeded(
	api huma.API,
	ctx huma.Context,
	exceeded *ratelimit.LimitExceeded,
	path string,
	logger *zap.Logger,
) {
	msg := "rate limit exceeded"
	if exceeded != nil {
		msg = fmt.Sprintf("rate limit exceeded: %s scope, %d/%d requests in %s",
			exceeded.Scope, exceeded.Count, exceeded.Config.Max, exceeded.Config.Window)
		logger.Warn("rate limit exceeded",
			zap.String("path", path),
			zap.String("method", ctx.Method()),
			zap.String("scope", string(exceeded.Scope)),
			zap.Int64("count", exceeded.Count),
			zap.Int64("max", exceeded.Config.Max),
			zap.Duration("window", exceeded.Config.Window),
			zap.String("client_ip", ClientIP(ctx)),
		)
	}

	_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, msg)
}

// clientKey identifies the caller by a live session, or by IP and User-Agent
// otherwise. The raw credential never reaches the store.
func clientKey(ctx huma.Context, sessions SessionValidator) string {
	identity := "client|" + ClientIP(ctx) + "|" + ctx.Header("User-Agent")

	if id, ok := liveSession(ctx, sessions); ok {
		identity = "session|" + id
	}

	hash := sha256.Sum256([]byte(identity))

	return hex.EncodeToString(hash[:])
}

func liveSession(ctx huma.Context, sessions SessionValidator) (string, bool) {
	if sessions == nil {
		return "", false
	}

	cookies, err := http.ParseCookie(ctx.Header("Cookie"))
	if err != nil {
		return "", false
	}

	for _, c := range cookies {
		if c.Name == session.CookieName && c.Value != "" {
			return sessions.Validate(ctx.Context(), c.Value)
		}
	}

	return "", false
}

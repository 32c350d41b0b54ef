package middleware_test

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/serroba/shortlink/internal/middleware"
	"github.com/serroba/shortlink/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

const (
	testHostAddr  = "192.168.1.1:12345"
	testUserAgent = "TestAgent/1.0"
)

var errMultipartNotSupported = errors.New("multipart not supported in mock")

func newTestAPI() huma.API {
	return humachi.New(chi.NewMux(), huma.DefaultConfig("Test", "1.0.0"))
}

// mockHumaContext implements huma.Context for testing.
type mockHumaContext struct {
	headers    map[string]string
	host       string
	remoteAddr string
	written    []byte
	statusCode int
	method     string
	operation  *huma.Operation
}

func newMockHumaContext() *mockHumaContext {
	return &mockHumaContext{
		headers: map[string]string{"User-Agent": testUserAgent},
		host:    testHostAddr,
		method:  "GET",
	}
}

func (m *mockHumaContext) Operation() *huma.Operation {
	return m.operation
}
func (m *mockHumaContext) Context() context.Context              { return context.Background() }
func (m *mockHumaContext) TLS() *tls.ConnectionState             { return nil }
func (m *mockHumaContext) Version() huma.ProtoVersion            { return huma.ProtoVersion{} }
func (m *mockHumaContext) Method() string                        { return m.method }
func (m *mockHumaContext) Host() string                          { return m.host }
func (m *mockHumaContext) RemoteAddr() string                    { return m.remoteAddr }
func (m *mockHumaContext) URL() url.URL                          { return url.URL{} }
func (m *mockHumaContext) Param(_ string) string                 { return "" }
func (m *mockHumaContext) Query(_ string) string                 { return "" }
func (m *mockHumaContext) Header(name string) string             { return m.headers[name] }
func (m *mockHumaContext) EachHeader(_ func(name, value string)) {}
func (m *mockHumaContext) BodyReader() io.Reader                 { return nil }
func (m *mockHumaContext) GetMultipartForm() (*multipart.Form, error) {
	return nil, errMultipartNotSupported
}
func (m *mockHumaContext) SetReadDeadline(_ time.Time) error { return nil }
func (m *mockHumaContext) SetStatus(code int)                { m.statusCode = code }
func (m *mockHumaContext) Status() int                       { return m.statusCode }
func (m *mockHumaContext) AppendHeader(_, _ string)          {}
func (m *mockHumaContext) SetHeader(_, _ string)             {}
func (m *mockHumaContext) BodyWriter() io.Writer             { return &mockBodyWriter{ctx: m} }

type mockBodyWriter struct {
	ctx *mockHumaContext
}

func (w *mockBodyWriter) Write(p []byte) (n int, err error) {
	w.ctx.written = append(w.ctx.written, p...)

	return len(p), nil
}

// mockPolicyStore is a mock store for testing PolicyRateLimiter.
type mockPolicyStore struct {
	counts map[string]int64
	err    error
}

func newMockPolicyStore() *mockPolicyStore {
	return &mockPolicyStore{counts: make(map[string]int64)}
}

func (m *mockPolicyStore) Record(_ context.Context, key string, _ time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}

	m.counts[key]++

	return m.counts[key], nil
}

// mockScopeResolver is a mock resolver for testing.
type mockScopeResolver struct {
	scopes []ratelimit.Scope
}

func (m *mockScopeResolver) Resolve(_ huma.Context) []ratelimit.Scope {
	return m.scopes
}

// liveSessions accepts only the credentials it was built with.
type liveSessions map[string]bool

func (l liveSessions) Validate(_ context.Context, credential string) (string, bool) {
	if !l[credential] {
		return "", false
	}

	return credential, true
}

var testSessions = liveSessions{"abc": true, "xyz": true, "secret-session": true}

func newRateLimiter(store ratelimit.Store, policy *ratelimit.Policy, scopes ...ratelimit.Scope) func(huma.Context, func(huma.Context)) {
	limiter := ratelimit.NewPolicyLimiter(store, policy)

	return middleware.PolicyRateLimiter(newTestAPI(), limiter, &mockScopeResolver{scopes: scopes}, testSessions, zap.NewNop())
}

// serve runs one request through mw and reports whether it reached the handler.
func serve(mw func(huma.Context, func(huma.Context)), ctx *mockHumaContext) bool {
	called := false

	mw(ctx, func(_ huma.Context) {
		called = true
	})

	return called
}

func endpointOperation(path string, limits ...ratelimit.LimitConfig) *huma.Operation {
	return &huma.Operation{
		Path: path,
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Limits: limits},
		},
	}
}

func TestPolicyRateLimiter(t *testing.T) {
	t.Run("allows request when under limit", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeGlobal, 10, time.Minute).Build()
		mw := newRateLimiter(newMockPolicyStore(), policy, ratelimit.ScopeGlobal)

		assert.True(t, serve(mw, newMockHumaContext()), "next should be called when allowed")
	})

	t.Run("returns 429 with limit details", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeWrite, 1, time.Minute).Build()
		mw := newRateLimiter(newMockPolicyStore(), policy, ratelimit.ScopeWrite)

		assert.True(t, serve(mw, newMockHumaContext()))

		ctx := newMockHumaContext()

		assert.False(t, serve(mw, ctx), "next should not be called when rate limited")
		assert.Equal(t, 429, ctx.statusCode)
		assert.Contains(t, string(ctx.written), "rate limit exceeded")
		assert.Contains(t, string(ctx.written), "write")
		assert.Contains(t, string(ctx.written), "2/1")
	})

	t.Run("applies different limits per scope", func(t *testing.T) {
		store := newMockPolicyStore()
		policy := ratelimit.NewPolicyBuilder().
			AddLimit(ratelimit.ScopeRead, 5, time.Minute).
			AddLimit(ratelimit.ScopeWrite, 2, time.Minute).
			Build()

		readMW := newRateLimiter(store, policy, ratelimit.ScopeRead)
		writeMW := newRateLimiter(store, policy, ratelimit.ScopeWrite)

		for i := range 5 {
			assert.True(t, serve(readMW, newMockHumaContext()), "read request %d should be allowed", i+1)
		}

		for i := range 2 {
			assert.True(t, serve(writeMW, newMockHumaContext()), "write request %d should be allowed", i+1)
		}

		ctx := newMockHumaContext()

		assert.False(t, serve(writeMW, ctx), "3rd write request should be denied")
		assert.Equal(t, 429, ctx.statusCode)
	})

	t.Run("returns 500 on store error", func(t *testing.T) {
		store := newMockPolicyStore()
		store.err = errors.New("store error")
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeGlobal, 10, time.Minute).Build()
		mw := newRateLimiter(store, policy, ratelimit.ScopeGlobal)

		ctx := newMockHumaContext()

		assert.False(t, serve(mw, ctx))
		assert.Equal(t, 500, ctx.statusCode)
	})

	t.Run("skips rate limiting when disabled via metadata", func(t *testing.T) {
		store := newMockPolicyStore()
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeGlobal, 1, time.Minute).Build()
		mw := newRateLimiter(store, policy, ratelimit.ScopeGlobal)

		operation := &huma.Operation{
			Path: "/health",
			Metadata: map[string]any{
				ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true},
			},
		}

		for range 3 {
			ctx := newMockHumaContext()
			ctx.operation = operation

			assert.True(t, serve(mw, ctx), "disabled endpoints are never limited")
		}

		assert.Empty(t, store.counts)
	})

	t.Run("endpoint limits apply on top of scope limits", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeGlobal, 100, time.Minute).Build()
		mw := newRateLimiter(newMockPolicyStore(), policy, ratelimit.ScopeGlobal)
		operation := endpointOperation("/api/v1/shorten", ratelimit.LimitConfig{Window: time.Minute, Max: 2})

		for i := range 2 {
			ctx := newMockHumaContext()
			ctx.operation = operation

			assert.True(t, serve(mw, ctx), "request %d should be allowed", i+1)
		}

		ctx := newMockHumaContext()
		ctx.operation = operation

		assert.False(t, serve(mw, ctx), "third request should be denied by endpoint limit")
		assert.Equal(t, 429, ctx.statusCode)
		assert.Contains(t, string(ctx.written), "endpoint")
	})

	t.Run("scope limits still apply to endpoints with own limits", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeGlobal, 1, time.Minute).Build()
		mw := newRateLimiter(newMockPolicyStore(), policy, ratelimit.ScopeGlobal)
		operation := endpointOperation("/api/v1/shorten", ratelimit.LimitConfig{Window: time.Minute, Max: 100})

		first := newMockHumaContext()
		first.operation = operation
		assert.True(t, serve(mw, first))

		second := newMockHumaContext()
		second.operation = operation

		assert.False(t, serve(mw, second))
		assert.Contains(t, string(second.written), "global")
	})

	t.Run("endpoint limits are tracked per route", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().Build()
		mw := newRateLimiter(newMockPolicyStore(), policy)
		limit := ratelimit.LimitConfig{Window: time.Minute, Max: 1}

		a := newMockHumaContext()
		a.operation = endpointOperation("/a", limit)
		assert.True(t, serve(mw, a))

		b := newMockHumaContext()
		b.operation = endpointOperation("/b", limit)
		assert.True(t, serve(mw, b), "other route has its own counter")
	})

	t.Run("endpoint limits store error returns 500", func(t *testing.T) {
		store := newMockPolicyStore()
		store.err = errors.New("store error")
		mw := newRateLimiter(store, ratelimit.NewPolicyBuilder().Build())

		ctx := newMockHumaContext()
		ctx.operation = endpointOperation("/custom-error", ratelimit.LimitConfig{Window: time.Minute, Max: 10})

		assert.False(t, serve(mw, ctx))
		assert.Equal(t, 500, ctx.statusCode)
	})
}

func TestPolicyRateLimiter_ClientKey(t *testing.T) {
	policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeGlobal, 100, time.Minute).Build()

	t.Run("same IP and User-Agent share a counter", func(t *testing.T) {
		store := newMockPolicyStore()
		mw := newRateLimiter(store, policy, ratelimit.ScopeGlobal)

		serve(mw, newMockHumaContext())
		serve(mw, newMockHumaContext())

		assert.Len(t, store.counts, 1)

		other := newMockHumaContext()
		other.headers["User-Agent"] = "DifferentAgent/2.0"
		serve(mw, other)

		assert.Len(t, store.counts, 2, "different User-Agent should produce different key")
	})

	t.Run("session cookie identifies the client across addresses", func(t *testing.T) {
		store := newMockPolicyStore()
		mw := newRateLimiter(store, policy, ratelimit.ScopeGlobal)

		first := newMockHumaContext()
		first.headers["Cookie"] = "theme=dark; session_id=abc"
		serve(mw, first)

		second := newMockHumaContext()
		second.host = "10.0.0.9:4000"
		second.headers["User-Agent"] = "Other/1.0"
		second.headers["Cookie"] = "session_id=abc"
		serve(mw, second)

		assert.Len(t, store.counts, 1)

		third := newMockHumaContext()
		third.headers["Cookie"] = "session_id=xyz"
		serve(mw, third)

		assert.Len(t, store.counts, 2, "different sessions get different keys")
	})

	t.Run("raw credential is not used as key", func(t *testing.T) {
		store := newMockPolicyStore()
		mw := newRateLimiter(store, policy, ratelimit.ScopeGlobal)

		ctx := newMockHumaContext()
		ctx.headers["Cookie"] = "session_id=secret-session"
		serve(mw, ctx)

		for key := range store.counts {
			assert.NotContains(t, key, "secret-session")
		}
	})

	t.Run("unknown session cookies fall back to IP and User-Agent", func(t *testing.T) {
		store := newMockPolicyStore()
		mw := newRateLimiter(store, policy, ratelimit.ScopeGlobal)

		for i := range 5 {
			ctx := newMockHumaContext()
			ctx.headers["Cookie"] = fmt.Sprintf("session_id=forged%d", i)
			serve(mw, ctx)
		}

		assert.Len(t, store.counts, 1)
	})

	t.Run("forged cookies cannot dodge endpoint limits", func(t *testing.T) {
		mw := newRateLimiter(newMockPolicyStore(), ratelimit.DefaultPolicy(), ratelimit.ScopeGlobal, ratelimit.ScopeWrite)
		operation := endpointOperation("/api/v1/shorten", ratelimit.LimitConfig{Window: time.Minute, Max: 10})

		allowed, limited := 0, 0

		for i := range 50 {
			ctx := newMockHumaContext()
			ctx.method = "POST"
			ctx.operation = operation
			ctx.headers["Cookie"] = fmt.Sprintf("session_id=forged%d", i)

			if serve(mw, ctx) {
				allowed++
			} else {
				assert.Equal(t, 429, ctx.statusCode)
				limited++
			}
		}

		assert.Equal(t, 10, allowed)
		assert.Equal(t, 40, limited)
	})

	t.Run("without a validator every client is keyed by address", func(t *testing.T) {
		store := newMockPolicyStore()
		limiter := ratelimit.NewPolicyLimiter(store, policy)
		mw := middleware.PolicyRateLimiter(newTestAPI(), limiter, &mockScopeResolver{scopes: []ratelimit.Scope{ratelimit.ScopeGlobal}}, nil, zap.NewNop())

		for _, credential := range []string{"abc", "xyz"} {
			ctx := newMockHumaContext()
			ctx.headers["Cookie"] = "session_id=" + credential
			serve(mw, ctx)
		}

		assert.Len(t, store.counts, 1)
	})
}

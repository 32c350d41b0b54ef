package handlers_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jaevor/go-nanoid"
	"github.com/serroba/shortlink/internal/audit"
	"github.com/serroba/shortlink/internal/handlers"
	"github.com/serroba/shortlink/internal/messaging"
	"github.com/serroba/shortlink/internal/session"
	"github.com/serroba/shortlink/internal/shortener"
	"github.com/serroba/shortlink/internal/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testBaseURL    = "http://localhost:8888"
	testDefaultTTL = 43200
)

// recorder captures published events.
type recorder[T any] struct {
	mu     sync.Mutex
	events []*T
	err    error
}

func (r *recorder[T]) publish(_ context.Context, event *T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}

	r.events = append(r.events, event)

	return nil
}

func (r *recorder[T]) all() []*T {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]*T(nil), r.events...)
}

type testEnv struct {
	urls     shortener.Repository
	sessions *session.Manager
	created  *recorder[audit.URLCreatedEvent]
	deleted  *recorder[audit.URLDeletedEvent]
	url      *handlers.URLHandler
	session  *handlers.SessionHandler
}

func newTestEnv(t *testing.T, urls shortener.Repository) *testEnv {
	t.Helper()

	codes, err := nanoid.Standard(8)
	require.NoError(t, err)

	ids, err := nanoid.Standard(32)
	require.NoError(t, err)

	logger := zap.NewNop()
	env := &testEnv{
		urls:     urls,
		sessions: session.NewManager(store.NewSessionMemoryStore(), ids, time.Hour, logger),
		created:  &recorder[audit.URLCreatedEvent]{},
		deleted:  &recorder[audit.URLDeletedEvent]{},
	}

	svc := shortener.NewService(urls, shortener.NewGenerator(codes, 5), env.sessions, logger)

	env.url = handlers.NewURLHandler(
		svc,
		testBaseURL,
		testDefaultTTL,
		messaging.Publish[audit.URLCreatedEvent](env.created.publish),
		messaging.Publish[audit.URLDeletedEvent](env.deleted.publish),
		logger,
	)
	env.session = handlers.NewSessionHandler(env.sessions, false, logger)

	return env
}

// newSession returns the id of a fresh session.
func (e *testEnv) newSession(t *testing.T) string {
	t.Helper()

	s, _, err := e.sessions.Init(context.Background(), "", nil)
	require.NoError(t, err)

	return s.ID
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()

	var se huma.StatusError

	require.True(t, errors.As(err, &se), "expected a huma status error, got %v", err)
	require.Equal(t, status, se.GetStatus())
}

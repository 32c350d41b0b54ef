package session_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/serroba/shortlink/internal/session"
	"github.com/serroba/shortlink/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errUnavailable = errors.New("store unavailable")

// brokenStore fails every call.
type brokenStore struct{}

func (brokenStore) Create(context.Context, *session.Session) error { return errUnavailable }

func (brokenStore) Get(context.Context, string) (*session.Session, error) { return nil, errUnavailable }

func (brokenStore) Extend(context.Context, string, time.Time) error { return errUnavailable }

func (brokenStore) Delete(context.Context, string) error { return errUnavailable }

func ids(values ...string) session.IDSource {
	i := 0

	return func() string {
		id := values[min(i, len(values)-1)]
		i++

		return id
	}
}

func TestManager_Init(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := session.WithClock(func() time.Time { return now })

	t.Run("creates a session for a missing credential", func(t *testing.T) {
		m := session.NewManager(store.NewSessionMemoryStore(), ids("s1"), time.Hour, zap.NewNop(), clock)

		s, created, err := m.Init(ctx, "", map[string]string{"ua": "test"})

		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "s1", s.ID)
		assert.Equal(t, now, s.CreatedAt)
		assert.Equal(t, now.Add(time.Hour), s.ExpiresAt)
		assert.Equal(t, "test", s.Metadata["ua"])
	})

	t.Run("is idempotent for a valid credential", func(t *testing.T) {
		m := session.NewManager(store.NewSessionMemoryStore(), ids("s1", "s2"), time.Hour, zap.NewNop(), clock)

		first, _, err := m.Init(ctx, "", nil)
		require.NoError(t, err)

		again, created, err := m.Init(ctx, first.ID, nil)

		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, again.ID)
	})

	t.Run("replaces an unknown credential", func(t *testing.T) {
		m := session.NewManager(store.NewSessionMemoryStore(), ids("s1"), time.Hour, zap.NewNop(), clock)

		s, created, err := m.Init(ctx, "forged", nil)

		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "s1", s.ID)
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		m := session.NewManager(store.NewSessionMemoryStore(), ids("s1"), 0, zap.NewNop(), clock)

		s, _, err := m.Init(ctx, "", nil)

		require.NoError(t, err)
		assert.True(t, s.ExpiresAt.IsZero())
		assert.False(t, s.ExpiredAt(now.Add(100*365*24*time.Hour)))
	})

	t.Run("retries an id collision", func(t *testing.T) {
		sessions := store.NewSessionMemoryStore()
		require.NoError(t, sessions.Create(ctx, &session.Session{ID: "taken", CreatedAt: now}))

		m := session.NewManager(sessions, ids("taken", "fresh"), time.Hour, zap.NewNop(), clock)

		s, created, err := m.Init(ctx, "", nil)

		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "fresh", s.ID)
	})

	t.Run("gives up after repeated collisions", func(t *testing.T) {
		sessions := store.NewSessionMemoryStore()
		require.NoError(t, sessions.Create(ctx, &session.Session{ID: "taken", CreatedAt: now}))

		m := session.NewManager(sessions, ids("taken"), time.Hour, zap.NewNop(), clock)

		_, _, err := m.Init(ctx, "", nil)

		require.ErrorIs(t, err, session.ErrDuplicateID)
	})

	t.Run("store failures are returned", func(t *testing.T) {
		m := session.NewManager(brokenStore{}, ids("s1"), time.Hour, zap.NewNop(), clock)

		_, _, err := m.Init(ctx, "", nil)

		require.ErrorIs(t, err, errUnavailable)
	})
}

func TestManager_Validate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	current := now
	clock := session.WithClock(func() time.Time { return current })

	sessions := store.NewSessionMemoryStore()
	n := 0
	m := session.NewManager(sessions, func() string {
		n++

		return fmt.Sprintf("s%d", n)
	}, time.Hour, zap.NewNop(), clock)

	s, _, err := m.Init(ctx, "", nil)
	require.NoError(t, err)

	t.Run("accepts a live session", func(t *testing.T) {
		id, ok := m.Validate(ctx, s.ID)

		assert.True(t, ok)
		assert.Equal(t, s.ID, id)
	})

	t.Run("rejects missing and unknown credentials", func(t *testing.T) {
		for _, credential := range []string{"", "unknown"} {
			id, ok := m.Validate(ctx, credential)

			assert.False(t, ok)
			assert.Empty(t, id)
		}
	})

	t.Run("rejects an expired session", func(t *testing.T) {
		current = now.Add(time.Hour)
		t.Cleanup(func() { current = now })

		_, ok := m.Validate(ctx, s.ID)

		assert.False(t, ok)
	})

	t.Run("store failures read as invalid", func(t *testing.T) {
		broken := session.NewManager(brokenStore{}, ids("s1"), time.Hour, zap.NewNop())

		_, ok := broken.Validate(ctx, "s1")

		assert.False(t, ok)
	})
}

func TestManager_End(t *testing.T) {
	ctx := context.Background()

	t.Run("ends a session", func(t *testing.T) {
		m := session.NewManager(store.NewSessionMemoryStore(), ids("s1"), time.Hour, zap.NewNop())
		s, _, err := m.Init(ctx, "", nil)
		require.NoError(t, err)

		require.NoError(t, m.End(ctx, s.ID))

		_, ok := m.Validate(ctx, s.ID)
		assert.False(t, ok)
	})

	t.Run("unknown and empty credentials are not errors", func(t *testing.T) {
		m := session.NewManager(store.NewSessionMemoryStore(), ids("s1"), time.Hour, zap.NewNop())

		require.NoError(t, m.End(ctx, "unknown"))
		require.NoError(t, m.End(ctx, ""))
	})

	t.Run("store failures are returned", func(t *testing.T) {
		m := session.NewManager(brokenStore{}, ids("s1"), time.Hour, zap.NewNop())

		require.ErrorIs(t, m.End(ctx, "s1"), errUnavailable)
	})
}

func TestManager_Refresh(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	current := start
	clock := session.WithClock(func() time.Time { return current })

	t.Run("extends a live session", func(t *testing.T) {
		current = start
		sessions := store.NewSessionMemoryStore()
		m := session.NewManager(sessions, ids("s1"), time.Hour, zap.NewNop(), clock)

		_, _, err := m.Init(ctx, "", nil)
		require.NoError(t, err)

		current = start.Add(50 * time.Minute)

		s, err := m.Refresh(ctx, "s1")

		require.NoError(t, err)
		assert.Equal(t, current.Add(time.Hour), s.ExpiresAt)

		current = start.Add(90 * time.Minute)

		id, ok := m.Validate(ctx, "s1")
		assert.True(t, ok, "session outlives its original expiry")
		assert.Equal(t, "s1", id)

		stored, err := sessions.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, s.ExpiresAt, stored.ExpiresAt)
	})

	t.Run("rejects a lapsed session", func(t *testing.T) {
		current = start
		m := session.NewManager(store.NewSessionMemoryStore(), ids("s1"), time.Hour, zap.NewNop(), clock)

		_, _, err := m.Init(ctx, "", nil)
		require.NoError(t, err)

		current = start.Add(time.Hour)

		_, err = m.Refresh(ctx, "s1")
		require.ErrorIs(t, err, session.ErrExpired)
	})

	t.Run("rejects unknown and empty credentials", func(t *testing.T) {
		m := session.NewManager(store.NewSessionMemoryStore(), ids("s1"), time.Hour, zap.NewNop(), clock)

		_, err := m.Refresh(ctx, "forged")
		require.ErrorIs(t, err, session.ErrNotFound)

		_, err = m.Refresh(ctx, "")
		require.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("leaves sessions without expiry untouched", func(t *testing.T) {
		current = start
		m := session.NewManager(store.NewSessionMemoryStore(), ids("s1"), 0, zap.NewNop(), clock)

		_, _, err := m.Init(ctx, "", nil)
		require.NoError(t, err)

		s, err := m.Refresh(ctx, "s1")

		require.NoError(t, err)
		assert.True(t, s.ExpiresAt.IsZero())
	})

	t.Run("store failures are returned", func(t *testing.T) {
		m := session.NewManager(brokenStore{}, ids("s1"), time.Hour, zap.NewNop(), clock)

		_, err := m.Refresh(ctx, "s1")
		require.ErrorIs(t, err, errUnavailable)
	})
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlink/internal/session"
)

// SessionRedisStore is a Redis implementation of session.Store.
// Keys expire with the session, so no sweep is needed.
type SessionRedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewSessionRedisStore creates a new Redis-backed session store.
func NewSessionRedisStore(client *redis.Client) *SessionRedisStore {
	return &SessionRedisStore{
		client: client,
		prefix: "session:",
		now:    time.Now,
	}
}

func (s *SessionRedisStore) Create(ctx context.Context, sess *session.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	var ttl time.Duration

	if !sess.ExpiresAt.IsZero() {
		// A zero ttl would mean no expiry to SetNX.
		ttl = max(sess.ExpiresAt.Sub(s.now()), time.Millisecond)
	}

	ok, err := s.client.SetNX(ctx, s.prefix+sess.ID, payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	if !ok {
		return session.ErrDuplicateID
	}

	return nil
}

func (s *SessionRedisStore) Get(ctx context.Context, id string) (*session.Session, error) {
	payload, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, session.ErrNotFound
		}

		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess session.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	return &sess, nil
}

// Extend rewrites the stored session with the new expiry. The write only
// lands if the key still exists.
func (s *SessionRedisStore) Extend(ctx context.Context, id string, expiresAt time.Time) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	sess.ExpiresAt = expiresAt

	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	err = s.client.SetArgs(ctx, s.prefix+id, payload, redis.SetArgs{
		Mode: "XX",
		TTL:  max(expiresAt.Sub(s.now()), time.Millisecond),
	}).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return session.ErrNotFound
		}

		return fmt.Errorf("failed to extend session: %w", err)
	}

	return nil
}

func (s *SessionRedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.prefix+id).Err()
}

// Shutdown is a no-op for SessionRedisStore (client managed externally).
func (s *SessionRedisStore) Shutdown() error {
	return nil
}

// Compile-time check.
var _ session.Store = (*SessionRedisStore)(nil)

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const createAttempts = 3

// IDSource returns a fresh random session id.
type IDSource func() string

// Manager creates, validates and ends sessions.
type Manager struct {
	store  Store
	newID  IDSource
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a session manager. A zero ttl issues sessions that never expire.
func NewManager(store Store, newID IDSource, ttl time.Duration, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		newID:  newID,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Init returns the session named by credential when it is still valid, or
// creates a new one. The boolean reports whether a session was created.
func (m *Manager) Init(ctx context.Context, credential string, metadata map[string]string) (*Session, bool, error) {
	if existing, ok := m.lookup(ctx, credential); ok {
		return existing, false, nil
	}

	now := m.now()
	s := &Session{
		Metadata:  metadata,
		CreatedAt: now,
	}

	if m.ttl > 0 {
		s.ExpiresAt = now.Add(m.ttl)
	}

	for range createAttempts {
		s.ID = m.newID()

		err := m.store.Create(ctx, s)
		if err == nil {
			m.logger.Info("session created", zap.String("session_id", s.ID))

			return s, true, nil
		}

		if !errors.Is(err, ErrDuplicateID) {
			return nil, false, fmt.Errorf("failed to create session: %w", err)
		}
	}

	return nil, false, fmt.Errorf("failed to create session: %w", ErrDuplicateID)
}

// Validate resolves credential to a live session id. Missing, unknown and
// expired credentials are reported as not ok rather than as errors.
func (m *Manager) Validate(ctx context.Context, credential string) (string, bool) {
	s, ok := m.lookup(ctx, credential)
	if !ok {
		return "", false
	}

	return s.ID, true
}

// Refresh restarts the lifetime of the session named by credential.
// Unknown credentials yield ErrNotFound and lapsed ones ErrExpired.
func (m *Manager) Refresh(ctx context.Context, credential string) (*Session, error) {
	if credential == "" {
		return nil, ErrNotFound
	}

	s, err := m.store.Get(ctx, credential)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	now := m.now()
	if s.ExpiredAt(now) {
		return nil, ErrExpired
	}

	if m.ttl <= 0 {
		return s, nil
	}

	s.ExpiresAt = now.Add(m.ttl)

	if err := m.store.Extend(ctx, s.ID, s.ExpiresAt); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to extend session: %w", err)
	}

	m.logger.Info("session refreshed", zap.String("session_id", s.ID), zap.Time("expires_at", s.ExpiresAt))

	return s, nil
}

// End deletes the session named by credential.
func (m *Manager) End(ctx context.Context, credential string) error {
	if credential == "" {
		return nil
	}

	if err := m.store.Delete(ctx, credential); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	m.logger.Info("session ended", zap.String("session_id", credential))

	return nil
}

func (m *Manager) lookup(ctx context.Context, credential string) (*Session, bool) {
	if credential == "" {
		return nil, false
	}

	s, err := m.store.Get(ctx, credential)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.Warn("session lookup failed", zap.Error(err))
		}

		return nil, false
	}

	if s.ExpiredAt(m.now()) {
		return nil, false
	}

	return s, true
}

package store

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/serroba/shortlink/internal/session"
)

// SessionMemoryStore is an in-memory implementation of session.Store.
type SessionMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// NewSessionMemoryStore creates a new in-memory session store.
func NewSessionMemoryStore() *SessionMemoryStore {
	return &SessionMemoryStore{
		sessions: make(map[string]*session.Session),
	}
}

func (s *SessionMemoryStore) Create(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; ok {
		return session.ErrDuplicateID
	}

	s.sessions[sess.ID] = clone(sess)

	return nil
}

func (s *SessionMemoryStore) Get(_ context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}

	return clone(sess), nil
}

func (s *SessionMemoryStore) Extend(_ context.Context, id string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return session.ErrNotFound
	}

	sess.ExpiresAt = expiresAt

	return nil
}

func (s *SessionMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)

	return nil
}

// DeleteExpired drops sessions that expired before now.
func (s *SessionMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64

	for id, sess := range s.sessions {
		if sess.ExpiredAt(now) {
			delete(s.sessions, id)
			removed++
		}
	}

	return removed, nil
}

func clone(sess *session.Session) *session.Session {
	c := *sess
	c.Metadata = maps.Clone(sess.Metadata)

	return &c
}

// Compile-time check.
var _ session.Store = (*SessionMemoryStore)(nil)

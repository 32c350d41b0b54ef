// Package session issues and validates the anonymous identities that scope
// URL ownership.
package session

import (
	"context"
	"errors"
	"time"
)

// CookieName is the cookie carrying the session credential.
const CookieName = "session_id"

var (
	ErrNotFound    = errors.New("session not found")
	ErrDuplicateID = errors.New("session id already in use")
	ErrExpired     = errors.New("session expired")
)

// Session is an anonymous identity carried by the client as an opaque credential.
type Session struct {
	ID        string            `json:"id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	ExpiresAt time.Time         `json:"expiresAt"` // zero means the session never expires
}

// ExpiredAt reports whether the session is no longer valid at now.
func (s *Session) ExpiredAt(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store defines the persistence operations for sessions.
type Store interface {
	// Create inserts the session unless its ID is taken, in which case it returns ErrDuplicateID.
	Create(ctx context.Context, session *Session) error
	// Get returns the session or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// Extend moves the expiry of a stored session, or returns ErrNotFound.
	Extend(ctx context.Context, id string, expiresAt time.Time) error
	// Delete removes the session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, id string) error
}

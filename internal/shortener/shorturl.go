package shortener

import "time"

// Code represents a short URL code.
type Code string

// ShortURL represents a shortened URL entity. All fields are immutable once
// the record has been stored.
type ShortURL struct {
	Code        Code
	OriginalURL string
	Owner       string // session id of the creator, empty when created without a valid session
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// ExpiredAt reports whether the record is logically absent at the given instant.
func (s *ShortURL) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// OwnedBy reports whether the record belongs to the given session.
// An empty session never owns anything.
func (s *ShortURL) OwnedBy(sessionID string) bool {
	return sessionID != "" && s.Owner == sessionID
}

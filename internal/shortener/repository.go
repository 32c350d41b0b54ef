package shortener

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidURL          = errors.New("invalid url")
	ErrInvalidTTL          = errors.New("invalid ttl")
	ErrNotFound            = errors.New("short url not found")
	ErrForbidden           = errors.New("short url owned by another session")
	ErrDuplicateCode       = errors.New("short code already in use")
	ErrGenerationExhausted = errors.New("short code generation exhausted")
)

// Repository defines the storage operations for short URLs.
type Repository interface {
	// Put inserts the record only if no non-expired record holds its code.
	// It returns ErrDuplicateCode otherwise. The check and the insert are atomic.
	Put(ctx context.Context, shortURL *ShortURL) error

	// Get returns the record for code, or ErrNotFound if it is absent or expired.
	Get(ctx context.Context, code Code) (*ShortURL, error)

	// ListByOwner returns non-expired records of owner, newest first.
	ListByOwner(ctx context.Context, owner string, limit, offset int) ([]*ShortURL, error)

	// Delete removes the record if it is live and owned by owner.
	// It returns ErrNotFound or ErrForbidden.
	Delete(ctx context.Context, code Code, owner string) error

	// DeleteExpired physically removes records that expired before now and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

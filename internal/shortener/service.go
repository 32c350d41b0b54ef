package shortener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTTL is applied by callers when no ttl is supplied.
	DefaultTTL = 12 * time.Hour
	// DefaultMaxTTL is the longest lifetime a record may be given.
	DefaultMaxTTL = 30 * 24 * time.Hour

	DefaultListLimit = 20
	MaxListLimit     = 100
)

// SessionValidator resolves an opaque session credential to its session id.
type SessionValidator interface {
	Validate(ctx context.Context, credential string) (string, bool)
}

// Service creates, resolves, lists and removes short URLs.
type Service struct {
	store     Repository
	generator *Generator
	sessions  SessionValidator
	maxTTL    time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithMaxTTL overrides DefaultMaxTTL.
func WithMaxTTL(maxTTL time.Duration) ServiceOption {
	return func(s *Service) {
		if maxTTL > 0 {
			s.maxTTL = maxTTL
		}
	}
}

// NewService creates a shortener service.
func NewService(
	store Repository,
	generator *Generator,
	sessions SessionValidator,
	logger *zap.Logger,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		store:     store,
		generator: generator,
		sessions:  sessions,
		maxTTL:    DefaultMaxTTL,
		now:       time.Now,
		logger:    logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Shorten validates originalURL and ttlSeconds and stores a new record under
// a freshly generated code. The record is owned by sessionID when it names a
// live session and is ownerless otherwise.
func (s *Service) Shorten(ctx context.Context, originalURL string, ttlSeconds int, sessionID string) (*ShortURL, error) {
	if err := ValidateURL(originalURL); err != nil {
		return nil, err
	}

	// Compared before conversion so that huge values cannot overflow.
	maxSeconds := int64(s.maxTTL / time.Second)
	if ttlSeconds <= 0 || int64(ttlSeconds) > maxSeconds {
		return nil, fmt.Errorf("%w: must be between 1 and %d seconds", ErrInvalidTTL, maxSeconds)
	}

	ttl := time.Duration(ttlSeconds) * time.Second

	owner, _ := s.sessions.Validate(ctx, sessionID)

	now := s.now()
	record := &ShortURL{
		OriginalURL: originalURL,
		Owner:       owner,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}

	_, err := s.generator.Generate(ctx, func(ctx context.Context, code Code) error {
		record.Code = code

		return s.store.Put(ctx, record)
	})
	if err != nil {
		if errors.Is(err, ErrGenerationExhausted) || errors.Is(err, ErrDuplicateCode) {
			s.logger.Error("short code space anomaly", zap.Error(err))
		}

		return nil, err
	}

	return record, nil
}

// Resolve returns the live record for code. No ownership check is applied.
func (s *Service) Resolve(ctx context.Context, code Code) (*ShortURL, error) {
	return s.store.Get(ctx, code)
}

// List returns the live records owned by the session, newest first.
// An absent or invalid session yields an empty list.
func (s *Service) List(ctx context.Context, sessionID string, limit, offset int) ([]*ShortURL, error) {
	owner, ok := s.sessions.Validate(ctx, sessionID)
	if !ok {
		return []*ShortURL{}, nil
	}

	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	if offset < 0 {
		offset = 0
	}

	return s.store.ListByOwner(ctx, owner, limit, offset)
}

// Remove deletes the record for code when it is owned by the session.
func (s *Service) Remove(ctx context.Context, code Code, sessionID string) error {
	owner, _ := s.sessions.Validate(ctx, sessionID)

	return s.store.Delete(ctx, code, owner)
}

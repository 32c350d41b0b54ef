package store

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/shortlink/internal/ratelimit"
)

type hitWindow struct {
	hits []time.Time
	span time.Duration
}

// RateLimitMemoryStore is an in-memory implementation of ratelimit.Store.
type RateLimitMemoryStore struct {
	mu      sync.Mutex
	windows map[string]*hitWindow
	now     func() time.Time
}

// NewRateLimitMemoryStore creates a new in-memory rate limit store.
func NewRateLimitMemoryStore() *RateLimitMemoryStore {
	return &RateLimitMemoryStore{
		windows: make(map[string]*hitWindow),
		now:     time.Now,
	}
}

func (s *RateLimitMemoryStore) Record(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-window)

	w, ok := s.windows[key]
	if !ok {
		w = &hitWindow{span: window}
		s.windows[key] = w
	}

	valid := w.hits[:0]

	for _, ts := range w.hits {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}

	w.hits = append(valid, now)
	w.span = window

	return int64(len(w.hits)), nil
}

// DeleteExpired drops keys whose most recent hit has left its window.
func (s *RateLimitMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64

	for key, w := range s.windows {
		if len(w.hits) == 0 || !now.Before(w.hits[len(w.hits)-1].Add(w.span)) {
			delete(s.windows, key)
			removed++
		}
	}

	return removed, nil
}

// Compile-time check.
var _ ratelimit.Store = (*RateLimitMemoryStore)(nil)

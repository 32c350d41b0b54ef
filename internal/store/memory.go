package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/serroba/shortlink/internal/shortener"
)

const shardCount = 64

type shard struct {
	mu      sync.RWMutex
	records map[shortener.Code]*shortener.ShortURL
}

// MemoryStore is an in-memory implementation of shortener.Repository.
// Records are spread over independently locked shards so that operations on
// different codes do not contend.
type MemoryStore struct {
	shards [shardCount]*shard

	// ownerMu is only ever acquired while holding a shard lock, or alone.
	ownerMu sync.RWMutex
	owners  map[string]map[shortener.Code]struct{}

	now func() time.Time
}

// NewMemoryStore creates a new in-memory URL store.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		owners: make(map[string]map[shortener.Code]struct{}),
		now:    time.Now,
	}

	for i := range m.shards {
		m.shards[i] = &shard{records: make(map[shortener.Code]*shortener.ShortURL)}
	}

	return m
}

func (m *MemoryStore) shardFor(code shortener.Code) *shard {
	return m.shards[xxhash.Sum64String(string(code))%shardCount]
}

func (m *MemoryStore) Put(ctx context.Context, shortURL *shortener.ShortURL) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := m.shardFor(shortURL.Code)

	s.mu.Lock()
	defer s.mu.Unlock()

	if held, ok := s.records[shortURL.Code]; ok {
		if !held.ExpiredAt(m.now()) {
			return shortener.ErrDuplicateCode
		}

		m.unindex(held)
	}

	record := *shortURL
	s.records[record.Code] = &record
	m.index(&record)

	return nil
}

func (m *MemoryStore) Get(ctx context.Context, code shortener.Code) (*shortener.ShortURL, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := m.shardFor(code)

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[code]
	if !ok || record.ExpiredAt(m.now()) {
		return nil, shortener.ErrNotFound
	}

	found := *record

	return &found, nil
}

func (m *MemoryStore) ListByOwner(
	ctx context.Context, owner string, limit, offset int,
) ([]*shortener.ShortURL, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if owner == "" || limit <= 0 {
		return []*shortener.ShortURL{}, nil
	}

	offset = max(offset, 0)

	m.ownerMu.RLock()
	codes := make([]shortener.Code, 0, len(m.owners[owner]))

	for code := range m.owners[owner] {
		codes = append(codes, code)
	}
	m.ownerMu.RUnlock()

	now := m.now()
	records := make([]*shortener.ShortURL, 0, len(codes))

	// The index is only a hint; each record is re-checked under its shard lock.
	for _, code := range codes {
		s := m.shardFor(code)

		s.mu.RLock()
		record, ok := s.records[code]

		if ok && record.Owner == owner && !record.ExpiredAt(now) {
			found := *record
			records = append(records, &found)
		}
		s.mu.RUnlock()
	}

	slices.SortFunc(records, func(a, b *shortener.ShortURL) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.Code, b.Code)
	})

	if offset >= len(records) {
		return []*shortener.ShortURL{}, nil
	}

	end := len(records)
	if limit < end-offset {
		end = offset + limit
	}

	return records[offset:end], nil
}

func (m *MemoryStore) Delete(ctx context.Context, code shortener.Code, owner string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := m.shardFor(code)

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[code]
	if !ok || record.ExpiredAt(m.now()) {
		return shortener.ErrNotFound
	}

	if !record.OwnedBy(owner) {
		return shortener.ErrForbidden
	}

	delete(s.records, code)
	m.unindex(record)

	return nil
}

// DeleteExpired locks one shard at a time.
func (m *MemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var removed int64

	for _, s := range m.shards {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		s.mu.Lock()

		for code, record := range s.records {
			if record.ExpiredAt(now) {
				delete(s.records, code)
				m.unindex(record)
				removed++
			}
		}

		s.mu.Unlock()
	}

	return removed, nil
}

func (m *MemoryStore) index(record *shortener.ShortURL) {
	if record.Owner == "" {
		return
	}

	m.ownerMu.Lock()
	defer m.ownerMu.Unlock()

	codes, ok := m.owners[record.Owner]
	if !ok {
		codes = make(map[shortener.Code]struct{})
		m.owners[record.Owner] = codes
	}

	codes[record.Code] = struct{}{}
}

func (m *MemoryStore) unindex(record *shortener.ShortURL) {
	if record.Owner == "" {
		return
	}

	m.ownerMu.Lock()
	defer m.ownerMu.Unlock()

	codes := m.owners[record.Owner]
	delete(codes, record.Code)

	if len(codes) == 0 {
		delete(m.owners, record.Owner)
	}
}

// Compile-time check.
var _ shortener.Repository = (*MemoryStore)(nil)

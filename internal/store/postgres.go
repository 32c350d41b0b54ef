package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/shortlink/internal/shortener"
)

const (
	// DefaultQueryTimeout bounds each query issued by PostgresStore.
	DefaultQueryTimeout = 5 * time.Second

	sweepBatchSize = 500
)

const schema = `
	CREATE TABLE IF NOT EXISTS short_urls (
		code         TEXT PRIMARY KEY,
		original_url TEXT NOT NULL,
		owner        TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL,
		expires_at   TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS short_urls_owner_created_idx ON short_urls (owner, created_at DESC, code);
	CREATE INDEX IF NOT EXISTS short_urls_expires_at_idx ON short_urls (expires_at);
`

// PostgresStore is a PostgreSQL implementation of shortener.Repository.
type PostgresStore struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
	now          func() time.Time
}

// NewPostgresStore creates a new PostgreSQL-backed URL store.
func NewPostgresStore(pool *pgxpool.Pool, queryTimeout time.Duration) *PostgresStore {
	if queryTimeout <= 0 {
		queryTimeout = DefaultQueryTimeout
	}

	return &PostgresStore{
		pool:         pool,
		queryTimeout: queryTimeout,
		now:          time.Now,
	}
}

// Migrate creates the short_urls table and its indexes when missing.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate short_urls: %w", err)
	}

	return nil
}

func (p *PostgresStore) Put(ctx context.Context, shortURL *shortener.ShortURL) error {
	ctx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	defer cancel()

	// The conflicting row is only overwritten when it has already expired,
	// which makes the insert a single compare-and-swap.
	query := `
		INSERT INTO short_urls (code, original_url, owner, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE
		SET original_url = EXCLUDED.original_url,
		    owner        = EXCLUDED.owner,
		    created_at   = EXCLUDED.created_at,
		    expires_at   = EXCLUDED.expires_at
		WHERE short_urls.expires_at <= $6
	`

	tag, err := p.pool.Exec(ctx, query,
		string(shortURL.Code),
		shortURL.OriginalURL,
		shortURL.Owner,
		shortURL.CreatedAt,
		shortURL.ExpiresAt,
		p.now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert short url: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return shortener.ErrDuplicateCode
	}

	return nil
}

func (p *PostgresStore) Get(ctx context.Context, code shortener.Code) (*shortener.ShortURL, error) {
	ctx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	defer cancel()

	query := `
		SELECT code, original_url, owner, created_at, expires_at
		FROM short_urls
		WHERE code = $1 AND expires_at > $2
	`

	url, err := scanShortURL(p.pool.QueryRow(ctx, query, string(code), p.now()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shortener.ErrNotFound
		}

		return nil, fmt.Errorf("failed to get short url: %w", err)
	}

	return url, nil
}

func (p *PostgresStore) ListByOwner(
	ctx context.Context, owner string, limit, offset int,
) ([]*shortener.ShortURL, error) {
	if owner == "" || limit <= 0 {
		return []*shortener.ShortURL{}, nil
	}

	offset = max(offset, 0)

	ctx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	defer cancel()

	query := `
		SELECT code, original_url, owner, created_at, expires_at
		FROM short_urls
		WHERE owner = $1 AND expires_at > $2
		ORDER BY created_at DESC, code ASC
		LIMIT $3 OFFSET $4
	`

	rows, err := p.pool.Query(ctx, query, owner, p.now(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list short urls: %w", err)
	}
	defer rows.Close()

	urls := make([]*shortener.ShortURL, 0, min(limit, shortener.MaxListLimit))

	for rows.Next() {
		url, err := scanShortURL(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan short url: %w", err)
		}

		urls = append(urls, url)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list short urls: %w", err)
	}

	return urls, nil
}

func (p *PostgresStore) Delete(ctx context.Context, code shortener.Code, owner string) error {
	ctx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	defer cancel()

	now := p.now()

	tag, err := p.pool.Exec(ctx, `
		DELETE FROM short_urls
		WHERE code = $1 AND owner = $2 AND owner <> '' AND expires_at > $3
	`, string(code), owner, now)
	if err != nil {
		return fmt.Errorf("failed to delete short url: %w", err)
	}

	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing was deleted: tell a missing record from one owned by someone else.
	var exists bool

	err = p.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM short_urls WHERE code = $1 AND expires_at > $2)
	`, string(code), now).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check short url: %w", err)
	}

	if exists {
		return shortener.ErrForbidden
	}

	return shortener.ErrNotFound
}

// DeleteExpired removes expired rows in batches so that no single statement
// holds row locks for long.
func (p *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM short_urls
		WHERE code IN (
			SELECT code FROM short_urls
			WHERE expires_at <= $1
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
	`

	var removed int64

	for {
		n, err := p.deleteBatch(ctx, query, now)
		removed += n

		if err != nil {
			return removed, err
		}

		if n < sweepBatchSize {
			return removed, nil
		}
	}
}

func (p *PostgresStore) deleteBatch(ctx context.Context, query string, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	defer cancel()

	tag, err := p.pool.Exec(ctx, query, now, sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired short urls: %w", err)
	}

	return tag.RowsAffected(), nil
}

// Shutdown is a no-op for PostgresStore (pool managed externally).
func (p *PostgresStore) Shutdown() error {
	return nil
}

func scanShortURL(row pgx.Row) (*shortener.ShortURL, error) {
	var (
		url  shortener.ShortURL
		code string
	)

	if err := row.Scan(&code, &url.OriginalURL, &url.Owner, &url.CreatedAt, &url.ExpiresAt); err != nil {
		return nil, err
	}

	url.Code = shortener.Code(code)

	return &url, nil
}

// Compile-time check.
var _ shortener.Repository = (*PostgresStore)(nil)

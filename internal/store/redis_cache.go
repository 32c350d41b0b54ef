package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

const negativeCacheTTL = time.Minute

// RedisCacheRepository wraps a Repository with Redis caching for reads.
type RedisCacheRepository struct {
	store          shortener.Repository
	client         *redis.Client
	prefix         string
	notFoundPrefix string
	ttl            time.Duration
	now            func() time.Time
	logger         *zap.Logger
}

// NewRedisCacheRepository creates a new Redis-cached repository decorator.
// Cached entries never outlive the record they describe.
func NewRedisCacheRepository(
	store shortener.Repository, client *redis.Client, ttl time.Duration, logger *zap.Logger,
) *RedisCacheRepository {
	return &RedisCacheRepository{
		store:          store,
		client:         client,
		prefix:         "url:",
		notFoundPrefix: "notfound:",
		ttl:            ttl,
		now:            time.Now,
		logger:         logger,
	}
}

// Put stores a short URL in the underlying store and primes the cache.
func (r *RedisCacheRepository) Put(ctx context.Context, shortURL *shortener.ShortURL) error {
	if err := r.store.Put(ctx, shortURL); err != nil {
		return err
	}

	r.cacheURL(ctx, shortURL)

	return nil
}

// Get retrieves a short URL by its code, checking cache first.
func (r *RedisCacheRepository) Get(ctx context.Context, code shortener.Code) (*shortener.ShortURL, error) {
	url, err := r.getFromCache(ctx, code)

	switch {
	case err == nil:
		return url, nil
	case errors.Is(err, shortener.ErrNotFound):
		return nil, err
	}

	url, err = r.store.Get(ctx, code)
	if err != nil {
		if errors.Is(err, shortener.ErrNotFound) {
			r.cacheMiss(ctx, code)
		}

		return nil, err
	}

	r.cacheURL(ctx, url)

	return url, nil
}

// ListByOwner is not cached.
func (r *RedisCacheRepository) ListByOwner(
	ctx context.Context, owner string, limit, offset int,
) ([]*shortener.ShortURL, error) {
	return r.store.ListByOwner(ctx, owner, limit, offset)
}

// Delete removes the record from the underlying store and evicts it.
func (r *RedisCacheRepository) Delete(ctx context.Context, code shortener.Code, owner string) error {
	if err := r.store.Delete(ctx, code, owner); err != nil {
		return err
	}

	if err := r.client.Del(ctx, r.prefix+string(code)).Err(); err != nil {
		r.logger.Warn("failed to evict cached url", zap.String("code", string(code)), zap.Error(err))
	}

	return nil
}

// DeleteExpired passes through; cached entries expire on their own.
func (r *RedisCacheRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.store.DeleteExpired(ctx, now)
}

// getFromCache returns redis.Nil on a cold key and shortener.ErrNotFound on
// a negatively cached one.
func (r *RedisCacheRepository) getFromCache(ctx context.Context, code shortener.Code) (*shortener.ShortURL, error) {
	pipe := r.client.Pipeline()
	fields := pipe.HGetAll(ctx, r.prefix+string(code))
	missing := pipe.Exists(ctx, r.notFoundPrefix+string(code))

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	if missing.Val() > 0 {
		return nil, shortener.ErrNotFound
	}

	result := fields.Val()
	if len(result) == 0 {
		return nil, redis.Nil
	}

	url := &shortener.ShortURL{
		Code:        shortener.Code(result["code"]),
		OriginalURL: result["original_url"],
		Owner:       result["owner"],
		CreatedAt:   parseNanos(result["created_at"]),
		ExpiresAt:   parseNanos(result["expires_at"]),
	}

	if url.ExpiredAt(r.now()) {
		return nil, shortener.ErrNotFound
	}

	return url, nil
}

func (r *RedisCacheRepository) cacheURL(ctx context.Context, url *shortener.ShortURL) {
	key := r.prefix + string(url.Code)

	expireAt := url.ExpiresAt
	if r.ttl > 0 {
		if capped := r.now().Add(r.ttl); capped.Before(expireAt) {
			expireAt = capped
		}
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"code":         string(url.Code),
		"original_url": url.OriginalURL,
		"owner":        url.Owner,
		"created_at":   url.CreatedAt.UnixNano(),
		"expires_at":   url.ExpiresAt.UnixNano(),
	})
	pipe.PExpireAt(ctx, key, expireAt)
	pipe.Del(ctx, r.notFoundPrefix+string(url.Code))

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("failed to cache url", zap.String("code", string(url.Code)), zap.Error(err))
	}
}

// cacheMiss records a negative entry, then re-reads the primary store so that
// a Put committed after the miss is not hidden by it.
func (r *RedisCacheRepository) cacheMiss(ctx context.Context, code shortener.Code) {
	if err := r.client.Set(ctx, r.notFoundPrefix+string(code), 1, negativeCacheTTL).Err(); err != nil {
		r.logger.Warn("failed to cache miss", zap.String("code", string(code)), zap.Error(err))

		return
	}

	url, err := r.store.Get(ctx, code)
	if err != nil {
		return
	}

	r.cacheURL(ctx, url)
}

// Shutdown is a no-op for RedisCacheRepository (client managed externally).
func (r *RedisCacheRepository) Shutdown() error {
	return nil
}

func parseNanos(s string) time.Time {
	nanos, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}

	return time.Unix(0, nanos)
}

// Compile-time check.
var _ shortener.Repository = (*RedisCacheRepository)(nil)

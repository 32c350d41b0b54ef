package container

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jaevor/go-nanoid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/shortlink/internal/audit"
	auditstore "github.com/serroba/shortlink/internal/audit/store"
	"github.com/serroba/shortlink/internal/handlers"
	"github.com/serroba/shortlink/internal/health"
	"github.com/serroba/shortlink/internal/messaging"
	"github.com/serroba/shortlink/internal/middleware"
	"github.com/serroba/shortlink/internal/ratelimit"
	"github.com/serroba/shortlink/internal/session"
	"github.com/serroba/shortlink/internal/shortener"
	"github.com/serroba/shortlink/internal/store"
	"github.com/serroba/shortlink/internal/sweeper"
	"go.uber.org/zap"
)

const sessionIDLength = 32

var ErrRedisRequired = errors.New("redis is not configured")

// Redis owns the optional Redis connection. Client is nil when Redis is disabled.
type Redis struct {
	Client *redis.Client
}

func (r *Redis) Shutdown() error {
	if r.Client == nil {
		return nil
	}

	return r.Client.Close()
}

// Postgres owns the connection pool. Pool is nil for the memory store.
type Postgres struct {
	Pool *pgxpool.Pool
}

func (p *Postgres) Shutdown() error {
	if p.Pool != nil {
		p.Pool.Close()
	}

	return nil
}

func LoggerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		return NewLogger(opts.LogFormat, opts.LogLevel)
	})

	do.Provide(i, func(i *do.Injector) (watermill.LoggerAdapter, error) {
		return messaging.NewZapLoggerAdapter(do.MustInvoke[*zap.Logger](i)), nil
	})
}

func RedisPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*Redis, error) {
		opts := do.MustInvoke[*Options](i)
		if !opts.RedisEnabled() {
			return &Redis{}, nil
		}

		return &Redis{Client: redis.NewClient(&redis.Options{Addr: opts.RedisAddr})}, nil
	})
}

func PostgresPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*Postgres, error) {
		opts := do.MustInvoke[*Options](i)
		if opts.Store != StorePostgres {
			return &Postgres{}, nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), seconds(opts.QueryTimeout))
		defer cancel()

		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()

			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}

		return &Postgres{Pool: pool}, nil
	})
}

// RepositoryPackage provides the URL store, cached through Redis when enabled.
func RepositoryPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (shortener.Repository, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		var repo shortener.Repository = store.NewMemoryStore()

		if opts.Store == StorePostgres {
			pg := store.NewPostgresStore(do.MustInvoke[*Postgres](i).Pool, seconds(opts.QueryTimeout))

			ctx, cancel := context.WithTimeout(context.Background(), seconds(opts.QueryTimeout))
			defer cancel()

			if err := pg.Migrate(ctx); err != nil {
				return nil, err
			}

			repo = pg
		}

		if client := do.MustInvoke[*Redis](i).Client; client != nil {
			repo = store.NewRedisCacheRepository(repo, client, seconds(opts.CacheTTL), logger)
		}

		logger.Info("url store ready", zap.String("backend", opts.Store), zap.Bool("cache", opts.RedisEnabled()))

		return repo, nil
	})
}

func SessionPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (session.Store, error) {
		if client := do.MustInvoke[*Redis](i).Client; client != nil {
			return store.NewSessionRedisStore(client), nil
		}

		return store.NewSessionMemoryStore(), nil
	})

	do.Provide(i, func(i *do.Injector) (*session.Manager, error) {
		opts := do.MustInvoke[*Options](i)

		newID, err := nanoid.Standard(sessionIDLength)
		if err != nil {
			return nil, fmt.Errorf("failed to create session id source: %w", err)
		}

		return session.NewManager(
			do.MustInvoke[session.Store](i),
			newID,
			seconds(opts.SessionTTL),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
}

func ServicePackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*shortener.Service, error) {
		opts := do.MustInvoke[*Options](i)

		nextCode, err := nanoid.Standard(opts.CodeLength)
		if err != nil {
			return nil, fmt.Errorf("failed to create code source: %w", err)
		}

		return shortener.NewService(
			do.MustInvoke[shortener.Repository](i),
			shortener.NewGenerator(nextCode, opts.MaxAttempts),
			do.MustInvoke[*session.Manager](i),
			do.MustInvoke[*zap.Logger](i),
			shortener.WithMaxTTL(seconds(opts.MaxTTL)),
		), nil
	})
}

func RateLimitPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (ratelimit.Store, error) {
		if client := do.MustInvoke[*Redis](i).Client; client != nil {
			return store.NewRateLimitRedisStore(client), nil
		}

		return store.NewRateLimitMemoryStore(), nil
	})

	do.Provide(i, func(i *do.Injector) (*ratelimit.PolicyLimiter, error) {
		return ratelimit.NewPolicyLimiter(do.MustInvoke[ratelimit.Store](i), ratelimit.DefaultPolicy()), nil
	})
}

// PublisherGroupPackage publishes to Redis streams, or discards events when
// Redis is disabled.
func PublisherGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		var publisher message.Publisher = messaging.DiscardPublisher{}

		if client := do.MustInvoke[*Redis](i).Client; client != nil {
			p, err := messaging.NewRedisPublisher(client, do.MustInvoke[watermill.LoggerAdapter](i))
			if err != nil {
				return nil, fmt.Errorf("failed to create publisher: %w", err)
			}

			publisher = p
		}

		return messaging.NewPublisherGroup(publisher), nil
	})
}

// SweeperPackage sweeps the URL store and every in-memory store that can expire entries.
func SweeperPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*sweeper.Sweeper, error) {
		opts := do.MustInvoke[*Options](i)

		targets := map[string]sweeper.Target{
			"short_urls": do.MustInvoke[shortener.Repository](i),
		}

		if t, ok := do.MustInvoke[session.Store](i).(sweeper.Target); ok {
			targets["sessions"] = t
		}

		if t, ok := do.MustInvoke[ratelimit.Store](i).(sweeper.Target); ok {
			targets["rate_limits"] = t
		}

		return sweeper.New(targets, seconds(opts.SweepInterval), do.MustInvoke[*zap.Logger](i)), nil
	})
}

func HTTPPackage(i *do.Injector) {
	do.Provide(i, func(_ *do.Injector) (*chi.Mux, error) {
		router := chi.NewMux()
		// A panicking handler answers 500 instead of dropping the connection.
		router.Use(chimiddleware.Recoverer)

		return router, nil
	})

	do.Provide(i, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		publishers := do.MustInvoke[*messaging.PublisherGroup](i)

		api := humachi.New(do.MustInvoke[*chi.Mux](i), huma.DefaultConfig("URL Shortener", "1.0.0"))
		api.UseMiddleware(middleware.AccessLog(logger))

		if opts.RateLimit {
			api.UseMiddleware(middleware.PolicyRateLimiter(
				api,
				do.MustInvoke[*ratelimit.PolicyLimiter](i),
				ratelimit.NewOperationScopeResolver(),
				do.MustInvoke[*session.Manager](i),
				logger,
			))
		}

		urlHandler := handlers.NewURLHandler(
			do.MustInvoke[*shortener.Service](i),
			opts.PublicBaseURL(),
			opts.DefaultTTL,
			messaging.NewPublishFunc[audit.URLCreatedEvent](publishers.Publisher(), audit.TopicURLCreated),
			messaging.NewPublishFunc[audit.URLDeletedEvent](publishers.Publisher(), audit.TopicURLDeleted),
			logger,
		)
		sessionHandler := handlers.NewSessionHandler(do.MustInvoke[*session.Manager](i), opts.SecureCookie, logger)

		handlers.RegisterRoutes(api, sessionHandler, urlHandler)
		health.RegisterRoutes(api, health.NewHandler(healthCheckers(i)))

		return api, nil
	})
}

func healthCheckers(i *do.Injector) map[string]health.Checker {
	checkers := map[string]health.Checker{}

	if client := do.MustInvoke[*Redis](i).Client; client != nil {
		checkers["redis"] = health.NewRedisChecker(client)
	}

	if pool := do.MustInvoke[*Postgres](i).Pool; pool != nil {
		checkers["postgres"] = health.NewPostgresChecker(pool)
	}

	return checkers
}

// ConsumerGroupPackage wires the audit consumers. It needs Redis.
func ConsumerGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		client := do.MustInvoke[*Redis](i).Client
		if client == nil {
			return nil, ErrRedisRequired
		}

		logger := do.MustInvoke[*zap.Logger](i)

		subscriber, err := messaging.NewRedisSubscriber(client, audit.ConsumerGroup, do.MustInvoke[watermill.LoggerAdapter](i))
		if err != nil {
			return nil, fmt.Errorf("failed to create subscriber: %w", err)
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(audit.NewConsumers(subscriber, auditstore.NewLog(logger), logger)...)

		return group, nil
	})
}

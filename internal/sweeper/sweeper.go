// Package sweeper periodically reclaims expired records from the stores.
package sweeper

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is how often targets are swept when no interval is configured.
const DefaultInterval = time.Minute

// Target physically removes entries that expired before now.
type Target interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper runs DeleteExpired on every target at a fixed interval.
type Sweeper struct {
	targets  map[string]Target
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a sweeper over the named targets.
func New(targets map[string]Target, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Sweeper{
		targets:  targets,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// Start sweeps once immediately and then on every tick until ctx is done or
// Shutdown is called. Calling Start on a running sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx, s.done)

	s.logger.Info("sweeper started", zap.Duration("interval", s.interval))
}

// Sweep runs one pass over all targets.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.now()

	for name, target := range s.targets {
		removed, err := target.DeleteExpired(ctx, now)
		if err != nil {
			s.logger.Error("sweep failed", zap.String("target", name), zap.Error(err))

			continue
		}

		if removed > 0 {
			s.logger.Info("expired entries removed", zap.String("target", name), zap.Int64("removed", removed))
		}
	}
}

// Shutdown stops the sweeper and waits for an in-flight pass to finish.
func (s *Sweeper) Shutdown() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()
	<-done

	s.logger.Info("sweeper stopped")

	return nil
}

func (s *Sweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

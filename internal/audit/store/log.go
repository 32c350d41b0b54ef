package store

import (
	"context"

	"github.com/serroba/shortlink/internal/audit"
	"go.uber.org/zap"
)

// Log is an audit.Recorder that writes every event to a zap logger.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a new log-backed recorder.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger.Named("audit")}
}

func (l *Log) RecordURLCreated(_ context.Context, event *audit.URLCreatedEvent) error {
	l.logger.Info("url created",
		zap.String("code", event.Code),
		zap.String("originalUrl", event.OriginalURL),
		zap.String("owner", event.Owner),
		zap.Time("createdAt", event.CreatedAt),
		zap.Time("expiresAt", event.ExpiresAt),
	)

	return nil
}

func (l *Log) RecordURLDeleted(_ context.Context, event *audit.URLDeletedEvent) error {
	l.logger.Info("url deleted",
		zap.String("code", event.Code),
		zap.String("owner", event.Owner),
		zap.Time("deletedAt", event.DeletedAt),
	)

	return nil
}

// Compile-time check.
var _ audit.Recorder = (*Log)(nil)

package audit

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/shortlink/internal/messaging"
	"go.uber.org/zap"
)

// Recorder persists lifecycle events.
type Recorder interface {
	RecordURLCreated(ctx context.Context, event *URLCreatedEvent) error
	RecordURLDeleted(ctx context.Context, event *URLDeletedEvent) error
}

// NewConsumers returns one consumer per lifecycle topic, all feeding recorder.
func NewConsumers(subscriber message.Subscriber, recorder Recorder, logger *zap.Logger) []messaging.Runnable {
	return []messaging.Runnable{
		messaging.NewConsumer(subscriber, TopicURLCreated, recorder.RecordURLCreated, logger),
		messaging.NewConsumer(subscriber, TopicURLDeleted, recorder.RecordURLDeleted, logger),
	}
}

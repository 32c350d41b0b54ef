// Package audit carries the short URL lifecycle events and records them.
package audit

import "time"

const (
	TopicURLCreated = "url.created"
	TopicURLDeleted = "url.deleted"

	// ConsumerGroup is the redis stream consumer group of the audit consumer.
	ConsumerGroup = "audit"
)

// URLCreatedEvent is emitted after a short URL is stored.
type URLCreatedEvent struct {
	Code        string    `json:"code"`
	OriginalURL string    `json:"originalUrl"`
	Owner       string    `json:"owner,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// URLDeletedEvent is emitted after its owner deletes a short URL.
type URLDeletedEvent struct {
	Code      string    `json:"code"`
	Owner     string    `json:"owner"`
	DeletedAt time.Time `json:"deletedAt"`
}

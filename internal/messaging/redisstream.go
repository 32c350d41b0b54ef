package messaging

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
)

// DefaultStreamMaxLen caps each stream so that unconsumed events do not grow without bound.
const DefaultStreamMaxLen = 100_000

// NewRedisPublisher creates a watermill publisher writing to Redis streams.
func NewRedisPublisher(client redis.UniversalClient, logger watermill.LoggerAdapter) (*redisstream.Publisher, error) {
	return redisstream.NewPublisher(redisstream.PublisherConfig{
		Client:        client,
		Marshaller:    redisstream.DefaultMarshallerUnmarshaller{},
		DefaultMaxlen: DefaultStreamMaxLen,
	}, logger)
}

// NewRedisSubscriber creates a watermill subscriber reading Redis streams as
// a member of consumerGroup, so that each event is processed once per group.
func NewRedisSubscriber(
	client redis.UniversalClient, consumerGroup string, logger watermill.LoggerAdapter,
) (*redisstream.Subscriber, error) {
	return redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  redisstream.DefaultMarshallerUnmarshaller{},
		ConsumerGroup: consumerGroup,
	}, logger)
}

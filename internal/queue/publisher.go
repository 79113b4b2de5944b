package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"warbler/internal/logger"
)

var log = logger.Component("Queue")

// Publisher defines the interface for publishing events to a stream.
type Publisher interface {
	// Publish adds an event to the specified stream.
	// Returns the message ID assigned by Redis.
	Publish(ctx context.Context, stream string, event TimelineEvent) (messageID string, err error)
}

// RedisPublisher implements Publisher using Redis Streams.
type RedisPublisher struct {
	client *redis.Client
}

// NewPublisher creates a new Publisher backed by Redis Streams.
func NewPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish adds an event to the stream using XADD with an auto-generated id.
func (p *RedisPublisher) Publish(ctx context.Context, stream string, event TimelineEvent) (string, error) {
	startTime := time.Now()

	values, err := event.ToMap()
	if err != nil {
		return "", fmt.Errorf("serialize event: %w", err)
	}

	messageID, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()
	if err != nil {
		log.Error().Err(err).Str("stream", stream).Str("type", event.Type).Msg("Publish failed")
		return "", fmt.Errorf("xadd to stream: %w", err)
	}

	log.Debug().
		Str("stream", stream).
		Str("type", event.Type).
		Str("id", messageID).
		Int64("message", event.MessageID).
		Int64("author", event.AuthorID).
		Dur("duration", time.Since(startTime)).
		Msg("Published")

	return messageID, nil
}

// Trim caps the stream at roughly maxLen entries (XTRIM MAXLEN ~).
// Entries still pending for a consumer group are removed too, so keep maxLen well above the backlog.
func (p *RedisPublisher) Trim(ctx context.Context, stream string, maxLen int64) (int64, error) {
	removed, err := p.client.XTrimMaxLenApprox(ctx, stream, maxLen, 0).Result()
	if err != nil {
		return 0, fmt.Errorf("xtrim stream: %w", err)
	}
	return removed, nil
}

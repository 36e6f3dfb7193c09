package sink

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	commonredis "vitalpaw-monitor/common/redis"
)

// RedisStreamSink appends events to a Redis stream capped at maxLen entries.
type RedisStreamSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStreamSink creates a stream sink.
func NewRedisStreamSink(client *redis.Client, stream string, maxLen int64) *RedisStreamSink {
	return &RedisStreamSink{client: client, stream: stream, maxLen: maxLen}
}

// Publish appends event to the stream.
func (s *RedisStreamSink) Publish(ctx context.Context, event AlertEvent) error {
	if _, err := commonredis.PublishJSONToStream(ctx, s.client, s.stream, event, s.maxLen); err != nil {
		return fmt.Errorf("failed to publish alert event to %s: %w", s.stream, err)
	}
	return nil
}

// Close is a no-op; the Redis client is owned by the service.
func (s *RedisStreamSink) Close() error { return nil }

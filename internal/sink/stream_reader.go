package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	commonredis "vitalpaw-monitor/common/redis"
)

// StreamReader consumes alert events from a Redis stream as a member of a
// consumer group.
type StreamReader struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	logger   *zap.Logger
}

// NewStreamReader creates the consumer group if needed.
func NewStreamReader(ctx context.Context, client *redis.Client, stream, group, consumer string, logger *zap.Logger) (*StreamReader, error) {
	if err := commonredis.CreateConsumerGroup(ctx, client, stream, group); err != nil {
		return nil, fmt.Errorf("failed to create consumer group %s: %w", group, err)
	}
	return &StreamReader{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		logger:   logger,
	}, nil
}

// Read returns up to count new events, waiting at most block. Entries are
// acknowledged once decoded; undecodable entries are acknowledged and skipped.
func (r *StreamReader) Read(ctx context.Context, count int64, block time.Duration) ([]AlertEvent, error) {
	msgs, err := commonredis.ReadFromStream(ctx, r.client, r.stream, r.group, r.consumer, count, block)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.stream, err)
	}

	events := make([]AlertEvent, 0, len(msgs))
	ids := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		ids = append(ids, msg.ID)
		data, _ := msg.Values["data"].(string)
		var event AlertEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			r.logger.Warn("Skipping malformed alert event",
				zap.String("stream", r.stream),
				zap.String("id", msg.ID),
				zap.Error(err))
			continue
		}
		events = append(events, event)
	}

	if err := commonredis.AckStream(ctx, r.client, r.stream, r.group, ids...); err != nil {
		return events, fmt.Errorf("failed to ack %s: %w", r.stream, err)
	}
	return events, nil
}

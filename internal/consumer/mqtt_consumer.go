package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	mqttcommon "vitalpaw-monitor/common/mqtt"
	"vitalpaw-monitor/internal/decoder"
	"vitalpaw-monitor/internal/models"
	"vitalpaw-monitor/internal/queue"
)

// Subscriber is the part of the MQTT client the consumer needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// Enqueuer accepts decoded readings without blocking.
type Enqueuer interface {
	Enqueue(r models.VitalReading) error
}

// IngestStats are cumulative ingestion counters.
type IngestStats struct {
	Received     int64
	DecodeErrors int64
	Enqueued     int64
	Rejected     int64
}

// MQTTConsumer decodes collar telemetry and hands it to the queue.
type MQTTConsumer struct {
	topics []string
	qos    byte
	client Subscriber
	queue  Enqueuer
	logger *zap.Logger
	now    func() time.Time

	received     atomic.Int64
	decodeErrors atomic.Int64
	enqueued     atomic.Int64
	rejected     atomic.Int64
}

// NewMQTTConsumer creates a consumer for the given wildcard topics.
func NewMQTTConsumer(topics []string, qos byte, client Subscriber, q Enqueuer, logger *zap.Logger) *MQTTConsumer {
	return &MQTTConsumer{
		topics: topics,
		qos:    qos,
		client: client,
		queue:  q,
		logger: logger,
		now:    time.Now,
	}
}

// Start subscribes to every topic and returns. Messages are handled on the
// MQTT client's callback goroutines.
func (c *MQTTConsumer) Start(ctx context.Context) error {
	subscribed := make([]string, 0, len(c.topics))
	for _, topic := range c.topics {
		if err := c.client.Subscribe(topic, c.qos, c.handleMessage); err != nil {
			if len(subscribed) > 0 {
				c.client.Unsubscribe(subscribed...)
			}
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		subscribed = append(subscribed, topic)
	}

	c.logger.Info("MQTT consumer started",
		zap.Strings("topics", c.topics),
		zap.Uint8("qos", c.qos),
	)
	return nil
}

// Stop unsubscribes from all topics.
func (c *MQTTConsumer) Stop() error {
	if err := c.client.Unsubscribe(c.topics...); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
		return err
	}
	c.logger.Info("MQTT consumer stopped")
	return nil
}

// Stats returns the counters.
func (c *MQTTConsumer) Stats() IngestStats {
	return IngestStats{
		Received:     c.received.Load(),
		DecodeErrors: c.decodeErrors.Load(),
		Enqueued:     c.enqueued.Load(),
		Rejected:     c.rejected.Load(),
	}
}

func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	c.received.Add(1)

	reading, err := decoder.Decode(topic, payload, c.now())
	if err != nil {
		c.decodeErrors.Add(1)
		c.logger.Warn("Dropping malformed telemetry",
			zap.String("topic", topic),
			zap.Int("payload_size", len(payload)),
			zap.Error(err),
		)
		return err
	}

	if err := c.queue.Enqueue(reading); err != nil {
		c.rejected.Add(1)
		if errors.Is(err, queue.ErrQueueClosed) {
			return nil
		}
		return err
	}
	c.enqueued.Add(1)
	return nil
}

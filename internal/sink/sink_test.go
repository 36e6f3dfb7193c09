package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalpaw-monitor/internal/models"
)

func testAlert() models.Alert {
	return models.Alert{
		ID:         "a-1",
		PetID:      "pet-1",
		DeviceID:   "collar-1",
		Type:       models.AlertFall,
		Severity:   models.SeverityHigh,
		Message:    "Possible fall detected",
		OccurredAt: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestNewAlertEvent(t *testing.T) {
	e1 := NewAlertEvent(testAlert(), "Toby")
	e2 := NewAlertEvent(testAlert(), "Toby")
	assert.NotEmpty(t, e1.EventID)
	assert.NotEqual(t, e1.EventID, e2.EventID)
	assert.Equal(t, "Toby", e1.PetName)
}

func TestRedisStreamSink(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStreamSink(client, "vitalpaw:alerts", 1000)
	event := NewAlertEvent(testAlert(), "Toby")
	require.NoError(t, s.Publish(context.Background(), event))
	require.NoError(t, s.Close())

	entries, err := client.XRange(context.Background(), "vitalpaw:alerts", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var got AlertEvent
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["data"].(string)), &got))
	assert.Equal(t, event.EventID, got.EventID)
	assert.Equal(t, models.AlertFall, got.Alert.Type)
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSink_Publish(t *testing.T) {
	w := &fakeWriter{}
	s := &KafkaSink{writer: w}

	require.NoError(t, s.Publish(context.Background(), NewAlertEvent(testAlert(), "")))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "pet-1", string(w.msgs[0].Key))
	assert.Equal(t, "FALL", string(w.msgs[0].Headers[0].Value))

	var got AlertEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "a-1", got.Alert.ID)

	require.NoError(t, s.Close())
	assert.True(t, w.closed)
}

func TestKafkaSink_WriteError(t *testing.T) {
	s := &KafkaSink{writer: &fakeWriter{err: errors.New("leader not available")}}
	assert.ErrorContains(t, s.Publish(context.Background(), NewAlertEvent(testAlert(), "")), "leader not available")
}

func TestNewKafkaSink(t *testing.T) {
	s := NewKafkaSink([]string{"localhost:9092"}, "vitalpaw.alerts")
	w, ok := s.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "vitalpaw.alerts", w.Topic)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}

// Package sink publishes dispatched alerts as events for downstream consumers
// such as care-team dashboards and analytics.
package sink

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vitalpaw-monitor/internal/models"
)

// AlertEvent is the envelope published for every persisted alert.
type AlertEvent struct {
	EventID     string       `json:"event_id"`
	Alert       models.Alert `json:"alert"`
	PetName     string       `json:"pet_name,omitempty"`
	PublishedAt time.Time    `json:"published_at"`
}

// NewAlertEvent wraps alert in a new envelope.
func NewAlertEvent(alert models.Alert, petName string) AlertEvent {
	return AlertEvent{
		EventID:     uuid.New().String(),
		Alert:       alert,
		PetName:     petName,
		PublishedAt: time.Now().UTC(),
	}
}

// AlertSink receives alert events.
type AlertSink interface {
	Publish(ctx context.Context, event AlertEvent) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, AlertEvent) error { return nil }
func (Nop) Close() error { return nil }

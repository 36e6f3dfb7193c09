// Package dispatcher persists alerts and fans them out to live viewers, the
// owner's phone and the alert event sink.
package dispatcher

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"vitalpaw-monitor/internal/models"
	"vitalpaw-monitor/internal/sink"
)

// Dispatch stages.
const (
	StagePersist = "persist"
	StagePush    = "push"
	StageSink    = "sink"
)

// Collaborator call limits. The push gateway carries its own HTTP timeout.
const (
	persistTimeout = 5 * time.Second
	lookupTimeout  = 2 * time.Second
	sinkTimeout    = 5 * time.Second
)

// AlertStore persists an alert and returns its id.
type AlertStore interface {
	Save(ctx context.Context, alert models.Alert) (string, error)
}

// PushTokenLookup returns the owner's push token for a pet, "" if none.
type PushTokenLookup interface {
	GetPushToken(ctx context.Context, petID string) (string, error)
}

// PushGateway delivers a notification to a device token.
type PushGateway interface {
	Send(ctx context.Context, token, title, body string) error
}

// AlertBroadcaster shows an alert to the pet's live viewers.
type AlertBroadcaster interface {
	PublishAlert(alert models.Alert)
}

// Deduper records alert keys that were already dispatched.
type Deduper interface {
	MarkOnce(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// DispatchError reports which stage of a dispatch failed.
type DispatchError struct {
	Stage   string
	AlertID string
	Err     error
}

func (e *DispatchError) Error() string {
	if e.AlertID == "" {
		return fmt.Sprintf("dispatch %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("dispatch %s for alert %s: %v", e.Stage, e.AlertID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Stats are cumulative dispatch counters.
type Stats struct {
	Dispatched      int64
	Duplicates      int64
	PersistFailures int64
	PushSent        int64
	PushSkipped     int64
	PushFailures    int64
	SinkFailures    int64
}

// Dispatcher delivers alerts. Persistence comes first; live viewers, push and
// sink delivery are best effort and never undo a persisted alert.
type Dispatcher struct {
	store  AlertStore
	tokens PushTokenLookup
	push   PushGateway
	sink   sink.AlertSink
	live   AlertBroadcaster
	dedupe Deduper
	logger *zap.Logger

	dispatched      atomic.Int64
	duplicates      atomic.Int64
	persistFailures atomic.Int64
	pushSent        atomic.Int64
	pushSkipped     atomic.Int64
	pushFailures    atomic.Int64
	sinkFailures    atomic.Int64
}

// NewDispatcher creates a dispatcher. live, alertSink and dedupe may be nil.
func NewDispatcher(store AlertStore, tokens PushTokenLookup, push PushGateway, live AlertBroadcaster, alertSink sink.AlertSink, dedupe Deduper, logger *zap.Logger) *Dispatcher {
	if alertSink == nil {
		alertSink = sink.Nop{}
	}
	return &Dispatcher{
		store:  store,
		tokens: tokens,
		push:   push,
		sink:   alertSink,
		live:   live,
		dedupe: dedupe,
		logger: logger,
	}
}

// DedupeKey identifies an alert by the reading that raised it, so a
// redelivered telemetry message maps to the same key.
func DedupeKey(alert models.Alert) string {
	return fmt.Sprintf("%s:%s:%d", alert.DeviceID, alert.Type, alert.OccurredAt.UnixNano())
}

// Dispatch persists alert and notifies the owner. petName is used in the
// notification title. It returns the stored alert id, or "" for a duplicate.
// Only a persistence failure is returned as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, alert models.Alert, petName string) (string, error) {
	key := DedupeKey(alert)
	if d.dedupe != nil {
		markCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
		first, err := d.dedupe.MarkOnce(markCtx, key)
		cancel()
		if err != nil {
			d.logger.Warn("Dedupe check failed, dispatching anyway",
				zap.String("key", key),
				zap.Error(err))
		} else if !first {
			d.duplicates.Add(1)
			d.logger.Debug("Duplicate alert skipped", zap.String("key", key))
			return "", nil
		}
	}

	saveCtx, cancel := context.WithTimeout(ctx, persistTimeout)
	id, err := d.store.Save(saveCtx, alert)
	cancel()
	if err != nil {
		d.persistFailures.Add(1)
		if d.dedupe != nil {
			releaseCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
			rerr := d.dedupe.Release(releaseCtx, key)
			cancel()
			if rerr != nil {
				d.logger.Warn("Failed to release dedupe key", zap.String("key", key), zap.Error(rerr))
			}
		}
		return "", &DispatchError{Stage: StagePersist, Err: err}
	}
	alert.ID = id
	d.dispatched.Add(1)

	if d.live != nil {
		d.live.PublishAlert(alert)
	}
	d.notify(ctx, alert, petName)

	sinkCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
	err = d.sink.Publish(sinkCtx, sink.NewAlertEvent(alert, petName))
	cancel()
	if err != nil {
		d.sinkFailures.Add(1)
		d.logger.Warn("Failed to publish alert event",
			zap.Error(&DispatchError{Stage: StageSink, AlertID: id, Err: err}))
	}

	d.logger.Info("Alert dispatched",
		zap.String("alert_id", id),
		zap.String("pet_id", alert.PetID),
		zap.String("type", string(alert.Type)),
		zap.String("severity", string(alert.Severity)))
	return id, nil
}

func (d *Dispatcher) notify(ctx context.Context, alert models.Alert, petName string) {
	lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	token, err := d.tokens.GetPushToken(lookupCtx, alert.PetID)
	cancel()
	if err != nil {
		d.pushFailures.Add(1)
		d.logger.Warn("Push token lookup failed",
			zap.String("pet_id", alert.PetID),
			zap.Error(&DispatchError{Stage: StagePush, AlertID: alert.ID, Err: err}))
		return
	}
	if token == "" {
		d.pushSkipped.Add(1)
		return
	}

	if err := d.push.Send(ctx, token, Title(alert, petName), alert.Message); err != nil {
		d.pushFailures.Add(1)
		d.logger.Warn("Push notification failed",
			zap.String("pet_id", alert.PetID),
			zap.Error(&DispatchError{Stage: StagePush, AlertID: alert.ID, Err: err}))
		return
	}
	d.pushSent.Add(1)
}

// Title returns the notification title for alert.
func Title(alert models.Alert, petName string) string {
	if petName == "" {
		petName = alert.PetID
	}
	return "Health Alert - " + petName
}

// Stats returns the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Dispatched:      d.dispatched.Load(),
		Duplicates:      d.duplicates.Load(),
		PersistFailures: d.persistFailures.Load(),
		PushSent:        d.pushSent.Load(),
		PushSkipped:     d.pushSkipped.Load(),
		PushFailures:    d.pushFailures.Load(),
		SinkFailures:    d.sinkFailures.Load(),
	}
}

// Package consumer runs the ingestion side of the monitor: the MQTT
// subscription and the workers that turn readings into live updates and
// alerts.
package consumer

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"vitalpaw-monitor/internal/evaluator"
	"vitalpaw-monitor/internal/models"
	"vitalpaw-monitor/internal/repository"
)

// PetRegistry looks up the pet wearing a device.
type PetRegistry interface {
	GetPetForDevice(ctx context.Context, deviceID string) (*models.PetProfile, error)
	GetPet(ctx context.Context, petID string) (*models.PetProfile, error)
}

// ThresholdResolver returns the thresholds for a breed. It never fails.
type ThresholdResolver interface {
	Resolve(ctx context.Context, breed string) models.Thresholds
}

// MotionTracker classifies accelerometer samples per device.
type MotionTracker interface {
	Update(deviceID string, accel models.Accel, at time.Time) models.MotionClass
}

// Broadcaster fans a live update out to viewers.
type Broadcaster interface {
	Publish(update models.LiveUpdate)
}

// SnapshotStore keeps the latest live update per pet.
type SnapshotStore interface {
	SetRealtime(ctx context.Context, update models.LiveUpdate) error
}

// AlertDispatcher persists and delivers an alert.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, alert models.Alert, petName string) (string, error)
}

// ShardSource is the queue the pool drains.
type ShardSource interface {
	Len() int
	Shard(i int) <-chan models.VitalReading
	Close()
}

// WorkerStats are cumulative worker counters.
type WorkerStats struct {
	Processed        int64
	UnknownDevices   int64
	LookupFailures   int64
	BreedFallbacks   int64
	AlertsRaised     int64
	DispatchFailures int64
	SnapshotFailures int64
	Panics           int64
	Abandoned        int64
}

// WorkerPool runs one worker per queue shard.
type WorkerPool struct {
	queue         ShardSource
	pets          PetRegistry
	resolver      ThresholdResolver
	tracker       MotionTracker
	broadcaster   Broadcaster
	snapshots     SnapshotStore
	dispatcher    AlertDispatcher
	fallbackBreed string
	callTimeout   time.Duration
	logger        *zap.Logger

	wg      sync.WaitGroup
	ctx     context.Context
	abandon atomic.Bool

	processed        atomic.Int64
	unknownDevices   atomic.Int64
	lookupFailures   atomic.Int64
	breedFallbacks   atomic.Int64
	alertsRaised     atomic.Int64
	dispatchFailures atomic.Int64
	snapshotFailures atomic.Int64
	panics           atomic.Int64
	abandoned        atomic.Int64
}

// WorkerDeps groups the collaborators of a WorkerPool.
type WorkerDeps struct {
	Pets        PetRegistry
	Resolver    ThresholdResolver
	Tracker     MotionTracker
	Broadcaster Broadcaster
	Snapshots   SnapshotStore
	Dispatcher  AlertDispatcher
}

// WorkerOptions tune a WorkerPool.
type WorkerOptions struct {
	FallbackBreed string
	CallTimeout   time.Duration // per registry lookup and snapshot write
}

const defaultCallTimeout = 2 * time.Second

// NewWorkerPool creates a pool over q.
func NewWorkerPool(q ShardSource, deps WorkerDeps, opts WorkerOptions, logger *zap.Logger) *WorkerPool {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	return &WorkerPool{
		queue:         q,
		pets:          deps.Pets,
		resolver:      deps.Resolver,
		tracker:       deps.Tracker,
		broadcaster:   deps.Broadcaster,
		snapshots:     deps.Snapshots,
		dispatcher:    deps.Dispatcher,
		fallbackBreed: opts.FallbackBreed,
		callTimeout:   opts.CallTimeout,
		logger:        logger,
	}
}

// Start launches the workers. Processing keeps running after ctx is
// cancelled; use Drain to stop.
func (p *WorkerPool) Start(ctx context.Context) {
	p.ctx = context.WithoutCancel(ctx)
	for i := 0; i < p.queue.Len(); i++ {
		p.wg.Add(1)
		go p.work(i)
	}
	p.logger.Info("Worker pool started", zap.Int("workers", p.queue.Len()))
}

func (p *WorkerPool) work(shard int) {
	defer p.wg.Done()
	for r := range p.queue.Shard(shard) {
		if p.abandon.Load() {
			p.abandoned.Add(1)
			continue
		}
		p.Process(p.ctx, r)
	}
}

// Drain closes the queue and waits for queued readings to be processed.
// After grace the remaining readings are abandoned, but a reading already
// being processed runs to completion and Drain returns only once every
// worker has exited. It reports whether the queue drained completely.
func (p *WorkerPool) Drain(grace time.Duration) bool {
	p.queue.Close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
		p.logger.Info("Worker pool drained")
		return true
	case <-timer.C:
		p.abandon.Store(true)
		p.logger.Warn("Drain grace period elapsed, abandoning queued readings",
			zap.Duration("grace", grace))
		<-done
		p.logger.Info("In-flight readings finished",
			zap.Int64("abandoned", p.abandoned.Load()))
		return false
	}
}

// Process handles one reading end to end. Failures are logged and counted.
func (p *WorkerPool) Process(ctx context.Context, r models.VitalReading) {
	defer func() {
		if rec := recover(); rec != nil {
			p.panics.Add(1)
			p.logger.Error("Recovered panic while processing reading",
				zap.String("device_id", r.DeviceID),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	pet, ok := p.lookupPet(ctx, r)
	if !ok {
		return
	}
	r = r.WithPetID(pet.PetID)

	breed := pet.Breed
	if breed == "" {
		breed = p.fallbackBreed
		p.breedFallbacks.Add(1)
		p.logger.Info("Pet has no breed, using fallback",
			zap.String("pet_id", pet.PetID),
			zap.String("breed", breed))
	}

	thresholds := p.resolver.Resolve(ctx, breed)
	class := p.tracker.Update(r.DeviceID, r.Accel, r.ObservedAt)
	alerts := evaluator.Evaluate(r, thresholds, class)

	update := models.LiveUpdate{
		DeviceID:    r.DeviceID,
		PetID:       r.PetID,
		Temperature: r.TemperatureC,
		Pulse:       r.HeartRate,
		Status:      class.String(),
		ObservedAt:  r.ObservedAt.UnixMilli(),
	}
	p.broadcaster.Publish(update)
	snapCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	err := p.snapshots.SetRealtime(snapCtx, update)
	cancel()
	if err != nil {
		p.snapshotFailures.Add(1)
		p.logger.Warn("Failed to store realtime snapshot",
			zap.String("pet_id", r.PetID),
			zap.Error(err))
	}

	p.alertsRaised.Add(int64(len(alerts)))
	for _, alert := range alerts {
		if _, err := p.dispatcher.Dispatch(ctx, alert, pet.Name); err != nil {
			p.dispatchFailures.Add(1)
			p.logger.Error("Failed to dispatch alert",
				zap.String("pet_id", alert.PetID),
				zap.String("type", string(alert.Type)),
				zap.Error(err))
		}
	}
	p.processed.Add(1)
}

// lookupPet resolves the pet for r. A payload pet id is trusted even when the
// registry cannot describe it; a device with no pet drops the reading.
func (p *WorkerPool) lookupPet(ctx context.Context, r models.VitalReading) (models.PetProfile, bool) {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	if r.PetID != "" {
		pet, err := p.pets.GetPet(ctx, r.PetID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				p.lookupFailures.Add(1)
				p.logger.Warn("Pet lookup failed", zap.String("pet_id", r.PetID), zap.Error(err))
			}
			return models.PetProfile{PetID: r.PetID}, true
		}
		pet.PetID = r.PetID
		return *pet, true
	}

	pet, err := p.pets.GetPetForDevice(ctx, r.DeviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			p.unknownDevices.Add(1)
			p.logger.Warn("Dropping reading from unknown device", zap.String("device_id", r.DeviceID))
		} else {
			p.lookupFailures.Add(1)
			p.logger.Error("Device lookup failed, dropping reading",
				zap.String("device_id", r.DeviceID),
				zap.Error(err))
		}
		return models.PetProfile{}, false
	}
	return *pet, true
}

// Stats returns the counters.
func (p *WorkerPool) Stats() WorkerStats {
	return WorkerStats{
		Processed:        p.processed.Load(),
		UnknownDevices:   p.unknownDevices.Load(),
		LookupFailures:   p.lookupFailures.Load(),
		BreedFallbacks:   p.breedFallbacks.Load(),
		AlertsRaised:     p.alertsRaised.Load(),
		DispatchFailures: p.dispatchFailures.Load(),
		SnapshotFailures: p.snapshotFailures.Load(),
		Panics:           p.panics.Load(),
		Abandoned:        p.abandoned.Load(),
	}
}

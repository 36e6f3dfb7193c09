// Package motion classifies accelerometer samples per device into normal,
// fall or immobile.
package motion

import (
	"sync"
	"time"

	"vitalpaw-monitor/internal/models"
)

// Phase is the lifecycle position of one device's motion state.
type Phase int

const (
	NoHistory Phase = iota
	Tracking
	ImmobilityCooldown
)

func (p Phase) String() string {
	switch p {
	case Tracking:
		return "tracking"
	case ImmobilityCooldown:
		return "immobility-cooldown"
	default:
		return "no-history"
	}
}

// Config holds the detection rules.
type Config struct {
	WindowSize         int           // samples needed for an immobility verdict
	FallThreshold      float64       // spike magnitude
	QuiescentThreshold float64       // the sample before a spike must be below this
	ImmobileThreshold  float64       // every sample in a full window must be below this
	IdleReset          time.Duration // gap between samples that discards history
}

// DefaultConfig returns the standard rule set: 3000 samples (5 minutes at
// 10 Hz), fall above 20.0 after a sample below 5.0, immobile below 1.0.
func DefaultConfig() Config {
	return Config{
		WindowSize:         3000,
		FallThreshold:      20.0,
		QuiescentThreshold: 5.0,
		ImmobileThreshold:  1.0,
		IdleReset:          5 * time.Minute,
	}
}

// Snapshot is a read-only view of one device's state.
type Snapshot struct {
	Phase           Phase
	Samples         int
	LastMagnitude   float64
	LastSampleAt    time.Time
	LastFallAlertAt time.Time
}

type deviceState struct {
	mu sync.Mutex

	phase           Phase
	window          window
	lastMagnitude   float64
	lastSampleAt    time.Time
	lastFallAlertAt time.Time
	touchedAt       time.Time
	evicted         bool
}

// Tracker owns the motion state of every device. Updates for one device are
// serialized; different devices proceed in parallel.
type Tracker struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	devices map[string]*deviceState
}

// NewTracker creates an empty tracker.
func NewTracker(cfg Config) *Tracker {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultConfig().WindowSize
	}
	return &Tracker{
		cfg:     cfg,
		now:     time.Now,
		devices: make(map[string]*deviceState),
	}
}

// Update feeds one sample observed at `at` and returns its classification.
func (t *Tracker) Update(deviceID string, accel models.Accel, at time.Time) models.MotionClass {
	for {
		s := t.state(deviceID)
		s.mu.Lock()
		if s.evicted {
			s.mu.Unlock()
			continue
		}
		class := t.apply(s, accel.Magnitude(), at)
		s.touchedAt = t.now()
		s.mu.Unlock()
		return class
	}
}

func (t *Tracker) apply(s *deviceState, m float64, at time.Time) models.MotionClass {
	if s.phase != NoHistory && t.cfg.IdleReset > 0 && at.Sub(s.lastSampleAt) > t.cfg.IdleReset {
		s.window.reset()
		s.phase = NoHistory
	}

	hadHistory := s.phase != NoHistory
	prev := s.lastMagnitude

	s.window.push(m)
	s.phase = Tracking
	s.lastMagnitude = m
	if at.After(s.lastSampleAt) {
		s.lastSampleAt = at
	}

	if hadHistory && m > t.cfg.FallThreshold && prev < t.cfg.QuiescentThreshold {
		s.lastFallAlertAt = at
		return models.MotionFall
	}

	if s.window.full() && s.window.allQuiet() {
		s.window.reset()
		s.phase = ImmobilityCooldown
		return models.MotionImmobile
	}
	return models.MotionNormal
}

// Snapshot returns the state of deviceID, if tracked.
func (t *Tracker) Snapshot(deviceID string) (Snapshot, bool) {
	t.mu.Lock()
	s, ok := t.devices[deviceID]
	t.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Phase:           s.phase,
		Samples:         s.window.size,
		LastMagnitude:   s.lastMagnitude,
		LastSampleAt:    s.lastSampleAt,
		LastFallAlertAt: s.lastFallAlertAt,
	}, true
}

// Forget drops the state of deviceID.
func (t *Tracker) Forget(deviceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.devices[deviceID]; ok {
		s.mu.Lock()
		s.evicted = true
		s.mu.Unlock()
		delete(t.devices, deviceID)
	}
}

// EvictIdle drops devices that have not been updated for longer than the idle
// reset period and returns how many were removed.
func (t *Tracker) EvictIdle() int {
	if t.cfg.IdleReset <= 0 {
		return 0
	}
	cutoff := t.now().Add(-t.cfg.IdleReset)

	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, s := range t.devices {
		s.mu.Lock()
		if s.touchedAt.Before(cutoff) {
			s.evicted = true
			delete(t.devices, id)
			removed++
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked devices.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.devices)
}

func (t *Tracker) state(deviceID string) *deviceState {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.devices[deviceID]
	if !ok {
		s = &deviceState{
			window:    newWindow(t.cfg.WindowSize, t.cfg.ImmobileThreshold),
			touchedAt: t.now(),
		}
		t.devices[deviceID] = s
	}
	return s
}

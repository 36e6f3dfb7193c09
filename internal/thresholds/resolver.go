// Package thresholds resolves breed-specific vital sign ranges.
package thresholds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"vitalpaw-monitor/internal/models"
)

// DefaultThresholds apply whenever a breed cannot be resolved.
var DefaultThresholds = models.Thresholds{
	Breed:          "default",
	MinHeartRate:   60,
	MaxHeartRate:   120,
	MinTemperature: 36.5,
	MaxTemperature: 39.5,
}

// BreedRegistry looks up thresholds for a breed.
type BreedRegistry interface {
	GetThresholds(ctx context.Context, breed string) (models.Thresholds, error)
}

// ResolutionError records why a breed fell back to the defaults.
type ResolutionError struct {
	Breed string
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve thresholds for breed %q: %v", e.Breed, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Stats are cumulative resolver counters.
type Stats struct {
	Hits      int64
	Lookups   int64
	Fallbacks int64
}

type cacheEntry struct {
	thresholds models.Thresholds
	expiresAt  time.Time
}

// Resolver caches successful registry lookups per breed. Failures degrade to
// the defaults and are never cached.
type Resolver struct {
	registry BreedRegistry
	defaults models.Thresholds
	timeout  time.Duration
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
	group singleflight.Group

	hits      atomic.Int64
	lookups   atomic.Int64
	fallbacks atomic.Int64
}

// NewResolver creates a resolver. Each registry call is bounded by timeout.
func NewResolver(registry BreedRegistry, defaults models.Thresholds, timeout, ttl time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{
		registry: registry,
		defaults: defaults,
		timeout:  timeout,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		cache:    make(map[string]cacheEntry),
	}
}

// Resolve returns the thresholds for breed. It never fails.
func (r *Resolver) Resolve(ctx context.Context, breed string) models.Thresholds {
	key := strings.ToLower(strings.TrimSpace(breed))
	if key == "" {
		return r.fallback(&ResolutionError{Breed: breed, Err: errors.New("empty breed")})
	}

	if t, ok := r.cached(key); ok {
		r.hits.Add(1)
		return t
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		r.lookups.Add(1)
		// shared by every caller waiting on key, so one caller's
		// cancellation must not fail the others
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		t, err := r.registry.GetThresholds(callCtx, breed)
		if err != nil {
			return nil, err
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[key] = cacheEntry{thresholds: t, expiresAt: r.now().Add(r.ttl)}
		r.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return r.fallback(&ResolutionError{Breed: breed, Err: err})
	}
	return v.(models.Thresholds)
}

// Invalidate drops the cached entry for breed.
func (r *Resolver) Invalidate(breed string) {
	r.mu.Lock()
	delete(r.cache, strings.ToLower(strings.TrimSpace(breed)))
	r.mu.Unlock()
}

// Stats returns a snapshot of the counters.
func (r *Resolver) Stats() Stats {
	return Stats{
		Hits:      r.hits.Load(),
		Lookups:   r.lookups.Load(),
		Fallbacks: r.fallbacks.Load(),
	}
}

func (r *Resolver) cached(key string) (models.Thresholds, bool) {
	r.mu.RLock()
	entry, ok := r.cache[key]
	r.mu.RUnlock()
	if !ok || !r.now().Before(entry.expiresAt) {
		return models.Thresholds{}, false
	}
	return entry.thresholds, true
}

func (r *Resolver) fallback(err *ResolutionError) models.Thresholds {
	r.fallbacks.Add(1)
	r.logger.Warn("Using default thresholds",
		zap.String("breed", err.Breed),
		zap.Error(err))
	return r.defaults
}

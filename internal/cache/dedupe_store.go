package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"vitalpaw-monitor/internal/config"
)

// DedupeStore remembers which alerts were already dispatched, so a telemetry
// message redelivered by the broker does not notify twice.
type DedupeStore struct {
	redisClient *redis.Client
	prefix      string
	ttl         time.Duration
}

// NewDedupeStore creates a store using the configured key prefix and TTL.
func NewDedupeStore(cfg *config.Config, redisClient *redis.Client) *DedupeStore {
	return &DedupeStore{
		redisClient: redisClient,
		prefix:      cfg.Cache.DedupeKeyPrefix,
		ttl:         cfg.Cache.DedupeTTL,
	}
}

// MarkOnce records key and reports whether this call was the first to do so.
func (s *DedupeStore) MarkOnce(ctx context.Context, key string) (bool, error) {
	ok, err := s.redisClient.SetNX(ctx, s.prefix+key, 1, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark %s: %w", key, err)
	}
	return ok, nil
}

// Release forgets key so a later delivery may dispatch it again.
func (s *DedupeStore) Release(ctx context.Context, key string) error {
	if err := s.redisClient.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release %s: %w", key, err)
	}
	return nil
}

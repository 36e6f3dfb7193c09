package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"vitalpaw-monitor/internal/config"
	"vitalpaw-monitor/internal/models"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// CacheManager keeps the latest live update per pet in Redis so late-joining
// viewers and the REST API can show current values.
type CacheManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCacheManager creates a cache manager.
func NewCacheManager(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) *CacheManager {
	return &CacheManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// RealtimeKey returns the Redis key of petID's snapshot.
func (c *CacheManager) RealtimeKey(petID string) string {
	return c.config.Cache.RealtimeKeyPrefix + petID
}

// SetRealtime stores update as petID's latest snapshot.
func (c *CacheManager) SetRealtime(ctx context.Context, update models.LiveUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal realtime data: %w", err)
	}

	key := c.RealtimeKey(update.PetID)
	if err := c.redisClient.Set(ctx, key, data, c.config.Cache.RealtimeTTL).Err(); err != nil {
		return fmt.Errorf("failed to set realtime cache: %w", err)
	}

	c.logger.Debug("Updated realtime cache",
		zap.String("pet_id", update.PetID),
		zap.String("key", key))
	return nil
}

// GetRealtime returns petID's latest snapshot or ErrCacheMiss.
func (c *CacheManager) GetRealtime(ctx context.Context, petID string) (*models.LiveUpdate, error) {
	val, err := c.redisClient.Get(ctx, c.RealtimeKey(petID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get realtime cache: %w", err)
	}

	var update models.LiveUpdate
	if err := json.Unmarshal(val, &update); err != nil {
		return nil, fmt.Errorf("failed to unmarshal realtime data: %w", err)
	}
	return &update, nil
}

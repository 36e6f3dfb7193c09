package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const pushTokenCacheTTL = time.Hour

// PushTokenRepository finds the owner's push token for a pet. Tokens are
// registered by the mobile app under <prefix><petId> in Redis; the pets table
// is the fallback, and a token found there is cached back into Redis.
type PushTokenRepository struct {
	db          *sql.DB
	redisClient *redis.Client
	prefix      string
	logger      *zap.Logger
}

// NewPushTokenRepository creates a push token repository.
func NewPushTokenRepository(db *sql.DB, redisClient *redis.Client, prefix string, logger *zap.Logger) *PushTokenRepository {
	return &PushTokenRepository{
		db:          db,
		redisClient: redisClient,
		prefix:      prefix,
		logger:      logger,
	}
}

// GetPushToken returns the token for petID, or "" when none is on file.
func (r *PushTokenRepository) GetPushToken(ctx context.Context, petID string) (string, error) {
	key := r.prefix + petID
	token, err := r.redisClient.Get(ctx, key).Result()
	switch {
	case err == nil && token != "":
		return token, nil
	case err != nil && err != redis.Nil:
		r.logger.Warn("Push token cache unavailable, reading database",
			zap.String("pet_id", petID),
			zap.Error(err))
	}

	var dbToken sql.NullString
	err = r.db.QueryRowContext(ctx, `SELECT owner_push_token FROM pets WHERE pet_id = $1`, petID).Scan(&dbToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get push token: %w", err)
	}
	if !dbToken.Valid || dbToken.String == "" {
		return "", nil
	}

	if err := r.redisClient.Set(ctx, key, dbToken.String, pushTokenCacheTTL).Err(); err != nil {
		r.logger.Debug("Failed to cache push token", zap.String("pet_id", petID), zap.Error(err))
	}
	return dbToken.String, nil
}

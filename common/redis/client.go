package redis

import (
	"context"

	"github.com/go-redis/redis/v8"

	"vitalpaw-monitor/common/config"
)

// Client aliases the go-redis client.
type Client = redis.Client

// NewRedisClient creates a pooled client from cfg. It does not dial.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(clientOptions(cfg))
}

func clientOptions(cfg *config.RedisConfig) *redis.Options {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts
}

// Ping checks connectivity.
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// PoolStats reports open and idle connections.
func PoolStats(client *redis.Client) (total, idle int64) {
	s := client.PoolStats()
	return int64(s.TotalConns), int64(s.IdleConns)
}

// Close closes the client.
func Close(client *redis.Client) error {
	return client.Close()
}

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalpaw-monitor/common/config"
)

func TestClientOptions(t *testing.T) {
	opts := clientOptions(&config.RedisConfig{
		Addr:         "redis:6379",
		DB:           2,
		PoolSize:     20,
		MinIdleConns: 4,
		ReadTimeout:  750 * time.Millisecond,
	})
	assert.Equal(t, "redis:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 20, opts.PoolSize)
	assert.Equal(t, 4, opts.MinIdleConns)
	assert.Equal(t, 750*time.Millisecond, opts.ReadTimeout)
	assert.Zero(t, opts.DialTimeout, "unset values are left to the client defaults")
}

func TestPoolStats(t *testing.T) {
	client := setupRedis(t)
	require.NoError(t, Ping(context.Background(), client))

	total, idle := PoolStats(client)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, int64(1), idle)
}

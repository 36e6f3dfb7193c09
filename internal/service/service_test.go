package service

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vitalpaw-monitor/internal/config"
	"vitalpaw-monitor/internal/notification"
	"vitalpaw-monitor/internal/sink"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Sink.Type = config.SinkRedis
	cfg.Sink.Stream = "vitalpaw:alerts"
	cfg.Sink.StreamMaxLen = 1000
	cfg.Sink.KafkaBrokers = []string{"localhost:9092"}
	cfg.Sink.KafkaTopic = "vitalpaw.alerts"
	cfg.Thresholds.MinHeartRate = 55
	cfg.Thresholds.MaxHeartRate = 130
	cfg.Thresholds.MinTemperature = 37.0
	cfg.Thresholds.MaxTemperature = 39.0
	cfg.Motion.WindowSize = 600
	cfg.Motion.FallThreshold = 18
	cfg.Motion.QuiescentThreshold = 4
	cfg.Motion.ImmobileThreshold = 0.8
	cfg.Motion.IdleReset = time.Minute
	return cfg
}

func TestNewAlertSink(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := testConfig()

	s, err := newAlertSink(cfg, rdb)
	require.NoError(t, err)
	assert.IsType(t, &sink.RedisStreamSink{}, s)

	cfg.Sink.Type = config.SinkKafka
	s, err = newAlertSink(cfg, rdb)
	require.NoError(t, err)
	assert.IsType(t, &sink.KafkaSink{}, s)
	require.NoError(t, s.Close())

	cfg.Sink.Type = config.SinkNone
	s, err = newAlertSink(cfg, rdb)
	require.NoError(t, err)
	assert.IsType(t, sink.Nop{}, s)

	cfg.Sink.Type = "rabbitmq"
	_, err = newAlertSink(cfg, rdb)
	assert.Error(t, err)
}

func TestNewPushGateway(t *testing.T) {
	cfg := testConfig()

	gw := newPushGateway(cfg, nil, zap.NewNop())
	assert.IsType(t, notification.LogGateway{}, gw)

	cfg.Push.ServerKey = "server-key"
	cfg.Push.Endpoint = "http://localhost/fcm/send"
	cfg.Push.Timeout = time.Second
	gw = newPushGateway(cfg, nil, zap.NewNop())
	assert.IsType(t, &notification.FCMClient{}, gw)
}

func TestConfigMapping(t *testing.T) {
	cfg := testConfig()

	th := defaultThresholds(cfg)
	assert.Equal(t, "default", th.Breed)
	assert.Equal(t, 55, th.MinHeartRate)
	assert.Equal(t, 39.0, th.MaxTemperature)
	assert.NoError(t, th.Validate())

	mc := motionConfig(cfg)
	assert.Equal(t, 600, mc.WindowSize)
	assert.Equal(t, 18.0, mc.FallThreshold)
	assert.Equal(t, time.Minute, mc.IdleReset)
}

func TestBuildHealth(t *testing.T) {
	h := buildHealth(true, map[string]int64{"processed": 5})
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, int64(5), h.Counters["processed"])

	h = buildHealth(false, nil)
	assert.Equal(t, "degraded", h.Status)
	assert.False(t, h.MQTTConnected)
}

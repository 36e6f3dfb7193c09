package service

import (
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"vitalpaw-monitor/internal/breaker"
	"vitalpaw-monitor/internal/config"
	"vitalpaw-monitor/internal/dispatcher"
	"vitalpaw-monitor/internal/models"
	"vitalpaw-monitor/internal/motion"
	"vitalpaw-monitor/internal/notification"
	"vitalpaw-monitor/internal/sink"
)

func newAlertSink(cfg *config.Config, redisClient *redis.Client) (sink.AlertSink, error) {
	switch cfg.Sink.Type {
	case config.SinkRedis:
		return sink.NewRedisStreamSink(redisClient, cfg.Sink.Stream, cfg.Sink.StreamMaxLen), nil
	case config.SinkKafka:
		return sink.NewKafkaSink(cfg.Sink.KafkaBrokers, cfg.Sink.KafkaTopic), nil
	case config.SinkNone, "":
		return sink.Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown alert sink %q", cfg.Sink.Type)
	}
}

func newPushGateway(cfg *config.Config, br *breaker.Breaker, logger *zap.Logger) dispatcher.PushGateway {
	if cfg.Push.ServerKey == "" {
		logger.Warn("PUSH_SERVER_KEY not set, push notifications are logged only")
		return notification.LogGateway{Logger: logger}
	}
	return notification.NewFCMClient(cfg.Push.Endpoint, cfg.Push.ServerKey, cfg.Push.Timeout, br, logger)
}

func defaultThresholds(cfg *config.Config) models.Thresholds {
	return models.Thresholds{
		Breed:          "default",
		MinHeartRate:   cfg.Thresholds.MinHeartRate,
		MaxHeartRate:   cfg.Thresholds.MaxHeartRate,
		MinTemperature: cfg.Thresholds.MinTemperature,
		MaxTemperature: cfg.Thresholds.MaxTemperature,
	}
}

func motionConfig(cfg *config.Config) motion.Config {
	return motion.Config{
		WindowSize:         cfg.Motion.WindowSize,
		FallThreshold:      cfg.Motion.FallThreshold,
		QuiescentThreshold: cfg.Motion.QuiescentThreshold,
		ImmobileThreshold:  cfg.Motion.ImmobileThreshold,
		IdleReset:          cfg.Motion.IdleReset,
	}
}

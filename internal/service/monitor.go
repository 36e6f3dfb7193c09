// Package service wires the monitor's components together and owns their
// lifecycle.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"vitalpaw-monitor/common/database"
	mqttcommon "vitalpaw-monitor/common/mqtt"
	rediscommon "vitalpaw-monitor/common/redis"
	"vitalpaw-monitor/internal/breaker"
	"vitalpaw-monitor/internal/broadcast"
	"vitalpaw-monitor/internal/cache"
	"vitalpaw-monitor/internal/config"
	"vitalpaw-monitor/internal/consumer"
	"vitalpaw-monitor/internal/dispatcher"
	"vitalpaw-monitor/internal/httpapi"
	"vitalpaw-monitor/internal/motion"
	"vitalpaw-monitor/internal/queue"
	"vitalpaw-monitor/internal/repository"
	"vitalpaw-monitor/internal/sink"
	"vitalpaw-monitor/internal/thresholds"
)

// MonitorService runs the telemetry pipeline and its HTTP surface.
type MonitorService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client
	logger      *zap.Logger

	queue      *queue.Sharded
	tracker    *motion.Tracker
	resolver   *thresholds.Resolver
	dispatcher *dispatcher.Dispatcher
	alertSink  sink.AlertSink
	hub        *broadcast.Hub
	consumer   *consumer.MQTTConsumer
	pool       *consumer.WorkerPool
	server     *http.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitorService connects to PostgreSQL, Redis and the MQTT broker and
// builds the pipeline.
func NewMonitorService(cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	// 1. storage
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, err
	}

	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 2. telemetry broker
	mqttClient, err := mqttcommon.NewClient(&cfg.MQTT.MQTTConfig, logger)
	if err != nil {
		rediscommon.Close(redisClient)
		database.Close(db)
		return nil, err
	}

	// 3. alert sink
	alertSink, err := newAlertSink(cfg, redisClient)
	if err != nil {
		mqttClient.Disconnect()
		rediscommon.Close(redisClient)
		database.Close(db)
		return nil, err
	}

	s := &MonitorService{
		config:      cfg,
		db:          db,
		redisClient: redisClient,
		mqttClient:  mqttClient,
		logger:      logger,
		alertSink:   alertSink,
	}
	s.build()
	return s, nil
}

func (s *MonitorService) build() {
	cfg := s.config

	// repositories
	petRepo := repository.NewPetRepository(s.db, s.logger)
	alertRepo := repository.NewAlertRepository(s.db, s.logger)
	tokenRepo := repository.NewPushTokenRepository(s.db, s.redisClient, cfg.Cache.PushTokenKeyPrefix, s.logger)

	// caches
	cacheManager := cache.NewCacheManager(cfg, s.redisClient, s.logger)
	dedupe := cache.NewDedupeStore(cfg, s.redisClient)

	// detection
	breakerCfg := breaker.Config{MaxFailures: cfg.Breaker.MaxFailures, ResetTimeout: cfg.Breaker.ResetTimeout}
	registry := thresholds.NewHTTPBreedRegistry(cfg.Thresholds.RegistryURL, cfg.Thresholds.Timeout,
		breaker.New("breed-registry", breakerCfg, s.logger), s.logger)
	s.resolver = thresholds.NewResolver(registry, defaultThresholds(cfg), cfg.Thresholds.Timeout, cfg.Thresholds.CacheTTL, s.logger)
	s.tracker = motion.NewTracker(motionConfig(cfg))

	// delivery
	push := newPushGateway(cfg, breaker.New("push", breakerCfg, s.logger), s.logger)
	s.hub = broadcast.NewHub(cfg.HTTP.SessionBuffer, s.logger)
	s.dispatcher = dispatcher.NewDispatcher(alertRepo, tokenRepo, push, s.hub, s.alertSink, dedupe, s.logger)

	// ingestion
	s.queue = queue.NewSharded(cfg.Monitor.Workers, cfg.Monitor.QueueCapacity, cfg.Monitor.DropPolicy, s.logger)
	s.consumer = consumer.NewMQTTConsumer(cfg.MQTT.Topics, cfg.MQTT.QoS, s.mqttClient, s.queue, s.logger)
	s.pool = consumer.NewWorkerPool(s.queue, consumer.WorkerDeps{
		Pets:        petRepo,
		Resolver:    s.resolver,
		Tracker:     s.tracker,
		Broadcaster: s.hub,
		Snapshots:   cacheManager,
		Dispatcher:  s.dispatcher,
	}, consumer.WorkerOptions{
		FallbackBreed: cfg.Monitor.FallbackBreed,
		CallTimeout:   cfg.Monitor.CallTimeout,
	}, s.logger)

	// http
	router := httpapi.NewRouter(s.logger)
	router.RegisterHealthRoutes(httpapi.NewHealthHandler(s.Health))
	router.RegisterPetRoutes(httpapi.NewPetHandler(cacheManager, alertRepo, s.hub, s.logger))
	s.server = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Start launches the workers, the subscription, the HTTP server and the
// housekeeping tickers.
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting monitor service",
		zap.Int("workers", s.config.Monitor.Workers),
		zap.String("drop_policy", s.config.Monitor.DropPolicy),
		zap.String("http_addr", s.config.HTTP.Addr),
	)

	bg, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.pool.Start(bg)
	if err := s.consumer.Start(bg); err != nil {
		cancel()
		s.pool.Drain(s.config.Monitor.DrainGrace)
		return fmt.Errorf("failed to start MQTT consumer: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	s.runEvery(bg, s.config.Monitor.StatsInterval, s.logStats)
	s.runEvery(bg, s.config.Monitor.EvictInterval, func() {
		if n := s.tracker.EvictIdle(); n > 0 {
			s.logger.Debug("Evicted idle motion state", zap.Int("devices", n))
		}
	})
	return nil
}

func (s *MonitorService) runEvery(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// Stop shuts down in pipeline order: stop intake, drain queued readings,
// close viewers and the HTTP server, then release connections. Drain returns
// only after in-flight readings finish, so no dispatch is still using Redis
// or the database when they are closed.
func (s *MonitorService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping monitor service")

	if err := s.consumer.Stop(); err != nil {
		s.logger.Error("Failed to stop MQTT consumer", zap.Error(err))
	}
	if !s.pool.Drain(s.config.Monitor.DrainGrace) {
		s.logger.Warn("Shutdown abandoned queued readings", zap.Int("depth", s.queue.Stats().Depth))
	}

	s.hub.Close()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shut down HTTP server", zap.Error(err))
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	s.logStats()

	if err := s.alertSink.Close(); err != nil {
		s.logger.Error("Failed to close alert sink", zap.Error(err))
	}
	s.mqttClient.Disconnect()
	if err := rediscommon.Close(s.redisClient); err != nil {
		s.logger.Error("Failed to close redis", zap.Error(err))
	}
	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}
	return nil
}

// Health reports broker connectivity and the pipeline counters.
func (s *MonitorService) Health() httpapi.Health {
	return buildHealth(s.mqttClient.IsConnected(), s.counters())
}

func (s *MonitorService) counters() map[string]int64 {
	q := s.queue.Stats()
	in := s.consumer.Stats()
	w := s.pool.Stats()
	d := s.dispatcher.Stats()
	r := s.resolver.Stats()
	h := s.hub.Stats()
	redisTotal, redisIdle := rediscommon.PoolStats(s.redisClient)
	return map[string]int64{
		"received":           in.Received,
		"decode_errors":      in.DecodeErrors,
		"queue_enqueued":     q.Enqueued,
		"queue_dropped":      q.Dropped,
		"queue_depth":        int64(q.Depth),
		"processed":          w.Processed,
		"unknown_devices":    w.UnknownDevices,
		"breed_fallbacks":    w.BreedFallbacks,
		"alerts_raised":      w.AlertsRaised,
		"dispatch_failures":  w.DispatchFailures,
		"panics":             w.Panics,
		"alerts_dispatched":  d.Dispatched,
		"alerts_duplicate":   d.Duplicates,
		"push_sent":          d.PushSent,
		"push_failures":      d.PushFailures,
		"threshold_lookups":  r.Lookups,
		"threshold_fallback": r.Fallbacks,
		"live_sessions":      int64(h.Sessions),
		"live_dropped":       h.Dropped,
		"tracked_devices":    int64(s.tracker.Len()),
		"lookup_failures":    w.LookupFailures,
		"abandoned":          w.Abandoned,
		"redis_conns":        redisTotal,
		"redis_idle_conns":   redisIdle,
	}
}

func buildHealth(connected bool, counters map[string]int64) httpapi.Health {
	status := "ok"
	if !connected {
		status = "degraded"
	}
	return httpapi.Health{
		Status:        status,
		MQTTConnected: connected,
		Counters:      counters,
	}
}

func (s *MonitorService) logStats() {
	c := s.counters()
	fields := make([]zap.Field, 0, len(c))
	for k, v := range c {
		fields = append(fields, zap.Int64(k, v))
	}
	if c["queue_dropped"] > 0 {
		s.logger.Warn("Pipeline stats (readings dropped)", fields...)
		return
	}
	s.logger.Info("Pipeline stats", fields...)
}

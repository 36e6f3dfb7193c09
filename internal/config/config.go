package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"vitalpaw-monitor/common/config"
)

// Drop policies for a full ingestion shard.
const (
	DropOldest = "drop-oldest"
	DropNewest = "drop-newest"
)

// Alert sink types.
const (
	SinkRedis = "redis"
	SinkKafka = "kafka"
	SinkNone  = "none"
)

// Config is the monitor service configuration.
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     struct {
		config.MQTTConfig
		Topics []string // wildcard topics, last segment is the device id
	}

	Monitor struct {
		Workers       int           // one shard per worker
		QueueCapacity int           // per shard
		DropPolicy    string        // drop-oldest or drop-newest
		DrainGrace    time.Duration // how long shutdown waits for queued readings
		FallbackBreed string        // used when a pet's breed cannot be resolved
		CallTimeout   time.Duration // pet registry lookups and snapshot writes
		StatsInterval time.Duration
		EvictInterval time.Duration // motion state housekeeping
	}

	Motion struct {
		WindowSize         int
		FallThreshold      float64
		QuiescentThreshold float64
		ImmobileThreshold  float64
		IdleReset          time.Duration
	}

	Thresholds struct {
		RegistryURL    string
		Timeout        time.Duration
		CacheTTL       time.Duration
		MinHeartRate   int
		MaxHeartRate   int
		MinTemperature float64
		MaxTemperature float64
	}

	Push struct {
		Endpoint  string
		ServerKey string // empty disables delivery
		Timeout   time.Duration
	}

	Breaker struct {
		MaxFailures  int
		ResetTimeout time.Duration
	}

	Cache struct {
		RealtimeKeyPrefix  string
		RealtimeTTL        time.Duration
		PushTokenKeyPrefix string
		DedupeKeyPrefix    string
		DedupeTTL          time.Duration
	}

	Sink struct {
		Type         string
		Stream       string
		StreamMaxLen int64
		KafkaBrokers []string
		KafkaTopic   string
	}

	HTTP struct {
		Addr          string
		SessionBuffer int // per websocket session
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load reads configuration from the environment, after loading .env if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "vitalpaw")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)
	cfg.Redis.PoolSize = getEnvInt("REDIS_POOL_SIZE", 0)
	cfg.Redis.MinIdleConns = getEnvInt("REDIS_MIN_IDLE_CONNS", 0)
	cfg.Redis.DialTimeout = getEnvDuration("REDIS_DIAL_TIMEOUT", 0)
	cfg.Redis.ReadTimeout = getEnvDuration("REDIS_READ_TIMEOUT", 0)
	cfg.Redis.WriteTimeout = getEnvDuration("REDIS_WRITE_TIMEOUT", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "vitalpaw-monitor")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = byte(getEnvInt("MQTT_QOS", 1))
	cfg.MQTT.Topics = getEnvList("MQTT_TOPICS", []string{"pet/biometric/+", "vitalpaw/sensors/+"})

	cfg.Monitor.Workers = getEnvInt("MONITOR_WORKERS", 8)
	cfg.Monitor.QueueCapacity = getEnvInt("MONITOR_QUEUE_CAPACITY", 1024)
	cfg.Monitor.DropPolicy = getEnv("MONITOR_DROP_POLICY", DropOldest)
	cfg.Monitor.DrainGrace = getEnvDuration("MONITOR_DRAIN_GRACE", 10*time.Second)
	cfg.Monitor.FallbackBreed = getEnv("MONITOR_FALLBACK_BREED", "Labrador")
	cfg.Monitor.CallTimeout = getEnvDuration("MONITOR_CALL_TIMEOUT", 2*time.Second)
	cfg.Monitor.StatsInterval = getEnvDuration("MONITOR_STATS_INTERVAL", time.Minute)
	cfg.Monitor.EvictInterval = getEnvDuration("MONITOR_EVICT_INTERVAL", time.Minute)

	cfg.Motion.WindowSize = getEnvInt("MOTION_WINDOW_SIZE", 3000)
	cfg.Motion.FallThreshold = getEnvFloat("MOTION_FALL_THRESHOLD", 20.0)
	cfg.Motion.QuiescentThreshold = getEnvFloat("MOTION_QUIESCENT_THRESHOLD", 5.0)
	cfg.Motion.ImmobileThreshold = getEnvFloat("MOTION_IMMOBILE_THRESHOLD", 1.0)
	cfg.Motion.IdleReset = getEnvDuration("MOTION_IDLE_RESET", 5*time.Minute)

	cfg.Thresholds.RegistryURL = getEnv("BREED_REGISTRY_URL", "http://localhost:8080")
	cfg.Thresholds.Timeout = getEnvDuration("BREED_REGISTRY_TIMEOUT", 2*time.Second)
	cfg.Thresholds.CacheTTL = getEnvDuration("THRESHOLD_CACHE_TTL", 10*time.Minute)
	cfg.Thresholds.MinHeartRate = getEnvInt("DEFAULT_MIN_HEART_RATE", 60)
	cfg.Thresholds.MaxHeartRate = getEnvInt("DEFAULT_MAX_HEART_RATE", 120)
	cfg.Thresholds.MinTemperature = getEnvFloat("DEFAULT_MIN_TEMPERATURE", 36.5)
	cfg.Thresholds.MaxTemperature = getEnvFloat("DEFAULT_MAX_TEMPERATURE", 39.5)

	cfg.Push.Endpoint = getEnv("PUSH_ENDPOINT", "https://fcm.googleapis.com/fcm/send")
	cfg.Push.ServerKey = getEnv("PUSH_SERVER_KEY", "")
	cfg.Push.Timeout = getEnvDuration("PUSH_TIMEOUT", 5*time.Second)

	cfg.Breaker.MaxFailures = getEnvInt("BREAKER_MAX_FAILURES", 5)
	cfg.Breaker.ResetTimeout = getEnvDuration("BREAKER_RESET_TIMEOUT", 30*time.Second)

	cfg.Cache.RealtimeKeyPrefix = getEnv("CACHE_REALTIME_PREFIX", "vitalpaw:realtime:")
	cfg.Cache.RealtimeTTL = getEnvDuration("CACHE_REALTIME_TTL", 10*time.Minute)
	cfg.Cache.PushTokenKeyPrefix = getEnv("CACHE_PUSH_TOKEN_PREFIX", "device_token:")
	cfg.Cache.DedupeKeyPrefix = getEnv("CACHE_DEDUPE_PREFIX", "vitalpaw:dispatched:")
	cfg.Cache.DedupeTTL = getEnvDuration("CACHE_DEDUPE_TTL", 24*time.Hour)

	cfg.Sink.Type = getEnv("ALERT_SINK", SinkRedis)
	cfg.Sink.Stream = getEnv("ALERT_STREAM", "vitalpaw:alerts")
	cfg.Sink.StreamMaxLen = int64(getEnvInt("ALERT_STREAM_MAXLEN", 100000))
	cfg.Sink.KafkaBrokers = getEnvList("KAFKA_BROKERS", []string{"localhost:9092"})
	cfg.Sink.KafkaTopic = getEnv("KAFKA_ALERT_TOPIC", "vitalpaw.alerts")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8090")
	cfg.HTTP.SessionBuffer = getEnvInt("WS_SESSION_BUFFER", 32)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if len(c.MQTT.Topics) == 0 {
		return fmt.Errorf("MQTT_TOPICS must name at least one topic")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("invalid MQTT_QOS %d", c.MQTT.QoS)
	}
	if c.Monitor.Workers <= 0 {
		return fmt.Errorf("MONITOR_WORKERS must be positive, got %d", c.Monitor.Workers)
	}
	if c.Monitor.QueueCapacity <= 0 {
		return fmt.Errorf("MONITOR_QUEUE_CAPACITY must be positive, got %d", c.Monitor.QueueCapacity)
	}
	switch c.Monitor.DropPolicy {
	case DropOldest, DropNewest:
	default:
		return fmt.Errorf("unknown MONITOR_DROP_POLICY %q", c.Monitor.DropPolicy)
	}
	if c.Monitor.FallbackBreed == "" {
		return fmt.Errorf("MONITOR_FALLBACK_BREED must not be empty")
	}
	if c.Motion.WindowSize <= 0 {
		return fmt.Errorf("MOTION_WINDOW_SIZE must be positive, got %d", c.Motion.WindowSize)
	}
	if c.Thresholds.Timeout <= 0 || c.Push.Timeout <= 0 || c.Monitor.CallTimeout <= 0 {
		return fmt.Errorf("remote call timeouts must be positive")
	}
	if c.Thresholds.MinHeartRate > c.Thresholds.MaxHeartRate ||
		c.Thresholds.MinTemperature > c.Thresholds.MaxTemperature {
		return fmt.Errorf("default thresholds have min above max")
	}
	switch c.Sink.Type {
	case SinkRedis, SinkNone:
	case SinkKafka:
		if len(c.Sink.KafkaBrokers) == 0 {
			return fmt.Errorf("ALERT_SINK=kafka requires KAFKA_BROKERS")
		}
	default:
		return fmt.Errorf("unknown ALERT_SINK %q", c.Sink.Type)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

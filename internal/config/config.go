package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	// Common
	Env      string `env:"ENV" envDefault:"local"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// API
	Port            string        `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`
	MetricsEnabled  bool          `env:"METRICS_ENABLED" envDefault:"true"`
	// Topics labeled individually in metrics; the rest count as "other".
	MetricsTopics []string `env:"METRICS_TOPICS" envDefault:"payment-processed,order-created,inventory-update,user-signup,shipping-status,system-alert"`
	// Ingestion
	InsertTimeout    time.Duration `env:"INSERT_TIMEOUT" envDefault:"5s"`
	ListDefaultLimit int           `env:"LIST_DEFAULT_LIMIT" envDefault:"10"`
	ListMaxLimit     int           `env:"LIST_MAX_LIMIT" envDefault:"1000"`
	// Storage: pg | redis | sqlite | memory
	Storage             string        `env:"STORAGE" envDefault:"pg"`
	StoreConnectTimeout time.Duration `env:"STORE_CONNECT_TIMEOUT" envDefault:"30s"`
	DatabaseURL         string        `env:"DATABASE_URL"`
	SQLitePath          string        `env:"SQLITE_PATH" envDefault:"events.db"`
	RedisAddr           string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword       string        `env:"REDIS_PASSWORD"`
	RedisDB             int           `env:"REDIS_DB" envDefault:"0"`
	RedisKeyPrefix      string        `env:"REDIS_KEY_PREFIX" envDefault:"events"`
	// Notifications (disabled when NATS_URL is empty)
	NATSURL           string `env:"NATS_URL"`
	NATSSubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"events.stored"`
	// Publisher
	TargetURL         string        `env:"TARGET_URL" envDefault:"http://aggregator:8080/publish"`
	ReplayProbability float64       `env:"REPLAY_PROBABILITY" envDefault:"0.3"`
	ReplayMemory      int           `env:"REPLAY_MEMORY" envDefault:"1000"`
	PublishRate       float64       `env:"PUBLISH_RATE" envDefault:"18"`
	PublishBurst      int           `env:"PUBLISH_BURST" envDefault:"1"`
	PublishCount      int           `env:"PUBLISH_COUNT" envDefault:"0"`
	StartDelay        time.Duration `env:"START_DELAY" envDefault:"10s"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5s"`
}

// Load reads environment variables and applies defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseDSN       string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL       string `env:"RABBITMQ_URL,required=true"`
	RedisURL          string `env:"REDIS_URL,required=true"`
	RateLimitPerSec   int    `env:"RATE_LIMIT_PER_SEC,default=100"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY,default=4"`
	APIPort           int    `env:"API_PORT,default=8080"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`
	LogFile           string `env:"LOG_FILE"`
	CacheTTLSec       int    `env:"CACHE_TTL_SEC,default=300"`
	WorkerMetricsPort int    `env:"WORKER_METRICS_PORT,default=9091"`

	DBMaxOpenConns       int `env:"DB_MAX_OPEN_CONNS,default=25"`
	DBMaxIdleConns       int `env:"DB_MAX_IDLE_CONNS,default=5"`
	DBConnMaxLifetimeSec int `env:"DB_CONN_MAX_LIFETIME_SEC,default=3600"`

	AirtableAPIURL          string `env:"AIRTABLE_API_URL,default=https://api.airtable.com/v0"`
	AirtableAPIKey          string `env:"AIRTABLE_API_KEY"`
	AirtableBaseID          string `env:"AIRTABLE_BASE_ID"`
	AirtableTable           string `env:"AIRTABLE_TABLE,default=Outbound Shipments"`
	AirtableSyncIntervalSec int    `env:"AIRTABLE_SYNC_INTERVAL_SEC,default=60"`
	AirtableSyncBatch       int    `env:"AIRTABLE_SYNC_BATCH,default=50"`
	AirtableRateLimitPerSec int    `env:"AIRTABLE_RATE_LIMIT_PER_SEC,default=5"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// AirtableEnabled reports whether enough credentials are set to run the sync.
func (c *Config) AirtableEnabled() bool {
	return strings.TrimSpace(c.AirtableAPIKey) != "" && strings.TrimSpace(c.AirtableBaseID) != ""
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

func (c *Config) DBConnMaxLifetime() time.Duration {
	return time.Duration(c.DBConnMaxLifetimeSec) * time.Second
}

func (c *Config) AirtableSyncInterval() time.Duration {
	return time.Duration(c.AirtableSyncIntervalSec) * time.Second
}

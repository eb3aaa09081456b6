// Package config provides configuration management for the twin miner.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "github.com/twin-miner/internal/errors"
	"github.com/twin-miner/internal/miner"
)

// Store backends selectable with MINER_STORE
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Mining   MiningConfig
	Notify   NotifyConfig
	Status   StatusConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration. URL, when set, wins over the
// individual fields.
type PostgresConfig struct {
	URL            string
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Enabled       bool
	Host          string
	Port          string
	Database      string
	User          string
	Password      string
	BatchSize     int
	FlushInterval time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// MiningConfig holds the search parameters
type MiningConfig struct {
	Store              string
	MemoryTargets      string
	Workers            int
	WorkerIDOffset     uint32
	BatchSize          uint64
	IdleInterval       time.Duration
	Weights            miner.Weights
	DiscoveryThreshold int
	ActiveCeiling      int
	VersionTag         string
	StoreTimeout       time.Duration
}

// NotifyConfig holds discovery webhook configuration
type NotifyConfig struct {
	Enabled       bool
	BaseURL       string
	Timeout       time.Duration
	QueueSize     int
	RatePerSecond float64
	Burst         int
}

// StatusConfig holds the status server configuration
type StatusConfig struct {
	Enabled bool
	Host    string
	Port    string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	weights, err := miner.ParseWeights(getEnv("MINER_WEIGHTS", miner.DefaultWeights.String()))
	if err != nil {
		return nil, apperrors.NewConfigError("MINER_WEIGHTS", err.Error())
	}

	config := &Config{
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				URL:            getEnv("DATABASE_URL", ""),
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "twin_miner"),
				User:           getEnv("POSTGRES_USER", "miner"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			ClickHouse: ClickHouseConfig{
				Enabled:       getEnvAsBool("CLICKHOUSE_ENABLED", false),
				Host:          getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:          getEnv("CLICKHOUSE_PORT", "9000"),
				Database:      getEnv("CLICKHOUSE_DB", "twin_miner"),
				User:          getEnv("CLICKHOUSE_USER", "default"),
				Password:      getEnv("CLICKHOUSE_PASSWORD", ""),
				BatchSize:     getEnvAsInt("CLICKHOUSE_BATCH_SIZE", 100),
				FlushInterval: getEnvAsDuration("CLICKHOUSE_FLUSH_INTERVAL", 5*time.Second),
			},
			Redis: RedisConfig{
				Enabled:        getEnvAsBool("REDIS_ENABLED", false),
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 10),
			},
		},
		Mining: MiningConfig{
			Store:              strings.ToLower(getEnv("MINER_STORE", StorePostgres)),
			MemoryTargets:      getEnv("MINER_MEMORY_TARGETS", ""),
			Workers:            getEnvAsInt("MINER_WORKERS", runtime.NumCPU()),
			WorkerIDOffset:     uint32(getEnvAsInt("MINER_WORKER_ID_OFFSET", 0)),
			BatchSize:          uint64(getEnvAsInt("MINER_BATCH_SIZE", 2_500_000)),
			IdleInterval:       getEnvAsDuration("MINER_IDLE_INTERVAL", 30*time.Second),
			Weights:            weights,
			DiscoveryThreshold: getEnvAsInt("MINER_DISCOVERY_THRESHOLD", int(miner.DefaultDiscoveryThreshold)),
			ActiveCeiling:      getEnvAsInt("MINER_ACTIVE_CEILING", int(miner.MaxScore)),
			VersionTag:         getEnv("MINER_VERSION_TAG", "v1"),
			StoreTimeout:       getEnvAsDuration("MINER_STORE_TIMEOUT", 10*time.Second),
		},
		Notify: NotifyConfig{
			Enabled:       getEnvAsBool("NOTIFY_ENABLED", true),
			BaseURL:       strings.TrimRight(getEnv("NOTIFY_BASE_URL", "http://localhost:3000"), "/"),
			Timeout:       getEnvAsDuration("NOTIFY_TIMEOUT", 10*time.Second),
			QueueSize:     getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			RatePerSecond: getEnvAsFloat("NOTIFY_RATE_PER_SECOND", 5),
			Burst:         getEnvAsInt("NOTIFY_BURST", 10),
		},
		Status: StatusConfig{
			Enabled: getEnvAsBool("STATUS_ENABLED", true),
			Host:    getEnv("STATUS_HOST", "0.0.0.0"),
			Port:    getEnv("STATUS_PORT", "9102"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects values the miner cannot run with
func (c *Config) Validate() error {
	m := c.Mining
	switch {
	case m.Store != StorePostgres && m.Store != StoreMemory:
		return apperrors.NewConfigError("MINER_STORE", fmt.Sprintf("unknown store %q", m.Store))
	case m.Workers < 1:
		return apperrors.NewConfigError("MINER_WORKERS", "must be at least 1")
	case m.BatchSize == 0:
		return apperrors.NewConfigError("MINER_BATCH_SIZE", "must be positive")
	case m.IdleInterval <= 0:
		return apperrors.NewConfigError("MINER_IDLE_INTERVAL", "must be positive")
	case m.DiscoveryThreshold < 0 || m.DiscoveryThreshold > int(miner.MaxScore):
		return apperrors.NewConfigError("MINER_DISCOVERY_THRESHOLD", fmt.Sprintf("must be within 0..%d", miner.MaxScore))
	case m.ActiveCeiling < 1 || m.ActiveCeiling > int(miner.MaxScore):
		return apperrors.NewConfigError("MINER_ACTIVE_CEILING", fmt.Sprintf("must be within 1..%d", miner.MaxScore))
	case m.VersionTag == "":
		return apperrors.NewConfigError("MINER_VERSION_TAG", "must not be empty")
	case m.StoreTimeout <= 0:
		return apperrors.NewConfigError("MINER_STORE_TIMEOUT", "must be positive")
	}

	if _, err := miner.NewWeights(m.Weights.Ints()); err != nil {
		return apperrors.NewConfigError("MINER_WEIGHTS", err.Error())
	}

	if c.Notify.Enabled {
		u, err := url.Parse(c.Notify.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return apperrors.NewConfigError("NOTIFY_BASE_URL", fmt.Sprintf("not an absolute URL: %q", c.Notify.BaseURL))
		}
		if c.Notify.QueueSize < 1 {
			return apperrors.NewConfigError("NOTIFY_QUEUE_SIZE", "must be at least 1")
		}
		if c.Notify.RatePerSecond <= 0 || c.Notify.Burst < 1 {
			return apperrors.NewConfigError("NOTIFY_RATE_PER_SECOND", "rate and burst must be positive")
		}
	}

	return nil
}

// ConnString returns the pgx connection string
func (p PostgresConfig) ConnString() string {
	if p.URL != "" {
		return p.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable pool_max_conns=%d",
		p.Host, p.Port, p.User, p.Password, p.Database, p.MaxConnections,
	)
}

// MigrationURL returns the URL form used by golang-migrate
func (p PostgresConfig) MigrationURL() string {
	if p.URL != "" {
		return p.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     p.Host + ":" + p.Port,
		Path:     p.Database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Addr returns the host:port pair
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Addr returns the host:port pair
func (c ClickHouseConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Addr returns the host:port pair
func (s StatusConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(strings.ReplaceAll(valueStr, "_", ""))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a bool with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

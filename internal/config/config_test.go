package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/twin-miner/internal/miner"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "testhost")
	t.Setenv("MINER_BATCH_SIZE", "1_000")
	t.Setenv("MINER_IDLE_INTERVAL", "5s")
	t.Setenv("MINER_WEIGHTS", "0,1,2,3,4,5,6,7")
	t.Setenv("NOTIFY_BASE_URL", "http://api.local:3000/")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Database.Postgres.Host != "testhost" {
		t.Errorf("Database.Postgres.Host = %v, want %v", cfg.Database.Postgres.Host, "testhost")
	}
	if cfg.Mining.BatchSize != 1000 {
		t.Errorf("Mining.BatchSize = %v, want %v", cfg.Mining.BatchSize, 1000)
	}
	if cfg.Mining.IdleInterval != 5*time.Second {
		t.Errorf("Mining.IdleInterval = %v, want %v", cfg.Mining.IdleInterval, 5*time.Second)
	}
	if cfg.Mining.Weights != (miner.Weights{0, 1, 2, 3, 4, 5, 6, 7}) {
		t.Errorf("Mining.Weights = %v", cfg.Mining.Weights)
	}
	if cfg.Notify.BaseURL != "http://api.local:3000" {
		t.Errorf("Notify.BaseURL = %v, want trailing slash trimmed", cfg.Notify.BaseURL)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	m := cfg.Mining
	if m.BatchSize != 2_500_000 {
		t.Errorf("BatchSize = %v, want 2500000", m.BatchSize)
	}
	if m.IdleInterval != 30*time.Second {
		t.Errorf("IdleInterval = %v, want 30s", m.IdleInterval)
	}
	if m.Weights != miner.DefaultWeights {
		t.Errorf("Weights = %v, want %v", m.Weights, miner.DefaultWeights)
	}
	if m.DiscoveryThreshold != 224 {
		t.Errorf("DiscoveryThreshold = %v, want 224", m.DiscoveryThreshold)
	}
	if m.ActiveCeiling != 255 {
		t.Errorf("ActiveCeiling = %v, want 255", m.ActiveCeiling)
	}
	if m.Store != StorePostgres {
		t.Errorf("Store = %v, want %v", m.Store, StorePostgres)
	}
}

func TestLoadConfig_RejectsBadWeights(t *testing.T) {
	t.Setenv("MINER_WEIGHTS", "7,7,3,1,0,2,4,6")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for repeated weight")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Mining: MiningConfig{
				Store:              StoreMemory,
				Workers:            2,
				BatchSize:          10,
				IdleInterval:       time.Second,
				Weights:            miner.DefaultWeights,
				DiscoveryThreshold: 224,
				ActiveCeiling:      255,
				VersionTag:         "v1",
				StoreTimeout:       time.Second,
			},
			Notify: NotifyConfig{
				Enabled:       true,
				BaseURL:       "http://localhost:3000",
				QueueSize:     1,
				RatePerSecond: 1,
				Burst:         1,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantKey string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown store", mutate: func(c *Config) { c.Mining.Store = "sqlite" }, wantKey: "MINER_STORE"},
		{name: "zero workers", mutate: func(c *Config) { c.Mining.Workers = 0 }, wantKey: "MINER_WORKERS"},
		{name: "zero batch", mutate: func(c *Config) { c.Mining.BatchSize = 0 }, wantKey: "MINER_BATCH_SIZE"},
		{name: "threshold above max", mutate: func(c *Config) { c.Mining.DiscoveryThreshold = 256 }, wantKey: "MINER_DISCOVERY_THRESHOLD"},
		{name: "zero ceiling", mutate: func(c *Config) { c.Mining.ActiveCeiling = 0 }, wantKey: "MINER_ACTIVE_CEILING"},
		{name: "duplicate weights", mutate: func(c *Config) { c.Mining.Weights = miner.Weights{1, 1, 2, 3, 4, 5, 6, 7} }, wantKey: "MINER_WEIGHTS"},
		{name: "relative notify url", mutate: func(c *Config) { c.Notify.BaseURL = "localhost" }, wantKey: "NOTIFY_BASE_URL"},
		{name: "notify disabled ignores url", mutate: func(c *Config) { c.Notify.Enabled = false; c.Notify.BaseURL = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantKey == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantKey) {
				t.Fatalf("Validate() error = %v, want mention of %s", err, tt.wantKey)
			}
		})
	}
}

func TestPostgresConfig_ConnString(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: "5432", User: "miner", Password: "secret", Database: "twin", MaxConnections: 4}

	if got := p.ConnString(); !strings.Contains(got, "host=db") || !strings.Contains(got, "pool_max_conns=4") {
		t.Errorf("ConnString() = %v", got)
	}
	if got, want := p.MigrationURL(), "postgres://miner:secret@db:5432/twin?sslmode=disable"; got != want {
		t.Errorf("MigrationURL() = %v, want %v", got, want)
	}

	p.URL = "postgres://elsewhere/db"
	if p.ConnString() != p.URL || p.MigrationURL() != p.URL {
		t.Error("DATABASE_URL should take precedence")
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_KEY",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "NONEXISTENT_KEY",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				if err := os.Setenv(tt.key, tt.envValue); err != nil {
					t.Fatalf("Failed to set env var: %v", err)
				}
				defer func() {
					_ = os.Unsetenv(tt.key)
				}()
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvTypedHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "not-a-number")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_FLOAT", "2.5")
	t.Setenv("TEST_DURATION", "1m")

	if got := getEnvAsInt("TEST_INT", 7); got != 7 {
		t.Errorf("getEnvAsInt() = %v, want fallback 7", got)
	}
	if got := getEnvAsBool("TEST_BOOL", false); !got {
		t.Error("getEnvAsBool() = false, want true")
	}
	if got := getEnvAsFloat("TEST_FLOAT", 1); got != 2.5 {
		t.Errorf("getEnvAsFloat() = %v, want 2.5", got)
	}
	if got := getEnvAsDuration("TEST_DURATION", time.Second); got != time.Minute {
		t.Errorf("getEnvAsDuration() = %v, want 1m", got)
	}
}

package storage

import (
	"context"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/twin-miner/internal/config"
)

// testContext creates a context with timeout for tests
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testPostgresConfig points integration tests at a local database
func testPostgresConfig() *config.PostgresConfig {
	return &config.PostgresConfig{
		URL:            os.Getenv("TEST_DATABASE_URL"),
		Host:           envOr("POSTGRES_HOST", "localhost"),
		Port:           envOr("POSTGRES_PORT", "5432"),
		Database:       envOr("POSTGRES_DB", "twin_miner"),
		User:           envOr("POSTGRES_USER", "miner"),
		Password:       envOr("POSTGRES_PASSWORD", "miner_dev_password"),
		MaxConnections: 10,
	}
}

// testClickHouseConfig points integration tests at a local ClickHouse
func testClickHouseConfig() *config.ClickHouseConfig {
	return &config.ClickHouseConfig{
		Host:     envOr("CLICKHOUSE_HOST", "localhost"),
		Port:     envOr("CLICKHOUSE_PORT", "9000"),
		Database: envOr("CLICKHOUSE_DB", "twin_miner"),
		User:     envOr("CLICKHOUSE_USER", "default"),
		Password: envOr("CLICKHOUSE_PASSWORD", "clickhouse_dev_password"),
	}
}

// assertReplacementChain checks that the applied updates of one target form a
// single chain from initial to final: every write replaced exactly the write
// applied before it.
func assertReplacementChain(t *testing.T, replaced map[uint8]uint8, initial, final uint8) {
	t.Helper()

	scores := make([]int, 0, len(replaced))
	for s := range replaced {
		scores = append(scores, int(s))
	}
	sort.Ints(scores)

	prev := initial
	for _, s := range scores {
		if replaced[uint8(s)] != prev {
			t.Errorf("update to %d replaced %d, want %d", s, replaced[uint8(s)], prev)
		}
		prev = uint8(s)
	}
	if prev != final {
		t.Errorf("last applied update = %d, want %d", prev, final)
	}
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/twin-miner/internal/errors"
)

// advanceCursor only ever moves a cursor forward, so a slow save from an
// earlier batch cannot rewind a newer one.
var advanceCursor = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local proposed = tonumber(ARGV[1])
if proposed > current then
	redis.call('SET', KEYS[1], ARGV[1])
	return 1
end
return 0
`)

// SequenceCursor persists the next unsearched sequence number of every worker
// so a restarted miner resumes its keyspace instead of starting over. Cursors
// are namespaced by version hash since a new version is a new keyspace.
type SequenceCursor struct {
	client  *redis.Client
	version string
}

// NewSequenceCursor creates a cursor store for one version hash
func NewSequenceCursor(cache *RedisCache, version string) *SequenceCursor {
	return &SequenceCursor{client: cache.Client(), version: version}
}

// Key returns the Redis key holding a worker's cursor
func (c *SequenceCursor) Key(workerID uint32) string {
	return fmt.Sprintf("miner:cursor:%s:%d", c.version, workerID)
}

// Load returns the saved cursor, or 0 when the worker has never saved one
func (c *SequenceCursor) Load(ctx context.Context, workerID uint32) (uint64, error) {
	value, err := c.client.Get(ctx, c.Key(workerID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, apperrors.NewCacheError("load cursor", err)
	}

	next, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, apperrors.NewCacheError("load cursor", fmt.Errorf("corrupt cursor %q: %w", value, err))
	}
	return next, nil
}

// Save advances the cursor to next unless a larger value is already stored
func (c *SequenceCursor) Save(ctx context.Context, workerID uint32, next uint64) error {
	err := advanceCursor.Run(ctx, c.client, []string{c.Key(workerID)}, strconv.FormatUint(next, 10)).Err()
	if err != nil {
		return apperrors.NewCacheError("save cursor", err)
	}
	return nil
}

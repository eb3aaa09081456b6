package worker

import (
	"context"
	"time"

	apperrors "github.com/twin-miner/internal/errors"
	"github.com/twin-miner/internal/logging"
	"github.com/twin-miner/internal/miner"
)

// CachedTarget is a worker-local view of an active target with its pattern
// compiled for scoring.
type CachedTarget struct {
	ID      string
	Pattern miner.Pattern
	Score   uint8
}

// TargetCache holds the active targets of one worker between refreshes. It is
// owned by a single goroutine and is not safe for concurrent use.
type TargetCache struct {
	store    TargetStore
	timeout  time.Duration
	logger   *logging.Logger
	targets  []CachedTarget
	reported map[string]bool
}

// NewTargetCache creates an empty cache backed by store
func NewTargetCache(store TargetStore, timeout time.Duration, logger *logging.Logger) *TargetCache {
	return &TargetCache{
		store:    store,
		timeout:  timeout,
		logger:   logger,
		reported: make(map[string]bool),
	}
}

// Refresh replaces the cache with the store's active targets. Targets whose
// pattern cannot be scored are left out and reported once. On a store error
// the cache is emptied.
func (c *TargetCache) Refresh(ctx context.Context) ([]CachedTarget, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.store.ListActiveTargets(ctx)
	if err != nil {
		c.targets = c.targets[:0]
		return nil, apperrors.NewStoreError("list active targets", err)
	}

	targets := c.targets[:0]
	for _, row := range rows {
		pattern, err := miner.ParsePattern(row.Pattern)
		if err != nil {
			if !c.reported[row.ID] {
				c.reported[row.ID] = true
				c.logger.WithError(apperrors.NewMalformedTargetError(row.ID, err)).Warn("Skipping target")
			}
			continue
		}
		targets = append(targets, CachedTarget{ID: row.ID, Pattern: pattern, Score: row.Score})
	}

	c.targets = targets
	return c.targets, nil
}

// Targets returns the cached targets. Entries may be modified through Raise only.
func (c *TargetCache) Targets() []CachedTarget {
	return c.targets
}

// Raise lifts the local score of target i. Lower values are ignored.
func (c *TargetCache) Raise(i int, score uint8) {
	if score > c.targets[i].Score {
		c.targets[i].Score = score
	}
}

// Len returns the number of cached targets
func (c *TargetCache) Len() int {
	return len(c.targets)
}

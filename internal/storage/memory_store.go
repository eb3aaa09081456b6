package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/twin-miner/internal/models"
	"github.com/twin-miner/internal/types"
)

// MemoryTargetStore keeps targets in process memory. ConditionalUpdate has the
// same compare-and-set semantics as the Postgres repository, which makes it
// usable for dry runs and tests.
type MemoryTargetStore struct {
	mu      sync.RWMutex
	targets map[string]*models.MiningTarget
	ceiling uint8
	now     func() time.Time
}

// NewMemoryTargetStore creates an empty store
func NewMemoryTargetStore(ceiling uint8) *MemoryTargetStore {
	return &MemoryTargetStore{
		targets: make(map[string]*models.MiningTarget),
		ceiling: ceiling,
		now:     time.Now,
	}
}

// Put inserts or replaces a target
func (s *MemoryTargetStore) Put(target *models.MiningTarget) {
	t := target.Clone()
	if t.Kind == "" {
		t.Kind = types.KindWallet
	}
	now := s.now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}

	s.mu.Lock()
	s.targets[t.ID] = t
	s.mu.Unlock()
}

// ListActiveTargets returns copies of every target below the ceiling, ordered by id
func (s *MemoryTargetStore) ListActiveTargets(ctx context.Context) ([]*models.MiningTarget, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	targets := make([]*models.MiningTarget, 0, len(s.targets))
	for _, t := range s.targets {
		if t.Active(s.ceiling) {
			targets = append(targets, t.Clone())
		}
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].ID < targets[j].ID })
	return targets, nil
}

// ReadScore returns the stored score of a target
func (s *MemoryTargetStore) ReadScore(ctx context.Context, id string) (uint8, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.targets[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrTargetNotFound, id)
	}
	return t.Score, nil
}

// ReadTarget returns a copy of a target
func (s *MemoryTargetStore) ReadTarget(ctx context.Context, id string) (*models.MiningTarget, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.targets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, id)
	}
	return t.Clone(), nil
}

// ConditionalUpdate stores the new pair iff the stored score is strictly lower
// and returns the pair it replaced.
func (s *MemoryTargetStore) ConditionalUpdate(ctx context.Context, id string, score uint8, address, privateKey string) (models.TwinUpdate, error) {
	if err := ctx.Err(); err != nil {
		return models.TwinUpdate{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.targets[id]
	if !ok || t.Score >= score {
		return models.TwinUpdate{}, nil
	}

	result := models.TwinUpdate{
		Applied:                true,
		PreviousScore:          t.Score,
		PreviousTwinAddress:    t.TwinAddress,
		PreviousTwinPrivateKey: t.TwinPrivateKey,
	}
	t.Score = score
	t.TwinAddress = &address
	t.TwinPrivateKey = &privateKey
	t.Deployed = false
	t.UpdatedAt = s.now()
	return result, nil
}

// ParseMemoryTargets parses a comma separated list of id:pattern[:kind]
// entries. The pattern doubles as the target address.
func ParseMemoryTargets(list string) ([]*models.MiningTarget, error) {
	var targets []*models.MiningTarget
	seen := make(map[string]bool)

	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid memory target %q, want id:pattern[:kind]", entry)
		}
		if seen[parts[0]] {
			return nil, fmt.Errorf("duplicate memory target id %q", parts[0])
		}
		seen[parts[0]] = true

		kind := types.KindWallet
		if len(parts) == 3 {
			k, err := types.ParseTargetKind(parts[2])
			if err != nil {
				return nil, fmt.Errorf("memory target %s: %w", parts[0], err)
			}
			kind = k
		}

		targets = append(targets, &models.MiningTarget{
			ID:      parts[0],
			Address: parts[1],
			Pattern: parts[1],
			Kind:    kind,
		})
	}

	return targets, nil
}

package worker

import (
	"context"

	"github.com/twin-miner/internal/models"
)

// TargetStore is the persistent target table shared by every miner. The
// conditional update is the only write and the only point of coordination
// between workers.
type TargetStore interface {
	ListActiveTargets(ctx context.Context) ([]*models.MiningTarget, error)
	ReadScore(ctx context.Context, id string) (uint8, error)
	ReadTarget(ctx context.Context, id string) (*models.MiningTarget, error)
	ConditionalUpdate(ctx context.Context, id string, score uint8, address, privateKey string) (models.TwinUpdate, error)
}

// Notifier reports discoveries. Implementations must not block the caller.
type Notifier interface {
	Notify(ctx context.Context, d *models.Discovery)
}

// ImprovementSink receives an event for every successful update
type ImprovementSink interface {
	Record(e *models.ImprovementEvent)
}

// CursorStore persists the next unsearched sequence number per worker
type CursorStore interface {
	Load(ctx context.Context, workerID uint32) (uint64, error)
	Save(ctx context.Context, workerID uint32, next uint64) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, *models.Discovery) {}

type nopSink struct{}

func (nopSink) Record(*models.ImprovementEvent) {}

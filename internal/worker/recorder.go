package worker

import (
	"context"
	"sync/atomic"
	"time"

	apperrors "github.com/twin-miner/internal/errors"
	"github.com/twin-miner/internal/logging"
	"github.com/twin-miner/internal/models"
)

// ImprovementWriter persists batches of improvement events
type ImprovementWriter interface {
	BatchInsert(ctx context.Context, events []*models.ImprovementEvent) error
}

// ImprovementRecorder buffers improvement events and writes them in batches.
// Record never blocks; events are dropped when the buffer is full.
type ImprovementRecorder struct {
	writer        ImprovementWriter
	events        chan *models.ImprovementEvent
	batchSize     int
	flushInterval time.Duration
	logger        *logging.Logger

	written atomic.Uint64
	dropped atomic.Uint64
	done    chan struct{}
}

// NewImprovementRecorder creates a recorder. Run must be started to write anything.
func NewImprovementRecorder(writer ImprovementWriter, batchSize int, flushInterval time.Duration, logger *logging.Logger) *ImprovementRecorder {
	if batchSize < 1 {
		batchSize = 1
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &ImprovementRecorder{
		writer:        writer,
		events:        make(chan *models.ImprovementEvent, batchSize*4),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger.WithComponent("improvements"),
		done:          make(chan struct{}),
	}
}

// Record queues an event
func (r *ImprovementRecorder) Record(e *models.ImprovementEvent) {
	select {
	case r.events <- e:
	default:
		r.dropped.Add(1)
		r.logger.WithField("targetId", e.TargetID).Warn("Improvement buffer full, event dropped")
	}
}

// Run writes batches until ctx is cancelled, then flushes what is buffered
func (r *ImprovementRecorder) Run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	batch := make([]*models.ImprovementEvent, 0, r.batchSize)
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e := <-r.events:
					batch = append(batch, e)
				default:
					flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
					r.flush(flushCtx, batch)
					cancel()
					return
				}
			}
		case e := <-r.events:
			batch = append(batch, e)
			if len(batch) >= r.batchSize {
				batch = r.flush(ctx, batch)
			}
		case <-ticker.C:
			batch = r.flush(ctx, batch)
		}
	}
}

// Done is closed once Run has returned
func (r *ImprovementRecorder) Done() <-chan struct{} {
	return r.done
}

func (r *ImprovementRecorder) flush(ctx context.Context, batch []*models.ImprovementEvent) []*models.ImprovementEvent {
	if len(batch) == 0 {
		return batch
	}

	if err := r.writer.BatchInsert(ctx, batch); err != nil {
		r.dropped.Add(uint64(len(batch)))
		r.logger.WithError(apperrors.NewAnalyticsError("insert improvements", err)).
			WithField("events", len(batch)).Warn("Failed to write improvement batch")
	} else {
		r.written.Add(uint64(len(batch)))
	}
	return batch[:0]
}

// Written returns the number of events persisted
func (r *ImprovementRecorder) Written() uint64 {
	return r.written.Load()
}

// Dropped returns the number of events lost to a full buffer or a failed write
func (r *ImprovementRecorder) Dropped() uint64 {
	return r.dropped.Load()
}

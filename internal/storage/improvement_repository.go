package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/twin-miner/internal/models"
)

// ImprovementRepository stores the history of score improvements in ClickHouse
type ImprovementRepository struct {
	db *ClickHouseDB
}

// NewImprovementRepository creates a new improvement repository
func NewImprovementRepository(db *ClickHouseDB) *ImprovementRepository {
	return &ImprovementRepository{db: db}
}

// BatchInsert writes events in a single batch
func (r *ImprovementRepository) BatchInsert(ctx context.Context, events []*models.ImprovementEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO target_improvements (
			event_id, target_id, score, previous_score, twin_address,
			worker_id, sequence, version, found_at
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, e := range events {
		if err := batch.Append(
			e.EventID,
			e.TargetID,
			e.Score,
			e.PreviousScore,
			e.TwinAddress,
			e.WorkerID,
			e.Sequence,
			e.Version,
			e.FoundAt,
		); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// History returns the improvements of a target since the given time, oldest first
func (r *ImprovementRepository) History(ctx context.Context, targetID string, since time.Time) ([]*models.ImprovementEvent, error) {
	query := `
		SELECT event_id, target_id, score, previous_score, twin_address,
			   worker_id, sequence, version, found_at
		FROM target_improvements
		WHERE target_id = ? AND found_at >= ?
		ORDER BY found_at ASC
	`

	rows, err := r.db.Conn().Query(ctx, query, targetID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query improvement history: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var events []*models.ImprovementEvent
	for rows.Next() {
		var e models.ImprovementEvent
		if err := rows.Scan(
			&e.EventID,
			&e.TargetID,
			&e.Score,
			&e.PreviousScore,
			&e.TwinAddress,
			&e.WorkerID,
			&e.Sequence,
			&e.Version,
			&e.FoundAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan improvement: %w", err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating improvements: %w", err)
	}
	return events, nil
}

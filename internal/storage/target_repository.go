package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/twin-miner/internal/models"
	"github.com/twin-miner/internal/types"
)

// ErrTargetNotFound is returned when a target id has no row
var ErrTargetNotFound = errors.New("target not found")

const targetColumns = `
	id, address, pattern, score, twin_address, twin_private_key,
	kind, deployed, created_at, updated_at
`

// TargetRepository reads and conditionally updates mining targets in Postgres
type TargetRepository struct {
	db      *PostgresDB
	ceiling uint8
}

// NewTargetRepository creates a target repository. Targets whose score is
// below ceiling are considered active.
func NewTargetRepository(db *PostgresDB, ceiling uint8) *TargetRepository {
	return &TargetRepository{db: db, ceiling: ceiling}
}

// DB returns the underlying database connection for raw queries
func (r *TargetRepository) DB() *PostgresDB {
	return r.db
}

// Create inserts a new target. Score and twin pair are taken as given so
// fixtures can start from any state.
func (r *TargetRepository) Create(ctx context.Context, target *models.MiningTarget) error {
	if target.Kind == "" {
		target.Kind = types.KindWallet
	}

	query := `
		INSERT INTO mining_targets (id, address, pattern, score, twin_address, twin_private_key, kind, deployed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool().QueryRow(ctx, query,
		target.ID,
		target.Address,
		target.Pattern,
		int16(target.Score),
		target.TwinAddress,
		target.TwinPrivateKey,
		string(target.Kind),
		target.Deployed,
	).Scan(&target.CreatedAt, &target.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create target %s: %w", target.ID, err)
	}

	return nil
}

// ListActiveTargets returns every target whose score is below the ceiling
func (r *TargetRepository) ListActiveTargets(ctx context.Context) ([]*models.MiningTarget, error) {
	query := `SELECT ` + targetColumns + ` FROM mining_targets WHERE score < $1 ORDER BY id`

	rows, err := r.db.Pool().Query(ctx, query, int16(r.ceiling))
	if err != nil {
		return nil, fmt.Errorf("failed to list active targets: %w", err)
	}
	defer rows.Close()

	var targets []*models.MiningTarget
	for rows.Next() {
		target, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, target)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating targets: %w", err)
	}

	return targets, nil
}

// ReadScore returns the stored score of a target
func (r *TargetRepository) ReadScore(ctx context.Context, id string) (uint8, error) {
	var score int16
	err := r.db.Pool().QueryRow(ctx, `SELECT score FROM mining_targets WHERE id = $1`, id).Scan(&score)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrTargetNotFound, id)
		}
		return 0, fmt.Errorf("failed to read score: %w", err)
	}
	return uint8(score), nil // #nosec G115 - column is constrained to 0..255
}

// ReadTarget returns the full row of a target
func (r *TargetRepository) ReadTarget(ctx context.Context, id string) (*models.MiningTarget, error) {
	query := `SELECT ` + targetColumns + ` FROM mining_targets WHERE id = $1`

	target, err := scanTarget(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, id)
		}
		return nil, fmt.Errorf("failed to read target: %w", err)
	}
	return target, nil
}

// ConditionalUpdate records a new best keypair only if the stored score is
// still strictly lower than score. The row predicate is evaluated atomically
// by Postgres, so of several concurrent writers only those that raise the
// stored score succeed. It also clears the deployed flag and returns the pair
// it replaced, read under the same row lock.
func (r *TargetRepository) ConditionalUpdate(ctx context.Context, id string, score uint8, address, privateKey string) (models.TwinUpdate, error) {
	query := `
		UPDATE mining_targets t
		SET score = $2, twin_address = $3, twin_private_key = $4,
			deployed = FALSE, updated_at = NOW()
		FROM (
			SELECT id, score, twin_address, twin_private_key
			FROM mining_targets
			WHERE id = $1
			FOR UPDATE
		) old
		WHERE t.id = old.id AND t.score < $2
		RETURNING old.score, old.twin_address, old.twin_private_key
	`

	var (
		result   models.TwinUpdate
		previous int16
	)
	err := r.db.Pool().QueryRow(ctx, query, id, int16(score), address, privateKey).
		Scan(&previous, &result.PreviousTwinAddress, &result.PreviousTwinPrivateKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.TwinUpdate{}, nil
		}
		return models.TwinUpdate{}, fmt.Errorf("failed to update target %s: %w", id, err)
	}

	result.Applied = true
	result.PreviousScore = uint8(previous) // #nosec G115 - column is constrained to 0..255
	return result, nil
}

func scanTarget(row pgx.Row) (*models.MiningTarget, error) {
	var (
		target models.MiningTarget
		score  int16
		kind   string
	)

	err := row.Scan(
		&target.ID,
		&target.Address,
		&target.Pattern,
		&score,
		&target.TwinAddress,
		&target.TwinPrivateKey,
		&kind,
		&target.Deployed,
		&target.CreatedAt,
		&target.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	target.Score = uint8(score) // #nosec G115 - column is constrained to 0..255
	target.Kind = types.TargetKind(kind)
	return &target, nil
}

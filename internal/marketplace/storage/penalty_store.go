package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/taskhive/taskhive-be/internal/marketplace/domain"
)

// GetWorkerPenalty returns the worker's penalty record, or a zero
// record for workers with no cancellation history.
func (s *Storage) GetWorkerPenalty(ctx context.Context, workerID string) (*domain.WorkerPenalty, error) {
	var p domain.WorkerPenalty

	err := s.db.GetContext(ctx, &p, `
		SELECT worker_id, cancellation_count, blocked_until, updated_at
		FROM worker_penalties
		WHERE worker_id = $1
	`, workerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return &domain.WorkerPenalty{WorkerID: workerID}, nil
		}
		return nil, fmt.Errorf("failed to get worker penalty: %w", err)
	}

	return &p, nil
}

// recordWorkerCancellation increments the worker's cancellation count
// inside the cancelling transaction and sets blocked_until once the
// count reaches the threshold.
func recordWorkerCancellation(ctx context.Context, tx *sqlx.Tx, workerID string, blockThreshold int, blockDuration time.Duration, now time.Time) error {
	query := `
		INSERT INTO worker_penalties (worker_id, cancellation_count, blocked_until, updated_at)
		VALUES ($1, 1, NULL, $2)
		ON CONFLICT (worker_id) DO UPDATE SET
			cancellation_count = worker_penalties.cancellation_count + 1,
			updated_at = EXCLUDED.updated_at
		RETURNING cancellation_count
	`

	var count int
	if err := tx.QueryRowxContext(ctx, query, workerID, now).Scan(&count); err != nil {
		return fmt.Errorf("failed to record worker cancellation: %w", err)
	}

	if count >= blockThreshold {
		blockedUntil := now.Add(blockDuration)
		_, err := tx.ExecContext(ctx,
			`UPDATE worker_penalties SET blocked_until = $1, updated_at = $2 WHERE worker_id = $3`,
			blockedUntil, now, workerID,
		)
		if err != nil {
			return fmt.Errorf("failed to block worker: %w", err)
		}
	}

	return nil
}

// UnblockExpiredWorkers clears blocks whose window has elapsed and
// resets the cancellation count so unblocked workers start clean.
// Called by the penalty-expiry sweep.
func (s *Storage) UnblockExpiredWorkers(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE worker_penalties
		SET blocked_until = NULL, cancellation_count = 0, updated_at = $1
		WHERE blocked_until IS NOT NULL AND blocked_until <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to unblock workers: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected > 0 {
		s.logger.Info("Expired worker blocks cleared",
			slog.Int64("count", affected),
		)
	}

	return affected, nil
}

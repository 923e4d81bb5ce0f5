package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/taskhive/taskhive-be/internal/marketplace/domain"
)

// FailedNotification is a durable record of a notification or event
// publish that failed and must be retried with bounded attempts.
type FailedNotification struct {
	ID         string    `db:"id"`
	JobID      string    `db:"job_id"`
	Recipient  string    `db:"recipient"`
	Kind       string    `db:"kind"`
	Payload    string    `db:"payload"` // JSON string
	RetryCount int       `db:"retry_count"`
	Resolved   bool      `db:"resolved"`
	LastError  string    `db:"last_error"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// FailedGeoSync is a durable record of a failed geo-index push. At
// most one unresolved record exists per (job_id, operation).
type FailedGeoSync struct {
	ID         string                  `db:"id"`
	JobID      string                  `db:"job_id"`
	Operation  domain.GeoSyncOperation `db:"operation"`
	RetryCount int                     `db:"retry_count"`
	Resolved   bool                    `db:"resolved"`
	LastError  string                  `db:"last_error"`
	CreatedAt  time.Time               `db:"created_at"`
	UpdatedAt  time.Time               `db:"updated_at"`
}

// InsertFailedNotification records a failed side effect for later retry.
func (s *Storage) InsertFailedNotification(ctx context.Context, rec *FailedNotification) error {
	query := `
		INSERT INTO failed_notifications (
			id, job_id, recipient, kind, payload,
			retry_count, resolved, last_error, created_at, updated_at
		) VALUES (
			:id, :job_id, :recipient, :kind, :payload,
			:retry_count, :resolved, :last_error, :created_at, :updated_at
		)
	`

	if _, err := s.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("failed to insert failed notification: %w", err)
	}

	return nil
}

// ListRetryableNotifications returns unresolved records below the
// retry limit, oldest first. Records at the limit stay unresolved and
// are surfaced for manual remediation, never silently dropped.
func (s *Storage) ListRetryableNotifications(ctx context.Context, maxRetries, limit int) ([]FailedNotification, error) {
	var recs []FailedNotification

	err := s.db.SelectContext(ctx, &recs, `
		SELECT id, job_id, recipient, kind, payload,
		       retry_count, resolved, last_error, created_at, updated_at
		FROM failed_notifications
		WHERE resolved = FALSE AND retry_count < $1
		ORDER BY created_at ASC
		LIMIT $2
	`, maxRetries, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list retryable notifications: %w", err)
	}

	return recs, nil
}

// MarkNotificationAttempt records another failed retry.
func (s *Storage) MarkNotificationAttempt(ctx context.Context, id, lastError string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE failed_notifications
		SET retry_count = retry_count + 1, last_error = $1, updated_at = $2
		WHERE id = $3
	`, lastError, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification attempt: %w", err)
	}
	return nil
}

// MarkNotificationResolved marks the record resolved after a
// successful retry.
func (s *Storage) MarkNotificationResolved(ctx context.Context, id string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE failed_notifications
		SET resolved = TRUE, updated_at = $1
		WHERE id = $2
	`, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification resolved: %w", err)
	}
	return nil
}

// UpsertFailedGeoSync records a failed geo-index push, deduplicated so
// repeated failures for the same (job, operation) share one unresolved
// record.
func (s *Storage) UpsertFailedGeoSync(ctx context.Context, rec *FailedGeoSync) error {
	query := `
		INSERT INTO failed_geo_syncs (
			id, job_id, operation, retry_count, resolved, last_error, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, FALSE, $5, $6, $7
		)
		ON CONFLICT (job_id, operation) WHERE NOT resolved DO UPDATE SET
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.JobID,
		rec.Operation,
		rec.RetryCount,
		rec.LastError,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert failed geo sync: %w", err)
	}

	return nil
}

// ListRetryableGeoSyncs returns unresolved geo-sync records below the
// retry limit, oldest first.
func (s *Storage) ListRetryableGeoSyncs(ctx context.Context, maxRetries, limit int) ([]FailedGeoSync, error) {
	var recs []FailedGeoSync

	err := s.db.SelectContext(ctx, &recs, `
		SELECT id, job_id, operation, retry_count, resolved, last_error, created_at, updated_at
		FROM failed_geo_syncs
		WHERE resolved = FALSE AND retry_count < $1
		ORDER BY created_at ASC
		LIMIT $2
	`, maxRetries, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list retryable geo syncs: %w", err)
	}

	return recs, nil
}

// MarkGeoSyncAttempt records another failed retry.
func (s *Storage) MarkGeoSyncAttempt(ctx context.Context, id, lastError string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE failed_geo_syncs
		SET retry_count = retry_count + 1, last_error = $1, updated_at = $2
		WHERE id = $3
	`, lastError, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark geo sync attempt: %w", err)
	}
	return nil
}

// MarkGeoSyncResolved marks the record resolved after a successful retry.
func (s *Storage) MarkGeoSyncResolved(ctx context.Context, id string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE failed_geo_syncs
		SET resolved = TRUE, updated_at = $1
		WHERE id = $2
	`, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark geo sync resolved: %w", err)
	}
	return nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/taskhive/taskhive-be/internal/marketplace/domain"
)

const codeColumns = `
	job_id, start_code, start_issued_at, start_expires_at, start_attempts,
	release_code, release_issued_at, release_expires_at, release_attempts,
	status, updated_at
`

func scanCode(row sqlx.ColScanner) (*domain.ConfirmationCode, error) {
	var code domain.ConfirmationCode
	var releaseCode sql.NullString

	err := row.Scan(
		&code.JobID,
		&code.StartCode,
		&code.StartIssuedAt,
		&code.StartExpiresAt,
		&code.StartAttempts,
		&releaseCode,
		&code.ReleaseIssuedAt,
		&code.ReleaseExpiresAt,
		&code.ReleaseAttempts,
		&code.Status,
		&code.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to scan confirmation code: %w", err)
	}

	if releaseCode.Valid {
		code.ReleaseCode = releaseCode.String
	}

	return &code, nil
}

// upsertConfirmationCode writes the full code record, replacing any
// prior row for the job. Regeneration therefore invalidates prior
// values of the rewritten kind.
func upsertConfirmationCode(ctx context.Context, tx *sqlx.Tx, code *domain.ConfirmationCode) error {
	query := `
		INSERT INTO job_confirmation_codes (` + codeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (job_id) DO UPDATE SET
			start_code = EXCLUDED.start_code,
			start_issued_at = EXCLUDED.start_issued_at,
			start_expires_at = EXCLUDED.start_expires_at,
			start_attempts = EXCLUDED.start_attempts,
			release_code = EXCLUDED.release_code,
			release_issued_at = EXCLUDED.release_issued_at,
			release_expires_at = EXCLUDED.release_expires_at,
			release_attempts = EXCLUDED.release_attempts,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`

	_, err := tx.ExecContext(ctx, query,
		code.JobID,
		code.StartCode,
		code.StartIssuedAt,
		code.StartExpiresAt,
		code.StartAttempts,
		nullString(code.ReleaseCode),
		code.ReleaseIssuedAt,
		code.ReleaseExpiresAt,
		code.ReleaseAttempts,
		code.Status,
		code.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert confirmation code: %w", err)
	}

	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// GetConfirmationCode retrieves the code record for a job.
func (s *Storage) GetConfirmationCode(ctx context.Context, jobID string) (*domain.ConfirmationCode, error) {
	query := `SELECT ` + codeColumns + ` FROM job_confirmation_codes WHERE job_id = $1`
	return scanCode(s.db.QueryRowxContext(ctx, query, jobID))
}

// SaveConfirmationCode writes the code record in its own transaction,
// used by issue/reissue operations outside a job transition.
func (s *Storage) SaveConfirmationCode(ctx context.Context, code *domain.ConfirmationCode) error {
	return s.withinTx(ctx, func(tx *sqlx.Tx) error {
		return upsertConfirmationCode(ctx, tx, code)
	})
}

// verifyCode loads the job's code record under the job lock and checks
// candidate against the code of the given kind. A mismatch increments
// the attempt counter (that mutation commits even though verification
// failed); success resets the counter and advances the code status.
// Expiry and lock failures leave the record untouched.
func verifyCode(ctx context.Context, tx *sqlx.Tx, jobID string, kind domain.CodeKind, candidate string, maxAttempts int, now time.Time) (*domain.ConfirmationCode, error) {
	code, err := scanCode(tx.QueryRowxContext(ctx,
		`SELECT `+codeColumns+` FROM job_confirmation_codes WHERE job_id = $1`, jobID))
	if err != nil {
		return nil, err
	}

	if err := code.Check(kind, candidate, maxAttempts, now); err != nil {
		if errors.Is(err, domain.ErrCodeMismatch) {
			column := "start_attempts"
			if kind == domain.CodeKindRelease {
				column = "release_attempts"
			}
			_, execErr := tx.ExecContext(ctx,
				`UPDATE job_confirmation_codes SET `+column+` = `+column+` + 1, updated_at = $1 WHERE job_id = $2`,
				now, jobID,
			)
			if execErr != nil {
				return nil, fmt.Errorf("failed to record code attempt: %w", execErr)
			}
		}
		return nil, err
	}

	verified := domain.CodeStatusStartVerified
	query := `UPDATE job_confirmation_codes SET status = $1, start_attempts = 0, updated_at = $2 WHERE job_id = $3`
	if kind == domain.CodeKindRelease {
		verified = domain.CodeStatusReleaseVerified
		query = `UPDATE job_confirmation_codes SET status = $1, release_attempts = 0, updated_at = $2 WHERE job_id = $3`
	}

	if _, err := tx.ExecContext(ctx, query, verified, now, jobID); err != nil {
		return nil, fmt.Errorf("failed to mark code verified: %w", err)
	}

	code.Status = verified
	return code, nil
}

// VerifyCode runs a standalone code verification in its own
// transaction, without a job transition attached.
func (s *Storage) VerifyCode(ctx context.Context, jobID string, kind domain.CodeKind, candidate string, maxAttempts int, now time.Time) (*domain.ConfirmationCode, error) {
	var code *domain.ConfirmationCode

	err := s.withinTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := lockJob(ctx, tx, jobID); err != nil {
			return err
		}

		var verifyErr error
		code, verifyErr = verifyCode(ctx, tx, jobID, kind, candidate, maxAttempts, now)
		if verifyErr != nil && errors.Is(verifyErr, domain.ErrCodeMismatch) {
			// Commit the attempt increment, then surface the mismatch.
			code = nil
			return nil
		}
		if verifyErr != nil {
			return verifyErr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if code == nil {
		return nil, domain.ErrCodeMismatch
	}

	s.logger.Info("Confirmation code verified",
		slog.String("job_id", jobID),
		slog.String("kind", string(kind)),
	)

	return code, nil
}

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

const paymentColumns = `
	payment_id, job_id, client_id, worker_id, amount, mode,
	status, gateway_ref, created_at, updated_at
`

func scanPayment(row sqlx.ColScanner) (*domain.PaymentTransaction, error) {
	var p domain.PaymentTransaction
	var gatewayRef sql.NullString

	err := row.Scan(
		&p.PaymentID,
		&p.JobID,
		&p.ClientID,
		&p.WorkerID,
		&p.Amount,
		&p.Mode,
		&p.Status,
		&gatewayRef,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}

	if gatewayRef.Valid {
		p.GatewayRef = gatewayRef.String
	}

	return &p, nil
}

// GetActivePayment returns the job's non-FAILED, non-REFUNDED payment
// transaction, of which at most one exists.
func (s *Storage) GetActivePayment(ctx context.Context, jobID string) (*domain.PaymentTransaction, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payment_transactions
		WHERE job_id = $1 AND status NOT IN ($2, $3)
	`
	return scanPayment(s.db.QueryRowxContext(ctx, query,
		jobID, domain.PaymentStatusFailed, domain.PaymentStatusRefunded))
}

// LockEscrow creates the job's ESCROW_LOCKED payment transaction under
// the job row lock. The partial unique index on active transactions is
// the final word against double locking.
func (s *Storage) LockEscrow(ctx context.Context, payment *domain.PaymentTransaction) error {
	err := s.withinTx(ctx, func(tx *sqlx.Tx) error {
		job, err := lockJob(ctx, tx, payment.JobID)
		if err != nil {
			return err
		}

		if job.ClientID != payment.ClientID {
			return domain.ErrNotJobOwner
		}

		active, err := activePayment(ctx, tx, payment.JobID)
		if err != nil && err != domain.ErrPaymentNotFound {
			return err
		}
		if active != nil {
			return domain.ErrEscrowAlreadyLocked
		}

		query := `
			INSERT INTO payment_transactions (
				payment_id, job_id, client_id, worker_id, amount, mode,
				status, gateway_ref, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6,
				$7, $8, $9, $10
			)
		`

		_, err = tx.ExecContext(ctx, query,
			payment.PaymentID,
			payment.JobID,
			payment.ClientID,
			payment.WorkerID,
			payment.Amount,
			payment.Mode,
			payment.Status,
			nullString(payment.GatewayRef),
			payment.CreatedAt,
			payment.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrEscrowAlreadyLocked
			}
			return fmt.Errorf("failed to create payment transaction: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Escrow locked",
		slog.String("job_id", payment.JobID),
		slog.String("payment_id", payment.PaymentID),
		slog.Int64("amount", payment.Amount),
	)

	return nil
}

func activePayment(ctx context.Context, tx *sqlx.Tx, jobID string) (*domain.PaymentTransaction, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payment_transactions
		WHERE job_id = $1 AND status NOT IN ($2, $3)
		FOR UPDATE
	`
	return scanPayment(tx.QueryRowxContext(ctx, query,
		jobID, domain.PaymentStatusFailed, domain.PaymentStatusRefunded))
}

func updatePaymentStatus(ctx context.Context, tx *sqlx.Tx, paymentID string, status domain.PaymentStatus, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE payment_transactions SET status = $1, updated_at = $2 WHERE payment_id = $3`,
		status, now, paymentID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return nil
}

// refundActivePayment marks the job's locked escrow REFUNDED, if any.
// Called inside cancellation and expiration transactions.
func refundActivePayment(ctx context.Context, tx *sqlx.Tx, jobID string, now time.Time) error {
	payment, err := activePayment(ctx, tx, jobID)
	if err != nil {
		if err == domain.ErrPaymentNotFound {
			return nil
		}
		return err
	}

	if payment.Status != domain.PaymentStatusEscrowLocked {
		return nil
	}

	return updatePaymentStatus(ctx, tx, payment.PaymentID, domain.PaymentStatusRefunded, now)
}

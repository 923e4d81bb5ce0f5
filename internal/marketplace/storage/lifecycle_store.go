package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/taskhive/taskhive-be/internal/marketplace/domain"
)

// StartJob verifies the start code and moves the job from
// READY_TO_START to IN_PROGRESS in one transaction. On a code
// mismatch the attempt increment commits but the job is untouched.
func (s *Storage) StartJob(ctx context.Context, jobID, workerID, candidate string, maxAttempts int, now time.Time) (*domain.Job, error) {
	var job *domain.Job
	var verifyErr error

	err := s.withinTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		job, err = lockJob(ctx, tx, jobID)
		if err != nil {
			return err
		}

		if job.AssignedWorkerID != workerID {
			return domain.ErrNotAssignedWorker
		}

		if !domain.CanTransition(job.Status, domain.JobStatusInProgress) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidJobStateTransition,
				job.Status, domain.JobStatusInProgress)
		}

		_, verifyErr = verifyCode(ctx, tx, jobID, domain.CodeKindStart, candidate, maxAttempts, now)
		if verifyErr != nil {
			if errors.Is(verifyErr, domain.ErrCodeMismatch) {
				// Keep the attempt increment, drop the transition.
				return nil
			}
			return verifyErr
		}

		if err := updateJobStatus(ctx, tx, jobID, domain.JobStatusInProgress, now); err != nil {
			return err
		}

		job.Status = domain.JobStatusInProgress
		return nil
	})
	if err != nil {
		return nil, err
	}
	if verifyErr != nil {
		return nil, verifyErr
	}

	s.logger.Info("Job started",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
	)

	return job, nil
}

// CompleteJob records the worker's completion claim as a single
// transaction: the job row is locked, the assigned worker is
// validated, the job moves to COMPLETED_PENDING_PAYMENT, and the
// caller-generated release code is stored. Any failure leaves every
// row unchanged, so the claim can be retried.
func (s *Storage) CompleteJob(ctx context.Context, jobID, workerID string, release *domain.ConfirmationCode, now time.Time) (*domain.Job, error) {
	var job *domain.Job

	err := s.withinTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		job, err = lockJob(ctx, tx, jobID)
		if err != nil {
			return err
		}

		if job.AssignedWorkerID != workerID {
			return domain.ErrNotAssignedWorker
		}

		if !domain.CanTransition(job.Status, domain.JobStatusCompletedPendingPaym) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidJobStateTransition,
				job.Status, domain.JobStatusCompletedPendingPaym)
		}

		code, err := scanCode(tx.QueryRowxContext(ctx,
			`SELECT `+codeColumns+` FROM job_confirmation_codes WHERE job_id = $1`, jobID))
		if err != nil {
			return err
		}
		if !code.Verified(domain.CodeKindStart) {
			return fmt.Errorf("%w: start code not verified", domain.ErrInvalidJobStateTransition)
		}

		code.ReleaseCode = release.ReleaseCode
		code.ReleaseIssuedAt = release.ReleaseIssuedAt
		code.ReleaseExpiresAt = release.ReleaseExpiresAt
		code.ReleaseAttempts = 0
		code.Status = domain.CodeStatusReleasePending
		code.UpdatedAt = now

		if err := upsertConfirmationCode(ctx, tx, code); err != nil {
			return err
		}

		if err := updateJobStatus(ctx, tx, jobID, domain.JobStatusCompletedPendingPaym, now); err != nil {
			return err
		}

		job.Status = domain.JobStatusCompletedPendingPaym
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Job completed, release code issued",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
	)

	return job, nil
}

// ReleaseJob verifies the release code, releases the locked escrow,
// and moves the job to PAYMENT_RELEASED, all in one transaction. Any
// failure leaves every row unchanged except a committed mismatch
// attempt increment.
func (s *Storage) ReleaseJob(ctx context.Context, jobID, clientID, candidate string, maxAttempts int, now time.Time) (*domain.Job, *domain.PaymentTransaction, error) {
	var job *domain.Job
	var payment *domain.PaymentTransaction
	var verifyErr error

	err := s.withinTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		job, err = lockJob(ctx, tx, jobID)
		if err != nil {
			return err
		}

		if job.ClientID != clientID {
			return domain.ErrNotJobOwner
		}

		if !domain.CanTransition(job.Status, domain.JobStatusPaymentReleased) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidJobStateTransition,
				job.Status, domain.JobStatusPaymentReleased)
		}

		payment, err = activePayment(ctx, tx, jobID)
		if err != nil {
			if err == domain.ErrPaymentNotFound {
				return domain.ErrEscrowNotLocked
			}
			return err
		}
		if payment.Status != domain.PaymentStatusEscrowLocked {
			return domain.ErrEscrowNotLocked
		}

		_, verifyErr = verifyCode(ctx, tx, jobID, domain.CodeKindRelease, candidate, maxAttempts, now)
		if verifyErr != nil {
			if errors.Is(verifyErr, domain.ErrCodeMismatch) {
				return nil
			}
			return verifyErr
		}

		if err := updatePaymentStatus(ctx, tx, payment.PaymentID, domain.PaymentStatusReleased, now); err != nil {
			return err
		}

		if err := updateJobStatus(ctx, tx, jobID, domain.JobStatusPaymentReleased, now); err != nil {
			return err
		}

		payment.Status = domain.PaymentStatusReleased
		job.Status = domain.JobStatusPaymentReleased
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if verifyErr != nil {
		return nil, nil, verifyErr
	}

	s.logger.Info("Escrow released",
		slog.String("job_id", jobID),
		slog.String("payment_id", payment.PaymentID),
		slog.Int64("amount", payment.Amount),
	)

	return job, payment, nil
}

// CancelJob cancels a non-terminal job, refunds any locked escrow,
// and, when the assigned worker is the one cancelling, increments the
// worker's cancellation count and blocks the worker once the count
// reaches the threshold.
func (s *Storage) CancelJob(ctx context.Context, jobID, cancelledBy string, blockThreshold int, blockDuration time.Duration, now time.Time) (*domain.Job, error) {
	var job *domain.Job

	err := s.withinTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		job, err = lockJob(ctx, tx, jobID)
		if err != nil {
			return err
		}

		if job.ClientID != cancelledBy && job.AssignedWorkerID != cancelledBy {
			return domain.ErrNotJobOwner
		}

		if !domain.CanCancel(job.Status) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidJobStateTransition,
				job.Status, domain.JobStatusCancelled)
		}

		if err := updateJobStatus(ctx, tx, jobID, domain.JobStatusCancelled, now); err != nil {
			return err
		}

		if err := refundActivePayment(ctx, tx, jobID, now); err != nil {
			return err
		}

		if job.AssignedWorkerID != "" && cancelledBy == job.AssignedWorkerID {
			if err := recordWorkerCancellation(ctx, tx, cancelledBy, blockThreshold, blockDuration, now); err != nil {
				return err
			}
		}

		job.Status = domain.JobStatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Job cancelled",
		slog.String("job_id", jobID),
		slog.String("cancelled_by", cancelledBy),
	)

	return job, nil
}

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

const jobColumns = `
	job_id, client_id, assigned_worker_id, title, description,
	urgency, payment_mode, status, scheduled_start_at, created_at, updated_at
`

func scanJob(row sqlx.ColScanner) (*domain.Job, error) {
	var job domain.Job
	var worker sql.NullString

	err := row.Scan(
		&job.JobID,
		&job.ClientID,
		&worker,
		&job.Title,
		&job.Description,
		&job.Urgency,
		&job.PaymentMode,
		&job.Status,
		&job.ScheduledStartAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	if worker.Valid {
		job.AssignedWorkerID = worker.String
	}

	return &job, nil
}

// CreateJob inserts a new job in CREATED status.
func (s *Storage) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (
			job_id, client_id, title, description,
			urgency, payment_mode, status, scheduled_start_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.ClientID,
		job.Title,
		job.Description,
		job.Urgency,
		job.PaymentMode,
		job.Status,
		job.ScheduledStartAt,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetJobByID retrieves a job by its ID.
func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1`
	return scanJob(s.db.QueryRowxContext(ctx, query, jobID))
}

// lockJob loads a job inside tx with a row-level lock. All job-scoped
// transitions serialize on this lock.
func lockJob(ctx context.Context, tx *sqlx.Tx, jobID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1 FOR UPDATE`
	return scanJob(tx.QueryRowxContext(ctx, query, jobID))
}

func updateJobStatus(ctx context.Context, tx *sqlx.Tx, jobID string, status domain.JobStatus, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = $1, updated_at = $2 WHERE job_id = $3`,
		status, now, jobID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return nil
}

// TransitionJob moves a job from one status to another under the job
// row lock, rejecting transitions the state machine does not allow.
func (s *Storage) TransitionJob(ctx context.Context, jobID string, to domain.JobStatus, now time.Time) (*domain.Job, error) {
	var job *domain.Job

	err := s.withinTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		job, err = lockJob(ctx, tx, jobID)
		if err != nil {
			return err
		}

		if !domain.CanTransition(job.Status, to) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidJobStateTransition, job.Status, to)
		}

		if err := updateJobStatus(ctx, tx, jobID, to, now); err != nil {
			return err
		}

		job.Status = to
		job.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", string(job.Status)),
	)

	return job, nil
}

// JobUpdate carries the replacement values for a job's editable
// listing fields.
type JobUpdate struct {
	Title            string
	Description      string
	Urgency          string
	ScheduledStartAt *time.Time
}

// UpdateJob replaces a job's listing fields under the job row lock.
// Editing is only allowed before a worker is assigned; later states
// have bids or payments priced against the current listing.
func (s *Storage) UpdateJob(ctx context.Context, jobID, clientID string, update JobUpdate, now time.Time) (*domain.Job, error) {
	var job *domain.Job

	err := s.withinTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		job, err = lockJob(ctx, tx, jobID)
		if err != nil {
			return err
		}

		if job.ClientID != clientID {
			return domain.ErrNotJobOwner
		}

		if job.Status != domain.JobStatusCreated && job.Status != domain.JobStatusOpenForBids {
			return fmt.Errorf("%w: cannot edit job in %s", domain.ErrInvalidJobStateTransition, job.Status)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET title = $1, description = $2, urgency = $3, scheduled_start_at = $4, updated_at = $5
			 WHERE job_id = $6`,
			update.Title, update.Description, update.Urgency, update.ScheduledStartAt, now, jobID,
		)
		if err != nil {
			return fmt.Errorf("failed to update job: %w", err)
		}

		job.Title = update.Title
		job.Description = update.Description
		job.Urgency = update.Urgency
		job.ScheduledStartAt = update.ScheduledStartAt
		job.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Job updated",
		slog.String("job_id", jobID),
	)

	return job, nil
}

// JobFilter narrows ListJobs results.
type JobFilter struct {
	ClientID string
	WorkerID string
	Status   string
	PageSize int
	Cursor   *JobCursor
}

// JobCursor is a (created_at, job_id) keyset pagination cursor.
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListJobs returns jobs matching the filter, newest first, fetching
// one extra row so callers can detect a next page.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.ClientID != "" {
		query += fmt.Sprintf(" AND client_id = $%d", argIdx)
		args = append(args, filter.ClientID)
		argIdx++
	}

	if filter.WorkerID != "" {
		query += fmt.Sprintf(" AND assigned_worker_id = $%d", argIdx)
		args = append(args, filter.WorkerID)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, job_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}

	return jobs, rows.Err()
}

// ListExpirableJobs returns jobs the expiration sweep should close:
// pre-IN_PROGRESS jobs whose scheduled start has passed or that were
// created before the age cutoff.
func (s *Storage) ListExpirableJobs(ctx context.Context, now time.Time, ageCutoff time.Time, limit int) ([]domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status IN ($1, $2, $3, $4)
		  AND (
			(scheduled_start_at IS NOT NULL AND scheduled_start_at < $5)
			OR created_at < $6
		  )
		ORDER BY created_at ASC
		LIMIT $7
	`

	rows, err := s.db.QueryxContext(ctx, query,
		domain.JobStatusCreated,
		domain.JobStatusOpenForBids,
		domain.JobStatusBidSelected,
		domain.JobStatusReadyToStart,
		now,
		ageCutoff,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expirable jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}

	return jobs, rows.Err()
}

// ExpireJob closes a pre-IN_PROGRESS job and refunds any locked
// escrow in the same transaction. Jobs that progressed past the
// expirable window since listing are skipped with ok=false.
func (s *Storage) ExpireJob(ctx context.Context, jobID string, now time.Time) (*domain.Job, bool, error) {
	var job *domain.Job

	err := s.withinTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		job, err = lockJob(ctx, tx, jobID)
		if err != nil {
			return err
		}

		if !domain.CanExpire(job.Status) {
			job = nil
			return nil
		}

		if err := updateJobStatus(ctx, tx, jobID, domain.JobStatusClosedDueToExpiration, now); err != nil {
			return err
		}

		if err := refundActivePayment(ctx, tx, jobID, now); err != nil {
			return err
		}

		job.Status = domain.JobStatusClosedDueToExpiration
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if job == nil {
		return nil, false, nil
	}

	s.logger.Info("Job closed due to expiration",
		slog.String("job_id", jobID),
	)

	return job, true, nil
}

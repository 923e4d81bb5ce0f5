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

const bidColumns = `
	bid_id, job_id, worker_id, amount, partner_name, partner_fee,
	status, created_at, updated_at
`

func scanBid(row sqlx.ColScanner) (*domain.Bid, error) {
	var bid domain.Bid
	var partnerName sql.NullString
	var partnerFee sql.NullInt64

	err := row.Scan(
		&bid.BidID,
		&bid.JobID,
		&bid.WorkerID,
		&bid.Amount,
		&partnerName,
		&partnerFee,
		&bid.Status,
		&bid.CreatedAt,
		&bid.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrBidNotFound
		}
		return nil, fmt.Errorf("failed to scan bid: %w", err)
	}

	if partnerName.Valid {
		bid.PartnerName = partnerName.String
	}
	if partnerFee.Valid {
		bid.PartnerFee = partnerFee.Int64
	}

	return &bid, nil
}

// CreateBid inserts a new PENDING bid. The (job_id, worker_id) unique
// index is the authoritative duplicate check; a violation maps to
// ErrDuplicateBid regardless of what the membership filter said.
func (s *Storage) CreateBid(ctx context.Context, bid *domain.Bid) error {
	query := `
		INSERT INTO bids (
			bid_id, job_id, worker_id, amount, partner_name, partner_fee,
			status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		bid.BidID,
		bid.JobID,
		bid.WorkerID,
		bid.Amount,
		bid.PartnerName,
		bid.PartnerFee,
		bid.Status,
		bid.CreatedAt,
		bid.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateBid
		}
		return fmt.Errorf("failed to create bid: %w", err)
	}

	return nil
}

// GetBidByID retrieves a bid by its ID.
func (s *Storage) GetBidByID(ctx context.Context, bidID string) (*domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE bid_id = $1`
	return scanBid(s.db.QueryRowxContext(ctx, query, bidID))
}

// ListBidsForJob returns all bids for a job in creation order.
func (s *Storage) ListBidsForJob(ctx context.Context, jobID string) ([]domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE job_id = $1 ORDER BY created_at ASC, bid_id ASC`

	rows, err := s.db.QueryxContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	defer rows.Close()

	var bids []domain.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, *bid)
	}

	return bids, rows.Err()
}

// BidExists is the authoritative existence check behind the
// probabilistic duplicate filter.
func (s *Storage) BidExists(ctx context.Context, jobID, workerID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM bids WHERE job_id = $1 AND worker_id = $2)`,
		jobID, workerID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to check bid existence: %w", err)
	}
	return exists, nil
}

// AcceptBid performs bid acceptance as a single transaction: the job
// row is locked, the chosen bid becomes ACCEPTED, all sibling bids are
// rejected in one set-based update, the job is reassigned and moved to
// BID_SELECTED_AWAITING_HANDSHAKE, and the caller-generated start code
// is stored. Two concurrent accepts on the same job serialize on the
// job lock; the loser sees a non-PENDING bid.
func (s *Storage) AcceptBid(ctx context.Context, bidID, clientID string, code *domain.ConfirmationCode, now time.Time) (*domain.Bid, *domain.Job, error) {
	var bid *domain.Bid
	var job *domain.Job

	err := s.withinTx(ctx, func(tx *sqlx.Tx) error {
		// Peek at the bid to learn its job, then take the job lock and
		// re-read the bid under it. Sibling rejections commit under the
		// same lock, so the re-read is authoritative.
		peek, err := scanBid(tx.QueryRowxContext(ctx,
			`SELECT `+bidColumns+` FROM bids WHERE bid_id = $1`, bidID))
		if err != nil {
			return err
		}

		job, err = lockJob(ctx, tx, peek.JobID)
		if err != nil {
			return err
		}

		if job.ClientID != clientID {
			return domain.ErrNotJobOwner
		}

		bid, err = scanBid(tx.QueryRowxContext(ctx,
			`SELECT `+bidColumns+` FROM bids WHERE bid_id = $1`, bidID))
		if err != nil {
			return err
		}

		if bid.Status != domain.BidStatusPending {
			return domain.ErrBidNotPending
		}

		if !domain.CanTransition(job.Status, domain.JobStatusBidSelected) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidJobStateTransition,
				job.Status, domain.JobStatusBidSelected)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE bids SET status = $1, updated_at = $2 WHERE bid_id = $3`,
			domain.BidStatusAccepted, now, bidID,
		)
		if err != nil {
			return fmt.Errorf("failed to accept bid: %w", err)
		}

		// Single set-based update so no reader ever observes two
		// ACCEPTED bids or a half-rejected sibling set.
		_, err = tx.ExecContext(ctx,
			`UPDATE bids SET status = $1, updated_at = $2
			 WHERE job_id = $3 AND bid_id <> $4 AND status = $5`,
			domain.BidStatusRejected, now, job.JobID, bidID, domain.BidStatusPending,
		)
		if err != nil {
			return fmt.Errorf("failed to reject sibling bids: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET status = $1, assigned_worker_id = $2, updated_at = $3 WHERE job_id = $4`,
			domain.JobStatusBidSelected, bid.WorkerID, now, job.JobID,
		)
		if err != nil {
			return fmt.Errorf("failed to assign job: %w", err)
		}

		if err := upsertConfirmationCode(ctx, tx, code); err != nil {
			return err
		}

		bid.Status = domain.BidStatusAccepted
		job.Status = domain.JobStatusBidSelected
		job.AssignedWorkerID = bid.WorkerID
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("Bid accepted",
		slog.String("bid_id", bidID),
		slog.String("job_id", job.JobID),
		slog.String("worker_id", bid.WorkerID),
	)

	return bid, job, nil
}

// Handshake records the assigned worker's confirmation of an accepted
// bid, moving the job to READY_TO_START.
func (s *Storage) Handshake(ctx context.Context, bidID, workerID string, now time.Time) (*domain.Job, error) {
	var job *domain.Job

	err := s.withinTx(ctx, func(tx *sqlx.Tx) error {
		bid, err := scanBid(tx.QueryRowxContext(ctx,
			`SELECT `+bidColumns+` FROM bids WHERE bid_id = $1`, bidID))
		if err != nil {
			return err
		}

		if bid.WorkerID != workerID || bid.Status != domain.BidStatusAccepted {
			return domain.ErrHandshakeNotAllowed
		}

		job, err = lockJob(ctx, tx, bid.JobID)
		if err != nil {
			return err
		}

		if job.Status != domain.JobStatusBidSelected {
			return domain.ErrHandshakeNotAllowed
		}

		if err := updateJobStatus(ctx, tx, job.JobID, domain.JobStatusReadyToStart, now); err != nil {
			return err
		}

		job.Status = domain.JobStatusReadyToStart
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Handshake completed",
		slog.String("bid_id", bidID),
		slog.String("job_id", job.JobID),
		slog.String("worker_id", workerID),
	)

	return job, nil
}

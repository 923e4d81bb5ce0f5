package bidding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taskhive/taskhive-be/internal/marketplace/domain"
)

// ExistenceChecker is the authoritative bid existence check the guard
// falls back to when the filter reports "possibly present".
type ExistenceChecker interface {
	BidExists(ctx context.Context, jobID, workerID string) (bool, error)
}

// DuplicateBidGuard screens bid attempts for duplicates without a
// store round-trip on the common first-attempt path. "Definitely
// absent" from the filter allows immediately; "possibly present" falls
// back to the store, which has the final word, so a filter false
// positive never rejects a legitimate bid.
type DuplicateBidGuard struct {
	filter MembershipFilter
	store  ExistenceChecker
	logger *slog.Logger
}

// NewDuplicateBidGuard creates a new DuplicateBidGuard.
func NewDuplicateBidGuard(filter MembershipFilter, store ExistenceChecker, logger *slog.Logger) *DuplicateBidGuard {
	return &DuplicateBidGuard{
		filter: filter,
		store:  store,
		logger: logger,
	}
}

// Validate returns ErrDuplicateBid if the worker already bid on the job.
func (g *DuplicateBidGuard) Validate(ctx context.Context, jobID, workerID string) error {
	if !g.filter.Test(jobID, workerID) {
		return nil
	}

	exists, err := g.store.BidExists(ctx, jobID, workerID)
	if err != nil {
		return fmt.Errorf("failed authoritative duplicate check: %w", err)
	}

	if exists {
		return domain.ErrDuplicateBid
	}

	g.logger.Debug("Duplicate filter false positive",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
	)

	return nil
}

// Record registers the pair after a successful bid insert.
func (g *DuplicateBidGuard) Record(jobID, workerID string) {
	g.filter.Add(jobID, workerID)
}

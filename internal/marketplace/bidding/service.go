package bidding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/taskhive/taskhive-be/internal/marketplace/domain"
)

// Store is the storage surface the bid lifecycle needs. AcceptBid and
// Handshake are transactional units: the job row lock inside them
// serializes concurrent accepts so exactly one can win.
type Store interface {
	ExistenceChecker
	GetJobByID(ctx context.Context, jobID string) (*domain.Job, error)
	GetWorkerPenalty(ctx context.Context, workerID string) (*domain.WorkerPenalty, error)
	CreateBid(ctx context.Context, bid *domain.Bid) error
	GetBidByID(ctx context.Context, bidID string) (*domain.Bid, error)
	ListBidsForJob(ctx context.Context, jobID string) ([]domain.Bid, error)
	AcceptBid(ctx context.Context, bidID, clientID string, code *domain.ConfirmationCode, now time.Time) (*domain.Bid, *domain.Job, error)
	Handshake(ctx context.Context, bidID, workerID string, now time.Time) (*domain.Job, error)
}

// CodeIssuer generates the start code stored atomically with bid
// acceptance.
type CodeIssuer interface {
	NewStartCode(jobID string, now time.Time) (*domain.ConfirmationCode, error)
}

// Events receives post-commit lifecycle notifications. Implementations
// must never fail the calling operation.
type Events interface {
	JobModified(ctx context.Context, ev domain.JobModifiedEvent)
	Notify(ctx context.Context, recipient, kind string, payload map[string]interface{})
}

// Service implements the bid lifecycle: place, list, accept, handshake.
type Service struct {
	store  Store
	guard  *DuplicateBidGuard
	codes  CodeIssuer
	events Events
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new bid lifecycle service.
func NewService(store Store, guard *DuplicateBidGuard, codes CodeIssuer, events Events, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		guard:  guard,
		codes:  codes,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// PlaceBidInput carries the fields of a bid placement request.
type PlaceBidInput struct {
	JobID       string
	WorkerID    string
	Amount      int64
	PartnerName string
	PartnerFee  int64
}

// PlaceBid creates a PENDING bid after checking the job is biddable,
// the worker is not blocked, and no duplicate exists. The store's
// unique index still backs the duplicate guard, so two concurrent
// first bids from the same worker cannot both land.
func (s *Service) PlaceBid(ctx context.Context, in PlaceBidInput) (*domain.Bid, error) {
	if in.Amount <= 0 {
		return nil, fmt.Errorf("bid amount must be positive, got %d", in.Amount)
	}

	job, err := s.store.GetJobByID(ctx, in.JobID)
	if err != nil {
		return nil, err
	}

	if job.Status != domain.JobStatusOpenForBids {
		return nil, domain.ErrJobNotBiddable
	}

	now := s.now()

	penalty, err := s.store.GetWorkerPenalty(ctx, in.WorkerID)
	if err != nil {
		return nil, err
	}
	if penalty.BlockedAt(now) {
		return nil, domain.ErrWorkerBlocked
	}

	if err := s.guard.Validate(ctx, in.JobID, in.WorkerID); err != nil {
		return nil, err
	}

	bid := &domain.Bid{
		BidID:       uuid.New().String(),
		JobID:       in.JobID,
		WorkerID:    in.WorkerID,
		Amount:      in.Amount,
		PartnerName: in.PartnerName,
		PartnerFee:  in.PartnerFee,
		Status:      domain.BidStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateBid(ctx, bid); err != nil {
		return nil, err
	}

	s.guard.Record(in.JobID, in.WorkerID)

	s.logger.Info("Bid placed",
		slog.String("bid_id", bid.BidID),
		slog.String("job_id", in.JobID),
		slog.String("worker_id", in.WorkerID),
		slog.Int64("amount", in.Amount),
	)

	s.events.Notify(ctx, job.ClientID, "bid.placed", map[string]interface{}{
		"job_id": in.JobID,
		"bid_id": bid.BidID,
		"amount": in.Amount,
	})

	return bid, nil
}

// ListBidsForJob returns all bids for a job in creation order.
func (s *Service) ListBidsForJob(ctx context.Context, jobID string) ([]domain.Bid, error) {
	return s.store.ListBidsForJob(ctx, jobID)
}

// AcceptBid accepts one bid, rejects its siblings, assigns the job,
// and issues the start code, all in one committed unit. The start code
// payload is delivered to the client out of band; the event here only
// signals the status change.
func (s *Service) AcceptBid(ctx context.Context, bidID, clientID string) (*domain.Bid, *domain.Job, error) {
	now := s.now()

	bid, err := s.store.GetBidByID(ctx, bidID)
	if err != nil {
		return nil, nil, err
	}

	code, err := s.codes.NewStartCode(bid.JobID, now)
	if err != nil {
		return nil, nil, err
	}

	bid, job, err := s.store.AcceptBid(ctx, bidID, clientID, code, now)
	if err != nil {
		return nil, nil, err
	}

	s.events.JobModified(ctx, domain.JobModifiedEvent{
		JobID:    job.JobID,
		ClientID: job.ClientID,
		Type:     domain.ModificationStatusChanged,
		Status:   job.Status,
	})
	s.events.Notify(ctx, bid.WorkerID, "bid.accepted", map[string]interface{}{
		"job_id": job.JobID,
		"bid_id": bid.BidID,
	})

	return bid, job, nil
}

// Handshake records the assigned worker's confirmation, moving the job
// to READY_TO_START.
func (s *Service) Handshake(ctx context.Context, bidID, workerID string) (*domain.Job, error) {
	job, err := s.store.Handshake(ctx, bidID, workerID, s.now())
	if err != nil {
		return nil, err
	}

	s.events.JobModified(ctx, domain.JobModifiedEvent{
		JobID:    job.JobID,
		ClientID: job.ClientID,
		Type:     domain.ModificationStatusChanged,
		Status:   job.Status,
	})

	return job, nil
}

package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/taskhive/taskhive-be/internal/marketplace/domain"
	"github.com/taskhive/taskhive-be/internal/marketplace/storage"
)

// Store is the storage surface the job state machine needs. The
// transition methods are transactional units serialized on the job row.
type Store interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJobByID(ctx context.Context, jobID string) (*domain.Job, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]domain.Job, error)
	TransitionJob(ctx context.Context, jobID string, to domain.JobStatus, now time.Time) (*domain.Job, error)
	UpdateJob(ctx context.Context, jobID, clientID string, update storage.JobUpdate, now time.Time) (*domain.Job, error)
	StartJob(ctx context.Context, jobID, workerID, candidate string, maxAttempts int, now time.Time) (*domain.Job, error)
	CompleteJob(ctx context.Context, jobID, workerID string, release *domain.ConfirmationCode, now time.Time) (*domain.Job, error)
	CancelJob(ctx context.Context, jobID, cancelledBy string, blockThreshold int, blockDuration time.Duration, now time.Time) (*domain.Job, error)
	ListExpirableJobs(ctx context.Context, now time.Time, ageCutoff time.Time, limit int) ([]domain.Job, error)
	ExpireJob(ctx context.Context, jobID string, now time.Time) (*domain.Job, bool, error)
}

// Codes is the confirmation-code surface the state machine uses.
type Codes interface {
	NewReleaseCode(jobID string, now time.Time) (*domain.ConfirmationCode, error)
	MaxAttempts() int
}

// Escrow releases the job's locked funds together with the release
// transition.
type Escrow interface {
	Release(ctx context.Context, jobID, clientID, releaseCode string) (*domain.Job, *domain.PaymentTransaction, error)
}

// Events receives post-commit lifecycle notifications.
type Events interface {
	JobModified(ctx context.Context, ev domain.JobModifiedEvent)
	JobExpired(ctx context.Context, ev domain.JobExpiredEvent)
	Notify(ctx context.Context, recipient, kind string, payload map[string]interface{})
}

// Config holds job lifecycle policy.
type Config struct {
	PenaltyThreshold     int           // worker cancellations before a block
	PenaltyBlockDuration time.Duration // how long a blocked worker stays blocked
	ExpireAfter          time.Duration // age after which an unstarted job expires
	ExpireBatchSize      int           // jobs closed per expiration sweep cycle
}

// Service drives the job status state machine and coordinates bids,
// codes, and escrow into single committed transitions.
type Service struct {
	store  Store
	codes  Codes
	escrow Escrow
	events Events
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new job lifecycle service.
func NewService(store Store, codes Codes, escrow Escrow, events Events, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		codes:  codes,
		escrow: escrow,
		events: events,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// CreateJobInput carries the fields of a job creation request.
type CreateJobInput struct {
	ClientID         string
	Title            string
	Description      string
	Urgency          string
	PaymentMode      string
	ScheduledStartAt *time.Time
}

// CreateJob posts a new job in CREATED status.
func (s *Service) CreateJob(ctx context.Context, in CreateJobInput) (*domain.Job, error) {
	now := s.now()
	job := &domain.Job{
		JobID:            uuid.New().String(),
		ClientID:         in.ClientID,
		Title:            in.Title,
		Description:      in.Description,
		Urgency:          in.Urgency,
		PaymentMode:      in.PaymentMode,
		Status:           domain.JobStatusCreated,
		ScheduledStartAt: in.ScheduledStartAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info("Job created",
		slog.String("job_id", job.JobID),
		slog.String("client_id", in.ClientID),
	)

	s.events.JobModified(ctx, domain.JobModifiedEvent{
		JobID:    job.JobID,
		ClientID: job.ClientID,
		Type:     domain.ModificationCreated,
		Status:   job.Status,
	})

	return job, nil
}

// GetJob retrieves a job by ID.
func (s *Service) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return s.store.GetJobByID(ctx, jobID)
}

// ListJobs returns jobs matching the filter.
func (s *Service) ListJobs(ctx context.Context, filter storage.JobFilter) ([]domain.Job, error) {
	return s.store.ListJobs(ctx, filter)
}

// UpdateJobInput carries the editable fields of a posted job.
type UpdateJobInput struct {
	ClientID         string
	Title            string
	Description      string
	Urgency          string
	ScheduledStartAt *time.Time
}

// UpdateJob edits a job's listing fields while no worker is assigned.
func (s *Service) UpdateJob(ctx context.Context, jobID string, in UpdateJobInput) (*domain.Job, error) {
	job, err := s.store.UpdateJob(ctx, jobID, in.ClientID, storage.JobUpdate{
		Title:            in.Title,
		Description:      in.Description,
		Urgency:          in.Urgency,
		ScheduledStartAt: in.ScheduledStartAt,
	}, s.now())
	if err != nil {
		return nil, err
	}

	s.events.JobModified(ctx, domain.JobModifiedEvent{
		JobID:    job.JobID,
		ClientID: job.ClientID,
		Type:     domain.ModificationUpdated,
		Status:   job.Status,
	})

	return job, nil
}

// OpenForBids opens a freshly created job to bidding.
func (s *Service) OpenForBids(ctx context.Context, jobID, clientID string) (*domain.Job, error) {
	if err := s.requireOwner(ctx, jobID, clientID); err != nil {
		return nil, err
	}

	job, err := s.store.TransitionJob(ctx, jobID, domain.JobStatusOpenForBids, s.now())
	if err != nil {
		return nil, err
	}

	s.emitStatusChanged(ctx, job)
	return job, nil
}

// StartWork verifies the start code and moves the job from
// READY_TO_START to IN_PROGRESS. Wrong code values surface as
// ErrCodeMismatch with the attempt counted; expired or locked codes
// must be reissued before the job can start.
func (s *Service) StartWork(ctx context.Context, jobID, workerID, startCode string) (*domain.Job, error) {
	job, err := s.store.StartJob(ctx, jobID, workerID, startCode, s.codes.MaxAttempts(), s.now())
	if err != nil {
		return nil, err
	}

	s.emitStatusChanged(ctx, job)
	return job, nil
}

// Complete records the worker's completion claim, moving the job to
// COMPLETED_PENDING_PAYMENT with the release code issued in the same
// commit. A failure anywhere leaves the job IN_PROGRESS so the claim
// can be retried.
func (s *Service) Complete(ctx context.Context, jobID, workerID string) (*domain.Job, error) {
	now := s.now()

	release, err := s.codes.NewReleaseCode(jobID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to generate release code: %w", err)
	}

	job, err := s.store.CompleteJob(ctx, jobID, workerID, release, now)
	if err != nil {
		return nil, err
	}

	s.emitStatusChanged(ctx, job)
	s.events.Notify(ctx, job.ClientID, "job.completed", map[string]interface{}{
		"job_id": job.JobID,
	})

	return job, nil
}

// ReleasePayment verifies the release code and releases the escrow,
// moving the job to PAYMENT_RELEASED. The job becomes review-eligible.
func (s *Service) ReleasePayment(ctx context.Context, jobID, clientID, releaseCode string) (*domain.Job, *domain.PaymentTransaction, error) {
	job, payment, err := s.escrow.Release(ctx, jobID, clientID, releaseCode)
	if err != nil {
		return nil, nil, err
	}

	s.emitStatusChanged(ctx, job)
	s.events.Notify(ctx, job.AssignedWorkerID, "payment.released", map[string]interface{}{
		"job_id": job.JobID,
		"amount": payment.Amount,
	})

	return job, payment, nil
}

// Finalize records the client's sign-off after payment release.
func (s *Service) Finalize(ctx context.Context, jobID, clientID string) (*domain.Job, error) {
	if err := s.requireOwner(ctx, jobID, clientID); err != nil {
		return nil, err
	}

	job, err := s.store.TransitionJob(ctx, jobID, domain.JobStatusCompleted, s.now())
	if err != nil {
		return nil, err
	}

	s.emitStatusChanged(ctx, job)
	return job, nil
}

// Cancel cancels a non-terminal job. Locked escrow is refunded in the
// same transaction; a cancelling assigned worker earns a penalty.
func (s *Service) Cancel(ctx context.Context, jobID, callerID string) (*domain.Job, error) {
	job, err := s.store.CancelJob(ctx, jobID, callerID, s.cfg.PenaltyThreshold, s.cfg.PenaltyBlockDuration, s.now())
	if err != nil {
		return nil, err
	}

	// Cancelled listings leave the geo index.
	s.events.JobModified(ctx, domain.JobModifiedEvent{
		JobID:    job.JobID,
		ClientID: job.ClientID,
		Type:     domain.ModificationDeleted,
		Status:   job.Status,
	})

	return job, nil
}

// ExpireDueJobs closes pre-IN_PROGRESS jobs whose scheduled start or
// age threshold has elapsed. Called by the job-expiration sweep; the
// per-job transaction makes the sweep safe to re-run.
func (s *Service) ExpireDueJobs(ctx context.Context) (int, error) {
	now := s.now()

	due, err := s.store.ListExpirableJobs(ctx, now, now.Add(-s.cfg.ExpireAfter), s.cfg.ExpireBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range due {
		job, ok, err := s.store.ExpireJob(ctx, candidate.JobID, now)
		if err != nil {
			s.logger.Error("Failed to expire job",
				slog.String("job_id", candidate.JobID),
				slog.Any("error", err),
			)
			continue
		}
		if !ok {
			// Progressed past the expirable window since listing.
			continue
		}

		expired++
		s.events.JobExpired(ctx, domain.JobExpiredEvent{
			JobID:    job.JobID,
			ClientID: job.ClientID,
		})
		s.events.JobModified(ctx, domain.JobModifiedEvent{
			JobID:    job.JobID,
			ClientID: job.ClientID,
			Type:     domain.ModificationDeleted,
			Status:   job.Status,
		})
	}

	return expired, nil
}

func (s *Service) requireOwner(ctx context.Context, jobID, clientID string) error {
	job, err := s.store.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.ClientID != clientID {
		return domain.ErrNotJobOwner
	}
	return nil
}

func (s *Service) emitStatusChanged(ctx context.Context, job *domain.Job) {
	s.events.JobModified(ctx, domain.JobModifiedEvent{
		JobID:    job.JobID,
		ClientID: job.ClientID,
		Type:     domain.ModificationStatusChanged,
		Status:   job.Status,
	})
}

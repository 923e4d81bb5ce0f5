package escrow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/taskhive/taskhive-be/internal/marketplace/domain"
)

// Store is the storage surface the ledger needs. LockEscrow and
// ReleaseJob are transactional units serialized on the job row.
type Store interface {
	GetJobByID(ctx context.Context, jobID string) (*domain.Job, error)
	GetActivePayment(ctx context.Context, jobID string) (*domain.PaymentTransaction, error)
	LockEscrow(ctx context.Context, payment *domain.PaymentTransaction) error
	ReleaseJob(ctx context.Context, jobID, clientID, candidate string, maxAttempts int, now time.Time) (*domain.Job, *domain.PaymentTransaction, error)
}

// CodePolicy exposes the verification attempt budget the release path
// enforces inside its transaction.
type CodePolicy interface {
	MaxAttempts() int
}

// Ledger tracks escrow custody state per job. It records state only;
// actual money movement belongs to the external payment gateway.
type Ledger struct {
	store  Store
	codes  CodePolicy
	logger *slog.Logger
	now    func() time.Time
}

// NewLedger creates a new escrow ledger.
func NewLedger(store Store, codes CodePolicy, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		codes:  codes,
		logger: logger,
		now:    time.Now,
	}
}

// Lock creates the job's ESCROW_LOCKED payment transaction. The amount
// is fixed here; no later operation may change it.
func (l *Ledger) Lock(ctx context.Context, jobID, clientID string, amount int64) (*domain.PaymentTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("escrow amount must be positive, got %d", amount)
	}

	job, err := l.store.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.AssignedWorkerID == "" {
		return nil, fmt.Errorf("%w: no worker assigned", domain.ErrInvalidJobStateTransition)
	}
	if domain.IsTerminal(job.Status) {
		return nil, fmt.Errorf("%w: job is %s", domain.ErrInvalidJobStateTransition, job.Status)
	}

	now := l.now()
	payment := &domain.PaymentTransaction{
		PaymentID: uuid.New().String(),
		JobID:     jobID,
		ClientID:  clientID,
		WorkerID:  job.AssignedWorkerID,
		Amount:    amount,
		Mode:      job.PaymentMode,
		Status:    domain.PaymentStatusEscrowLocked,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := l.store.LockEscrow(ctx, payment); err != nil {
		return nil, err
	}

	return payment, nil
}

// Release verifies the release code and moves the payment to RELEASED
// and the job to PAYMENT_RELEASED as one unit. ErrEscrowNotLocked is
// returned when no locked escrow exists; code errors surface unchanged.
func (l *Ledger) Release(ctx context.Context, jobID, clientID, releaseCode string) (*domain.Job, *domain.PaymentTransaction, error) {
	return l.store.ReleaseJob(ctx, jobID, clientID, releaseCode, l.codes.MaxAttempts(), l.now())
}

// Status returns the job's active payment transaction, if any.
func (l *Ledger) Status(ctx context.Context, jobID string) (*domain.PaymentTransaction, error) {
	payment, err := l.store.GetActivePayment(ctx, jobID)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("Escrow status read",
		slog.String("job_id", jobID),
		slog.String("status", string(payment.Status)),
	)

	return payment, nil
}

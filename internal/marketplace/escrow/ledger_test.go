package escrow

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskhive/taskhive-be/internal/marketplace/domain"
)

type fakeEscrowStore struct {
	jobs     map[string]*domain.Job
	payments map[string]*domain.PaymentTransaction // keyed by job_id
}

func newFakeEscrowStore() *fakeEscrowStore {
	return &fakeEscrowStore{
		jobs:     map[string]*domain.Job{},
		payments: map[string]*domain.PaymentTransaction{},
	}
}

func (f *fakeEscrowStore) GetJobByID(ctx context.Context, jobID string) (*domain.Job, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (f *fakeEscrowStore) GetActivePayment(ctx context.Context, jobID string) (*domain.PaymentTransaction, error) {
	payment, ok := f.payments[jobID]
	if !ok || !domain.PaymentActive(payment.Status) {
		return nil, domain.ErrPaymentNotFound
	}
	cp := *payment
	return &cp, nil
}

func (f *fakeEscrowStore) LockEscrow(ctx context.Context, payment *domain.PaymentTransaction) error {
	job, ok := f.jobs[payment.JobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	if job.ClientID != payment.ClientID {
		return domain.ErrNotJobOwner
	}
	if existing, ok := f.payments[payment.JobID]; ok && domain.PaymentActive(existing.Status) {
		return domain.ErrEscrowAlreadyLocked
	}
	cp := *payment
	f.payments[payment.JobID] = &cp
	return nil
}

func (f *fakeEscrowStore) ReleaseJob(ctx context.Context, jobID, clientID, candidate string, maxAttempts int, now time.Time) (*domain.Job, *domain.PaymentTransaction, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, nil, domain.ErrJobNotFound
	}
	payment, ok := f.payments[jobID]
	if !ok || payment.Status != domain.PaymentStatusEscrowLocked {
		return nil, nil, domain.ErrEscrowNotLocked
	}
	if candidate != "654321" {
		return nil, nil, domain.ErrCodeMismatch
	}

	payment.Status = domain.PaymentStatusReleased
	job.Status = domain.JobStatusPaymentReleased
	job.UpdatedAt = now

	jobCp, paymentCp := *job, *payment
	return &jobCp, &paymentCp, nil
}

type fixedPolicy struct{}

func (fixedPolicy) MaxAttempts() int { return 5 }

func newTestLedger(store *fakeEscrowStore) *Ledger {
	return NewLedger(store, fixedPolicy{}, slog.New(slog.DiscardHandler))
}

func assignedJob(jobID string) *domain.Job {
	now := time.Now()
	return &domain.Job{
		JobID:            jobID,
		ClientID:         "client-1",
		AssignedWorkerID: "worker-1",
		Title:            "Mount shelves",
		Urgency:          domain.UrgencyMedium,
		PaymentMode:      domain.PaymentModeEscrow,
		Status:           domain.JobStatusReadyToStart,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestLedger_Lock(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(store *fakeEscrowStore)
		amount  int64
		wantErr error
	}{
		{
			name: "locks escrow on assigned job",
			setup: func(store *fakeEscrowStore) {
				store.jobs["job-1"] = assignedJob("job-1")
			},
			amount: 12000,
		},
		{
			name:    "unknown job",
			setup:   func(store *fakeEscrowStore) {},
			amount:  12000,
			wantErr: domain.ErrJobNotFound,
		},
		{
			name: "no worker assigned",
			setup: func(store *fakeEscrowStore) {
				job := assignedJob("job-1")
				job.AssignedWorkerID = ""
				job.Status = domain.JobStatusOpenForBids
				store.jobs["job-1"] = job
			},
			amount:  12000,
			wantErr: domain.ErrInvalidJobStateTransition,
		},
		{
			name: "terminal job",
			setup: func(store *fakeEscrowStore) {
				job := assignedJob("job-1")
				job.Status = domain.JobStatusCancelled
				store.jobs["job-1"] = job
			},
			amount:  12000,
			wantErr: domain.ErrInvalidJobStateTransition,
		},
		{
			name: "second lock rejected",
			setup: func(store *fakeEscrowStore) {
				store.jobs["job-1"] = assignedJob("job-1")
				store.payments["job-1"] = &domain.PaymentTransaction{
					PaymentID: "p-1",
					JobID:     "job-1",
					ClientID:  "client-1",
					Amount:    12000,
					Status:    domain.PaymentStatusEscrowLocked,
				}
			},
			amount:  9000,
			wantErr: domain.ErrEscrowAlreadyLocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeEscrowStore()
			tt.setup(store)
			ledger := newTestLedger(store)

			payment, err := ledger.Lock(context.Background(), "job-1", "client-1", tt.amount)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, domain.PaymentStatusEscrowLocked, payment.Status)
			assert.Equal(t, tt.amount, payment.Amount)
			assert.Equal(t, "worker-1", payment.WorkerID)
			assert.Equal(t, domain.PaymentModeEscrow, payment.Mode)
		})
	}
}

func TestLedger_Lock_RejectsNonPositiveAmount(t *testing.T) {
	ledger := newTestLedger(newFakeEscrowStore())

	_, err := ledger.Lock(context.Background(), "job-1", "client-1", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount must be positive")
}

func TestLedger_Release(t *testing.T) {
	store := newFakeEscrowStore()
	store.jobs["job-1"] = assignedJob("job-1")
	store.jobs["job-1"].Status = domain.JobStatusCompletedPendingPaym
	ledger := newTestLedger(store)

	// Nothing locked yet
	_, _, err := ledger.Release(context.Background(), "job-1", "client-1", "654321")
	assert.ErrorIs(t, err, domain.ErrEscrowNotLocked)

	_, err = ledger.Lock(context.Background(), "job-1", "client-1", 12000)
	require.NoError(t, err)

	// Wrong code surfaces unchanged
	_, _, err = ledger.Release(context.Background(), "job-1", "client-1", "000000")
	assert.ErrorIs(t, err, domain.ErrCodeMismatch)

	job, payment, err := ledger.Release(context.Background(), "job-1", "client-1", "654321")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPaymentReleased, job.Status)
	assert.Equal(t, domain.PaymentStatusReleased, payment.Status)
}

func TestLedger_Status(t *testing.T) {
	store := newFakeEscrowStore()
	store.jobs["job-1"] = assignedJob("job-1")
	ledger := newTestLedger(store)

	_, err := ledger.Status(context.Background(), "job-1")
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)

	locked, err := ledger.Lock(context.Background(), "job-1", "client-1", 12000)
	require.NoError(t, err)

	payment, err := ledger.Status(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, locked.PaymentID, payment.PaymentID)
	assert.Equal(t, domain.PaymentStatusEscrowLocked, payment.Status)
}

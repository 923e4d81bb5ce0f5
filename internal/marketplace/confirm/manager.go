package confirm

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/taskhive/taskhive-be/internal/marketplace/domain"
)

// Store is the storage surface the code manager needs. VerifyCode runs
// under the job row lock so counter updates serialize with transitions.
type Store interface {
	GetConfirmationCode(ctx context.Context, jobID string) (*domain.ConfirmationCode, error)
	SaveConfirmationCode(ctx context.Context, code *domain.ConfirmationCode) error
	VerifyCode(ctx context.Context, jobID string, kind domain.CodeKind, candidate string, maxAttempts int, now time.Time) (*domain.ConfirmationCode, error)
}

// Config holds confirmation-code policy.
type Config struct {
	TTL         time.Duration // validity window per issued code
	MaxAttempts int           // verification attempts before lockout
}

// Manager issues, verifies, and rotates the one-time codes gating job
// start and escrow release. Codes model an in-person exchange: short,
// short-lived, and attempt-bounded.
type Manager struct {
	store  Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a new confirmation code manager.
func NewManager(store Store, cfg Config, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// generateCode returns a cryptographically random 6-digit code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// NewStartCode builds a fresh code record for a job entering
// BID_SELECTED_AWAITING_HANDSHAKE. The record is persisted by the bid
// acceptance transaction, not here.
func (m *Manager) NewStartCode(jobID string, now time.Time) (*domain.ConfirmationCode, error) {
	value, err := generateCode()
	if err != nil {
		return nil, err
	}

	return &domain.ConfirmationCode{
		JobID:          jobID,
		StartCode:      value,
		StartIssuedAt:  now,
		StartExpiresAt: now.Add(m.cfg.TTL),
		Status:         domain.CodeStatusStartPending,
		UpdatedAt:      now,
	}, nil
}

// GetCodes returns the current code record for a job.
func (m *Manager) GetCodes(ctx context.Context, jobID string) (*domain.ConfirmationCode, error) {
	return m.store.GetConfirmationCode(ctx, jobID)
}

// ReissueStartCode replaces an expired or locked start code with a new
// value, resetting the attempt counter. The prior value becomes
// worthless immediately. Reissue after verification is rejected.
func (m *Manager) ReissueStartCode(ctx context.Context, jobID string) (*domain.ConfirmationCode, error) {
	code, err := m.store.GetConfirmationCode(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if code.Status != domain.CodeStatusStartPending {
		return nil, fmt.Errorf("%w: start code is %s", domain.ErrInvalidJobStateTransition, code.Status)
	}

	value, err := generateCode()
	if err != nil {
		return nil, err
	}

	now := m.now()
	code.StartCode = value
	code.StartIssuedAt = now
	code.StartExpiresAt = now.Add(m.cfg.TTL)
	code.StartAttempts = 0
	code.UpdatedAt = now

	if err := m.store.SaveConfirmationCode(ctx, code); err != nil {
		return nil, err
	}

	m.logger.Info("Start code reissued",
		slog.String("job_id", jobID),
	)

	return code, nil
}

// NewReleaseCode builds the release-side code values for a completing
// job. The record is persisted by the completion transaction, which
// also enforces that the start code was verified first.
func (m *Manager) NewReleaseCode(jobID string, now time.Time) (*domain.ConfirmationCode, error) {
	value, err := generateCode()
	if err != nil {
		return nil, err
	}

	expiresAt := now.Add(m.cfg.TTL)
	return &domain.ConfirmationCode{
		JobID:            jobID,
		ReleaseCode:      value,
		ReleaseIssuedAt:  &now,
		ReleaseExpiresAt: &expiresAt,
		Status:           domain.CodeStatusReleasePending,
		UpdatedAt:        now,
	}, nil
}

// ReissueReleaseCode replaces an expired or locked release code.
func (m *Manager) ReissueReleaseCode(ctx context.Context, jobID string) (*domain.ConfirmationCode, error) {
	code, err := m.store.GetConfirmationCode(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if code.Status != domain.CodeStatusReleasePending {
		return nil, fmt.Errorf("%w: release code is %s", domain.ErrInvalidJobStateTransition, code.Status)
	}

	value, err := generateCode()
	if err != nil {
		return nil, err
	}

	now := m.now()
	expiresAt := now.Add(m.cfg.TTL)
	code.ReleaseCode = value
	code.ReleaseIssuedAt = &now
	code.ReleaseExpiresAt = &expiresAt
	code.ReleaseAttempts = 0
	code.UpdatedAt = now

	if err := m.store.SaveConfirmationCode(ctx, code); err != nil {
		return nil, err
	}

	m.logger.Info("Release code reissued",
		slog.String("job_id", jobID),
	)

	return code, nil
}

// VerifyStartCode checks candidate against the job's current start
// code: ErrCodeExpired past the window, ErrCodeLocked once attempts
// are exhausted, ErrCodeMismatch on a wrong value (counted).
func (m *Manager) VerifyStartCode(ctx context.Context, jobID, candidate string) error {
	_, err := m.store.VerifyCode(ctx, jobID, domain.CodeKindStart, candidate, m.cfg.MaxAttempts, m.now())
	return err
}

// VerifyReleaseCode is the release-side twin of VerifyStartCode, with
// its own counter and expiry.
func (m *Manager) VerifyReleaseCode(ctx context.Context, jobID, candidate string) error {
	_, err := m.store.VerifyCode(ctx, jobID, domain.CodeKindRelease, candidate, m.cfg.MaxAttempts, m.now())
	return err
}

// MaxAttempts exposes the attempt budget for transactional verifiers.
func (m *Manager) MaxAttempts() int {
	return m.cfg.MaxAttempts
}

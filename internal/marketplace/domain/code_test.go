package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmationCode_Check(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	releaseExpiry := now.Add(15 * time.Minute)

	base := func() *ConfirmationCode {
		return &ConfirmationCode{
			JobID:            "job-1",
			StartCode:        "123456",
			StartIssuedAt:    now.Add(-time.Minute),
			StartExpiresAt:   now.Add(14 * time.Minute),
			ReleaseCode:      "654321",
			ReleaseExpiresAt: &releaseExpiry,
			Status:           CodeStatusStartPending,
		}
	}

	tests := []struct {
		name      string
		mutate    func(c *ConfirmationCode)
		kind      CodeKind
		candidate string
		at        time.Time
		wantErr   error
	}{
		{name: "correct start code", kind: CodeKindStart, candidate: "123456", at: now},
		{name: "correct release code", kind: CodeKindRelease, candidate: "654321", at: now},
		{name: "wrong start code", kind: CodeKindStart, candidate: "000000", at: now, wantErr: ErrCodeMismatch},
		{
			name:      "expired beats mismatch even when correct",
			kind:      CodeKindStart,
			candidate: "123456",
			at:        now.Add(20 * time.Minute),
			wantErr:   ErrCodeExpired,
		},
		{
			name:      "locked after five attempts even when correct",
			mutate:    func(c *ConfirmationCode) { c.StartAttempts = 5 },
			kind:      CodeKindStart,
			candidate: "123456",
			at:        now,
			wantErr:   ErrCodeLocked,
		},
		{
			name:      "expiry checked before lock",
			mutate:    func(c *ConfirmationCode) { c.StartAttempts = 5 },
			kind:      CodeKindStart,
			candidate: "123456",
			at:        now.Add(time.Hour),
			wantErr:   ErrCodeExpired,
		},
		{
			name:      "release code not yet issued",
			mutate:    func(c *ConfirmationCode) { c.ReleaseCode = ""; c.ReleaseExpiresAt = nil },
			kind:      CodeKindRelease,
			candidate: "654321",
			at:        now,
			wantErr:   ErrCodeNotFound,
		},
		{
			name:      "release attempts independent of start attempts",
			mutate:    func(c *ConfirmationCode) { c.StartAttempts = 5 },
			kind:      CodeKindRelease,
			candidate: "654321",
			at:        now,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			if tt.mutate != nil {
				tt.mutate(c)
			}

			err := c.Check(tt.kind, tt.candidate, 5, tt.at)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfirmationCode_Verified(t *testing.T) {
	c := &ConfirmationCode{Status: CodeStatusReleasePending}
	assert.True(t, c.Verified(CodeKindStart))
	assert.False(t, c.Verified(CodeKindRelease))

	c.Status = CodeStatusReleaseVerified
	assert.True(t, c.Verified(CodeKindRelease))

	c.Status = CodeStatusStartPending
	assert.False(t, c.Verified(CodeKindStart))
}

func TestWorkerPenalty_BlockedAt(t *testing.T) {
	now := time.Now()
	until := now.Add(time.Hour)

	p := &WorkerPenalty{WorkerID: "w-1"}
	assert.False(t, p.BlockedAt(now))

	p.BlockedUntil = &until
	assert.True(t, p.BlockedAt(now))
	assert.False(t, p.BlockedAt(until.Add(time.Second)))
}

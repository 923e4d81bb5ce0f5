package domain

import "time"

// CodeKind distinguishes the two one-time codes a job carries.
type CodeKind string

const (
	CodeKindStart   CodeKind = "START"
	CodeKindRelease CodeKind = "RELEASE"
)

// CodeStatus is the verification state of the job's confirmation codes.
type CodeStatus string

const (
	CodeStatusStartPending    CodeStatus = "START_PENDING"
	CodeStatusStartVerified   CodeStatus = "START_VERIFIED"
	CodeStatusReleasePending  CodeStatus = "RELEASE_PENDING"
	CodeStatusReleaseVerified CodeStatus = "RELEASE_VERIFIED"
)

// ConfirmationCode holds both one-time codes for a job: the start code
// exchanged when the worker arrives, and the release code exchanged on
// completion. Each code has its own expiry and attempt counter; only
// the most recently generated value of each kind is valid.
type ConfirmationCode struct {
	JobID            string     `db:"job_id"`
	StartCode        string     `db:"start_code"`
	StartIssuedAt    time.Time  `db:"start_issued_at"`
	StartExpiresAt   time.Time  `db:"start_expires_at"`
	StartAttempts    int        `db:"start_attempts"`
	ReleaseCode      string     `db:"release_code"`
	ReleaseIssuedAt  *time.Time `db:"release_issued_at"`
	ReleaseExpiresAt *time.Time `db:"release_expires_at"`
	ReleaseAttempts  int        `db:"release_attempts"`
	Status           CodeStatus `db:"status"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// Check compares candidate against the current code of the given kind.
// Expiry and lock are evaluated before the value comparison, so a
// correct candidate against an expired code still reports expiry.
// Check never mutates the record; counting a failed attempt is the
// caller's job.
func (c *ConfirmationCode) Check(kind CodeKind, candidate string, maxAttempts int, now time.Time) error {
	value, expiresAt, attempts := c.StartCode, c.StartExpiresAt, c.StartAttempts
	if kind == CodeKindRelease {
		if c.ReleaseCode == "" || c.ReleaseExpiresAt == nil {
			return ErrCodeNotFound
		}
		value, expiresAt, attempts = c.ReleaseCode, *c.ReleaseExpiresAt, c.ReleaseAttempts
	}

	if now.After(expiresAt) {
		return ErrCodeExpired
	}
	if attempts >= maxAttempts {
		return ErrCodeLocked
	}
	if candidate != value {
		return ErrCodeMismatch
	}
	return nil
}

// Verified reports whether the code of the given kind has already
// been verified.
func (c *ConfirmationCode) Verified(kind CodeKind) bool {
	if kind == CodeKindStart {
		return c.Status == CodeStatusStartVerified ||
			c.Status == CodeStatusReleasePending || c.Status == CodeStatusReleaseVerified
	}
	return c.Status == CodeStatusReleaseVerified
}

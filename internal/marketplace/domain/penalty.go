package domain

import "time"

// WorkerPenalty tracks a worker's cancellation history. Crossing the
// cancellation threshold sets BlockedUntil; the penalty-expiry sweep
// clears elapsed blocks.
type WorkerPenalty struct {
	WorkerID          string     `db:"worker_id"`
	CancellationCount int        `db:"cancellation_count"`
	BlockedUntil      *time.Time `db:"blocked_until"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// BlockedAt reports whether the worker is blocked from bidding at now.
func (p *WorkerPenalty) BlockedAt(now time.Time) bool {
	return p.BlockedUntil != nil && now.Before(*p.BlockedUntil)
}

package domain

import "time"

// PaymentStatus is the escrow state of a job's payment transaction.
type PaymentStatus string

const (
	PaymentStatusPendingEscrow PaymentStatus = "PENDING_ESCROW"
	PaymentStatusEscrowLocked  PaymentStatus = "ESCROW_LOCKED"
	PaymentStatusReleased      PaymentStatus = "RELEASED"
	PaymentStatusRefunded      PaymentStatus = "REFUNDED"
	PaymentStatusFailed        PaymentStatus = "FAILED"
)

// PaymentActive reports whether the transaction still holds (or may
// come to hold) funds. At most one active transaction exists per job.
func PaymentActive(s PaymentStatus) bool {
	switch s {
	case PaymentStatusFailed, PaymentStatusRefunded:
		return false
	}
	return true
}

// PaymentTransaction records the escrow state for one job. It tracks
// custody state only; actual money movement lives with the gateway.
type PaymentTransaction struct {
	PaymentID  string        `db:"payment_id"`
	JobID      string        `db:"job_id"`
	ClientID   string        `db:"client_id"`
	WorkerID   string        `db:"worker_id"`
	Amount     int64         `db:"amount"` // immutable once ESCROW_LOCKED
	Mode       string        `db:"mode"`
	Status     PaymentStatus `db:"status"`
	GatewayRef string        `db:"gateway_ref"`
	CreatedAt  time.Time     `db:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at"`
}

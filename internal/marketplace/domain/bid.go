package domain

import "time"

// BidStatus is the lifecycle state of a worker's bid on a job.
type BidStatus string

const (
	BidStatusPending   BidStatus = "PENDING"
	BidStatusAccepted  BidStatus = "ACCEPTED"
	BidStatusRejected  BidStatus = "REJECTED"
	BidStatusWithdrawn BidStatus = "WITHDRAWN"
)

// Bid is a worker's offer on a job. A worker places at most one bid
// per job; a job carries at most one ACCEPTED bid at any time.
type Bid struct {
	BidID       string    `db:"bid_id"`
	JobID       string    `db:"job_id"`
	WorkerID    string    `db:"worker_id"`
	Amount      int64     `db:"amount"` // minor currency units
	PartnerName string    `db:"partner_name"`
	PartnerFee  int64     `db:"partner_fee"`
	Status      BidStatus `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

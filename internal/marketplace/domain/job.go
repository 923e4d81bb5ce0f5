package domain

import "time"

// JobStatus is the lifecycle state of a marketplace job.
type JobStatus string

const (
	JobStatusCreated                JobStatus = "CREATED"
	JobStatusOpenForBids            JobStatus = "OPEN_FOR_BIDS"
	JobStatusBidSelected            JobStatus = "BID_SELECTED_AWAITING_HANDSHAKE"
	JobStatusReadyToStart           JobStatus = "READY_TO_START"
	JobStatusInProgress             JobStatus = "IN_PROGRESS"
	JobStatusCompletedPendingPaym   JobStatus = "COMPLETED_PENDING_PAYMENT"
	JobStatusPaymentReleased        JobStatus = "PAYMENT_RELEASED"
	JobStatusCompleted              JobStatus = "COMPLETED"
	JobStatusCancelled              JobStatus = "CANCELLED"
	JobStatusClosedDueToExpiration  JobStatus = "JOB_CLOSED_DUE_TO_EXPIRATION"
)

// Urgency levels accepted on job creation.
const (
	UrgencyLow    = "LOW"
	UrgencyMedium = "MEDIUM"
	UrgencyHigh   = "HIGH"
)

// Payment modes accepted on job creation.
const (
	PaymentModeCash   = "CASH"
	PaymentModeEscrow = "ESCROW"
)

// jobTransitions lists the allowed predecessor → successor pairs.
// CANCELLED and JOB_CLOSED_DUE_TO_EXPIRATION are handled by
// CanCancel / CanExpire rather than this table.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusCreated:              {JobStatusOpenForBids},
	JobStatusOpenForBids:          {JobStatusBidSelected},
	JobStatusBidSelected:          {JobStatusReadyToStart},
	JobStatusReadyToStart:         {JobStatusInProgress},
	JobStatusInProgress:           {JobStatusCompletedPendingPaym},
	JobStatusCompletedPendingPaym: {JobStatusPaymentReleased},
	JobStatusPaymentReleased:      {JobStatusCompleted},
}

// CanTransition reports whether from → to is a legal forward transition.
func CanTransition(from, to JobStatus) bool {
	if to == JobStatusCancelled {
		return CanCancel(from)
	}
	if to == JobStatusClosedDueToExpiration {
		return CanExpire(from)
	}
	for _, next := range jobTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
// PAYMENT_RELEASED is terminal for money purposes; the optional
// PAYMENT_RELEASED → COMPLETED step only records client sign-off.
func IsTerminal(s JobStatus) bool {
	switch s {
	case JobStatusCompleted, JobStatusCancelled, JobStatusClosedDueToExpiration, JobStatusPaymentReleased:
		return true
	}
	return false
}

// CanCancel reports whether a job in the given status may still be cancelled.
func CanCancel(s JobStatus) bool {
	return !IsTerminal(s)
}

// CanExpire reports whether the expiration sweep may close a job in
// the given status. Only pre-IN_PROGRESS jobs expire.
func CanExpire(s JobStatus) bool {
	switch s {
	case JobStatusCreated, JobStatusOpenForBids, JobStatusBidSelected, JobStatusReadyToStart:
		return true
	}
	return false
}

// ReviewEligible reports whether reviews may be written for the job.
func ReviewEligible(s JobStatus) bool {
	return s == JobStatusPaymentReleased || s == JobStatusCompleted
}

// HasAssignedWorker reports whether a job in the given status must
// carry a non-empty AssignedWorkerID.
func HasAssignedWorker(s JobStatus) bool {
	switch s {
	case JobStatusBidSelected, JobStatusReadyToStart, JobStatusInProgress,
		JobStatusCompletedPendingPaym, JobStatusPaymentReleased, JobStatusCompleted:
		return true
	}
	return false
}

// Job is a posted piece of work moving through the bid/execute/pay lifecycle.
type Job struct {
	JobID            string     `db:"job_id"`
	ClientID         string     `db:"client_id"`
	AssignedWorkerID string     `db:"assigned_worker_id"`
	Title            string     `db:"title"`
	Description      string     `db:"description"`
	Urgency          string     `db:"urgency"`
	PaymentMode      string     `db:"payment_mode"`
	Status           JobStatus  `db:"status"`
	ScheduledStartAt *time.Time `db:"scheduled_start_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotBiddable is returned when bidding on a job that is not open for bids
	ErrJobNotBiddable = errors.New("job is not open for bids")

	// ErrDuplicateBid is returned when a worker already has a bid on the job
	ErrDuplicateBid = errors.New("worker already bid on this job")

	// ErrWorkerBlocked is returned when a blocked worker attempts to bid
	ErrWorkerBlocked = errors.New("worker is blocked from bidding")

	// ErrBidNotFound is returned when a bid cannot be found in the database
	ErrBidNotFound = errors.New("bid not found")

	// ErrBidNotPending is returned when accepting a bid that is not PENDING
	ErrBidNotPending = errors.New("bid is not in PENDING status")

	// ErrNotJobOwner is returned when the caller is not the job's creator
	ErrNotJobOwner = errors.New("caller is not the job owner")

	// ErrNotAssignedWorker is returned when a worker action comes from
	// someone other than the job's assigned worker
	ErrNotAssignedWorker = errors.New("caller is not the assigned worker")

	// ErrHandshakeNotAllowed is returned when handshake preconditions are unmet
	ErrHandshakeNotAllowed = errors.New("handshake not allowed in current state")

	// ErrInvalidJobStateTransition is returned on a transition with no valid predecessor
	ErrInvalidJobStateTransition = errors.New("invalid job state transition")

	// ErrCodeNotFound is returned when no confirmation code exists for the job
	ErrCodeNotFound = errors.New("confirmation code not found")

	// ErrCodeExpired is returned when verifying a code past its expiry
	ErrCodeExpired = errors.New("confirmation code expired")

	// ErrCodeLocked is returned when a code's attempt budget is exhausted
	ErrCodeLocked = errors.New("confirmation code locked after too many attempts")

	// ErrCodeMismatch is returned on a wrong code value with attempts remaining
	ErrCodeMismatch = errors.New("confirmation code mismatch")

	// ErrPaymentNotFound is returned when no payment transaction exists for the job
	ErrPaymentNotFound = errors.New("payment transaction not found")

	// ErrEscrowAlreadyLocked is returned when the job already has an active escrow
	ErrEscrowAlreadyLocked = errors.New("escrow already locked for this job")

	// ErrEscrowNotLocked is returned when releasing a job with no locked escrow
	ErrEscrowNotLocked = errors.New("escrow is not locked for this job")
)

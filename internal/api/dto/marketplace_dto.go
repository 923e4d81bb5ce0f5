package dto

import "time"

type CreateJobRequest struct {
	ClientID         string     `json:"client_id" binding:"required"`
	Title            string     `json:"title" binding:"required"`
	Description      string     `json:"description"`
	Urgency          string     `json:"urgency" binding:"required,oneof=LOW MEDIUM HIGH"`
	PaymentMode      string     `json:"payment_mode" binding:"required,oneof=CASH ESCROW"`
	ScheduledStartAt *time.Time `json:"scheduled_start_at"`
}

type UpdateJobRequest struct {
	ClientID         string     `json:"client_id" binding:"required"`
	Title            string     `json:"title" binding:"required"`
	Description      string     `json:"description"`
	Urgency          string     `json:"urgency" binding:"required,oneof=LOW MEDIUM HIGH"`
	ScheduledStartAt *time.Time `json:"scheduled_start_at"`
}

type ListJobsRequest struct {
	ClientID string `form:"client_id"`
	WorkerID string `form:"worker_id"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID            string `json:"job_id"`
	ClientID         string `json:"client_id"`
	AssignedWorkerID string `json:"assigned_worker_id,omitempty"`
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	Urgency          string `json:"urgency"`
	PaymentMode      string `json:"payment_mode"`
	Status           string `json:"status"`
	ScheduledStartAt string `json:"scheduled_start_at,omitempty"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

type OpenForBidsRequest struct {
	ClientID string `json:"client_id" binding:"required"`
}

type PlaceBidRequest struct {
	WorkerID    string `json:"worker_id" binding:"required"`
	Amount      int64  `json:"amount" binding:"required"`
	PartnerName string `json:"partner_name"`
	PartnerFee  int64  `json:"partner_fee"`
}

type BidDTO struct {
	BidID       string `json:"bid_id"`
	JobID       string `json:"job_id"`
	WorkerID    string `json:"worker_id"`
	Amount      int64  `json:"amount"`
	PartnerName string `json:"partner_name,omitempty"`
	PartnerFee  int64  `json:"partner_fee,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type ListBidsResponse struct {
	Bids []BidDTO `json:"bids"`
}

type AcceptBidRequest struct {
	ClientID string `json:"client_id" binding:"required"`
}

type AcceptBidResponse struct {
	Bid BidDTO `json:"bid"`
	Job JobDTO `json:"job"`
}

type HandshakeRequest struct {
	WorkerID string `json:"worker_id" binding:"required"`
}

type StartWorkRequest struct {
	WorkerID  string `json:"worker_id" binding:"required"`
	StartCode string `json:"start_code" binding:"required"`
}

type CompleteJobRequest struct {
	WorkerID string `json:"worker_id" binding:"required"`
}

type ReleasePaymentRequest struct {
	ClientID    string `json:"client_id" binding:"required"`
	ReleaseCode string `json:"release_code" binding:"required"`
}

type ReleasePaymentResponse struct {
	Job     JobDTO     `json:"job"`
	Payment PaymentDTO `json:"payment"`
}

type FinalizeJobRequest struct {
	ClientID string `json:"client_id" binding:"required"`
}

type CancelJobRequest struct {
	CallerID string `json:"caller_id" binding:"required"`
}

type LockEscrowRequest struct {
	ClientID string `json:"client_id" binding:"required"`
	Amount   int64  `json:"amount" binding:"required"`
}

type PaymentDTO struct {
	PaymentID  string `json:"payment_id"`
	JobID      string `json:"job_id"`
	ClientID   string `json:"client_id"`
	WorkerID   string `json:"worker_id"`
	Amount     int64  `json:"amount"`
	Mode       string `json:"mode"`
	Status     string `json:"status"`
	Active     bool   `json:"active"`
	GatewayRef string `json:"gateway_ref,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type ConfirmationCodeDTO struct {
	JobID            string `json:"job_id"`
	StartCode        string `json:"start_code"`
	StartExpiresAt   string `json:"start_expires_at"`
	ReleaseCode      string `json:"release_code,omitempty"`
	ReleaseExpiresAt string `json:"release_expires_at,omitempty"`
	Status           string `json:"status"`
}

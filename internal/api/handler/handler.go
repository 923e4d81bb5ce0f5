package handler

import (
	"log/slog"
	"time"

	"github.com/taskhive/taskhive-be/internal/api/dto"
	"github.com/taskhive/taskhive-be/internal/marketplace/bidding"
	"github.com/taskhive/taskhive-be/internal/marketplace/confirm"
	"github.com/taskhive/taskhive-be/internal/marketplace/domain"
	"github.com/taskhive/taskhive-be/internal/marketplace/escrow"
	"github.com/taskhive/taskhive-be/internal/marketplace/jobs"
	"github.com/taskhive/taskhive-be/shared/postgresql"
	"github.com/taskhive/taskhive-be/shared/rabbitmq"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	Jobs         *jobs.Service
	Bids         *bidding.Service
	Codes        *confirm.Manager
	Escrow       *escrow.Ledger
	DBClient     *postgresql.Client
	RabbitClient *rabbitmq.Client
}

// JobHandler handles job lifecycle HTTP requests
type JobHandler struct {
	logger *slog.Logger
	jobs   *jobs.Service
	codes  *confirm.Manager
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		jobs:   deps.Jobs,
		codes:  deps.Codes,
	}
}

// BidHandler handles bid placement and selection HTTP requests
type BidHandler struct {
	logger *slog.Logger
	bids   *bidding.Service
}

// NewBidHandler creates a new BidHandler instance
func NewBidHandler(deps *Dependencies) *BidHandler {
	return &BidHandler{
		logger: deps.Logger,
		bids:   deps.Bids,
	}
}

// PaymentHandler handles escrow HTTP requests
type PaymentHandler struct {
	logger *slog.Logger
	escrow *escrow.Ledger
	jobs   *jobs.Service
}

// NewPaymentHandler creates a new PaymentHandler instance
func NewPaymentHandler(deps *Dependencies) *PaymentHandler {
	return &PaymentHandler{
		logger: deps.Logger,
		escrow: deps.Escrow,
		jobs:   deps.Jobs,
	}
}

func toJobDTO(job *domain.Job) dto.JobDTO {
	out := dto.JobDTO{
		JobID:            job.JobID,
		ClientID:         job.ClientID,
		AssignedWorkerID: job.AssignedWorkerID,
		Title:            job.Title,
		Description:      job.Description,
		Urgency:          job.Urgency,
		PaymentMode:      job.PaymentMode,
		Status:           string(job.Status),
		CreatedAt:        job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        job.UpdatedAt.Format(time.RFC3339),
	}
	if job.ScheduledStartAt != nil {
		out.ScheduledStartAt = job.ScheduledStartAt.Format(time.RFC3339)
	}
	return out
}

func toBidDTO(bid *domain.Bid) dto.BidDTO {
	return dto.BidDTO{
		BidID:       bid.BidID,
		JobID:       bid.JobID,
		WorkerID:    bid.WorkerID,
		Amount:      bid.Amount,
		PartnerName: bid.PartnerName,
		PartnerFee:  bid.PartnerFee,
		Status:      string(bid.Status),
		CreatedAt:   bid.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   bid.UpdatedAt.Format(time.RFC3339),
	}
}

func toPaymentDTO(payment *domain.PaymentTransaction) dto.PaymentDTO {
	return dto.PaymentDTO{
		PaymentID:  payment.PaymentID,
		JobID:      payment.JobID,
		ClientID:   payment.ClientID,
		WorkerID:   payment.WorkerID,
		Amount:     payment.Amount,
		Mode:       payment.Mode,
		Status:     string(payment.Status),
		Active:     domain.PaymentActive(payment.Status),
		GatewayRef: payment.GatewayRef,
		CreatedAt:  payment.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  payment.UpdatedAt.Format(time.RFC3339),
	}
}

func toCodeDTO(code *domain.ConfirmationCode) dto.ConfirmationCodeDTO {
	out := dto.ConfirmationCodeDTO{
		JobID:          code.JobID,
		StartCode:      code.StartCode,
		StartExpiresAt: code.StartExpiresAt.Format(time.RFC3339),
		ReleaseCode:    code.ReleaseCode,
		Status:         string(code.Status),
	}
	if code.ReleaseExpiresAt != nil {
		out.ReleaseExpiresAt = code.ReleaseExpiresAt.Format(time.RFC3339)
	}
	return out
}

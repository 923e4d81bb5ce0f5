package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/taskhive/taskhive-be/internal/api/dto"
	"github.com/taskhive/taskhive-be/internal/marketplace/jobs"
	"github.com/taskhive/taskhive-be/internal/marketplace/storage"
)

// CreateJob handles POST /api/v1/jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.jobs.CreateJob(c.Request.Context(), jobs.CreateJobInput{
		ClientID:         req.ClientID,
		Title:            req.Title,
		Description:      req.Description,
		Urgency:          req.Urgency,
		PaymentMode:      req.PaymentMode,
		ScheduledStartAt: req.ScheduledStartAt,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, toJobDTO(job))
}

// UpdateJob handles PUT /api/v1/jobs/:job_id
// Editing is only allowed before a worker has been selected
func (h *JobHandler) UpdateJob(c *gin.Context) {
	jobID, ok := jobIDParam(c, h.logger)
	if !ok {
		return
	}

	var req dto.UpdateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.jobs.UpdateJob(c.Request.Context(), jobID, jobs.UpdateJobInput{
		ClientID:         req.ClientID,
		Title:            req.Title,
		Description:      req.Description,
		Urgency:          req.Urgency,
		ScheduledStartAt: req.ScheduledStartAt,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := jobIDParam(c, h.logger)
	if !ok {
		return
	}

	job, err := h.jobs.GetJob(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs with optional filtering and keyset pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.JobFilter{
		ClientID: req.ClientID,
		WorkerID: req.WorkerID,
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	jobList, err := h.jobs.ListJobs(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	hasMore := len(jobList) > req.PageSize
	if hasMore {
		jobList = jobList[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobList))
	for i := range jobList {
		jobResponse[i] = toJobDTO(&jobList[i])
	}

	var nextCursor string
	if hasMore {
		last := jobList[len(jobList)-1]
		nextCursor = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.JobID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// OpenForBids handles POST /api/v1/jobs/:job_id/open
func (h *JobHandler) OpenForBids(c *gin.Context) {
	jobID, ok := jobIDParam(c, h.logger)
	if !ok {
		return
	}

	var req dto.OpenForBidsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	job, err := h.jobs.OpenForBids(c.Request.Context(), jobID, req.ClientID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// StartWork handles POST /api/v1/jobs/:job_id/start
// The assigned worker submits the start code received from the client
func (h *JobHandler) StartWork(c *gin.Context) {
	jobID, ok := jobIDParam(c, h.logger)
	if !ok {
		return
	}

	var req dto.StartWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	job, err := h.jobs.StartWork(c.Request.Context(), jobID, req.WorkerID, req.StartCode)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// CompleteJob handles POST /api/v1/jobs/:job_id/complete
func (h *JobHandler) CompleteJob(c *gin.Context) {
	jobID, ok := jobIDParam(c, h.logger)
	if !ok {
		return
	}

	var req dto.CompleteJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	job, err := h.jobs.Complete(c.Request.Context(), jobID, req.WorkerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// ReleasePayment handles POST /api/v1/jobs/:job_id/release
// The client submits the release code to move escrowed funds
func (h *JobHandler) ReleasePayment(c *gin.Context) {
	jobID, ok := jobIDParam(c, h.logger)
	if !ok {
		return
	}

	var req dto.ReleasePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	job, payment, err := h.jobs.ReleasePayment(c.Request.Context(), jobID, req.ClientID, req.ReleaseCode)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ReleasePaymentResponse{
		Job:     toJobDTO(job),
		Payment: toPaymentDTO(payment),
	})
}

// FinalizeJob handles POST /api/v1/jobs/:job_id/finalize
func (h *JobHandler) FinalizeJob(c *gin.Context) {
	jobID, ok := jobIDParam(c, h.logger)
	if !ok {
		return
	}

	var req dto.FinalizeJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	job, err := h.jobs.Finalize(c.Request.Context(), jobID, req.ClientID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel
// Either party may cancel while the lifecycle permits it
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID, ok := jobIDParam(c, h.logger)
	if !ok {
		return
	}

	var req dto.CancelJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	job, err := h.jobs.Cancel(c.Request.Context(), jobID, req.CallerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// GetConfirmationCodes handles GET /api/v1/jobs/:job_id/codes
func (h *JobHandler) GetConfirmationCodes(c *gin.Context) {
	jobID, ok := jobIDParam(c, h.logger)
	if !ok {
		return
	}

	code, err := h.codes.GetCodes(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toCodeDTO(code))
}

// ReissueStartCode handles POST /api/v1/jobs/:job_id/codes/start/reissue
func (h *JobHandler) ReissueStartCode(c *gin.Context) {
	jobID, ok := jobIDParam(c, h.logger)
	if !ok {
		return
	}

	code, err := h.codes.ReissueStartCode(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toCodeDTO(code))
}

// ReissueReleaseCode handles POST /api/v1/jobs/:job_id/codes/release/reissue
func (h *JobHandler) ReissueReleaseCode(c *gin.Context) {
	jobID, ok := jobIDParam(c, h.logger)
	if !ok {
		return
	}

	code, err := h.codes.ReissueReleaseCode(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toCodeDTO(code))
}

// jobIDParam validates the job_id path parameter as a UUID
func jobIDParam(c *gin.Context, logger *slog.Logger) (string, bool) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		logger.Error("Invalid job_id format", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return "", false
	}
	return jobID, true
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskhive/taskhive-be/internal/api/dto"
)

// LockEscrow handles POST /api/v1/jobs/:job_id/escrow
// The client funds the job before work starts
func (h *PaymentHandler) LockEscrow(c *gin.Context) {
	jobID, ok := jobIDParam(c, h.logger)
	if !ok {
		return
	}

	var req dto.LockEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	payment, err := h.escrow.Lock(c.Request.Context(), jobID, req.ClientID, req.Amount)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, toPaymentDTO(payment))
}

// EscrowStatus handles GET /api/v1/jobs/:job_id/escrow
func (h *PaymentHandler) EscrowStatus(c *gin.Context) {
	jobID, ok := jobIDParam(c, h.logger)
	if !ok {
		return
	}

	payment, err := h.escrow.Status(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toPaymentDTO(payment))
}

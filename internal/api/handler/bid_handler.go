package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/taskhive/taskhive-be/internal/api/dto"
	"github.com/taskhive/taskhive-be/internal/marketplace/bidding"
)

// PlaceBid handles POST /api/v1/jobs/:job_id/bids
func (h *BidHandler) PlaceBid(c *gin.Context) {
	jobID, ok := jobIDParam(c, h.logger)
	if !ok {
		return
	}

	var req dto.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	bid, err := h.bids.PlaceBid(c.Request.Context(), bidding.PlaceBidInput{
		JobID:       jobID,
		WorkerID:    req.WorkerID,
		Amount:      req.Amount,
		PartnerName: req.PartnerName,
		PartnerFee:  req.PartnerFee,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, toBidDTO(bid))
}

// ListBids handles GET /api/v1/jobs/:job_id/bids
func (h *BidHandler) ListBids(c *gin.Context) {
	jobID, ok := jobIDParam(c, h.logger)
	if !ok {
		return
	}

	bids, err := h.bids.ListBidsForJob(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	bidResponse := make([]dto.BidDTO, len(bids))
	for i := range bids {
		bidResponse[i] = toBidDTO(&bids[i])
	}

	c.JSON(http.StatusOK, dto.ListBidsResponse{Bids: bidResponse})
}

// AcceptBid handles POST /api/v1/bids/:bid_id/accept
// The job owner selects the winning bid, which rejects all siblings
// and issues the start code in the same transaction
func (h *BidHandler) AcceptBid(c *gin.Context) {
	bidID, ok := bidIDParam(c, h.logger)
	if !ok {
		return
	}

	var req dto.AcceptBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	bid, job, err := h.bids.AcceptBid(c.Request.Context(), bidID, req.ClientID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.AcceptBidResponse{
		Bid: toBidDTO(bid),
		Job: toJobDTO(job),
	})
}

// Handshake handles POST /api/v1/bids/:bid_id/handshake
// The selected worker confirms the engagement
func (h *BidHandler) Handshake(c *gin.Context) {
	bidID, ok := bidIDParam(c, h.logger)
	if !ok {
		return
	}

	var req dto.HandshakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	job, err := h.bids.Handshake(c.Request.Context(), bidID, req.WorkerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// bidIDParam validates the bid_id path parameter as a UUID
func bidIDParam(c *gin.Context, logger *slog.Logger) (string, bool) {
	bidID := c.Param("bid_id")
	if _, err := uuid.Parse(bidID); err != nil {
		logger.Error("Invalid bid_id format", slog.String("bid_id", bidID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "bid_id must be a valid UUID",
		})
		return "", false
	}
	return bidID, true
}

package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskhive/taskhive-be/internal/marketplace/domain"
)

// statusForError maps domain sentinel errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrBidNotFound),
		errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrCodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotJobOwner),
		errors.Is(err, domain.ErrNotAssignedWorker),
		errors.Is(err, domain.ErrWorkerBlocked):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrDuplicateBid),
		errors.Is(err, domain.ErrJobNotBiddable),
		errors.Is(err, domain.ErrBidNotPending),
		errors.Is(err, domain.ErrHandshakeNotAllowed),
		errors.Is(err, domain.ErrInvalidJobStateTransition),
		errors.Is(err, domain.ErrEscrowAlreadyLocked),
		errors.Is(err, domain.ErrEscrowNotLocked):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCodeMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrCodeExpired):
		return http.StatusGone
	case errors.Is(err, domain.ErrCodeLocked):
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a JSON error response for a domain error. Internal
// errors are logged with full detail and returned with a generic message.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusForError(err)

	if status == http.StatusInternalServerError {
		logger.Error("Request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Any("error", err),
		)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

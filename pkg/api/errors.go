package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/botlifecycle/pkg/admission"
	"github.com/codeready-toolchain/botlifecycle/pkg/callback"
	"github.com/codeready-toolchain/botlifecycle/pkg/lifecycle"
	"github.com/codeready-toolchain/botlifecycle/pkg/store"
)

// writeServiceError maps a domain-layer error to its HTTP response in one
// place so handlers never pick status codes themselves.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrOrchestratorFailed):
		slog.Error("orchestrator call failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "orchestrator operation failed"})
	case errors.Is(err, lifecycle.ErrIllegalState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrLimitExceeded):
		c.JSON(http.StatusConflict, gin.H{"error": "user concurrency limit exceeded"})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflicting meeting already in progress"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, store.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store temporarily unavailable"})
	case errors.Is(err, store.ErrUnknownUser):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown user"})
	case errors.Is(err, store.ErrIllegalTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "illegal status transition"})
	case errors.Is(err, callback.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, callback.ErrIllegalStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, admission.ErrInvalidPlatform),
		errors.Is(err, admission.ErrMissingUserID),
		errors.Is(err, admission.ErrInvalidBotName),
		errors.Is(err, admission.ErrInvalidMeetingURL),
		errors.Is(err, admission.ErrInvalidTask),
		errors.Is(err, admission.ErrUnknownConfigField):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		slog.Error("unexpected service error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

package server

import (
	"errors"
	"net/http"

	"github.com/ashenforge/buildshare/backend/internal/analytics"
	"github.com/ashenforge/buildshare/backend/internal/builds"
	"github.com/ashenforge/buildshare/backend/internal/feedback"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Wire error codes. Every non-2xx response carries one of these in the
// {"error","message","status"} body.
const (
	codeValidationError = "validation_error"
	codeNotFound        = "not_found"
	codeNotOwner        = "not_owner"
	codeAlreadyVoted    = "already_voted"
	codeRateLimited     = "rate_limited"
	codeInternalError   = "internal_error"
	codeNotImplemented  = "not_implemented"
)

type errorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorPayload{
		Error:   code,
		Message: message,
		Status:  status,
	})
}

// writeDomainError maps service errors onto the wire taxonomy. Anything not
// recognized is an internal error; it is logged but never swallowed into a
// 200.
func (h *httpHandler) writeDomainError(c *gin.Context, err error) {
	var buildValidation *builds.ValidationError
	var feedbackValidation *feedback.ValidationError
	var analyticsValidation *analytics.ValidationError

	switch {
	case errors.As(err, &buildValidation):
		writeError(c, http.StatusBadRequest, codeValidationError, buildValidation.Reason)
	case errors.As(err, &feedbackValidation):
		writeError(c, http.StatusBadRequest, codeValidationError, feedbackValidation.Reason)
	case errors.As(err, &analyticsValidation):
		writeError(c, http.StatusBadRequest, codeValidationError, analyticsValidation.Reason)
	case errors.Is(err, builds.ErrNotFound):
		writeError(c, http.StatusNotFound, codeNotFound, "build does not exist")
	case errors.Is(err, builds.ErrNotOwner):
		writeError(c, http.StatusForbidden, codeNotOwner, "you do not have permission to modify this build")
	case errors.Is(err, builds.ErrAlreadyVoted):
		writeError(c, http.StatusConflict, codeAlreadyVoted, "you have already voted on this build")
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		writeError(c, http.StatusInternalServerError, codeInternalError, "an internal error occurred")
	}
}

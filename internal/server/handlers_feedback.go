package server

import (
	"net/http"
	"time"

	"github.com/ashenforge/buildshare/backend/internal/feedback"
	"github.com/ashenforge/buildshare/backend/internal/session"
	"github.com/gin-gonic/gin"
)

type feedbackPayload struct {
	Query           string `json:"query"`
	ResponseSnippet string `json:"response_snippet"`
	SearchMode      string `json:"search_mode"`
	Rating          string `json:"rating"`
	Comment         string `json:"comment"`
}

type feedbackResponsePayload struct {
	FeedbackID string    `json:"feedback_id"`
	ReceivedAt time.Time `json:"received_at"`
}

func (h *httpHandler) handleSubmitFeedback(c *gin.Context) {
	var payload feedbackPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, codeValidationError, "request body is not valid JSON")
		return
	}

	record, err := h.feedbackService.Submit(c.Request.Context(), feedback.SubmitRequest{
		Query:           payload.Query,
		ResponseSnippet: payload.ResponseSnippet,
		SearchMode:      payload.SearchMode,
		Rating:          payload.Rating,
		Comment:         payload.Comment,
	}, session.FromContext(c))
	if err != nil {
		h.writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, feedbackResponsePayload{
		FeedbackID: record.FeedbackID,
		ReceivedAt: record.CreatedAt,
	})
}

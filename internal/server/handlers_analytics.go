package server

import (
	"net/http"
	"strconv"

	"github.com/ashenforge/buildshare/backend/internal/analytics"
	"github.com/ashenforge/buildshare/backend/internal/session"
	"github.com/gin-gonic/gin"
)

type searchEventPayload struct {
	Query       string `json:"query"`
	SearchMode  string `json:"search_mode"`
	ResultCount int    `json:"result_count"`
	LatencyMS   *int   `json:"latency_ms"`
}

type popularQueriesResponsePayload struct {
	Queries    []analytics.PopularQuery `json:"queries"`
	PeriodDays int                      `json:"period_days"`
}

func (h *httpHandler) handleRecordSearch(c *gin.Context) {
	var payload searchEventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, codeValidationError, "request body is not valid JSON")
		return
	}

	err := h.analyticsService.Record(c.Request.Context(), analytics.RecordRequest{
		Query:       payload.Query,
		SearchMode:  payload.SearchMode,
		ResultCount: payload.ResultCount,
		LatencyMS:   payload.LatencyMS,
	}, session.FromContext(c))
	if err != nil {
		h.writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"recorded": true})
}

func (h *httpHandler) handlePopularQueries(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	if days <= 0 {
		days = 30
	}
	if days > 90 {
		days = 90
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	queries, err := h.analyticsService.Popular(c.Request.Context(), days, limit)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	if queries == nil {
		queries = []analytics.PopularQuery{}
	}

	c.JSON(http.StatusOK, popularQueriesResponsePayload{
		Queries:    queries,
		PeriodDays: days,
	})
}

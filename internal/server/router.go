package server

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/ashenforge/buildshare/backend/internal/analytics"
	"github.com/ashenforge/buildshare/backend/internal/builds"
	"github.com/ashenforge/buildshare/backend/internal/feedback"
	"github.com/ashenforge/buildshare/backend/internal/ratelimit"
	"github.com/ashenforge/buildshare/backend/internal/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

var (
	errMissingBuildService     = errors.New("build service dependency required")
	errMissingFeedbackService  = errors.New("feedback service dependency required")
	errMissingAnalyticsService = errors.New("analytics service dependency required")
)

// Dependencies wires the HTTP surface to the domain services. Limiter is
// optional: without one no budget is enforced (single-replica/dev mode).
type Dependencies struct {
	BuildService     *builds.Service
	FeedbackService  *feedback.Service
	AnalyticsService *analytics.Service
	Limiter          *ratelimit.Limiter
	WebsiteURL       string
	Logger           *zap.Logger
}

// NewHTTPHandler composes the versioned API surface.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.BuildService == nil {
		return nil, errMissingBuildService
	}
	if deps.FeedbackService == nil {
		return nil, errMissingFeedbackService
	}
	if deps.AnalyticsService == nil {
		return nil, errMissingAnalyticsService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := &httpHandler{
		buildService:     deps.BuildService,
		feedbackService:  deps.FeedbackService,
		analyticsService: deps.AnalyticsService,
		limiter:          deps.Limiter,
		websiteURL:       deps.WebsiteURL,
		logger:           logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Content-Type", session.Header},
		ExposeHeaders: []string{session.Header, requestIDHeader},
		MaxAge:        12 * time.Hour,
	}))
	router.Use(handler.requestLogger)
	router.Use(session.Middleware())

	router.GET("/healthz", handler.handleHealth)

	api := router.Group("/api/v1")

	buildRoutes := api.Group("/builds")
	buildRoutes.POST("", handler.rateLimit(ratelimit.ClassBuildCreate), handler.handleCreateBuild)
	buildRoutes.GET("", handler.rateLimit(ratelimit.ClassRead), handler.handleListBuilds)
	buildRoutes.GET("/:id", handler.rateLimit(ratelimit.ClassRead), handler.handleGetBuild)
	buildRoutes.PATCH("/:id", handler.rateLimit(ratelimit.ClassBuildCreate), handler.handleUpdateBuild)
	buildRoutes.DELETE("/:id", handler.rateLimit(ratelimit.ClassBuildCreate), handler.handleDeleteBuild)
	buildRoutes.POST("/:id/vote", handler.rateLimit(ratelimit.ClassVote), handler.handleVoteBuild)

	api.POST("/feedback", handler.rateLimit(ratelimit.ClassFeedback), handler.handleSubmitFeedback)
	api.POST("/analytics/search", handler.rateLimit(ratelimit.ClassAnalyticsWrite), handler.handleRecordSearch)
	api.GET("/analytics/popular-queries", handler.rateLimit(ratelimit.ClassRead), handler.handlePopularQueries)

	return router, nil
}

type httpHandler struct {
	buildService     *builds.Service
	feedbackService  *feedback.Service
	analyticsService *analytics.Service
	limiter          *ratelimit.Limiter
	websiteURL       string
	logger           *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) requestLogger(c *gin.Context) {
	start := time.Now()
	requestID := uuid.NewString()
	c.Writer.Header().Set(requestIDHeader, requestID)

	c.Next()

	h.logger.Info("request completed",
		zap.String("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("duration", time.Since(start)),
	)
}

// rateLimit admits or rejects the request before the handler runs; a
// rejection performs no part of the underlying operation.
func (h *httpHandler) rateLimit(class ratelimit.Class) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.limiter == nil {
			c.Next()
			return
		}
		decision := h.limiter.Allow(c.Request.Context(), session.FromContext(c), class)
		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			writeError(c, http.StatusTooManyRequests, codeRateLimited,
				fmt.Sprintf("rate limit exceeded, try again in %d seconds", retryAfter))
			return
		}
		c.Next()
	}
}

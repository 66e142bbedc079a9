package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ashenforge/buildshare/backend/internal/analytics"
	"github.com/ashenforge/buildshare/backend/internal/builds"
	"github.com/ashenforge/buildshare/backend/internal/feedback"
	"github.com/ashenforge/buildshare/backend/internal/ratelimit"
	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryCounterStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newMemoryCounterStore() *memoryCounterStore {
	return &memoryCounterStore{counts: make(map[string]int64)}
}

func (s *memoryCounterStore) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[key]++
	return s.counts[key], nil
}

func newTestHandler(t *testing.T, limiter *ratelimit.Limiter) http.Handler {
	t.Helper()

	dsn := fmt.Sprintf("file:buildshare_server_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&builds.Build{}, &builds.Vote{}, &feedback.Feedback{}, &analytics.SearchEvent{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	buildService, err := builds.NewService(builds.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: builds.NewHexIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to construct build service: %v", err)
	}
	feedbackService, err := feedback.NewService(feedback.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to construct feedback service: %v", err)
	}
	analyticsService, err := analytics.NewService(analytics.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to construct analytics service: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		BuildService:     buildService,
		FeedbackService:  feedbackService,
		AnalyticsService: analyticsService,
		Limiter:          limiter,
		WebsiteURL:       "https://buildshare.gg",
	})
	if err != nil {
		t.Fatalf("failed to construct handler: %v", err)
	}
	return handler
}

func performRequest(t *testing.T, handler http.Handler, method, path, sessionID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		request.Header.Set("X-Session-ID", sessionID)
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body %q: %v", recorder.Body.String(), err)
	}
	return body
}

func validCreatePayload() map[string]any {
	return map[string]any{
		"name":                "Bulwark of the Vale",
		"description":         "Frontline tank with cleric support",
		"primary_archetype":   "tank",
		"secondary_archetype": "cleric",
		"race":                "dunir",
		"level":               25,
		"skills":              []string{"shield bash", "consecrate"},
		"equipment":           map[string]string{"weapon": "tower shield"},
	}
}

package server

import (
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/ashenforge/buildshare/backend/internal/ratelimit"
)

const testSessionID = "sess_0123456789abcdef01234567"

var sessionPattern = regexp.MustCompile(`^sess_[0-9a-f]{24}$`)

func TestHealthEndpoint(t *testing.T) {
	handler := newTestHandler(t, nil)

	recorder := performRequest(t, handler, http.MethodGet, "/healthz", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
}

func TestSessionHeaderMintedWhenAbsent(t *testing.T) {
	handler := newTestHandler(t, nil)

	recorder := performRequest(t, handler, http.MethodGet, "/api/v1/builds", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	minted := recorder.Header().Get("X-Session-ID")
	if !sessionPattern.MatchString(minted) {
		t.Fatalf("expected a minted session id, got %q", minted)
	}
}

func TestSessionHeaderEchoedWhenValid(t *testing.T) {
	handler := newTestHandler(t, nil)

	recorder := performRequest(t, handler, http.MethodGet, "/api/v1/builds", testSessionID, nil)
	if echoed := recorder.Header().Get("X-Session-ID"); echoed != testSessionID {
		t.Fatalf("expected session id %q echoed, got %q", testSessionID, echoed)
	}
}

func TestSessionHeaderReplacedWhenMalformed(t *testing.T) {
	handler := newTestHandler(t, nil)

	recorder := performRequest(t, handler, http.MethodGet, "/api/v1/builds", "sess_not-hex", nil)
	minted := recorder.Header().Get("X-Session-ID")
	if minted == "sess_not-hex" {
		t.Fatal("expected malformed session id to be replaced")
	}
	if !sessionPattern.MatchString(minted) {
		t.Fatalf("expected a minted session id, got %q", minted)
	}
}

func TestCreateBuildReturnsShareURL(t *testing.T) {
	handler := newTestHandler(t, nil)

	recorder := performRequest(t, handler, http.MethodPost, "/api/v1/builds", testSessionID, validCreatePayload())
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", recorder.Code, recorder.Body.String())
	}

	body := decodeBody(t, recorder)
	if body["class_name"] != "Paladin" {
		t.Fatalf("expected class_name Paladin, got %v", body["class_name"])
	}
	buildID, ok := body["build_id"].(string)
	if !ok || buildID == "" {
		t.Fatalf("expected a build_id, got %v", body["build_id"])
	}
	expectedShareURL := "https://buildshare.gg/?build=" + buildID
	if body["share_url"] != expectedShareURL {
		t.Fatalf("expected share_url %q, got %v", expectedShareURL, body["share_url"])
	}
	if body["is_public"] != true {
		t.Fatalf("expected new builds to default public, got %v", body["is_public"])
	}
}

func TestCreateBuildValidationErrorBody(t *testing.T) {
	handler := newTestHandler(t, nil)

	payload := validCreatePayload()
	payload["level"] = 99

	recorder := performRequest(t, handler, http.MethodPost, "/api/v1/builds", testSessionID, payload)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", recorder.Code)
	}

	body := decodeBody(t, recorder)
	if body["error"] != "validation_error" {
		t.Fatalf("expected error code validation_error, got %v", body["error"])
	}
	if body["status"] != float64(http.StatusBadRequest) {
		t.Fatalf("expected status field 400, got %v", body["status"])
	}
	if body["message"] == "" {
		t.Fatal("expected a human-readable message")
	}
}

func TestGetMissingBuildReturnsNotFound(t *testing.T) {
	handler := newTestHandler(t, nil)

	recorder := performRequest(t, handler, http.MethodGet, "/api/v1/builds/b_ffffffff", testSessionID, nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", recorder.Code)
	}
	if body := decodeBody(t, recorder); body["error"] != "not_found" {
		t.Fatalf("expected error code not_found, got %v", body["error"])
	}
}

func TestUpdateByNonOwnerReturnsForbidden(t *testing.T) {
	handler := newTestHandler(t, nil)

	created := performRequest(t, handler, http.MethodPost, "/api/v1/builds", testSessionID, validCreatePayload())
	buildID := decodeBody(t, created)["build_id"].(string)

	otherSession := "sess_ffffffffffffffffffffffff"
	recorder := performRequest(t, handler, http.MethodPatch, "/api/v1/builds/"+buildID, otherSession,
		map[string]any{"name": "Stolen Build"})
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if body := decodeBody(t, recorder); body["error"] != "not_owner" {
		t.Fatalf("expected error code not_owner, got %v", body["error"])
	}
}

func TestVoteTwiceReturnsConflict(t *testing.T) {
	handler := newTestHandler(t, nil)

	created := performRequest(t, handler, http.MethodPost, "/api/v1/builds", testSessionID, validCreatePayload())
	buildID := decodeBody(t, created)["build_id"].(string)

	voterSession := "sess_aaaaaaaaaaaaaaaaaaaaaaaa"
	first := performRequest(t, handler, http.MethodPost, "/api/v1/builds/"+buildID+"/vote", voterSession,
		map[string]any{"rating": 4})
	if first.Code != http.StatusCreated {
		t.Fatalf("expected status 201 for first vote, got %d: %s", first.Code, first.Body.String())
	}
	firstBody := decodeBody(t, first)
	if firstBody["your_rating"] != float64(4) {
		t.Fatalf("expected your_rating 4, got %v", firstBody["your_rating"])
	}
	if firstBody["avg_rating"] != float64(4) {
		t.Fatalf("expected avg_rating 4, got %v", firstBody["avg_rating"])
	}

	second := performRequest(t, handler, http.MethodPost, "/api/v1/builds/"+buildID+"/vote", voterSession,
		map[string]any{"rating": 2})
	if second.Code != http.StatusConflict {
		t.Fatalf("expected status 409 for second vote, got %d", second.Code)
	}
	if body := decodeBody(t, second); body["error"] != "already_voted" {
		t.Fatalf("expected error code already_voted, got %v", body["error"])
	}
}

func TestDeleteBuildResponseShape(t *testing.T) {
	handler := newTestHandler(t, nil)

	created := performRequest(t, handler, http.MethodPost, "/api/v1/builds", testSessionID, validCreatePayload())
	buildID := decodeBody(t, created)["build_id"].(string)

	recorder := performRequest(t, handler, http.MethodDelete, "/api/v1/builds/"+buildID, testSessionID, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	body := decodeBody(t, recorder)
	if body["build_id"] != buildID || body["deleted"] != true {
		t.Fatalf("unexpected delete response: %v", body)
	}

	missing := performRequest(t, handler, http.MethodGet, "/api/v1/builds/"+buildID, testSessionID, nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 after delete, got %d", missing.Code)
	}
}

func TestListBuildsPaginationEnvelope(t *testing.T) {
	handler := newTestHandler(t, nil)

	for index := 0; index < 3; index++ {
		payload := validCreatePayload()
		payload["name"] = "Build " + string(rune('A'+index))
		created := performRequest(t, handler, http.MethodPost, "/api/v1/builds", testSessionID, payload)
		if created.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", created.Code, created.Body.String())
		}
	}

	recorder := performRequest(t, handler, http.MethodGet, "/api/v1/builds?page=1&limit=2", testSessionID, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	body := decodeBody(t, recorder)
	if body["total"] != float64(3) {
		t.Fatalf("expected total 3, got %v", body["total"])
	}
	if body["has_more"] != true {
		t.Fatalf("expected has_more true, got %v", body["has_more"])
	}
	items, ok := body["builds"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("expected 2 builds on the page, got %v", body["builds"])
	}
}

func TestFeedbackEndpointPersistsSubmission(t *testing.T) {
	handler := newTestHandler(t, nil)

	recorder := performRequest(t, handler, http.MethodPost, "/api/v1/feedback", testSessionID, map[string]any{
		"query":            "best tank build",
		"response_snippet": "Try pairing tank with cleric.",
		"search_mode":      "smart",
		"rating":           "up",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	body := decodeBody(t, recorder)
	feedbackID, ok := body["feedback_id"].(string)
	if !ok || len(feedbackID) != 10 || feedbackID[:2] != "f_" {
		t.Fatalf("expected an f_ prefixed feedback id, got %v", body["feedback_id"])
	}
}

func TestAnalyticsRecordAndPopular(t *testing.T) {
	handler := newTestHandler(t, nil)

	for index := 0; index < 2; index++ {
		recorder := performRequest(t, handler, http.MethodPost, "/api/v1/analytics/search", testSessionID, map[string]any{
			"query":        "Iron Ore",
			"search_mode":  "quick",
			"result_count": 7,
		})
		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
	}

	recorder := performRequest(t, handler, http.MethodGet, "/api/v1/analytics/popular-queries?days=7", testSessionID, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	body := decodeBody(t, recorder)
	if body["period_days"] != float64(7) {
		t.Fatalf("expected period_days 7, got %v", body["period_days"])
	}
	queries, ok := body["queries"].([]any)
	if !ok || len(queries) != 1 {
		t.Fatalf("expected one grouped query, got %v", body["queries"])
	}
	top := queries[0].(map[string]any)
	if top["query"] != "iron ore" || top["count"] != float64(2) {
		t.Fatalf("expected iron ore counted twice, got %v", top)
	}
}

func TestRateLimitRejectionSetsRetryAfter(t *testing.T) {
	limiter, err := ratelimit.NewLimiter(ratelimit.Config{
		Store:   newMemoryCounterStore(),
		Budgets: map[ratelimit.Class]int{ratelimit.ClassVote: 1},
		Clock:   func() time.Time { return time.Date(2026, 8, 1, 12, 0, 30, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("failed to construct limiter: %v", err)
	}
	handler := newTestHandler(t, limiter)

	created := performRequest(t, handler, http.MethodPost, "/api/v1/builds", testSessionID, validCreatePayload())
	buildID := decodeBody(t, created)["build_id"].(string)

	votePath := "/api/v1/builds/" + buildID + "/vote"
	first := performRequest(t, handler, http.MethodPost, votePath, testSessionID, map[string]any{"rating": 5})
	if first.Code != http.StatusCreated {
		t.Fatalf("expected first vote admitted, got %d: %s", first.Code, first.Body.String())
	}

	second := performRequest(t, handler, http.MethodPost, votePath, testSessionID, map[string]any{"rating": 5})
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", second.Code)
	}
	if retryAfter := second.Header().Get("Retry-After"); retryAfter != "30" {
		t.Fatalf("expected Retry-After 30, got %q", retryAfter)
	}
	if body := decodeBody(t, second); body["error"] != "rate_limited" {
		t.Fatalf("expected error code rate_limited, got %v", body["error"])
	}
}

func TestRateLimitBudgetsIsolatedByIdentity(t *testing.T) {
	limiter, err := ratelimit.NewLimiter(ratelimit.Config{
		Store:   newMemoryCounterStore(),
		Budgets: map[ratelimit.Class]int{ratelimit.ClassFeedback: 1},
	})
	if err != nil {
		t.Fatalf("failed to construct limiter: %v", err)
	}
	handler := newTestHandler(t, limiter)

	payload := map[string]any{
		"query":            "best tank build",
		"response_snippet": "Try pairing tank with cleric.",
		"search_mode":      "smart",
		"rating":           "up",
	}

	first := performRequest(t, handler, http.MethodPost, "/api/v1/feedback", testSessionID, payload)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected first submission admitted, got %d", first.Code)
	}
	exhausted := performRequest(t, handler, http.MethodPost, "/api/v1/feedback", testSessionID, payload)
	if exhausted.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429 for exhausted identity, got %d", exhausted.Code)
	}

	otherSession := "sess_bbbbbbbbbbbbbbbbbbbbbbbb"
	other := performRequest(t, handler, http.MethodPost, "/api/v1/feedback", otherSession, payload)
	if other.Code != http.StatusCreated {
		t.Fatalf("expected other identity admitted, got %d", other.Code)
	}
}

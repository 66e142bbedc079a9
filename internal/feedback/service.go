// Package feedback is the append-only sink for response-quality signals.
package feedback

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errMissingDatabase = errors.New("database handle is required")

// Responses are long; only the opening slice is worth keeping as a signal.
const snippetLimit = 500

// ValidationError reports malformed input, detected before any storage call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("feedback: validation failed: %s", e.Reason)
}

var validModes = map[string]struct{}{
	ModeQuick: {},
	ModeSmart: {},
	ModeDeep:  {},
}

var validRatings = map[string]struct{}{
	RatingUp:   {},
	RatingDown: {},
}

// ServiceConfig describes the dependencies required by the feedback sink.
type ServiceConfig struct {
	Database  *gorm.DB
	Clock     func() time.Time
	Logger    *zap.Logger
	OpTimeout time.Duration
}

// Service appends feedback rows. Nothing in it mutates existing rows.
type Service struct {
	db        *gorm.DB
	clock     func() time.Time
	logger    *zap.Logger
	opTimeout time.Duration
}

// NewService constructs the feedback sink.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:        cfg.Database,
		clock:     clock,
		logger:    logger,
		opTimeout: cfg.OpTimeout,
	}, nil
}

// SubmitRequest carries one feedback signal.
type SubmitRequest struct {
	Query           string
	ResponseSnippet string
	SearchMode      string
	Rating          string
	Comment         string
}

// Submit validates and appends one feedback row.
func (s *Service) Submit(ctx context.Context, request SubmitRequest, voterIdentity string) (Feedback, error) {
	if strings.TrimSpace(request.Query) == "" {
		return Feedback{}, &ValidationError{Reason: "query must not be empty"}
	}
	mode := strings.ToLower(strings.TrimSpace(request.SearchMode))
	if _, ok := validModes[mode]; !ok {
		return Feedback{}, &ValidationError{Reason: fmt.Sprintf("search_mode must be one of quick, smart, deep; got %q", request.SearchMode)}
	}
	rating := strings.ToLower(strings.TrimSpace(request.Rating))
	if _, ok := validRatings[rating]; !ok {
		return Feedback{}, &ValidationError{Reason: fmt.Sprintf("rating must be up or down; got %q", request.Rating)}
	}

	snippet := truncateSnippet(request.ResponseSnippet)

	feedbackID, err := newFeedbackID()
	if err != nil {
		s.logger.Error("feedback id generation failed", zap.Error(err))
		return Feedback{}, err
	}

	row := Feedback{
		FeedbackID:      feedbackID,
		Query:           request.Query,
		ResponseSnippet: snippet,
		SearchMode:      mode,
		Rating:          rating,
		Comment:         request.Comment,
		SessionID:       voterIdentity,
		CreatedAt:       s.clock().UTC(),
	}

	opCtx := ctx
	if s.opTimeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, s.opTimeout)
		defer cancel()
	}
	if err := s.db.WithContext(opCtx).Create(&row).Error; err != nil {
		s.logger.Error("feedback insert failed", zap.Error(err))
		return Feedback{}, err
	}
	return row, nil
}

// truncateSnippet caps the snippet at snippetLimit bytes without splitting a
// multi-byte rune, so the stored value stays valid UTF-8.
func truncateSnippet(snippet string) string {
	if len(snippet) <= snippetLimit {
		return snippet
	}
	cut := snippetLimit
	for cut > 0 && !utf8.RuneStart(snippet[cut]) {
		cut--
	}
	return snippet[:cut]
}

func newFeedbackID() (string, error) {
	raw := make([]byte, 4)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return "f_" + hex.EncodeToString(raw), nil
}

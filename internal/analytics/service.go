// Package analytics owns the search event log and its popular-queries
// rollup.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errMissingDatabase = errors.New("database handle is required")

const (
	defaultWindowDays = 30
	maxWindowDays     = 90
	defaultLimit      = 10
	maxLimit          = 50
)

// ValidationError reports malformed input, detected before any storage call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("analytics: validation failed: %s", e.Reason)
}

var validModes = map[string]struct{}{
	"quick": {},
	"smart": {},
	"deep":  {},
}

// Cache fronts the popular-queries rollup with a bounded-staleness view.
// Lookup misses and errors both fall through to the database.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// ServiceConfig describes the dependencies required by the aggregator.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
	// Cache is optional; without it every Popular call hits the database.
	Cache     Cache
	CacheTTL  time.Duration
	OpTimeout time.Duration
}

// Service records search events and serves the popular-queries rollup.
type Service struct {
	db        *gorm.DB
	clock     func() time.Time
	logger    *zap.Logger
	cache     Cache
	cacheTTL  time.Duration
	opTimeout time.Duration
}

// NewService constructs the aggregator.
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
		cache:     cfg.Cache,
		cacheTTL:  cfg.CacheTTL,
		opTimeout: cfg.OpTimeout,
	}, nil
}

// RecordRequest carries one search event.
type RecordRequest struct {
	Query       string
	SearchMode  string
	ResultCount int
	LatencyMS   *int
}

// Record appends one event to the search log. The query is lowercased and
// trimmed before insert; that is the canonical form Popular groups on.
func (s *Service) Record(ctx context.Context, request RecordRequest, voterIdentity string) error {
	query := strings.ToLower(strings.TrimSpace(request.Query))
	if query == "" {
		return &ValidationError{Reason: "query must not be empty"}
	}
	mode := strings.ToLower(strings.TrimSpace(request.SearchMode))
	if _, ok := validModes[mode]; !ok {
		return &ValidationError{Reason: fmt.Sprintf("search_mode must be one of quick, smart, deep; got %q", request.SearchMode)}
	}
	if request.ResultCount < 0 {
		return &ValidationError{Reason: "result_count must not be negative"}
	}
	if request.LatencyMS != nil && *request.LatencyMS < 0 {
		return &ValidationError{Reason: "latency_ms must not be negative"}
	}

	event := SearchEvent{
		Query:       query,
		SearchMode:  mode,
		ResultCount: request.ResultCount,
		LatencyMS:   request.LatencyMS,
		SessionID:   voterIdentity,
		CreatedAt:   s.clock().UTC(),
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	if err := s.db.WithContext(opCtx).Create(&event).Error; err != nil {
		s.logger.Error("search event insert failed", zap.Error(err))
		return err
	}
	return nil
}

// Popular aggregates the trailing window of the event log: identical query
// strings are grouped (the log is already case-folded), counts summed, the
// top limit returned by count descending with ties broken by most recent
// occurrence. When a cache is configured, results may be stale by up to the
// cache TTL.
func (s *Service) Popular(ctx context.Context, days, limit int) ([]PopularQuery, error) {
	if days <= 0 {
		days = defaultWindowDays
	}
	if days > maxWindowDays {
		days = maxWindowDays
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	cacheKey := fmt.Sprintf("popular_queries:%d:%d", days, limit)
	if s.cache != nil {
		if cached, ok, err := s.cache.Get(ctx, cacheKey); err != nil {
			s.logger.Warn("popular query cache read failed", zap.Error(err))
		} else if ok {
			var result []PopularQuery
			decodeErr := json.Unmarshal([]byte(cached), &result)
			if decodeErr == nil {
				return result, nil
			}
			s.logger.Warn("popular query cache entry not decodable", zap.Error(decodeErr))
		}
	}

	cutoff := s.clock().UTC().AddDate(0, 0, -days)

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	var result []PopularQuery
	err := s.db.WithContext(opCtx).
		Model(&SearchEvent{}).
		Select("query, COUNT(*) AS count").
		Where("created_at >= ?", cutoff).
		Group("query").
		Order("count DESC, MAX(created_at) DESC").
		Limit(limit).
		Scan(&result).Error
	if err != nil {
		s.logger.Error("popular query rollup failed", zap.Error(err))
		return nil, err
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if encoded, err := json.Marshal(result); err == nil {
			if err := s.cache.Set(ctx, cacheKey, string(encoded), s.cacheTTL); err != nil {
				s.logger.Warn("popular query cache write failed", zap.Error(err))
			}
		}
	}
	return result, nil
}

func (s *Service) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

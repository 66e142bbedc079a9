// Package ratelimit enforces per-identity request budgets over a fixed
// window. Counters live in a shared store so the decision is correct across
// stateless replicas; process-local counting would undercount as soon as a
// second replica exists.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Class buckets endpoints that share a request budget.
type Class string

const (
	ClassBuildCreate    Class = "build-create"
	ClassVote           Class = "vote"
	ClassFeedback       Class = "feedback"
	ClassAnalyticsWrite Class = "analytics-write"
	ClassRead           Class = "read"
)

// Window is the fixed budget window. Budgets are expressed per minute.
const Window = time.Minute

var errMissingStore = errors.New("ratelimit: counter store is required")

// Store is the atomic increment-with-expiry primitive the limiter counts on.
// Incr increments the counter at key, arranges for it to expire after ttl,
// and returns the post-increment value.
type Store interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Config describes the dependencies and budgets for a Limiter.
type Config struct {
	Store   Store
	Budgets map[Class]int
	Clock   func() time.Time
	Logger  *zap.Logger
}

// Limiter decides admit/reject for (identity, class) pairs.
type Limiter struct {
	store   Store
	budgets map[Class]int
	clock   func() time.Time
	logger  *zap.Logger
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// NewLimiter constructs a Limiter backed by the provided counter store.
func NewLimiter(cfg Config) (*Limiter, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	budgets := make(map[Class]int, len(cfg.Budgets))
	for class, budget := range cfg.Budgets {
		budgets[class] = budget
	}
	return &Limiter{
		store:   cfg.Store,
		budgets: budgets,
		clock:   clock,
		logger:  logger,
	}, nil
}

// Allow admits or rejects one request from identity against the class budget.
// A class with no configured budget is admitted unconditionally. Counter
// store failures admit the request: a broken cache must not take the API
// down, and the budget resumes once the store recovers.
func (l *Limiter) Allow(ctx context.Context, identity string, class Class) Decision {
	budget, ok := l.budgets[class]
	if !ok || budget <= 0 {
		return Decision{Allowed: true}
	}

	now := l.clock().UTC()
	windowStart := now.Truncate(Window)
	key := fmt.Sprintf("rl:%s:%s:%d", class, identity, windowStart.Unix())

	count, err := l.store.Incr(ctx, key, Window)
	if err != nil {
		l.logger.Warn("rate limit counter unavailable, admitting request",
			zap.String("class", string(class)),
			zap.Error(err))
		return Decision{Allowed: true}
	}

	if count > int64(budget) {
		return Decision{
			Allowed:    false,
			RetryAfter: windowStart.Add(Window).Sub(now),
		}
	}
	return Decision{Allowed: true}
}

// Package limits enforces per-key request ceilings over three sliding
// windows. Counts come from the usage-event log itself; there is no separate
// counter store, so correctness depends on usage being recorded exactly once
// per admitted request.
package limits

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/voicepartnerai/platform/internal/store"
)

var ErrLimitExceeded = errors.New("rate limit exceeded")

// LimitType names the window that rejected a request.
type LimitType string

const (
	LimitTypeMinute LimitType = "requests_per_minute"
	LimitTypeHour   LimitType = "requests_per_hour"
	LimitTypeDay    LimitType = "requests_per_day"
)

// LimitConfig carries the three ceilings stored on an API key. A ceiling of
// zero or less disables that window.
type LimitConfig struct {
	RequestsPerMinute int
	RequestsPerHour   int
	RequestsPerDay    int
}

// Result reports the limiter's decision plus remaining quota for every
// window, so callers can emit rate-limit headers regardless of outcome.
type Result struct {
	Allowed         bool
	LimitType       LimitType
	RemainingMinute int
	RemainingHour   int
	RemainingDay    int
}

// usageCounter counts usage-log rows inside each sliding window ending at now.
type usageCounter interface {
	CountUsageWindows(ctx context.Context, apiKeyID uuid.UUID, now time.Time) (store.WindowCounts, error)
}

// RateLimiter checks a key's three windows against its stored ceilings. The
// check itself never writes; admitted requests are counted when the request
// logger records them.
type RateLimiter struct {
	counter usageCounter
	now     func() time.Time
}

func NewRateLimiter(counter usageCounter) *RateLimiter {
	return &RateLimiter{counter: counter, now: time.Now}
}

// Check evaluates windows finest first. A minute breach is reported even
// when the day limit is also exhausted; the finer window is the one the
// caller can act on.
func (l *RateLimiter) Check(ctx context.Context, apiKeyID uuid.UUID, cfg LimitConfig) (Result, error) {
	if l == nil || l.counter == nil {
		return Result{Allowed: true}, nil
	}

	counts, err := l.counter.CountUsageWindows(ctx, apiKeyID, l.now())
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Allowed:         true,
		RemainingMinute: remaining(cfg.RequestsPerMinute, counts.Minute),
		RemainingHour:   remaining(cfg.RequestsPerHour, counts.Hour),
		RemainingDay:    remaining(cfg.RequestsPerDay, counts.Day),
	}

	switch {
	case breached(cfg.RequestsPerMinute, counts.Minute):
		res.Allowed = false
		res.LimitType = LimitTypeMinute
	case breached(cfg.RequestsPerHour, counts.Hour):
		res.Allowed = false
		res.LimitType = LimitTypeHour
	case breached(cfg.RequestsPerDay, counts.Day):
		res.Allowed = false
		res.LimitType = LimitTypeDay
	}
	return res, nil
}

func breached(ceiling int, count int64) bool {
	return ceiling > 0 && count >= int64(ceiling)
}

func remaining(ceiling int, count int64) int {
	if ceiling <= 0 {
		return 0
	}
	left := int64(ceiling) - count
	if left < 0 {
		return 0
	}
	return int(left)
}

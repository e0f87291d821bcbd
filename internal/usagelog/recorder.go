// Package usagelog records one ApiKeyUsageEvent per admitted request and
// answers usage-stat queries over the same rows. The rate limiter counts
// these rows directly, so an admitted request must be recorded exactly once.
package usagelog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/voicepartnerai/platform/internal/store"
)

var ErrServiceUnavailable = errors.New("usage recorder not initialized")

type usageStore interface {
	InsertUsageEvent(ctx context.Context, p store.InsertUsageEventParams) error
	SumUsageForAPIKey(ctx context.Context, apiKeyID uuid.UUID, since time.Time) (store.UsageTotals, error)
	AggregateUsageByEndpoint(ctx context.Context, apiKeyID uuid.UUID, since time.Time) ([]store.EndpointUsage, error)
}

// Recorder appends usage events and serves per-key statistics.
type Recorder struct {
	store usageStore
	now   func() time.Time
}

func NewRecorder(st usageStore) *Recorder {
	return &Recorder{store: st, now: time.Now}
}

// Event is one request observed at the edge.
type Event struct {
	APIKeyID        uuid.UUID
	Endpoint        string
	Method          string
	StatusCode      int
	IPAddress       string
	UserAgent       string
	LatencyMs       int64
	TokensUsed      *int64
	CreditsConsumed *decimal.Decimal
	ErrorCode       *string
	ErrorMessage    *string
}

// Record appends one usage row. The row is append-only; nothing updates it
// later.
func (r *Recorder) Record(ctx context.Context, e Event) error {
	if r == nil || r.store == nil {
		return ErrServiceUnavailable
	}
	return r.store.InsertUsageEvent(ctx, store.InsertUsageEventParams{
		APIKeyID:        e.APIKeyID,
		Endpoint:        e.Endpoint,
		Method:          e.Method,
		StatusCode:      e.StatusCode,
		IPAddress:       e.IPAddress,
		UserAgent:       e.UserAgent,
		LatencyMs:       e.LatencyMs,
		TokensUsed:      e.TokensUsed,
		CreditsConsumed: e.CreditsConsumed,
		ErrorCode:       e.ErrorCode,
		ErrorMessage:    e.ErrorMessage,
	})
}

// Stats summarizes a key's traffic over a lookback window.
type Stats struct {
	LookbackDays    int
	TotalRequests   int64
	SuccessRequests int64
	ErrorRequests   int64
	SuccessRatePct  float64
	TotalTokens     int64
	TotalCredits    decimal.Decimal
	AvgLatencyMs    float64
	Endpoints       []store.EndpointUsage
}

// Stats aggregates the key's usage over the past lookbackDays days,
// including a per-endpoint breakdown.
func (r *Recorder) Stats(ctx context.Context, apiKeyID uuid.UUID, lookbackDays int) (Stats, error) {
	if r == nil || r.store == nil {
		return Stats{}, ErrServiceUnavailable
	}
	if lookbackDays <= 0 {
		lookbackDays = 7
	}
	since := r.now().Add(-time.Duration(lookbackDays) * 24 * time.Hour)

	totals, err := r.store.SumUsageForAPIKey(ctx, apiKeyID, since)
	if err != nil {
		return Stats{}, err
	}
	endpoints, err := r.store.AggregateUsageByEndpoint(ctx, apiKeyID, since)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		LookbackDays:    lookbackDays,
		TotalRequests:   totals.TotalRequests,
		SuccessRequests: totals.SuccessRequests,
		ErrorRequests:   totals.ErrorRequests,
		TotalTokens:     totals.TotalTokens,
		TotalCredits:    totals.TotalCredits,
		AvgLatencyMs:    totals.AvgLatencyMs,
		Endpoints:       endpoints,
	}
	if totals.TotalRequests > 0 {
		stats.SuccessRatePct = float64(totals.SuccessRequests) / float64(totals.TotalRequests) * 100
	}
	return stats, nil
}

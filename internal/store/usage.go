package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InsertUsageEventParams mirrors the immutable api_key_usage_events row.
type InsertUsageEventParams struct {
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

func (s *Store) InsertUsageEvent(ctx context.Context, p InsertUsageEventParams) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO api_key_usage_events (
			api_key_id, endpoint, method, status_code, ip_address, user_agent,
			latency_ms, tokens_used, credits_consumed, error_code, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.APIKeyID, p.Endpoint, p.Method, p.StatusCode, p.IPAddress, p.UserAgent,
		p.LatencyMs, p.TokensUsed, p.CreditsConsumed, p.ErrorCode, p.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert usage event: %w", err)
	}
	return nil
}

// WindowCounts holds per-window request counts for a single key.
type WindowCounts struct {
	Minute int64
	Hour   int64
	Day    int64
}

// CountUsageWindows counts usage events in the trailing minute/hour/day
// windows ending at now, in one round trip.
func (s *Store) CountUsageWindows(ctx context.Context, apiKeyID uuid.UUID, now time.Time) (WindowCounts, error) {
	var counts WindowCounts
	err := s.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE ts >= $2),
			COUNT(*) FILTER (WHERE ts >= $3),
			COUNT(*)
		FROM api_key_usage_events
		WHERE api_key_id = $1 AND ts >= $4`,
		apiKeyID,
		now.Add(-time.Minute),
		now.Add(-time.Hour),
		now.Add(-24*time.Hour),
	).Scan(&counts.Minute, &counts.Hour, &counts.Day)
	if err != nil {
		return WindowCounts{}, fmt.Errorf("count usage windows: %w", err)
	}
	return counts, nil
}

// UsageTotals aggregates usage rows for a key over a lookback window.
type UsageTotals struct {
	TotalRequests   int64
	SuccessRequests int64
	ErrorRequests   int64
	TotalTokens     int64
	TotalCredits    decimal.Decimal
	AvgLatencyMs    float64
}

func (s *Store) SumUsageForAPIKey(ctx context.Context, apiKeyID uuid.UUID, since time.Time) (UsageTotals, error) {
	var t UsageTotals
	err := s.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status_code < 400),
			COUNT(*) FILTER (WHERE status_code >= 400),
			COALESCE(SUM(tokens_used), 0),
			COALESCE(SUM(credits_consumed), 0),
			COALESCE(AVG(latency_ms), 0)
		FROM api_key_usage_events
		WHERE api_key_id = $1 AND ts >= $2`,
		apiKeyID, since,
	).Scan(&t.TotalRequests, &t.SuccessRequests, &t.ErrorRequests, &t.TotalTokens, &t.TotalCredits, &t.AvgLatencyMs)
	if err != nil {
		return UsageTotals{}, fmt.Errorf("sum usage: %w", err)
	}
	return t, nil
}

// EndpointUsage is one row of the per-endpoint breakdown.
type EndpointUsage struct {
	Endpoint     string
	Requests     int64
	ErrorCount   int64
	AvgLatencyMs float64
}

func (s *Store) AggregateUsageByEndpoint(ctx context.Context, apiKeyID uuid.UUID, since time.Time) ([]EndpointUsage, error) {
	rows, err := s.db.Query(ctx, `
		SELECT endpoint,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE status_code >= 400),
		       COALESCE(AVG(latency_ms), 0)
		FROM api_key_usage_events
		WHERE api_key_id = $1 AND ts >= $2
		GROUP BY endpoint
		ORDER BY COUNT(*) DESC`,
		apiKeyID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]EndpointUsage, 0)
	for rows.Next() {
		var e EndpointUsage
		if err := rows.Scan(&e.Endpoint, &e.Requests, &e.ErrorCount, &e.AvgLatencyMs); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteUsageEventsBefore prunes old usage rows in bounded batches so the
// retention sweeper never holds a long transaction.
func (s *Store) DeleteUsageEventsBefore(ctx context.Context, cutoff time.Time, batch int32) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM api_key_usage_events
		WHERE id IN (
			SELECT id FROM api_key_usage_events
			WHERE ts < $1
			LIMIT $2
		)`, cutoff, batch)
	if err != nil {
		return 0, fmt.Errorf("prune usage events: %w", err)
	}
	return tag.RowsAffected(), nil
}

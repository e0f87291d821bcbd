package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RefreshDailySnapshot recomputes the owner's aggregate for the given day from
// call_logs and upserts it, so repeated refreshes always converge on the same
// numbers regardless of webhook ordering.
func (s *Store) RefreshDailySnapshot(ctx context.Context, userID uuid.UUID, day time.Time) error {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	_, err := s.db.Exec(ctx, `
		INSERT INTO analytics_snapshots (
			user_id, day, period,
			total_calls, completed_calls, failed_calls,
			total_duration_seconds, credits_consumed, cost_usd, cost_eur,
			avg_duration_seconds, refreshed_at
		)
		SELECT
			$1, $2::date, 'daily',
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status IN ('failed', 'busy', 'no-answer')),
			COALESCE(SUM(duration_seconds), 0),
			COALESCE(SUM(credits_consumed), 0),
			COALESCE(SUM(cost_usd), 0),
			COALESCE(SUM(cost_eur), 0),
			COALESCE(AVG(duration_seconds), 0),
			now()
		FROM call_logs
		WHERE user_id = $1 AND start_time >= $3 AND start_time < $4
		ON CONFLICT (user_id, day, period) DO UPDATE SET
			total_calls = EXCLUDED.total_calls,
			completed_calls = EXCLUDED.completed_calls,
			failed_calls = EXCLUDED.failed_calls,
			total_duration_seconds = EXCLUDED.total_duration_seconds,
			credits_consumed = EXCLUDED.credits_consumed,
			cost_usd = EXCLUDED.cost_usd,
			cost_eur = EXCLUDED.cost_eur,
			avg_duration_seconds = EXCLUDED.avg_duration_seconds,
			refreshed_at = EXCLUDED.refreshed_at`,
		userID, dayStart, dayStart, dayEnd)
	if err != nil {
		return fmt.Errorf("refresh daily snapshot: %w", err)
	}
	return nil
}

func (s *Store) GetDailySnapshot(ctx context.Context, userID uuid.UUID, day time.Time) (AnalyticsSnapshot, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, day, period,
		       total_calls, completed_calls, failed_calls,
		       total_duration_seconds, credits_consumed, cost_usd, cost_eur,
		       avg_duration_seconds, refreshed_at
		FROM analytics_snapshots
		WHERE user_id = $1 AND day = $2::date AND period = 'daily'`,
		userID, dayStart)
	var snap AnalyticsSnapshot
	if err := row.Scan(
		&snap.ID, &snap.UserID, &snap.Day, &snap.Period,
		&snap.TotalCalls, &snap.CompletedCalls, &snap.FailedCalls,
		&snap.TotalDurationSeconds, &snap.CreditsConsumed, &snap.CostUSD, &snap.CostEUR,
		&snap.AvgDurationSeconds, &snap.RefreshedAt,
	); err != nil {
		return AnalyticsSnapshot{}, mapRowError(err)
	}
	return snap, nil
}

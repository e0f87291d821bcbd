// Package analytics maintains per-user daily call aggregates. Snapshots are
// recomputed from call_logs in full on every refresh, so a repeated refresh
// of the same day is idempotent.
package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/voicepartnerai/platform/internal/store"
	"github.com/voicepartnerai/platform/internal/timeutil"
)

var ErrServiceUnavailable = errors.New("analytics service not initialized")

type snapshotStore interface {
	RefreshDailySnapshot(ctx context.Context, userID uuid.UUID, day time.Time) error
	GetDailySnapshot(ctx context.Context, userID uuid.UUID, day time.Time) (store.AnalyticsSnapshot, error)
}

// Service upserts and reads daily analytics snapshots.
type Service struct {
	store snapshotStore
}

func NewService(st snapshotStore) *Service {
	return &Service{store: st}
}

// RefreshDay recomputes the user's aggregate for the calendar day containing t.
func (s *Service) RefreshDay(ctx context.Context, userID uuid.UUID, t time.Time) error {
	if s == nil || s.store == nil {
		return ErrServiceUnavailable
	}
	return s.store.RefreshDailySnapshot(ctx, userID, timeutil.TruncateToDay(t, time.UTC))
}

// Day returns the stored aggregate for the calendar day containing t.
func (s *Service) Day(ctx context.Context, userID uuid.UUID, t time.Time) (store.AnalyticsSnapshot, error) {
	if s == nil || s.store == nil {
		return store.AnalyticsSnapshot{}, ErrServiceUnavailable
	}
	return s.store.GetDailySnapshot(ctx, userID, timeutil.TruncateToDay(t, time.UTC))
}

package usagelog

import (
	"context"
	"log/slog"
	"time"
)

const sweepBatchSize = 5000

type retentionStore interface {
	DeleteUsageEventsBefore(ctx context.Context, cutoff time.Time, batch int32) (int64, error)
}

// Sweeper prunes usage events older than the retention window. Deletions run
// in bounded batches so a backlog never holds a long transaction open.
type Sweeper struct {
	store     retentionStore
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

func NewSweeper(st retentionStore, retention, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{store: st, retention: retention, interval: interval, logger: logger}
}

// Run sweeps on the configured interval until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	if s == nil || s.store == nil || s.retention <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("usage retention sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepOnce deletes expired events batch by batch until none remain.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-s.retention)
	var total int64
	for {
		deleted, err := s.store.DeleteUsageEventsBefore(ctx, cutoff, sweepBatchSize)
		if err != nil {
			return err
		}
		total += deleted
		if deleted < sweepBatchSize {
			break
		}
	}
	if total > 0 {
		s.logger.Info("pruned usage events", "deleted", total, "cutoff", cutoff)
	}
	return nil
}

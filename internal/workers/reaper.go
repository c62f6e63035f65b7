package workers

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultReapBatch bounds how many sessions one sweep pass ends.
const DefaultReapBatch = 100

// StaleSessionEnder ends sessions whose owners went quiet before cutoff.
type StaleSessionEnder interface {
	EndStaleSessions(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// SessionReaper periodically ends sessions that were left open. Ending a
// session queues its summary job, so reaped sessions are still anchored.
type SessionReaper struct {
	sessions StaleSessionEnder
	after    time.Duration
	interval time.Duration
	batch    int
	now      func() time.Time
	logger   *zap.Logger
}

// NewSessionReaper creates a reaper that ends sessions idle for longer
// than after, sweeping every interval.
func NewSessionReaper(sessions StaleSessionEnder, after, interval time.Duration, logger *zap.Logger) *SessionReaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionReaper{
		sessions: sessions,
		after:    after,
		interval: interval,
		batch:    DefaultReapBatch,
		now:      time.Now,
		logger:   logger,
	}
}

// Start sweeps immediately and then on every tick until ctx is cancelled.
func (r *SessionReaper) Start(ctx context.Context) error {
	if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
		r.logger.Warn("session_reaper_failed", zap.Error(err))
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("session_reaper_failed", zap.Error(err))
			}
		}
	}
}

// Sweep ends stale sessions in batches until a batch comes back short.
func (r *SessionReaper) Sweep(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.after)
	total := 0
	for {
		n, err := r.sessions.EndStaleSessions(ctx, cutoff, r.batch)
		total += n
		if err != nil {
			return total, err
		}
		if n < r.batch {
			break
		}
	}
	if total > 0 {
		r.logger.Info("stale_sessions_ended",
			zap.Int("count", total),
			zap.Time("cutoff", cutoff),
		)
	}
	return total, nil
}

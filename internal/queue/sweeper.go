package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// sweepTimeout bounds a single pass over the dead-letter queue.
const sweepTimeout = 2 * time.Minute

// DeadLetterSweeper periodically drops dead-lettered jobs older than the
// retention window. Failed jobs stay inspectable until then.
type DeadLetterSweeper struct {
	purger    DLQPurger
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger
}

// NewDeadLetterSweeper returns a sweeper. A nil purger makes every sweep
// a no-op.
func NewDeadLetterSweeper(purger DLQPurger, interval, retention time.Duration, logger *zap.Logger) *DeadLetterSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeadLetterSweeper{
		purger:    purger,
		interval:  interval,
		retention: retention,
		logger:    logger.Named("dlq_sweeper"),
	}
}

// Start sweeps once immediately and then every interval until ctx is
// cancelled. Sweep failures are logged and retried on the next tick.
func (s *DeadLetterSweeper) Start(ctx context.Context) error {
	s.logger.Info("dlq_sweeper_started",
		zap.Duration("interval", s.interval),
		zap.Duration("retention", s.retention),
	)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("dlq_sweep_failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep runs one pass and returns how many jobs were dropped.
func (s *DeadLetterSweeper) Sweep(ctx context.Context) (int, error) {
	if s.purger == nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()
	n, err := s.purger.PurgeOlderThan(ctx, s.retention)
	if n > 0 {
		s.logger.Info("dlq_jobs_dropped", zap.Int("count", n), zap.Duration("retention", s.retention))
	}
	if err != nil {
		return n, fmt.Errorf("purging dead letters: %w", err)
	}
	return n, nil
}

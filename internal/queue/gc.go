package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// purgeTimeout bounds a single DLQ sweep
const purgeTimeout = 2 * time.Minute

// GarbageCollector sweeps dead-lettered reschedule and cleanup jobs older than retention
type GarbageCollector struct {
	purger    DLQPurger
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger
}

// NewGarbageCollector creates a new garbage collector
func NewGarbageCollector(purger DLQPurger, interval, retention time.Duration, logger *zap.Logger) *GarbageCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GarbageCollector{purger: purger, interval: interval, retention: retention, logger: logger}
}

// Start sweeps once per interval until ctx is cancelled. Failed sweeps are logged.
func (gc *GarbageCollector) Start(ctx context.Context) error {
	return runEvery(ctx, gc.interval, false, func(ctx context.Context) {
		if _, err := gc.collect(ctx); err != nil {
			gc.logger.Warn("dlq_gc_failed", zap.Error(err))
		}
	})
}

// collect purges once and returns the number of dropped jobs
func (gc *GarbageCollector) collect(ctx context.Context) (int, error) {
	if gc.purger == nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, purgeTimeout)
	defer cancel()

	started := time.Now()
	n, err := gc.purger.PurgeOlderThan(ctx, gc.retention)
	if err != nil {
		return n, fmt.Errorf("failed to purge dead-letter queue: %w", err)
	}
	if n > 0 {
		gc.logger.Info("dlq_gc_purged",
			zap.Int("purged", n),
			zap.Duration("retention", gc.retention),
			zap.Duration("elapsed", time.Since(started)))
	}
	return n, nil
}

package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// PeriodicEnqueuer publishes a job of one type on a fixed interval. Each job
// expires after one interval so a stalled worker does not accumulate a backlog.
type PeriodicEnqueuer struct {
	enqueuer Enqueuer
	jobType  JobType
	interval time.Duration
	logger   *zap.Logger
}

// NewPeriodicEnqueuer creates a periodic enqueuer
func NewPeriodicEnqueuer(enqueuer Enqueuer, jobType JobType, interval time.Duration, logger *zap.Logger) *PeriodicEnqueuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodicEnqueuer{
		enqueuer: enqueuer,
		jobType:  jobType,
		interval: interval,
		logger:   logger,
	}
}

// Start enqueues one job immediately, then one per interval until ctx is cancelled
func (p *PeriodicEnqueuer) Start(ctx context.Context) error {
	return runEvery(ctx, p.interval, true, p.enqueueLogged)
}

func (p *PeriodicEnqueuer) enqueueLogged(ctx context.Context) {
	if err := p.enqueue(ctx); err != nil {
		p.logger.Warn("periodic_enqueue_failed",
			zap.String("job_type", string(p.jobType)),
			zap.Error(err))
	}
}

func (p *PeriodicEnqueuer) enqueue(ctx context.Context) error {
	job := NewJob(p.jobType, nil)
	notAfter := job.CreatedAt.Add(p.interval)
	job.NotAfter = &notAfter
	job.Metadata["trigger"] = "periodic"
	if err := p.enqueuer.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue %s job: %w", p.jobType, err)
	}
	p.logger.Debug("periodic_job_enqueued",
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(p.jobType)))
	return nil
}

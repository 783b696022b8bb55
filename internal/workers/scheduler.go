package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/smart-schedule/internal/planner"
	"github.com/benvon/smart-schedule/internal/queue"
	"github.com/benvon/smart-schedule/internal/request"
	"github.com/benvon/smart-schedule/internal/services/ai"
	"github.com/benvon/smart-schedule/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrUnknownJobType marks jobs no handler exists for; they are dead-lettered
var ErrUnknownJobType = errors.New("unknown job type")

// baseRetryDelay is the first backoff step for ordinary failures
const baseRetryDelay = 5 * time.Second

// Rescheduler runs schedule synthesis over the required tasks
type Rescheduler interface {
	Reschedule(ctx context.Context, now time.Time) (*planner.ScheduleOutcome, error)
}

// Cleaner removes completed and expired tasks
type Cleaner interface {
	Clean(ctx context.Context, now time.Time) (planner.CleanupReport, error)
}

// ScheduleWorker processes reschedule and cleanup jobs
type ScheduleWorker struct {
	rescheduler Rescheduler
	cleaner     Cleaner
	jobQueue    queue.Enqueuer // For re-enqueueing jobs with delays
	logger      *zap.Logger
	now         func() time.Time
}

// NewScheduleWorker creates a new schedule worker
func NewScheduleWorker(rescheduler Rescheduler, cleaner Cleaner, jobQueue queue.Enqueuer, logger *zap.Logger) *ScheduleWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleWorker{
		rescheduler: rescheduler,
		cleaner:     cleaner,
		jobQueue:    jobQueue,
		logger:      logger,
		now:         time.Now,
	}
}

// ProcessJob runs the job and settles the message. Successful jobs are acked;
// failures are re-enqueued with a delay or dead-lettered.
func (w *ScheduleWorker) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()
	if job == nil {
		if err := msg.Nack(false); err != nil {
			return fmt.Errorf("failed to nack empty message: %w", err)
		}
		return errors.New("message carries no job")
	}
	if job.SessionID != "" {
		ctx = request.WithSessionID(ctx, job.SessionID)
	}

	ctx, span := telemetry.Tracer().Start(telemetry.ExtractMetadata(ctx, job.Metadata), "worker.process_job",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("job.id", job.ID.String()),
			attribute.String("job.type", string(job.Type)),
			attribute.Int("job.retry_count", job.RetryCount),
		))
	defer span.End()

	start := w.now()
	err := w.process(ctx, job)
	if err == nil {
		w.logger.Info("job_completed",
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
			zap.Duration("duration", w.now().Sub(start)))
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "job failed")
	return w.handleFailure(ctx, msg, job, err)
}

func (w *ScheduleWorker) process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeReschedule:
		return w.processReschedule(ctx, job)
	case queue.JobTypeCleanup:
		return w.processCleanup(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJobType, job.Type)
	}
}

func (w *ScheduleWorker) processReschedule(ctx context.Context, job *queue.Job) error {
	outcome, err := w.rescheduler.Reschedule(ctx, w.now())
	if err != nil {
		return fmt.Errorf("failed to reschedule: %w", err)
	}
	if outcome.Success {
		w.logger.Info("reschedule_applied",
			zap.String("job_id", job.ID.String()),
			zap.Int("scheduled", outcome.Scheduled),
			zap.Int("attempts", outcome.Attempts))
		return nil
	}
	// Rate-limited proposals are worth retrying later; validation failures are not
	if outcome.LastErr != nil && (ai.IsRateLimitError(outcome.LastErr) || ai.IsQuotaError(outcome.LastErr)) {
		return fmt.Errorf("schedule proposals throttled: %w", outcome.LastErr)
	}
	w.logger.Warn("reschedule_unresolved",
		zap.String("job_id", job.ID.String()),
		zap.Strings("issues", planner.IssueMessages(outcome.Issues)))
	return nil
}

func (w *ScheduleWorker) processCleanup(ctx context.Context) error {
	report, err := w.cleaner.Clean(ctx, w.now())
	if err != nil {
		return fmt.Errorf("failed to clean tasks: %w", err)
	}
	w.logger.Info("cleanup_completed",
		zap.Int64("completed", report.Completed),
		zap.Int64("expired", report.Expired))
	return nil
}

// handleFailure decides between deferral, retry and dead-lettering
func (w *ScheduleWorker) handleFailure(ctx context.Context, msg queue.MessageInterface, job *queue.Job, cause error) error {
	fields := []zap.Field{
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.Int("retry_count", job.RetryCount),
		zap.Error(cause),
	}

	if errors.Is(cause, ErrUnknownJobType) {
		w.logger.Error("job_dead_lettered", fields...)
		return w.settle(msg.Nack(false), cause)
	}

	var next *queue.Job
	switch {
	case ai.IsRateLimitError(cause) || ai.IsQuotaError(cause):
		delay := ai.GetRetryDelay(cause, job.Deferrals)
		next = job.Delay(delay)
		next.Deferrals++
		w.logger.Warn("job_deferred", append(fields, zap.Duration("delay", delay))...)
	case job.CanRetry():
		delay := baseRetryDelay * time.Duration(1<<job.RetryCount)
		next = job.Delay(delay)
		next.IncrementRetry()
		w.logger.Warn("job_retry_scheduled", append(fields, zap.Duration("delay", delay))...)
	default:
		w.logger.Error("job_dead_lettered", fields...)
		return w.settle(msg.Nack(false), cause)
	}

	if w.jobQueue == nil {
		return w.settle(msg.Nack(true), cause)
	}
	if err := w.jobQueue.Enqueue(ctx, next); err != nil {
		w.logger.Error("job_reenqueue_failed", append(fields, zap.NamedError("enqueue_error", err))...)
		return w.settle(msg.Nack(true), cause)
	}
	return w.settle(msg.Ack(), cause)
}

func (w *ScheduleWorker) settle(settleErr, cause error) error {
	if settleErr != nil {
		return errors.Join(cause, fmt.Errorf("failed to settle message: %w", settleErr))
	}
	return cause
}

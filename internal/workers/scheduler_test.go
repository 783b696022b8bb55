package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benvon/smart-schedule/internal/planner"
	"github.com/benvon/smart-schedule/internal/queue"
	"github.com/benvon/smart-schedule/internal/request"
	"github.com/benvon/smart-schedule/internal/services/ai"
)

// mockMessage is a mock implementation of MessageInterface
type mockMessage struct {
	job      *queue.Job
	acked    bool
	nacked   bool
	requeued bool
	ackFunc  func() error
	nackFunc func(requeue bool) error
}

var _ queue.MessageInterface = (*mockMessage)(nil)

func (m *mockMessage) Ack() error {
	m.acked = true
	if m.ackFunc != nil {
		return m.ackFunc()
	}
	return nil
}

func (m *mockMessage) Nack(requeue bool) error {
	m.nacked = true
	m.requeued = requeue
	if m.nackFunc != nil {
		return m.nackFunc(requeue)
	}
	return nil
}

func (m *mockMessage) GetJob() *queue.Job {
	return m.job
}

// mockRescheduler is a mock implementation of Rescheduler
type mockRescheduler struct {
	rescheduleFunc func(ctx context.Context, now time.Time) (*planner.ScheduleOutcome, error)
}

var _ Rescheduler = (*mockRescheduler)(nil)

func (m *mockRescheduler) Reschedule(ctx context.Context, now time.Time) (*planner.ScheduleOutcome, error) {
	if m.rescheduleFunc != nil {
		return m.rescheduleFunc(ctx, now)
	}
	return &planner.ScheduleOutcome{Success: true, Scheduled: 1, Attempts: 1}, nil
}

// mockCleaner is a mock implementation of Cleaner
type mockCleaner struct {
	cleanFunc func(ctx context.Context, now time.Time) (planner.CleanupReport, error)
}

var _ Cleaner = (*mockCleaner)(nil)

func (m *mockCleaner) Clean(ctx context.Context, now time.Time) (planner.CleanupReport, error) {
	if m.cleanFunc != nil {
		return m.cleanFunc(ctx, now)
	}
	return planner.CleanupReport{}, nil
}

// mockEnqueuer is a mock implementation of queue.Enqueuer
type mockEnqueuer struct {
	jobs        []*queue.Job
	enqueueFunc func(ctx context.Context, job *queue.Job) error
}

var _ queue.Enqueuer = (*mockEnqueuer)(nil)

func (m *mockEnqueuer) Enqueue(ctx context.Context, job *queue.Job) error {
	m.jobs = append(m.jobs, job)
	if m.enqueueFunc != nil {
		return m.enqueueFunc(ctx, job)
	}
	return nil
}

var rateLimited = &ai.APIError{StatusCode: 429, Code: "rate_limit_exceeded", Message: "Rate limit reached"}

func TestScheduleWorker_ProcessJob(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		job          *queue.Job
		rescheduler  *mockRescheduler
		cleaner      *mockCleaner
		enqueueErr   error
		wantErr      bool
		wantAck      bool
		wantNack     bool
		wantRequeue  bool
		wantEnqueued int
		checkJob     func(t *testing.T, orig, next *queue.Job)
	}{
		{
			name:        "reschedule success",
			job:         queue.NewJob(queue.JobTypeReschedule, nil),
			rescheduler: &mockRescheduler{},
			wantAck:     true,
		},
		{
			name: "unresolved schedule is not retried",
			job:  queue.NewJob(queue.JobTypeReschedule, nil),
			rescheduler: &mockRescheduler{rescheduleFunc: func(context.Context, time.Time) (*planner.ScheduleOutcome, error) {
				return &planner.ScheduleOutcome{
					Attempts: planner.MaxScheduleAttempts,
					Issues:   []planner.Issue{{Kind: planner.IssueOverlap, Message: "冲突"}},
				}, nil
			}},
			wantAck: true,
		},
		{
			name: "throttled proposals are deferred",
			job:  queue.NewJob(queue.JobTypeReschedule, nil),
			rescheduler: &mockRescheduler{rescheduleFunc: func(context.Context, time.Time) (*planner.ScheduleOutcome, error) {
				return &planner.ScheduleOutcome{Attempts: planner.MaxScheduleAttempts, LastErr: rateLimited}, nil
			}},
			wantErr:      true,
			wantAck:      true,
			wantEnqueued: 1,
			checkJob: func(t *testing.T, orig, next *queue.Job) {
				if next.Deferrals != 1 {
					t.Errorf("Expected 1 deferral, got %d", next.Deferrals)
				}
				if next.RetryCount != orig.RetryCount {
					t.Errorf("Expected retry count to stay %d, got %d", orig.RetryCount, next.RetryCount)
				}
				if next.NotBefore == nil || time.Until(*next.NotBefore) < 50*time.Second {
					t.Errorf("Expected NotBefore about a minute out, got %v", next.NotBefore)
				}
			},
		},
		{
			name: "apply failure is retried",
			job:  queue.NewJob(queue.JobTypeReschedule, nil),
			rescheduler: &mockRescheduler{rescheduleFunc: func(context.Context, time.Time) (*planner.ScheduleOutcome, error) {
				return nil, errors.New("database is locked")
			}},
			wantErr:      true,
			wantAck:      true,
			wantEnqueued: 1,
			checkJob: func(t *testing.T, orig, next *queue.Job) {
				if next.RetryCount != orig.RetryCount+1 {
					t.Errorf("Expected retry count %d, got %d", orig.RetryCount+1, next.RetryCount)
				}
				if next.ID != orig.ID {
					t.Error("Expected retried job to keep its ID")
				}
			},
		},
		{
			name: "exhausted retries go to the DLQ",
			job: func() *queue.Job {
				j := queue.NewJob(queue.JobTypeCleanup, nil)
				j.RetryCount = j.MaxRetries
				return j
			}(),
			cleaner: &mockCleaner{cleanFunc: func(context.Context, time.Time) (planner.CleanupReport, error) {
				return planner.CleanupReport{}, errors.New("database is locked")
			}},
			wantErr:  true,
			wantNack: true,
		},
		{
			name:     "unknown job type goes to the DLQ",
			job:      &queue.Job{Type: "task_analysis", MaxRetries: 3},
			wantErr:  true,
			wantNack: true,
		},
		{
			name: "re-enqueue failure requeues the original",
			job:  queue.NewJob(queue.JobTypeCleanup, nil),
			cleaner: &mockCleaner{cleanFunc: func(context.Context, time.Time) (planner.CleanupReport, error) {
				return planner.CleanupReport{}, errors.New("database is locked")
			}},
			enqueueErr:   errors.New("channel closed"),
			wantErr:      true,
			wantNack:     true,
			wantRequeue:  true,
			wantEnqueued: 1,
		},
		{
			name: "cleanup success",
			job:  queue.NewJob(queue.JobTypeCleanup, nil),
			cleaner: &mockCleaner{cleanFunc: func(context.Context, time.Time) (planner.CleanupReport, error) {
				return planner.CleanupReport{Completed: 2, Expired: 1}, nil
			}},
			wantAck: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rescheduler := tt.rescheduler
			if rescheduler == nil {
				rescheduler = &mockRescheduler{}
			}
			cleaner := tt.cleaner
			if cleaner == nil {
				cleaner = &mockCleaner{}
			}
			enqueuer := &mockEnqueuer{enqueueFunc: func(context.Context, *queue.Job) error { return tt.enqueueErr }}
			worker := NewScheduleWorker(rescheduler, cleaner, enqueuer, nil)

			msg := &mockMessage{job: tt.job}
			err := worker.ProcessJob(context.Background(), msg)

			if (err != nil) != tt.wantErr {
				t.Errorf("ProcessJob() error = %v, wantErr %v", err, tt.wantErr)
			}
			if msg.acked != tt.wantAck {
				t.Errorf("Expected acked=%v, got %v", tt.wantAck, msg.acked)
			}
			if msg.nacked != tt.wantNack {
				t.Errorf("Expected nacked=%v, got %v", tt.wantNack, msg.nacked)
			}
			if msg.requeued != tt.wantRequeue {
				t.Errorf("Expected requeue=%v, got %v", tt.wantRequeue, msg.requeued)
			}
			if len(enqueuer.jobs) != tt.wantEnqueued {
				t.Fatalf("Expected %d enqueued jobs, got %d", tt.wantEnqueued, len(enqueuer.jobs))
			}
			if tt.checkJob != nil {
				tt.checkJob(t, tt.job, enqueuer.jobs[0])
			}
		})
	}
}

func TestScheduleWorker_PropagatesSessionID(t *testing.T) {
	t.Parallel()

	var got string
	rescheduler := &mockRescheduler{rescheduleFunc: func(ctx context.Context, _ time.Time) (*planner.ScheduleOutcome, error) {
		got = request.SessionID(ctx)
		return &planner.ScheduleOutcome{Success: true}, nil
	}}
	job := queue.NewJob(queue.JobTypeReschedule, nil)
	job.SessionID = "session_abc"

	worker := NewScheduleWorker(rescheduler, &mockCleaner{}, nil, nil)
	if err := worker.ProcessJob(context.Background(), &mockMessage{job: job}); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}
	if got != "session_abc" {
		t.Errorf("Expected session_abc in context, got %q", got)
	}
}

func TestScheduleWorker_NilJob(t *testing.T) {
	t.Parallel()

	worker := NewScheduleWorker(&mockRescheduler{}, &mockCleaner{}, nil, nil)
	msg := &mockMessage{}
	if err := worker.ProcessJob(context.Background(), msg); err == nil {
		t.Error("Expected error for message without job")
	}
	if !msg.nacked || msg.requeued {
		t.Error("Expected message to be dead-lettered")
	}
}

func TestScheduleWorker_NoQueueRequeues(t *testing.T) {
	t.Parallel()

	cleaner := &mockCleaner{cleanFunc: func(context.Context, time.Time) (planner.CleanupReport, error) {
		return planner.CleanupReport{}, errors.New("timeout")
	}}
	worker := NewScheduleWorker(&mockRescheduler{}, cleaner, nil, nil)
	msg := &mockMessage{job: queue.NewJob(queue.JobTypeCleanup, nil)}
	if err := worker.ProcessJob(context.Background(), msg); err == nil {
		t.Error("Expected error")
	}
	if !msg.requeued {
		t.Error("Expected message to be requeued when no queue is available for delayed retry")
	}
}

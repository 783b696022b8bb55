package queue

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewJob(t *testing.T) {
	t.Parallel()

	taskID := uuid.New()
	tests := []struct {
		name    string
		jobType JobType
		taskID  *uuid.UUID
	}{
		{"reschedule for a task", JobTypeReschedule, &taskID},
		{"cleanup", JobTypeCleanup, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			job := NewJob(tt.jobType, tt.taskID)
			if job.ID == uuid.Nil {
				t.Error("Expected job ID to be set")
			}
			if job.Type != tt.jobType || !job.Type.Valid() {
				t.Errorf("Expected valid type %s, got %s", tt.jobType, job.Type)
			}
			if job.TaskID != tt.taskID {
				t.Errorf("Expected task ID %v, got %v", tt.taskID, job.TaskID)
			}
			if job.Metadata == nil {
				t.Error("Expected metadata to be initialized")
			}
			if job.RetryCount != 0 || job.MaxRetries != DefaultMaxRetries {
				t.Errorf("Expected fresh retry budget of %d, got %d/%d", DefaultMaxRetries, job.RetryCount, job.MaxRetries)
			}
			if job.StateAt(time.Now()) != JobReady {
				t.Error("Expected a new job to be ready")
			}
		})
	}
}

func TestJobType_Valid(t *testing.T) {
	t.Parallel()

	for jobType, want := range map[JobType]bool{
		JobTypeReschedule: true,
		JobTypeCleanup:    true,
		"task_analysis":   false,
		"":                false,
	} {
		if got := jobType.Valid(); got != want {
			t.Errorf("Expected JobType(%q).Valid() = %v, got %v", jobType, want, got)
		}
	}
}

func TestJob_StateAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := now.Add(d)
		return &ts
	}

	tests := []struct {
		name      string
		notBefore *time.Time
		notAfter  *time.Time
		want      JobState
	}{
		{"open window", nil, nil, JobReady},
		{"delay elapsed", at(-time.Minute), nil, JobReady},
		{"delay pending", at(time.Minute), nil, JobWaiting},
		{"inside window", at(-time.Hour), at(time.Hour), JobReady},
		{"expiry ahead", nil, at(time.Hour), JobReady},
		{"expired", nil, at(-time.Second), JobExpired},
		{"expired while waiting", at(time.Hour), at(-time.Hour), JobExpired},
		{"boundary is still ready", at(0), at(0), JobReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			job := &Job{ID: uuid.New(), Type: JobTypeCleanup, NotBefore: tt.notBefore, NotAfter: tt.notAfter}
			if got := job.StateAt(now); got != tt.want {
				t.Errorf("Expected state %d, got %d", tt.want, got)
			}
		})
	}
}

func TestJob_RetryBudget(t *testing.T) {
	t.Parallel()

	job := NewJob(JobTypeReschedule, nil)
	for i := 0; i < DefaultMaxRetries; i++ {
		if !job.CanRetry() {
			t.Fatalf("Expected retry %d to be allowed", i+1)
		}
		job.IncrementRetry()
	}
	if job.CanRetry() {
		t.Errorf("Expected budget exhausted after %d retries", job.RetryCount)
	}

	noBudget := &Job{MaxRetries: 0}
	if noBudget.CanRetry() {
		t.Error("Expected zero budget to forbid retries")
	}
}

func TestJob_Delay(t *testing.T) {
	t.Parallel()

	job := NewJob(JobTypeReschedule, nil)
	job.RetryCount = 2
	job.Metadata["trigger"] = "task_changed"

	delayed := job.Delay(time.Minute)
	delayed.Metadata["traceparent"] = "00-abc"

	if job.NotBefore != nil {
		t.Error("Expected original job to be unchanged")
	}
	if _, leaked := job.Metadata["traceparent"]; leaked {
		t.Error("Expected delayed copy not to share metadata")
	}
	if delayed.ID != job.ID || delayed.RetryCount != 2 || delayed.Metadata["trigger"] != "task_changed" {
		t.Errorf("Expected delayed job to keep identity, retries and metadata, got %+v", delayed)
	}
	if delayed.StateAt(time.Now()) != JobWaiting {
		t.Error("Expected delayed job to be waiting")
	}
	if delayed.StateAt(time.Now().Add(2*time.Minute)) != JobReady {
		t.Error("Expected delayed job to be ready after the delay")
	}
}

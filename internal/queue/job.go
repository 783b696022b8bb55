package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType names the work a job asks the worker to do
type JobType string

const (
	// JobTypeReschedule re-runs schedule synthesis over the required tasks
	JobTypeReschedule JobType = "reschedule"
	// JobTypeCleanup deletes completed and expired tasks
	JobTypeCleanup JobType = "cleanup"
)

// DefaultMaxRetries is the retry budget for non rate-limit failures
const DefaultMaxRetries = 3

// Valid reports whether t is a known job type
func (t JobType) Valid() bool {
	return t == JobTypeReschedule || t == JobTypeCleanup
}

// Job is the message body published to the planner queue
type Job struct {
	ID   uuid.UUID `json:"id"`
	Type JobType   `json:"type"`
	// SessionID links the job to the conversation that triggered it, if any
	SessionID string `json:"session_id,omitempty"`
	// TaskID is the task whose change triggered the job, if any
	TaskID *uuid.UUID `json:"task_id,omitempty"`
	// NotBefore and NotAfter bound when the job may run; nil leaves that side open
	NotBefore *time.Time `json:"not_before,omitempty"`
	NotAfter  *time.Time `json:"not_after,omitempty"`
	// Metadata holds the trigger and trace context
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	RetryCount int            `json:"retry_count"`
	MaxRetries int            `json:"max_retries"`
	// Deferrals counts rate-limit postponements; they do not use the retry budget
	Deferrals int `json:"deferrals,omitempty"`
}

// NewJob creates an immediately runnable job with the default retry budget
func NewJob(jobType JobType, taskID *uuid.UUID) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		TaskID:     taskID,
		Metadata:   make(map[string]any),
		CreatedAt:  time.Now(),
		MaxRetries: DefaultMaxRetries,
	}
}

// JobState is where a job stands relative to its run window
type JobState int

const (
	// JobReady can run now
	JobReady JobState = iota
	// JobWaiting has a NotBefore in the future
	JobWaiting
	// JobExpired is past its NotAfter and should be dropped
	JobExpired
)

// StateAt places the job relative to its run window at now. Expiry wins over waiting.
func (j *Job) StateAt(now time.Time) JobState {
	switch {
	case j.NotAfter != nil && now.After(*j.NotAfter):
		return JobExpired
	case j.NotBefore != nil && now.Before(*j.NotBefore):
		return JobWaiting
	default:
		return JobReady
	}
}

// CanRetry reports whether the retry budget has room left
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry spends one retry
func (j *Job) IncrementRetry() {
	j.RetryCount++
}

// Delay returns a copy of the job that may not run before d from now.
// The copy shares nothing mutable with j.
func (j *Job) Delay(d time.Duration) *Job {
	cp := *j
	notBefore := time.Now().Add(d)
	cp.NotBefore = &notBefore
	if j.Metadata != nil {
		cp.Metadata = make(map[string]any, len(j.Metadata))
		for k, v := range j.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

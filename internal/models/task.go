package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskType classifies a task for scheduling heuristics
type TaskType string

const (
	TaskTypeCourse   TaskType = "course"
	TaskTypeTrivial  TaskType = "trivial"
	TaskTypeWork     TaskType = "work"
	TaskTypeLearning TaskType = "learning"
)

// TaskTypes lists every valid task type in display order
var TaskTypes = []TaskType{TaskTypeCourse, TaskTypeTrivial, TaskTypeWork, TaskTypeLearning}

// Duration bounds in minutes. Values outside the range are discarded, never clamped.
const (
	MinDurationMinutes = 5
	MaxDurationMinutes = 480
)

// Valid reports whether t is one of the known task types
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeCourse, TaskTypeTrivial, TaskTypeWork, TaskTypeLearning:
		return true
	default:
		return false
	}
}

// DisplayName returns the user-facing label for the task type
func (t TaskType) DisplayName() string {
	switch t {
	case TaskTypeCourse:
		return "课程安排"
	case TaskTypeTrivial:
		return "琐碎事务"
	case TaskTypeLearning:
		return "学习任务"
	default:
		return "工作任务"
	}
}

// ParseTaskType parses a task type, tolerating case and surrounding whitespace
func ParseTaskType(s string) (TaskType, bool) {
	t := TaskType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", false
	}
	return t, true
}

// ValidDuration reports whether minutes is inside the accepted duration range
func ValidDuration(minutes int) bool {
	return minutes >= MinDurationMinutes && minutes <= MaxDurationMinutes
}

// Task is a persisted unit of work
type Task struct {
	ID                uuid.UUID  `json:"id"`
	Title             string     `json:"title"`
	Description       *string    `json:"description,omitempty"`
	Type              TaskType   `json:"type"`
	IsCompleted       bool       `json:"is_completed"`
	ScheduledTime     *time.Time `json:"scheduled_time,omitempty"`
	IsFixedTime       bool       `json:"is_fixed_time"`
	Deadline          *time.Time `json:"deadline,omitempty"`
	EstimatedDuration *int       `json:"estimated_duration,omitempty"`
	IsRequired        bool       `json:"is_required"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Duration returns the estimated duration, or false when it is not known
func (t *Task) Duration() (time.Duration, bool) {
	if t.EstimatedDuration == nil {
		return 0, false
	}
	return time.Duration(*t.EstimatedDuration) * time.Minute, true
}

// TaskDraft is a task that has been extracted but not yet persisted
type TaskDraft struct {
	Title             string     `json:"title"`
	Description       *string    `json:"description,omitempty"`
	Type              TaskType   `json:"type"`
	ScheduledTime     *time.Time `json:"scheduled_time,omitempty"`
	IsFixedTime       bool       `json:"is_fixed_time"`
	Deadline          *time.Time `json:"deadline,omitempty"`
	EstimatedDuration *int       `json:"estimated_duration,omitempty"`
	IsRequired        bool       `json:"is_required"`
}

// ScheduleAssignment places one task at a start time within a schedule proposal
type ScheduleAssignment struct {
	TaskID        uuid.UUID `json:"task_id"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Reason        string    `json:"reason,omitempty"`
}

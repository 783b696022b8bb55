package models

import (
	"testing"
	"time"
)

func TestTaskType_Values(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  TaskType
		valid bool
	}{
		{"course", "course", TaskTypeCourse, true},
		{"trivial", "trivial", TaskTypeTrivial, true},
		{"work upper", " WORK ", TaskTypeWork, true},
		{"learning", "learning", TaskTypeLearning, true},
		{"unknown", "meeting", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseTaskType(tt.input)
			if ok != tt.valid {
				t.Errorf("Expected valid=%v, got %v", tt.valid, ok)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestTaskType_DisplayName(t *testing.T) {
	t.Parallel()

	if got := TaskTypeTrivial.DisplayName(); got != "琐碎事务" {
		t.Errorf("Expected 琐碎事务, got %s", got)
	}
	if got := TaskType("bogus").DisplayName(); got != "工作任务" {
		t.Errorf("Expected fallback 工作任务, got %s", got)
	}
}

func TestValidDuration(t *testing.T) {
	t.Parallel()

	for minutes, want := range map[int]bool{4: false, 5: true, 60: true, 480: true, 481: false, -1: false} {
		if got := ValidDuration(minutes); got != want {
			t.Errorf("ValidDuration(%d): expected %v, got %v", minutes, want, got)
		}
	}
}

func TestTaskUpdate_ApplyTo(t *testing.T) {
	t.Parallel()

	desc := "bring passport"
	deadline := time.Date(2025, 3, 7, 15, 0, 0, 0, time.UTC)
	duration := 30
	task := &Task{
		Title:             "visa",
		Description:       &desc,
		Type:              TaskTypeTrivial,
		Deadline:          &deadline,
		EstimatedDuration: &duration,
	}

	newTitle := "visa appointment"
	update := TaskUpdate{
		Title:             &newTitle,
		Description:       Clear[string](),
		Deadline:          SetTo(deadline.Add(24 * time.Hour)),
		EstimatedDuration: Patch[int]{},
	}
	if update.IsEmpty() {
		t.Fatal("Expected update to be non-empty")
	}
	update.ApplyTo(task)

	if task.Title != newTitle {
		t.Errorf("Expected title %q, got %q", newTitle, task.Title)
	}
	if task.Description != nil {
		t.Errorf("Expected description to be cleared, got %q", *task.Description)
	}
	if task.Deadline == nil || !task.Deadline.Equal(deadline.Add(24*time.Hour)) {
		t.Errorf("Expected deadline to move one day, got %v", task.Deadline)
	}
	if task.EstimatedDuration == nil || *task.EstimatedDuration != 30 {
		t.Errorf("Expected duration untouched, got %v", task.EstimatedDuration)
	}
}

func TestTaskUpdate_IsEmpty(t *testing.T) {
	t.Parallel()

	if !(TaskUpdate{}).IsEmpty() {
		t.Error("Expected zero update to be empty")
	}
	if (TaskUpdate{ScheduledTime: Clear[time.Time]()}).IsEmpty() {
		t.Error("Expected clearing update to be non-empty")
	}
}

package models

import "time"

// Patch is a tri-state field update: untouched when Set is false, cleared when
// Set is true and Value is nil, replaced otherwise.
type Patch[T any] struct {
	Set   bool
	Value *T
}

// SetTo returns a patch replacing the field with v
func SetTo[T any](v T) Patch[T] {
	return Patch[T]{Set: true, Value: &v}
}

// Clear returns a patch removing the field value
func Clear[T any]() Patch[T] {
	return Patch[T]{Set: true}
}

// IsClear reports whether the patch removes the value
func (p Patch[T]) IsClear() bool {
	return p.Set && p.Value == nil
}

func (p Patch[T]) apply(dst **T) {
	if !p.Set {
		return
	}
	if p.Value == nil {
		*dst = nil
		return
	}
	v := *p.Value
	*dst = &v
}

// TaskUpdate holds the fields to change on an existing task. Nil pointers and
// unset patches leave the stored value as is.
type TaskUpdate struct {
	Title             *string
	Description       Patch[string]
	Type              *TaskType
	IsCompleted       *bool
	ScheduledTime     Patch[time.Time]
	IsFixedTime       *bool
	Deadline          Patch[time.Time]
	EstimatedDuration Patch[int]
	IsRequired        *bool
}

// IsEmpty reports whether the update changes nothing
func (u TaskUpdate) IsEmpty() bool {
	return u.Title == nil && !u.Description.Set && u.Type == nil && u.IsCompleted == nil &&
		!u.ScheduledTime.Set && u.IsFixedTime == nil && !u.Deadline.Set &&
		!u.EstimatedDuration.Set && u.IsRequired == nil
}

// ApplyTo mutates t with the update. UpdatedAt is left to the caller.
func (u TaskUpdate) ApplyTo(t *Task) {
	if u.Title != nil {
		t.Title = *u.Title
	}
	u.Description.apply(&t.Description)
	if u.Type != nil {
		t.Type = *u.Type
	}
	if u.IsCompleted != nil {
		t.IsCompleted = *u.IsCompleted
	}
	u.ScheduledTime.apply(&t.ScheduledTime)
	if u.IsFixedTime != nil {
		t.IsFixedTime = *u.IsFixedTime
	}
	u.Deadline.apply(&t.Deadline)
	u.EstimatedDuration.apply(&t.EstimatedDuration)
	if u.IsRequired != nil {
		t.IsRequired = *u.IsRequired
	}
}

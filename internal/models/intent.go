package models

import "strings"

// Intent is the classified purpose of a user utterance
type Intent int

const (
	IntentQuery Intent = iota
	IntentAdjustment
	IntentNewTask
	IntentComplexTask
)

// String returns the wire name of the intent
func (i Intent) String() string {
	switch i {
	case IntentAdjustment:
		return "adjustment"
	case IntentNewTask:
		return "new_task"
	case IntentComplexTask:
		return "complex_task"
	default:
		return "query"
	}
}

// ParseIntent parses a wire name. Unknown names are rejected.
func ParseIntent(s string) (Intent, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "query":
		return IntentQuery, true
	case "adjustment":
		return IntentAdjustment, true
	case "new_task":
		return IntentNewTask, true
	case "complex_task":
		return IntentComplexTask, true
	default:
		return IntentQuery, false
	}
}

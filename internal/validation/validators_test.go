package validation

import (
	"testing"
)

type samplePayload struct {
	Title  string `json:"title" validate:"required"`
	Type   string `json:"type" validate:"omitempty,task_type"`
	Intent string `json:"intent" validate:"required,intent"`
	Mins   *int   `json:"minutes" validate:"omitempty,min=5,max=480"`
}

func TestValidate_CustomTags(t *testing.T) {
	t.Parallel()

	tooLong := 600
	tests := []struct {
		name   string
		in     samplePayload
		failed []string
	}{
		{"valid", samplePayload{Title: "a", Type: "work", Intent: "new_task"}, nil},
		{"bad type", samplePayload{Title: "a", Type: "meeting", Intent: "query"}, []string{"type"}},
		{"bad intent", samplePayload{Title: "a", Intent: "chit_chat"}, []string{"intent"}},
		{"missing title and long duration", samplePayload{Intent: "query", Mins: &tooLong}, []string{"title", "minutes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate.Struct(tt.in)
			fields := FailedFields(err)
			if len(tt.failed) == 0 {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			if len(fields) != len(tt.failed) {
				t.Fatalf("Expected %d failed fields, got %v", len(tt.failed), fields)
			}
			for _, f := range tt.failed {
				if !fields[f] {
					t.Errorf("Expected field %q to fail, got %v", f, fields)
				}
			}
		})
	}
}

func TestFailedFields_NonValidationError(t *testing.T) {
	t.Parallel()

	if got := FailedFields(nil); got != nil {
		t.Errorf("Expected nil, got %v", got)
	}
}

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"  hello  ", "hello"},
		{"a\x00b", "ab"},
		{"line1\nline2\tx", "line1\nline2\tx"},
		{"明天下午三点开会", "明天下午三点开会"},
	}
	for _, tt := range tests {
		if got := SanitizeText(tt.in); got != tt.want {
			t.Errorf("SanitizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateTaskType(t *testing.T) {
	t.Parallel()

	if err := ValidateTaskType("learning"); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
	if err := ValidateTaskType("chore"); err == nil {
		t.Error("Expected error for unknown type")
	}
}

package logger

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{"empty", "", 10, ""},
		{"control characters removed", "line\x00one\x1b[31m", 100, "lineone[31m"},
		{"newlines kept", "a\nb", 100, "a\nb"},
		{"invalid utf8 dropped", "ok\xffok", 100, "okok"},
		{"truncated on rune boundary", "明天下午三点开会", 4, "明天下午..."},
		{"default limit", strings.Repeat("x", 10), 0, strings.Repeat("x", 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := SanitizeString(tt.input, tt.max)
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
			if !utf8.ValidString(got) {
				t.Errorf("Expected valid UTF-8, got %q", got)
			}
		})
	}
}

func TestSanitizePath(t *testing.T) {
	t.Parallel()

	long := "/api/v1/ai/chat/" + strings.Repeat("会", MaxPathLength)
	got := SanitizePath(long)
	if n := utf8.RuneCountInString(strings.TrimSuffix(got, "...")); n != MaxPathLength {
		t.Errorf("Expected %d runes, got %d", MaxPathLength, n)
	}
}

func TestSanitizeSessionID(t *testing.T) {
	t.Parallel()

	if got := SanitizeSessionID("session_abc\r\x07"); got != "session_abc\r" {
		t.Errorf("Expected control bell removed, got %q", got)
	}
	if got := SanitizeSessionID(strings.Repeat("s", MaxSessionIDLength+5)); len(got) != MaxSessionIDLength+3 {
		t.Errorf("Expected truncation to %d plus ellipsis, got %d", MaxSessionIDLength, len(got))
	}
}

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	if SanitizeError(nil) != "" {
		t.Error("Expected empty string for nil error")
	}
	if got := SanitizeError(errors.New("db\x00 down")); got != "db down" {
		t.Errorf("Expected %q, got %q", "db down", got)
	}
}

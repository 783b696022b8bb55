package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewProductionLogger_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		debug     bool
		wantDebug bool
	}{
		{"info by default", false, false},
		{"debug mode", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l, err := NewProductionLogger("smart-schedule", tt.debug)
			if err != nil {
				t.Fatalf("Failed to build logger: %v", err)
			}
			if got := l.Core().Enabled(zapcore.DebugLevel); got != tt.wantDebug {
				t.Errorf("Expected debug enabled=%v, got %v", tt.wantDebug, got)
			}
			if !l.Core().Enabled(zapcore.InfoLevel) {
				t.Error("Expected info level to be enabled")
			}
		})
	}
}

func TestNewCLILogger_QuietByDefault(t *testing.T) {
	t.Parallel()

	l, err := NewCLILogger(false)
	if err != nil {
		t.Fatalf("Failed to build logger: %v", err)
	}
	if l.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("Expected a no-op logger when not verbose")
	}

	l, err = NewCLILogger(true)
	if err != nil {
		t.Fatalf("Failed to build logger: %v", err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Error("Expected debug output when verbose")
	}
}

func TestSync_NilLogger(t *testing.T) {
	t.Parallel()

	if err := Sync(nil); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
}

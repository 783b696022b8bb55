package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantJSON   bool
		wantLogged bool
	}{
		{
			name: "passes through",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusAccepted)
			},
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "string panic",
			handler:    func(http.ResponseWriter, *http.Request) { panic("synthesizer exploded") },
			wantStatus: http.StatusInternalServerError,
			wantJSON:   true,
			wantLogged: true,
		},
		{
			name: "runtime panic",
			handler: func(http.ResponseWriter, *http.Request) {
				var slots map[string]int
				slots["09:00"] = 1
			},
			wantStatus: http.StatusInternalServerError,
			wantJSON:   true,
			wantLogged: true,
		},
		{
			name: "panic after response started",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"success":true`))
				panic("late")
			},
			wantStatus: http.StatusOK,
			wantLogged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.ErrorLevel)
			h := ErrorHandler(zap.New(core))(tt.handler)

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/ai/chat", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if got := logs.FilterMessage("panic_recovered").Len(); (got == 1) != tt.wantLogged {
				t.Errorf("Expected panic logged=%v, got %d entries", tt.wantLogged, got)
			}
			if !tt.wantJSON {
				return
			}

			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected Content-Type application/json, got %q", ct)
			}
			var body ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if body.Success || body.Error != "Internal Server Error" || body.Message != "An unexpected error occurred" {
				t.Errorf("Unexpected error body: %+v", body)
			}
			if body.Path != "/api/v1/ai/chat" {
				t.Errorf("Expected path /api/v1/ai/chat, got %q", body.Path)
			}
			if body.Timestamp == "" {
				t.Error("Expected timestamp to be set")
			}
		})
	}
}

func TestErrorHandler_RepanicsOnAbort(t *testing.T) {
	t.Parallel()

	h := ErrorHandler(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if v := recover(); v != http.ErrAbortHandler {
			t.Errorf("Expected http.ErrAbortHandler to propagate, got %v", v)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

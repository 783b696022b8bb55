package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	t.Parallel()

	handler := CORS([]string{"https://plan.example.com"}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name        string
		method      string
		origin      string
		expectAllow string
	}{
		{"allowed origin", http.MethodGet, "https://plan.example.com", "https://plan.example.com"},
		{"disallowed origin", http.MethodGet, "https://evil.example.com", ""},
		{"preflight allowed", http.MethodOptions, "https://plan.example.com", "https://plan.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, "/api/v1/tasks", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.expectAllow {
				t.Errorf("Expected Access-Control-Allow-Origin %q, got %q", tt.expectAllow, got)
			}
		})
	}
}

func TestCORS_DefaultOrigin(t *testing.T) {
	t.Parallel()

	handler := CORS(nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set("Origin", DefaultFrontendOrigin)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != DefaultFrontendOrigin {
		t.Errorf("Expected %q, got %q", DefaultFrontendOrigin, got)
	}
}

package middleware

import (
	"encoding/json"
	"net/http"
	"time"
)

const (
	// DefaultRequestTimeout bounds task API requests
	DefaultRequestTimeout = 30 * time.Second
	// ChatRequestTimeout covers up to three synthesis attempts plus decomposition
	ChatRequestTimeout = 3 * time.Minute
)

// Timeout cancels the handler context after d and answers 503 with a JSON error body.
// Writes made by the handler after the deadline are discarded.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	if d <= 0 {
		d = DefaultRequestTimeout
	}
	body, _ := json.Marshal(ErrorResponse{
		Error:   "Service Unavailable",
		Message: "Request timed out after " + d.String(),
	})

	return func(next http.Handler) http.Handler {
		th := http.TimeoutHandler(next, d, string(body))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Successful responses replace this with the handler's own header
			w.Header().Set("Content-Type", "application/json")
			th.ServeHTTP(w, r)
		})
	}
}

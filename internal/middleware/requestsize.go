package middleware

import (
	"fmt"
	"net/http"
)

// DefaultMaxRequestSize caps request bodies at 1MB; chat messages and task payloads are far smaller
const DefaultMaxRequestSize int64 = 1 << 20

// MaxRequestSize rejects declared oversized bodies up front and wraps the rest in
// http.MaxBytesReader, so handlers see *http.MaxBytesError for streamed bodies.
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}
	tooLarge := fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytes)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				respondErrorJSON(w, r, http.StatusRequestEntityTooLarge, "Request Entity Too Large", tooLarge, nil)
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

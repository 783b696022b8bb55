// Package request carries per-request identifiers through contexts.
package request

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type contextKey string

const (
	requestIDContextKey contextKey = "request_id"
	sessionIDContextKey contextKey = "session_id"
)

// RequestIDContextKey exposes the request ID key for tests that store odd values
func RequestIDContextKey() contextKey { return requestIDContextKey }

// ClientIP returns the caller address used for rate limiting and audit logs: the
// first X-Forwarded-For hop, then X-Real-IP, then the peer host without its port.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// WithRequestID returns a context carrying the request ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

// RequestID returns the request ID in ctx, or "" if missing or not a string
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// WithSessionID returns a context carrying the chat session ID
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey, id)
}

// SessionID returns the chat session ID in ctx, or ""
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDContextKey).(string)
	return id
}

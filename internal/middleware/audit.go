package middleware

import (
	"net/http"

	logpkg "github.com/benvon/smart-schedule/internal/logger"
	"github.com/benvon/smart-schedule/internal/request"
	"go.uber.org/zap"
)

// Audit logs rejected requests (rate limited, oversized, timed out) for monitoring
func Audit(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			var event string
			switch rec.status {
			case http.StatusTooManyRequests:
				event = "rate_limit_violation"
			case http.StatusRequestEntityTooLarge:
				event = "oversized_request"
			case http.StatusServiceUnavailable:
				event = "request_unavailable"
			default:
				return
			}
			logger.Warn(event,
				zap.Int("status_code", rec.status),
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.String("ip", logpkg.SanitizeString(request.ClientIP(r), logpkg.MaxGeneralStringLength)),
				zap.String("request_id", request.RequestID(r.Context())),
			)
		})
	}
}

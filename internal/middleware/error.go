package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	logpkg "github.com/benvon/smart-schedule/internal/logger"
	"github.com/benvon/smart-schedule/internal/request"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every error written by this package
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
}

// ErrorHandler recovers handler panics into a 500 JSON response. Panic details are
// logged with a stack trace and never sent to the client. If the handler already
// started its response only the log entry is written.
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newStatusRecorder(w)
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}
				logger.Error("panic_recovered",
					zap.Any("panic", v),
					zap.String("method", r.Method),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("request_id", request.RequestID(r.Context())),
					zap.Bool("response_started", rec.written),
					zap.Stack("stack"),
				)
				if !rec.written {
					respondErrorJSON(rec, r, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred", logger)
				}
			}()
			next.ServeHTTP(rec, r)
		})
	}
}

// respondErrorJSON writes an ErrorResponse with status. logger may be nil.
func respondErrorJSON(w http.ResponseWriter, r *http.Request, status int, errorType, message string, logger *zap.Logger) {
	body, err := json.Marshal(ErrorResponse{
		Error:     errorType,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      r.URL.Path,
	})
	if err != nil {
		if logger != nil {
			logger.Error("failed_to_encode_error_response", zap.Error(err), zap.Int("status_code", status))
		}
		http.Error(w, message, status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil && logger != nil {
		logger.Debug("error_response_write_failed",
			zap.Error(err),
			zap.String("path", logpkg.SanitizePath(r.URL.Path)))
	}
}

package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
)

var (
	// ErrRateLimited matches a transient 429 from the provider
	ErrRateLimited = errors.New("rate limited")
	// ErrQuotaExceeded matches an exhausted account quota
	ErrQuotaExceeded = errors.New("quota exceeded")
)

const codeInsufficientQuota = "insufficient_quota"

// APIError is a provider throttling error. Quota exhaustion is permanent until
// billing changes; plain rate limits clear on their own.
type APIError struct {
	Message     string
	Type        string
	Code        string
	StatusCode  int
	RetryAfter  *time.Duration
	IsPermanent bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
}

// Is lets errors.Is match ErrRateLimited and ErrQuotaExceeded
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrQuotaExceeded:
		return e.IsPermanent || e.Code == codeInsufficientQuota
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests && !e.IsPermanent
	}
	return false
}

// IsRateLimitError reports whether err is a transient rate limit
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return errors.Is(apiErr, ErrRateLimited)
	}
	return containsAny(err.Error(), "429", "rate limit", "too many requests")
}

// IsQuotaError reports whether err is quota exhaustion
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return errors.Is(apiErr, ErrQuotaExceeded)
	}
	return containsAny(err.Error(), codeInsufficientQuota, "quota", "billing")
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// ExtractAPIError returns the throttling details carried by err, or nil when err
// is not a 429. Typed SDK errors are preferred; gateways that flatten errors to
// text are parsed from the embedded JSON body.
func ExtractAPIError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var sdkErr *openai.Error
	if errors.As(err, &sdkErr) {
		if sdkErr.StatusCode != http.StatusTooManyRequests {
			return nil
		}
		return throttled(sdkErr.Message, sdkErr.Type, sdkErr.Code)
	}

	text := err.Error()
	if !strings.Contains(text, "429") {
		return nil
	}
	var body struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	}
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start >= 0 && end > start && json.Unmarshal([]byte(text[start:end+1]), &body) == nil {
		return throttled(body.Message, body.Type, body.Code)
	}
	return throttled(text, "", "")
}

func throttled(message, typ, code string) *APIError {
	if typ == "" {
		typ = "rate_limit_error"
	}
	permanent := code == codeInsufficientQuota
	retryAfter := time.Minute
	if permanent {
		retryAfter = time.Hour
	}
	return &APIError{
		StatusCode:  http.StatusTooManyRequests,
		Message:     message,
		Type:        typ,
		Code:        code,
		IsPermanent: permanent,
		RetryAfter:  &retryAfter,
	}
}

// backoff doubles base per attempt up to ceiling
type backoff struct {
	base, ceiling time.Duration
}

func (b backoff) after(attempt int) time.Duration {
	attempt = max(0, min(attempt, 10))
	return min(b.base<<attempt, b.ceiling)
}

var (
	quotaBackoff     = backoff{base: time.Hour, ceiling: 24 * time.Hour}
	rateLimitBackoff = backoff{base: time.Minute, ceiling: 15 * time.Minute}
	defaultBackoff   = backoff{base: 5 * time.Second, ceiling: 5 * time.Minute}
)

// GetRetryDelay returns how long to wait before retry number attempt
func GetRetryDelay(err error, attempt int) time.Duration {
	switch {
	case IsQuotaError(err):
		return quotaBackoff.after(attempt)
	case IsRateLimitError(err):
		delay := rateLimitBackoff.after(attempt)
		if apiErr := ExtractAPIError(err); apiErr != nil && apiErr.RetryAfter != nil {
			delay = max(delay, *apiErr.RetryAfter)
		}
		return delay
	default:
		return defaultBackoff.after(attempt)
	}
}

package ai

import (
	"context"
	"unicode/utf8"

	"github.com/benvon/smart-schedule/internal/logger"
	"github.com/benvon/smart-schedule/internal/request"
)

const (
	// MaxPreviewLength is the maximum length for preview strings in logs
	MaxPreviewLength = 200
	// MaxFullLogLength caps prompts and responses logged in debug mode
	MaxFullLogLength = 10000
	// RedactedValue is the value used to replace sensitive data
	RedactedValue = "[REDACTED]"
)

// SanitizeAPIKey sanitizes an API key for logging
func SanitizeAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 8 {
		return RedactedValue
	}
	// Show first 4 and last 4 characters, redact the middle
	return apiKey[:4] + RedactedValue + apiKey[len(apiKey)-4:]
}

// SanitizePrompt creates a safe preview of a prompt for logging
func SanitizePrompt(prompt string, fullLog bool) string {
	return sanitizePreview(prompt, fullLog)
}

// SanitizeResponse creates a safe preview of a response for logging
func SanitizeResponse(response string, fullLog bool) string {
	return sanitizePreview(response, fullLog)
}

func sanitizePreview(s string, fullLog bool) string {
	if s == "" {
		return ""
	}
	maxRunes := MaxPreviewLength
	if fullLog {
		maxRunes = MaxFullLogLength
	}
	return logger.SanitizeString(s, maxRunes)
}

// TruncateRunes truncates s to at most maxRunes runes
func TruncateRunes(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes]) + "..."
}

// ExtractRequestID extracts a request ID from context if available
func ExtractRequestID(ctx context.Context) string {
	return request.RequestID(ctx)
}

// ExtractSessionID extracts the chat session ID from context if available
func ExtractSessionID(ctx context.Context) string {
	return request.SessionID(ctx)
}

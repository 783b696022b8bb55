package logger

import (
	"strings"
	"unicode"
)

// Field limits, counted in runes so task text is never cut mid-character
const (
	MaxPathLength          = 500
	MaxSessionIDLength     = 128
	MaxErrorMessageLength  = 1000
	MaxGeneralStringLength = 2000
)

const ellipsis = "..."

// SanitizeString makes s safe to log: invalid UTF-8 and control characters other
// than whitespace are dropped, and the result is cut to maxLength runes. A
// non-positive maxLength means MaxGeneralStringLength.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}

	var b strings.Builder
	b.Grow(min(len(s), maxLength*4+len(ellipsis)))
	kept := 0
	for _, r := range strings.ToValidUTF8(s, "") {
		if !loggable(r) {
			continue
		}
		if kept == maxLength {
			b.WriteString(ellipsis)
			break
		}
		b.WriteRune(r)
		kept++
	}
	return b.String()
}

func loggable(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return unicode.IsPrint(r)
}

// SanitizePath is SanitizeString for request paths
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeSessionID is SanitizeString for client supplied chat session IDs
func SanitizeSessionID(sessionID string) string {
	return SanitizeString(sessionID, MaxSessionIDLength)
}

// SanitizeError returns err's message ready for a log field
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidOutput marks completion output that could not be parsed or validated
var ErrInvalidOutput = errors.New("invalid model output")

// SchemaValidator checks a decoded payload. A nil validator accepts everything.
type SchemaValidator[T any] func(T) error

// ExtractJSON decodes the first JSON object found in raw model text into T.
// Markdown fences, prose around the object, comments and leading-dot decimals
// are tolerated. All failures wrap ErrInvalidOutput.
func ExtractJSON[T any](raw string, validate SchemaValidator[T]) (T, error) {
	var zero T

	block := firstObject(dropFenceLines(raw))
	if block == "" {
		return zero, fmt.Errorf("%w: no JSON object found in response", ErrInvalidOutput)
	}
	block = cleanJSON(block)

	var out T
	if err := json.Unmarshal([]byte(block), &out); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if validate != nil {
		if err := validate(out); err != nil {
			return zero, fmt.Errorf("%w: validation failed: %v", ErrInvalidOutput, err)
		}
	}
	return out, nil
}

// dropFenceLines removes ``` and ```json marker lines, keeping their contents
func dropFenceLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// firstObject returns the first balanced {...} block, ignoring braces inside strings
func firstObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	var sc stringScanner
	for i := start; i < len(s); i++ {
		if sc.step(s[i]) {
			continue
		}
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// cleanJSON strips // and /* */ comments and rewrites .5 as 0.5 outside strings
func cleanJSON(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	var sc stringScanner
	for i := 0; i < len(s); i++ {
		c := s[i]
		if sc.step(c) {
			b.WriteByte(c)
			continue
		}
		if c == '/' && i+1 < len(s) && s[i+1] == '/' {
			for i+1 < len(s) && s[i+1] != '\n' {
				i++
			}
			continue
		}
		if c == '/' && i+1 < len(s) && s[i+1] == '*' {
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				break
			}
			i += end + 3
			continue
		}
		if c == '.' && i+1 < len(s) && isDigit(s[i+1]) && startsNumber(lastNonSpace(s, i-1)) {
			b.WriteByte('0')
		}
		b.WriteByte(c)
	}
	return b.String()
}

// stringScanner tracks whether the cursor is inside a JSON string literal
type stringScanner struct {
	inString bool
	escaped  bool
}

// step consumes c and reports whether it belongs to a string literal (quotes included)
func (sc *stringScanner) step(c byte) bool {
	switch {
	case sc.escaped:
		sc.escaped = false
		return true
	case sc.inString && c == '\\':
		sc.escaped = true
		return true
	case c == '"':
		sc.inString = !sc.inString
		return true
	default:
		return sc.inString
	}
}

func lastNonSpace(s string, i int) byte {
	for ; i >= 0; i-- {
		switch s[i] {
		case ' ', '\n', '\r', '\t':
			continue
		default:
			return s[i]
		}
	}
	return 0
}

func startsNumber(prev byte) bool {
	switch prev {
	case 0, ':', ',', '[', '{', '-':
		return true
	default:
		return false
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

package conversation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/benvon/smart-schedule/internal/models"
)

// Defaults for recognising a multi-step procedural request in history
var (
	DefaultActionVerbs = []string{"填写", "提交", "打印", "签署", "登录", "申报", "生成", "点击"}
	DefaultTimePattern = `\d+月\d+日|\d+:\d+|截止|之前|需于`
)

// DefaultMinComplexLength is the rune length a message must exceed to count as complex input
const DefaultMinComplexLength = 50

// ComplexSignals decides whether a user message is a complex procedural request
type ComplexSignals struct {
	ActionVerbs []string
	TimePattern *regexp.Regexp
	MinLength   int
	// MinVerbs is the number of distinct action verbs required
	MinVerbs int
}

// DefaultComplexSignals returns the built-in heuristics
func DefaultComplexSignals() ComplexSignals {
	return ComplexSignals{
		ActionVerbs: append([]string(nil), DefaultActionVerbs...),
		TimePattern: regexp.MustCompile(DefaultTimePattern),
		MinLength:   DefaultMinComplexLength,
		MinVerbs:    2,
	}
}

// NewComplexSignals compiles heuristics from configuration values
func NewComplexSignals(verbs []string, timePattern string, minLength int) (ComplexSignals, error) {
	s := DefaultComplexSignals()
	if len(verbs) > 0 {
		s.ActionVerbs = append([]string(nil), verbs...)
	}
	if timePattern != "" {
		re, err := regexp.Compile(timePattern)
		if err != nil {
			return ComplexSignals{}, fmt.Errorf("failed to compile time pattern: %w", err)
		}
		s.TimePattern = re
	}
	if minLength > 0 {
		s.MinLength = minLength
	}
	return s, nil
}

// Matches reports whether text carries enough action verbs, a time expression and length
func (s ComplexSignals) Matches(text string) bool {
	if utf8.RuneCountInString(text) <= s.MinLength {
		return false
	}
	if s.TimePattern == nil || !s.TimePattern.MatchString(text) {
		return false
	}
	minVerbs := s.MinVerbs
	if minVerbs <= 0 {
		minVerbs = 2
	}
	found := 0
	for _, verb := range s.ActionVerbs {
		if verb != "" && strings.Contains(text, verb) {
			found++
			if found >= minVerbs {
				return true
			}
		}
	}
	return false
}

// FindComplexInput scans messages newest first and returns the most recent user
// message that matches the signals and is still pending. A request is no longer
// pending once the newest assistant reply after it carries no confirmation
// request, which is the case after its tasks were committed.
func FindComplexInput(messages []models.ChatMessage, signals ComplexSignals) (string, bool) {
	var newestReply *models.ChatMessage
	for i := len(messages) - 1; i >= 0; i-- {
		msg := &messages[i]
		if msg.Role == models.RoleAssistant {
			if newestReply == nil {
				newestReply = msg
			}
			continue
		}
		if msg.Role != models.RoleUser || !signals.Matches(msg.Content) {
			continue
		}
		if newestReply != nil && !awaitsConfirmation(newestReply) {
			return "", false
		}
		return msg.Content, true
	}
	return "", false
}

func awaitsConfirmation(msg *models.ChatMessage) bool {
	return msg.Metadata != nil &&
		msg.Metadata.TaskAnalysis != nil &&
		msg.Metadata.TaskAnalysis.RequiresConfirmation
}

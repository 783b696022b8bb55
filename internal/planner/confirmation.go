package planner

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/benvon/smart-schedule/internal/config"
	"github.com/benvon/smart-schedule/internal/conversation"
	"github.com/benvon/smart-schedule/internal/models"
	"go.uber.org/zap"
)

// DefaultConfirmationKeywords are the affirmative replies that confirm a pending decomposition
var DefaultConfirmationKeywords = []string{"确认", "好的", "可以", "同意", "没问题", "行", "对的", "confirm", "okay", "sure", "agreed"}

// DefaultQuestionMarkers flag an utterance as a question
var DefaultQuestionMarkers = []string{"?", "？", "吗", "呢", "哪", "什么", "怎么", "多少", "几点"}

// DefaultMaxConfirmationLength is the longest reply, in runes, read as a confirmation
const DefaultMaxConfirmationLength = 15

// negations cancel a keyword they directly precede
var negations = []string{"不", "没", "别", "未", "not", "don't", "no"}

// particles may follow a single-rune keyword without breaking it
const particles = "吧啊呀了的啦哈"

// DefaultPolicy returns the built-in confirmation policy
func DefaultPolicy() config.Policy {
	return config.Policy{
		ConfirmationKeywords: append([]string(nil), DefaultConfirmationKeywords...),
		ActionVerbs:          append([]string(nil), conversation.DefaultActionVerbs...),
		TimePattern:          conversation.DefaultTimePattern,
		MinComplexLength:     conversation.DefaultMinComplexLength,

		MaxConfirmationLength: DefaultMaxConfirmationLength,
		QuestionMarkers:       append([]string(nil), DefaultQuestionMarkers...),
	}
}

// Resolution is the outcome of confirmation resolution
type Resolution struct {
	IsConfirmation bool
	// OriginalInput is the earlier request being confirmed, set when Resolved
	OriginalInput string
	Resolved      bool
}

// ConfirmationResolver links a short affirmative reply to the request it confirms
type ConfirmationResolver struct {
	keywords  []string
	questions []string
	maxLength int
	signals   conversation.ComplexSignals
	history   conversation.Store
	logger    *zap.Logger
}

// NewConfirmationResolver builds a resolver from policy. Empty policy fields use the defaults.
func NewConfirmationResolver(policy config.Policy, history conversation.Store, logger *zap.Logger) (*ConfirmationResolver, error) {
	policy = policy.Merge(DefaultPolicy())
	signals, err := conversation.NewComplexSignals(policy.ActionVerbs, policy.TimePattern, policy.MinComplexLength)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfirmationResolver{
		keywords:  normalizeTerms(policy.ConfirmationKeywords),
		questions: normalizeTerms(policy.QuestionMarkers),
		maxLength: policy.MaxConfirmationLength,
		signals:   signals,
		history:   history,
		logger:    logger,
	}, nil
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Signals returns the complex-input heuristics in use
func (r *ConfirmationResolver) Signals() conversation.ComplexSignals {
	return r.signals
}

// IsConfirmation reports whether utterance is a short affirmative reply: no
// longer than the policy limit, not a question, and carrying a keyword that
// stands on its own and is not negated.
func (r *ConfirmationResolver) IsConfirmation(utterance string) bool {
	lower := strings.ToLower(strings.TrimSpace(utterance))
	if lower == "" || utf8.RuneCountInString(lower) > r.maxLength {
		return false
	}
	for _, q := range r.questions {
		if strings.Contains(lower, q) {
			return false
		}
	}
	for _, k := range r.keywords {
		for offset := 0; ; {
			i := strings.Index(lower[offset:], k)
			if i < 0 {
				break
			}
			start := offset + i
			end := start + len(k)
			if standsAlone(lower, k, start, end) && !negated(lower[:start]) {
				return true
			}
			offset = end
		}
	}
	return false
}

// standsAlone rejects keywords that are only part of a longer word, such as
// the 行 in 进行 or okay inside a longer Latin word
func standsAlone(text, keyword string, start, end int) bool {
	before, _ := utf8.DecodeLastRuneInString(text[:start])
	after, _ := utf8.DecodeRuneInString(text[end:])
	first, _ := utf8.DecodeRuneInString(keyword)

	if first < utf8.RuneSelf {
		return !isLatin(before) && !isLatin(after)
	}
	if utf8.RuneCountInString(keyword) > 1 {
		return true
	}
	return !unicode.IsLetter(before) && (!unicode.IsLetter(after) || strings.ContainsRune(particles, after))
}

func isLatin(r rune) bool {
	return r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

// negated reports whether prefix ends with a negation
func negated(prefix string) bool {
	prefix = strings.TrimRightFunc(prefix, unicode.IsSpace)
	for _, n := range negations {
		if strings.HasSuffix(prefix, n) {
			return true
		}
	}
	return false
}

// Resolve finds the request a confirmation refers to. The session store is
// consulted first, then the supplied history is scanned newest first.
func (r *ConfirmationResolver) Resolve(ctx context.Context, utterance, sessionID string, history []models.ChatMessage) Resolution {
	if !r.IsConfirmation(utterance) {
		return Resolution{}
	}

	if r.history != nil && sessionID != "" {
		text, found, err := r.history.FindRecentComplexInput(ctx, sessionID)
		if err != nil {
			r.logger.Warn("confirmation_history_lookup_failed",
				zap.String("session_id", sessionID),
				zap.Error(err))
		} else if found {
			return Resolution{IsConfirmation: true, OriginalInput: text, Resolved: true}
		}
	}

	if text, found := conversation.FindComplexInput(history, r.signals); found {
		return Resolution{IsConfirmation: true, OriginalInput: text, Resolved: true}
	}

	r.logger.Info("confirmation_unresolved", zap.String("session_id", sessionID))
	return Resolution{IsConfirmation: true}
}

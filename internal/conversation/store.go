package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/benvon/smart-schedule/internal/models"
)

const (
	// DefaultMaxMessagesPerSession bounds each session's history
	DefaultMaxMessagesPerSession = 100
	// DefaultMaxSessions bounds the number of retained sessions
	DefaultMaxSessions = 50
)

// ErrEmptySessionID is returned when an operation is called without a session ID
var ErrEmptySessionID = errors.New("session id is required")

// Limits bounds the retained conversation state
type Limits struct {
	MaxMessagesPerSession int
	MaxSessions           int
}

// DefaultLimits returns the standard retention limits
func DefaultLimits() Limits {
	return Limits{
		MaxMessagesPerSession: DefaultMaxMessagesPerSession,
		MaxSessions:           DefaultMaxSessions,
	}
}

func (l Limits) normalized() Limits {
	if l.MaxMessagesPerSession <= 0 {
		l.MaxMessagesPerSession = DefaultMaxMessagesPerSession
	}
	if l.MaxSessions <= 0 {
		l.MaxSessions = DefaultMaxSessions
	}
	return l
}

// SessionStats summarises one retained session
type SessionStats struct {
	SessionID    string    `json:"session_id"`
	MessageCount int       `json:"message_count"`
	LastActivity time.Time `json:"last_activity"`
}

// Store keeps bounded per-session chat history
type Store interface {
	// Append adds a message stamped strictly after the session's previous message
	Append(ctx context.Context, sessionID string, role models.Role, content string, meta *models.MessageMetadata) (*models.ChatMessage, error)
	// Recent returns up to limit most recent messages, oldest first. limit <= 0 returns all.
	Recent(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error)
	// FindRecentComplexInput returns the newest user message that looks like a multi-step request
	FindRecentComplexInput(ctx context.Context, sessionID string) (string, bool, error)
	Clear(ctx context.Context, sessionID string) error
	Sessions(ctx context.Context) ([]SessionStats, error)
}

// nextTimestamp keeps timestamps strictly increasing within a session
func nextTimestamp(now time.Time, last []models.ChatMessage) time.Time {
	if len(last) == 0 {
		return now
	}
	prev := last[len(last)-1].Timestamp
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Nanosecond)
}

func tail(messages []models.ChatMessage, limit int) []models.ChatMessage {
	start := 0
	if limit > 0 && len(messages) > limit {
		start = len(messages) - limit
	}
	out := make([]models.ChatMessage, len(messages)-start)
	copy(out, messages[start:])
	return out
}

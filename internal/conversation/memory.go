package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/benvon/smart-schedule/internal/models"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

type memorySession struct {
	messages     []models.ChatMessage
	lastActivity time.Time
}

// MemoryStore is an in-process Store. Sessions are evicted least recently used first.
type MemoryStore struct {
	mu       sync.Mutex
	limits   Limits
	signals  ComplexSignals
	sessions *lru.Cache[string, *memorySession]
	now      func() time.Time
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(limits Limits, signals ComplexSignals, opts ...MemoryOption) *MemoryStore {
	limits = limits.normalized()
	s := &MemoryStore{
		limits:   limits,
		signals:  signals,
		sessions: newSessionCache[*memorySession](limits.MaxSessions),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Store = (*MemoryStore)(nil)

// newSessionCache returns an LRU keyed by session ID holding at least one session
func newSessionCache[V any](size int) *lru.Cache[string, V] {
	// New only fails for a non-positive size
	cache, _ := lru.New[string, V](max(size, 1))
	return cache
}

// Append implements Store
func (s *MemoryStore) Append(_ context.Context, sessionID string, role models.Role, content string, meta *models.MessageMetadata) (*models.ChatMessage, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		sess = &memorySession{}
		s.sessions.Add(sessionID, sess)
	}

	msg := models.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: nextTimestamp(s.now(), sess.messages),
		Metadata:  meta,
	}
	sess.messages = append(sess.messages, msg)
	if over := len(sess.messages) - s.limits.MaxMessagesPerSession; over > 0 {
		sess.messages = append([]models.ChatMessage(nil), sess.messages[over:]...)
	}
	sess.lastActivity = msg.Timestamp

	return &msg, nil
}

// Recent implements Store
func (s *MemoryStore) Recent(_ context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return []models.ChatMessage{}, nil
	}
	return tail(sess.messages, limit), nil
}

// FindRecentComplexInput implements Store
func (s *MemoryStore) FindRecentComplexInput(_ context.Context, sessionID string) (string, bool, error) {
	if sessionID == "" {
		return "", false, ErrEmptySessionID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return "", false, nil
	}
	text, found := FindComplexInput(sess.messages, s.signals)
	return text, found, nil
}

// Clear implements Store
func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions.Remove(sessionID)
	return nil
}

// Sessions implements Store. Sessions are listed most recently used first.
func (s *MemoryStore) Sessions(_ context.Context) ([]SessionStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Keys are ordered oldest first
	ids := s.sessions.Keys()
	stats := make([]SessionStats, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		sess, ok := s.sessions.Peek(ids[i])
		if !ok {
			continue
		}
		stats = append(stats, SessionStats{
			SessionID:    ids[i],
			MessageCount: len(sess.messages),
			LastActivity: sess.lastActivity,
		})
	}
	return stats, nil
}

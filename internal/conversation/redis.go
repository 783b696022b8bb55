package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/smart-schedule/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultRedisPrefix namespaces conversation keys
const DefaultRedisPrefix = "smart-schedule:chat:"

// maxAppendAttempts bounds optimistic retries when another writer touches the session
const maxAppendAttempts = 10

// RedisStore is a Store shared between server replicas. Messages live in one list
// per session; a sorted set scored by last activity drives session eviction.
type RedisStore struct {
	client  redis.UniversalClient
	prefix  string
	limits  Limits
	signals ComplexSignals
	logger  *zap.Logger
	now     func() time.Time
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(client redis.UniversalClient, prefix string, limits Limits, signals ComplexSignals, logger *zap.Logger) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client:  client,
		prefix:  prefix,
		limits:  limits.normalized(),
		signals: signals,
		logger:  logger,
		now:     time.Now,
	}
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) messagesKey(sessionID string) string {
	return s.prefix + "session:" + sessionID + ":messages"
}

func (s *RedisStore) sessionsKey() string {
	return s.prefix + "sessions"
}

// Append implements Store. The session list is watched so that concurrent
// appends from other replicas retry instead of reusing a timestamp.
func (s *RedisStore) Append(ctx context.Context, sessionID string, role models.Role, content string, meta *models.MessageMetadata) (*models.ChatMessage, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}

	key := s.messagesKey(sessionID)
	var msg models.ChatMessage
	push := func(tx *redis.Tx) error {
		last, err := lastMessage(ctx, tx, key)
		if err != nil {
			return err
		}
		msg = models.ChatMessage{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Role:      role,
			Content:   content,
			Timestamp: nextTimestamp(s.now(), last),
			Metadata:  meta,
		}
		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to encode chat message: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, key, payload)
			pipe.LTrim(ctx, key, int64(-s.limits.MaxMessagesPerSession), -1)
			pipe.ZAdd(ctx, s.sessionsKey(), redis.Z{Score: float64(msg.Timestamp.UnixNano()), Member: sessionID})
			return nil
		})
		return err
	}

	var err error
	for range maxAppendAttempts {
		err = s.client.Watch(ctx, push, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
		s.logger.Debug("chat_append_conflict_retrying", zap.String("session_id", sessionID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to append chat message: %w", err)
	}

	if err := s.evictOverflow(ctx); err != nil {
		s.logger.Warn("chat_session_eviction_failed", zap.Error(err))
	}

	return &msg, nil
}

type indexReader interface {
	LIndex(ctx context.Context, key string, index int64) *redis.StringCmd
}

func lastMessage(ctx context.Context, r indexReader, key string) ([]models.ChatMessage, error) {
	raw, err := r.LIndex(ctx, key, -1).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last chat message: %w", err)
	}
	var msg models.ChatMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, nil
	}
	return []models.ChatMessage{msg}, nil
}

// evictOverflow drops the least recently active sessions beyond the session limit
func (s *RedisStore) evictOverflow(ctx context.Context) error {
	count, err := s.client.ZCard(ctx, s.sessionsKey()).Result()
	if err != nil {
		return err
	}
	over := count - int64(s.limits.MaxSessions)
	if over <= 0 {
		return nil
	}
	evicted, err := s.client.ZPopMin(ctx, s.sessionsKey(), over).Result()
	if err != nil {
		return err
	}
	for _, z := range evicted {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		if err := s.client.Del(ctx, s.messagesKey(id)).Err(); err != nil {
			return err
		}
		s.logger.Debug("chat_session_evicted", zap.String("session_id", id))
	}
	return nil
}

func (s *RedisStore) load(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raws, err := s.client.LRange(ctx, s.messagesKey(sessionID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	messages := make([]models.ChatMessage, 0, len(raws))
	for _, raw := range raws {
		var msg models.ChatMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			s.logger.Warn("chat_message_decode_failed", zap.String("session_id", sessionID), zap.Error(err))
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *RedisStore) touch(ctx context.Context, sessionID string) {
	err := s.client.ZAddXX(ctx, s.sessionsKey(), redis.Z{Score: float64(s.now().UnixNano()), Member: sessionID}).Err()
	if err != nil {
		s.logger.Debug("chat_session_touch_failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// Recent implements Store
func (s *RedisStore) Recent(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	messages, err := s.load(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	s.touch(ctx, sessionID)
	return messages, nil
}

// FindRecentComplexInput implements Store
func (s *RedisStore) FindRecentComplexInput(ctx context.Context, sessionID string) (string, bool, error) {
	if sessionID == "" {
		return "", false, ErrEmptySessionID
	}
	messages, err := s.load(ctx, sessionID, 0)
	if err != nil {
		return "", false, err
	}
	text, found := FindComplexInput(messages, s.signals)
	return text, found, nil
}

// Clear implements Store
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.messagesKey(sessionID))
		pipe.ZRem(ctx, s.sessionsKey(), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear chat session: %w", err)
	}
	return nil
}

// Sessions implements Store. Sessions are listed most recently used first.
func (s *RedisStore) Sessions(ctx context.Context) ([]SessionStats, error) {
	members, err := s.client.ZRevRangeWithScores(ctx, s.sessionsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list chat sessions: %w", err)
	}
	stats := make([]SessionStats, 0, len(members))
	for _, z := range members {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		count, err := s.client.LLen(ctx, s.messagesKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to count chat messages: %w", err)
		}
		stats = append(stats, SessionStats{
			SessionID:    id,
			MessageCount: int(count),
			LastActivity: time.Unix(0, int64(z.Score)),
		})
	}
	return stats, nil
}

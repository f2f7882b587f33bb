package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultSessionTTL is how long an idle session survives before Redis
// expires it. Every save refreshes the window.
const DefaultSessionTTL = 24 * time.Hour

const sessionKeyPrefix = "rosatel:session:"

// SessionStore persists full conversation state keyed by session id.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (*Conversation, error)
	Save(ctx context.Context, conv *Conversation) error
	Delete(ctx context.Context, sessionID string) error
	// GetOrCreate loads the session or initializes an empty one when the
	// id is unknown or the stored document has expired.
	GetOrCreate(ctx context.Context, sessionID string, channel Channel, userID string) (*Conversation, error)
	// ListIDs enumerates every live session id. Used by the archive
	// sweeper to find sessions worth persisting.
	ListIDs(ctx context.Context) ([]string, error)
}

// ErrSessionNotFound is returned by Load when the session id is unknown.
var ErrSessionNotFound = fmt.Errorf("conversation: session not found")

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// RedisSessionStore keeps sessions in Redis with a sliding TTL.
type RedisSessionStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisSessionStore builds a store over an existing Redis client.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisSessionStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if tracer == nil {
		tracer = otel.Tracer("rosatel.internal.conversation.sessions")
	}
	return &RedisSessionStore{redis: client, ttl: ttl, tracer: tracer}
}

func (s *RedisSessionStore) Load(ctx context.Context, sessionID string) (*Conversation, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_session")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrSessionNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load session: %w", err)
	}

	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode session: %w", err)
	}
	return &conv, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, conv *Conversation) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_session")
	defer span.End()

	if conv == nil || conv.SessionID == "" {
		return fmt.Errorf("conversation: cannot save session without an id")
	}
	data, err := json.Marshal(conv)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(conv.SessionID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.delete_session")
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to delete session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) GetOrCreate(ctx context.Context, sessionID string, channel Channel, userID string) (*Conversation, error) {
	conv, err := s.Load(ctx, sessionID)
	if err == nil {
		return conv, nil
	}
	if err != ErrSessionNotFound {
		return nil, err
	}
	return NewConversation(sessionID, channel, userID), nil
}

func (s *RedisSessionStore) ListIDs(ctx context.Context) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.list_sessions")
	defer span.End()

	var (
		ids    []string
		cursor uint64
	)
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, sessionKeyPrefix+"*", 100).Result()
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("conversation: failed to scan sessions: %w", err)
		}
		for _, k := range keys {
			ids = append(ids, k[len(sessionKeyPrefix):])
		}
		cursor = next
		if cursor == 0 {
			return ids, nil
		}
	}
}

// MemorySessionStore is a process-local store for tests and for running
// without Redis. Entries expire lazily on read.
type MemorySessionStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[string]memorySession
}

type memorySession struct {
	data      []byte
	expiresAt time.Time
}

// NewMemorySessionStore builds an empty in-process store.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemorySessionStore{
		ttl:      ttl,
		sessions: make(map[string]memorySession),
	}
}

func (s *MemorySessionStore) Load(ctx context.Context, sessionID string) (*Conversation, error) {
	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrSessionNotFound
	}
	var conv Conversation
	if err := json.Unmarshal(entry.data, &conv); err != nil {
		return nil, fmt.Errorf("conversation: failed to decode session: %w", err)
	}
	return &conv, nil
}

func (s *MemorySessionStore) Save(ctx context.Context, conv *Conversation) error {
	if conv == nil || conv.SessionID == "" {
		return fmt.Errorf("conversation: cannot save session without an id")
	}
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("conversation: failed to marshal session: %w", err)
	}
	s.mu.Lock()
	s.sessions[conv.SessionID] = memorySession{data: data, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

func (s *MemorySessionStore) GetOrCreate(ctx context.Context, sessionID string, channel Channel, userID string) (*Conversation, error) {
	conv, err := s.Load(ctx, sessionID)
	if err == nil {
		return conv, nil
	}
	if err != ErrSessionNotFound {
		return nil, err
	}
	return NewConversation(sessionID, channel, userID), nil
}

func (s *MemorySessionStore) ListIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	ids := make([]string, 0, len(s.sessions))
	for id, entry := range s.sessions {
		if now.Before(entry.expiresAt) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionData is what a store keeps per token hash.
type SessionData struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SessionStore interface {
	Save(ctx context.Context, tokenHash string, data SessionData, ttl time.Duration) error
	// Lookup returns ErrSessionNotFound for unknown or expired sessions.
	Lookup(ctx context.Context, tokenHash string) (SessionData, error)
	Revoke(ctx context.Context, tokenHash string) error
}

// MemoryStore keeps sessions in process. Expired entries are dropped on lookup
// and pruned on every save.
type MemoryStore struct {
	Now func() time.Time

	mu       sync.Mutex
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	data    SessionData
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Now: time.Now, sessions: map[string]memoryEntry{}}
}

func (m *MemoryStore) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *MemoryStore) Save(_ context.Context, tokenHash string, data SessionData, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions == nil {
		m.sessions = map[string]memoryEntry{}
	}
	now := m.now()
	for k, e := range m.sessions {
		if !now.Before(e.expires) {
			delete(m.sessions, k)
		}
	}
	m.sessions[tokenHash] = memoryEntry{data: data, expires: now.Add(ttl)}
	return nil
}

// Len reports how many sessions are held, expired ones included until pruned.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *MemoryStore) Lookup(_ context.Context, tokenHash string) (SessionData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[tokenHash]
	if !ok {
		return SessionData{}, ErrSessionNotFound
	}
	if !m.now().Before(e.expires) {
		delete(m.sessions, tokenHash)
		return SessionData{}, ErrSessionNotFound
	}
	return e.data, nil
}

func (m *MemoryStore) Revoke(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, tokenHash)
	return nil
}

// RedisStore keeps sessions in Redis with a TTL per key.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to redisURL and pings it.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client), nil
}

func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "ideaflow:session:"}
}

func (s *RedisStore) key(tokenHash string) string {
	return s.prefix + tokenHash
}

func (s *RedisStore) Save(ctx context.Context, tokenHash string, data SessionData, ttl time.Duration) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(tokenHash), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Lookup(ctx context.Context, tokenHash string) (SessionData, error) {
	raw, err := s.client.Get(ctx, s.key(tokenHash)).Result()
	if err == redis.Nil {
		return SessionData{}, ErrSessionNotFound
	}
	if err != nil {
		return SessionData{}, fmt.Errorf("lookup session: %w", err)
	}
	var data SessionData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return SessionData{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return data, nil
}

func (s *RedisStore) Revoke(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, s.key(tokenHash)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// NewSessionStore picks the store named by kind ("memory" or "redis").
func NewSessionStore(kind, redisURL string) (SessionStore, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(redisURL)
	default:
		return nil, fmt.Errorf("unknown session store %q", kind)
	}
}

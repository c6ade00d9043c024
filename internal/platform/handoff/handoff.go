// Package handoff passes a small value from one request to a later one
// through a one-time token. Entries expire after a TTL and are removed on
// first read.
package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned for unknown, expired or already-used tokens.
var ErrNotFound = errors.New("handoff token not found or expired")

// Store holds handoff values.
type Store interface {
	Put(ctx context.Context, value []byte) (string, error)
	Take(ctx context.Context, token string) ([]byte, error)
}

// PutJSON marshals v and stores it.
func PutJSON(ctx context.Context, s Store, v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal handoff: %w", err)
	}
	return s.Put(ctx, b)
}

// TakeJSON consumes token into v.
func TakeJSON(ctx context.Context, s Store, token string, v interface{}) error {
	b, err := s.Take(ctx, token)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("unmarshal handoff: %w", err)
	}
	return nil
}

func newToken() string {
	return uuid.NewString()
}

// MemoryStore is the single-instance Store.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]item
	ttl   time.Duration
	now   func() time.Time
}

type item struct {
	data []byte
	exp  time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{items: make(map[string]item), ttl: ttl, now: time.Now}
}

// Run evicts expired entries until ctx is done.
func (m *MemoryStore) Run(ctx context.Context) {
	tick := time.NewTicker(m.ttl / 2)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			m.evict()
		}
	}
}

func (m *MemoryStore) evict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, v := range m.items {
		if !v.exp.After(now) {
			delete(m.items, k)
		}
	}
}

func (m *MemoryStore) Put(_ context.Context, value []byte) (string, error) {
	token := newToken()
	m.mu.Lock()
	m.items[token] = item{data: value, exp: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return token, nil
}

func (m *MemoryStore) Take(_ context.Context, token string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[token]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.items, token)
	if !it.exp.After(m.now()) {
		return nil, ErrNotFound
	}
	return it.data, nil
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// RedisStore shares handoffs across instances. GETDEL makes Take atomic.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: "frontdesk:handoff:", ttl: ttl}
}

func (r *RedisStore) Put(ctx context.Context, value []byte) (string, error) {
	token := newToken()
	if err := r.client.Set(ctx, r.prefix+token, value, r.ttl).Err(); err != nil {
		return "", fmt.Errorf("store handoff: %w", err)
	}
	return token, nil
}

func (r *RedisStore) Take(ctx context.Context, token string) ([]byte, error) {
	b, err := r.client.GetDel(ctx, r.prefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("take handoff: %w", err)
	}
	return b, nil
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EntryStore is a key/value store with per-key TTL. Implementations must make
// Set atomic per key; the last writer wins.
type EntryStore interface {
	// Get returns the value and whether it exists
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Keys lists every live key
	Keys(ctx context.Context) ([]string, error)
	// DeleteAll removes every key and returns how many were removed
	DeleteAll(ctx context.Context) (int, error)
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process EntryStore
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{items: map[string]memoryItem{}, now: now}
}

// Get returns a copy of the stored value
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()

	if !ok || m.expired(item) {
		return nil, false, nil
	}
	return append([]byte(nil), item.value...), true, nil
}

// Set stores a copy of value
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	item := memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.items[key] = item
	m.mu.Unlock()
	return nil
}

// Delete removes a key
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// Keys lists live keys and drops expired ones
func (m *MemoryStore) Keys(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.items))
	for k, item := range m.items {
		if m.expired(item) {
			delete(m.items, k)
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// DeleteAll clears the store
func (m *MemoryStore) DeleteAll(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, item := range m.items {
		if !m.expired(item) {
			n++
		}
	}
	m.items = map[string]memoryItem{}
	return n, nil
}

func (m *MemoryStore) expired(item memoryItem) bool {
	return !item.expiresAt.IsZero() && !m.now().Before(item.expiresAt)
}

// RedisStore is an EntryStore over Redis. Every key lives under prefix.
type RedisStore struct {
	redis  *RedisCache
	prefix string
}

// NewRedisStore creates a store that namespaces keys with prefix
func NewRedisStore(cache *RedisCache, prefix string) *RedisStore {
	return &RedisStore{redis: cache, prefix: strings.TrimSuffix(prefix, ":") + ":"}
}

// Get retrieves a value. redis.Nil is a miss, not an error.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.redis.Get(ctx, s.prefix+key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Set writes a value with a Redis TTL
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.redis.Set(ctx, s.prefix+key, value, ttl)
}

// Delete removes a key
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	_, err := s.redis.Del(ctx, s.prefix+key)
	return err
}

// Keys lists keys under the prefix, with the prefix stripped
func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	full, err := s.redis.Scan(ctx, s.prefix+"*")
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(full))
	for _, k := range full {
		keys = append(keys, strings.TrimPrefix(k, s.prefix))
	}
	return keys, nil
}

// DeleteAll removes every key under the prefix
func (s *RedisStore) DeleteAll(ctx context.Context) (int, error) {
	full, err := s.redis.Scan(ctx, s.prefix+"*")
	if err != nil {
		return 0, err
	}

	removed := 0
	for start := 0; start < len(full); start += scanBatch {
		end := start + scanBatch
		if end > len(full) {
			end = len(full)
		}
		n, err := s.redis.Del(ctx, full[start:end]...)
		if err != nil {
			return removed, err
		}
		removed += int(n)
	}
	return removed, nil
}

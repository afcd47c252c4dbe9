package analytics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists serialised payloads under a key with a TTL. Get reports a
// miss with ok=false and a nil error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ExpiringStore is a Store that can report when an entry expires. A zero
// expiry means the entry never expires.
type ExpiringStore interface {
	Store
	GetWithExpiry(ctx context.Context, key string) ([]byte, time.Time, bool, error)
}

// RedisStore keeps payloads in Redis with native expiry.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is a process local Store for single instance deployments and
// tests. Expired entries are dropped when read.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, _, ok, err := s.GetWithExpiry(ctx, key)
	return value, ok, err
}

func (s *MemoryStore) GetWithExpiry(_ context.Context, key string) ([]byte, time.Time, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, time.Time{}, false, nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, time.Time{}, false, nil
	}
	return e.value, e.expiresAt, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// TieredStore reads from primary first and falls back to secondary, promoting
// secondary hits into primary. Writes go to both tiers.
type TieredStore struct {
	primary   Store
	secondary Store
	promote   time.Duration
	now       func() time.Time
}

// NewTieredStore chains two stores. promoteTTL bounds the lifetime of entries
// copied into primary on a secondary hit; when secondary is an ExpiringStore
// the copy never outlives the secondary entry.
func NewTieredStore(primary, secondary Store, promoteTTL time.Duration) *TieredStore {
	return &TieredStore{primary: primary, secondary: secondary, promote: promoteTTL, now: time.Now}
}

func (s *TieredStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, ok, primaryErr := s.primary.Get(ctx, key)
	if primaryErr == nil && ok {
		return value, true, nil
	}
	value, expiresAt, ok, err := s.getSecondary(ctx, key)
	if err != nil {
		return nil, false, errors.Join(primaryErr, err)
	}
	if !ok {
		return nil, false, primaryErr
	}
	if primaryErr == nil {
		if ttl := s.promoteTTL(expiresAt); ttl > 0 {
			_ = s.primary.Set(ctx, key, value, ttl)
		}
	}
	return value, true, nil
}

func (s *TieredStore) getSecondary(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	if es, ok := s.secondary.(ExpiringStore); ok {
		return es.GetWithExpiry(ctx, key)
	}
	value, ok, err := s.secondary.Get(ctx, key)
	return value, time.Time{}, ok, err
}

// promoteTTL is the shorter of the configured bound and the time left on the
// secondary entry.
func (s *TieredStore) promoteTTL(expiresAt time.Time) time.Duration {
	if expiresAt.IsZero() {
		return s.promote
	}
	remaining := expiresAt.Sub(s.now())
	if remaining < s.promote {
		return remaining
	}
	return s.promote
}

func (s *TieredStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.Join(
		s.primary.Set(ctx, key, value, ttl),
		s.secondary.Set(ctx, key, value, ttl),
	)
}

func (s *TieredStore) Delete(ctx context.Context, key string) error {
	return errors.Join(s.primary.Delete(ctx, key), s.secondary.Delete(ctx, key))
}

package flowstate

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// SessionStore is session-scoped key/value storage provided by the host.
type SessionStore interface {
	Get(ctx context.Context, sessionID, key string) ([]byte, bool, error)
	Set(ctx context.Context, sessionID, key string, value []byte) error
	Delete(ctx context.Context, sessionID, key string) error
	// TakeIf atomically returns and deletes the value when match accepts it.
	// When match rejects the value nothing is changed.
	TakeIf(ctx context.Context, sessionID, key string, match func([]byte) bool) ([]byte, bool, error)
}

// MemorySessionStore keeps session values in process memory. Entries expire
// after the session TTL, which bounds abandoned flows.
type MemorySessionStore struct {
	mu    sync.Mutex
	cache *cache.Cache
	ttl   time.Duration
}

// NewMemorySessionStore creates an in-memory session store.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &MemorySessionStore{
		cache: cache.New(ttl, ttl*2),
		ttl:   ttl,
	}
}

func memoryKey(sessionID, key string) string {
	return sessionID + "|" + key
}

func (s *MemorySessionStore) Get(_ context.Context, sessionID, key string) ([]byte, bool, error) {
	v, ok := s.cache.Get(memoryKey(sessionID, key))
	if !ok {
		return nil, false, nil
	}
	b := v.([]byte)
	out := make([]byte, len(b))
	copy(out, b)
	return out, true, nil
}

func (s *MemorySessionStore) Set(_ context.Context, sessionID, key string, value []byte) error {
	b := make([]byte, len(value))
	copy(b, value)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(memoryKey(sessionID, key), b, s.ttl)
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(memoryKey(sessionID, key))
	return nil
}

func (s *MemorySessionStore) TakeIf(_ context.Context, sessionID, key string, match func([]byte) bool) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := memoryKey(sessionID, key)
	v, ok := s.cache.Get(k)
	if !ok {
		return nil, false, nil
	}
	b := v.([]byte)
	if !match(b) {
		return nil, false, nil
	}
	s.cache.Delete(k)
	return b, true, nil
}

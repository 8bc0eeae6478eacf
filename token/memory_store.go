package token

import (
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore keeps tokens in process memory. Useful for tests and short-lived tools.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	nowFunc func() time.Time
}

type MemoryStoreOption func(*MemoryStore)

// WithMemoryNowFunc sets the clock used for expiry (primarily for testing)
func WithMemoryNowFunc(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.nowFunc = now
	}
}

func NewMemoryStore(options ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *MemoryStore) SetAccessToken(token string, maxAge time.Duration) error {
	s.set(AccessTokenName, token, accessMaxAge(maxAge))
	return nil
}

func (s *MemoryStore) SetRefreshToken(token string, maxAge time.Duration) error {
	s.set(RefreshTokenName, token, refreshMaxAge(maxAge))
	return nil
}

func (s *MemoryStore) AccessToken() (string, bool) {
	return s.get(AccessTokenName)
}

func (s *MemoryStore) RefreshToken() (string, bool) {
	return s.get(RefreshTokenName)
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.entries)
	return nil
}

func (s *MemoryStore) set(name, value string, maxAge time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == "" {
		delete(s.entries, name)
		return
	}
	s.entries[name] = memoryEntry{value: value, expiresAt: s.nowFunc().Add(maxAge)}
}

func (s *MemoryStore) get(name string) (string, bool) {
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok || !s.nowFunc().Before(e.expiresAt) {
		return "", false
	}
	return e.value, true
}

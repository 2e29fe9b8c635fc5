package steps

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	token     string
	data      []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store with the same expiry semantics as the
// Redis one. Used in tests and in single-node deployments without Redis.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[int64]memEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[int64]memEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Current(_ context.Context, chatID int64) (string, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[chatID]
	if !ok {
		return "", nil, ErrNoStep
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, chatID)
		return "", nil, ErrNoStep
	}
	return e.token, e.data, nil
}

func (s *MemoryStore) Enter(_ context.Context, chatID int64, token string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[chatID] = memEntry{token: token, data: data, expiresAt: s.now().Add(StepTTL)}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, chatID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

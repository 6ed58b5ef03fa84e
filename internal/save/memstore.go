package save

import (
	"context"
	"sync"
)

// MemoryStore keeps the save in process memory. Used for tests and throwaway sessions.
type MemoryStore struct {
	mu      sync.Mutex
	payload string
	ok      bool
	writes  int
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Write(_ context.Context, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload, s.ok = payload, true
	s.writes++
	return nil
}

func (s *MemoryStore) Read(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ok {
		return "", ErrNoSave
	}
	return s.payload, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload, s.ok = "", false
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Writes counts successful writes.
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

package checkpoint

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps cursors for the lifetime of the process
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Load returns the cursor saved for name
func (s *MemoryStore) Load(_ context.Context, name string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	return e.Cursor, ok, nil
}

// Save stores the cursor for name
func (s *MemoryStore) Save(_ context.Context, name, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name] = Entry{Cursor: cursor, UpdatedAt: time.Now().UTC()}
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }

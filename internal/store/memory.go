package store

import (
	"context"
	"sync"
)

// MemoryStore keeps relay state in process memory. It backs tests and ad hoc
// runs without a Redis instance.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]RelayState
	seen   map[string]bool
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]RelayState),
		seen:   make(map[string]bool),
	}
}

func (s *MemoryStore) State(ctx context.Context, itemID string) (RelayState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[itemID], nil
}

func (s *MemoryStore) MarkScheduled(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.states[itemID]
	state.Scheduled = true
	s.states[itemID] = state
	return nil
}

func (s *MemoryStore) MarkRelayed(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.states[itemID]
	state.Relayed = true
	s.states[itemID] = state
	return nil
}

func (s *MemoryStore) Seen(ctx context.Context, itemID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seen[itemID], nil
}

func (s *MemoryStore) MarkSeen(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[itemID] = true
	return nil
}

func (s *MemoryStore) Close() error { return nil }

package memory

import (
	"context"
	"sync"

	"github.com/user/glance/internal/entity"
)

// ProcessedSetImpl is the in-process ProcessedSet. It never errors and never evicts.
// The mutex exists for the optional status server, which reads while the loop writes.
type ProcessedSetImpl struct {
	mu   sync.RWMutex
	seen map[entity.Address]struct{}
}

// NewProcessedSet creates an empty set.
func NewProcessedSet() *ProcessedSetImpl {
	return &ProcessedSetImpl{seen: make(map[entity.Address]struct{})}
}

// Contains reports whether addr was added before.
func (s *ProcessedSetImpl) Contains(_ context.Context, addr entity.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[addr]
	return ok, nil
}

// Add inserts addr. Adding twice is a no-op.
func (s *ProcessedSetImpl) Add(_ context.Context, addr entity.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[addr] = struct{}{}
	return nil
}

// Len returns the number of distinct addresses added.
func (s *ProcessedSetImpl) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen), nil
}

// Close drops every entry.
func (s *ProcessedSetImpl) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = make(map[entity.Address]struct{})
	return nil
}

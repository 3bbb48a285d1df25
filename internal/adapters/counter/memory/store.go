// Package memory provides a process-local rate limit counter store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
)

var _ ports.CounterStore = (*Store)(nil)

// Store keeps entries in a map. The read-modify-write in Update runs under a
// single lock so concurrent requests cannot overshoot the window limit.
type Store struct {
	mu      sync.Mutex
	entries map[string]domain.RateLimitEntry
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]domain.RateLimitEntry)}
}

// Update implements ports.CounterStore.
func (s *Store) Update(ctx context.Context, identifier string, fn func(current *domain.RateLimitEntry) domain.RateLimitEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current *domain.RateLimitEntry
	if entry, ok := s.entries[identifier]; ok {
		current = &entry
	}
	s.entries[identifier] = fn(current)
	return nil
}

// Get returns a copy of the entry for identifier.
func (s *Store) Get(identifier string) (domain.RateLimitEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[identifier]
	return entry, ok
}

// Len implements ports.CounterStore.
func (s *Store) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

// EvictExpired implements ports.CounterStore.
func (s *Store) EvictExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, entry := range s.entries {
		if entry.Expired(now) {
			delete(s.entries, id)
			evicted++
		}
	}
	return evicted, nil
}

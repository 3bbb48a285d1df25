package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
)

func TestStore_UpdateCreatesAndMutates(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	reset := time.Now().Add(time.Minute)

	err := s.Update(ctx, "u1", func(current *domain.RateLimitEntry) domain.RateLimitEntry {
		if current != nil {
			t.Errorf("expected nil current on first update, got %+v", current)
		}
		return domain.RateLimitEntry{Identifier: "u1", Count: 1, ResetTime: reset}
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	err = s.Update(ctx, "u1", func(current *domain.RateLimitEntry) domain.RateLimitEntry {
		if current == nil {
			t.Fatal("expected existing entry")
		}
		next := *current
		next.Count++
		return next
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	entry, ok := s.Get("u1")
	if !ok {
		t.Fatal("entry missing")
	}
	if entry.Count != 2 {
		t.Errorf("Count = %d, want 2", entry.Count)
	}
}

func TestStore_UpdateHonoursCancelledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Update(ctx, "u1", func(*domain.RateLimitEntry) domain.RateLimitEntry {
		called = true
		return domain.RateLimitEntry{}
	})
	if err == nil {
		t.Fatal("expected context error")
	}
	if called {
		t.Error("fn should not run on a cancelled context")
	}
}

func TestStore_EvictExpired(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now()

	for id, reset := range map[string]time.Time{
		"expired-a": now.Add(-time.Second),
		"expired-b": now.Add(-time.Hour),
		"live":      now.Add(time.Minute),
		"boundary":  now, // reset equal to now is not yet expired
	} {
		reset := reset
		_ = s.Update(ctx, id, func(*domain.RateLimitEntry) domain.RateLimitEntry {
			return domain.RateLimitEntry{Count: 1, ResetTime: reset}
		})
	}

	evicted, err := s.EvictExpired(ctx, now)
	if err != nil {
		t.Fatalf("EvictExpired() error = %v", err)
	}
	if evicted != 2 {
		t.Errorf("evicted = %d, want 2", evicted)
	}
	if n, _ := s.Len(ctx); n != 2 {
		t.Errorf("Len() = %d, want 2", n)
	}
	if _, ok := s.Get("live"); !ok {
		t.Error("live entry should survive eviction")
	}
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(ctx, "shared", func(current *domain.RateLimitEntry) domain.RateLimitEntry {
				if current == nil {
					return domain.RateLimitEntry{Count: 1}
				}
				next := *current
				next.Count++
				return next
			})
		}()
	}
	wg.Wait()

	entry, _ := s.Get("shared")
	if entry.Count != 100 {
		t.Errorf("Count = %d, want 100", entry.Count)
	}
}

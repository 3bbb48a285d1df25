package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tjfontaine/campaign-orchestrator/internal/adapters/counter/memory"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeQuota struct {
	used  int
	err   error
	since time.Time
}

func (q *fakeQuota) UsageSince(ctx context.Context, userID string, since time.Time) (int, error) {
	q.since = since
	return q.used, q.err
}

func TestGuard_ScenarioA(t *testing.T) {
	clock := newFakeClock()
	g := NewGuard(memory.NewStore(), WithLimit(5, 300*time.Second), WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := g.Check(ctx, "U1")
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if !d.Allowed {
			t.Fatalf("call %d denied, expected allowed", i+1)
		}
		clock.Advance(10 * time.Second)
	}

	// 50s elapsed since the window opened
	d, err := g.Check(ctx, "U1")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if d.Allowed {
		t.Fatal("6th call should be denied")
	}
	if d.RetryAfter != 250 {
		t.Errorf("RetryAfter = %d, want 250", d.RetryAfter)
	}
	if d.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", d.Remaining)
	}
}

func TestGuard_RetryAfterRoundsUp(t *testing.T) {
	clock := newFakeClock()
	g := NewGuard(memory.NewStore(), WithLimit(1, 10*time.Second), WithClock(clock.Now))
	ctx := context.Background()

	if d, _ := g.Check(ctx, "u"); !d.Allowed {
		t.Fatal("first call should be allowed")
	}
	clock.Advance(2500 * time.Millisecond)

	d, _ := g.Check(ctx, "u")
	if d.Allowed {
		t.Fatal("second call should be denied")
	}
	// 7.5s remain
	if d.RetryAfter != 8 {
		t.Errorf("RetryAfter = %d, want 8", d.RetryAfter)
	}
}

func TestGuard_WindowResets(t *testing.T) {
	clock := newFakeClock()
	store := memory.NewStore()
	g := NewGuard(store, WithLimit(2, time.Minute), WithClock(clock.Now))
	ctx := context.Background()

	g.Check(ctx, "u")
	g.Check(ctx, "u")
	if d, _ := g.Check(ctx, "u"); d.Allowed {
		t.Fatal("third call inside window should be denied")
	}

	// At exactly resetTime the window is still live
	clock.Advance(time.Minute)
	if d, _ := g.Check(ctx, "u"); d.Allowed {
		t.Fatal("call at reset boundary should still be denied")
	}

	clock.Advance(time.Millisecond)
	d, _ := g.Check(ctx, "u")
	if !d.Allowed {
		t.Fatal("call after window should be allowed")
	}
	entry, _ := store.Get("u")
	if entry.Count != 1 {
		t.Errorf("Count after reset = %d, want 1", entry.Count)
	}
}

func TestGuard_NeverExceedsMaxPerWindow(t *testing.T) {
	tests := []struct {
		name  string
		max   int
		calls int
	}{
		{"max 1", 1, 10},
		{"max 5", 5, 20},
		{"max 10", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			g := NewGuard(memory.NewStore(), WithLimit(tt.max, time.Hour), WithClock(clock.Now))

			allowed := 0
			for i := 0; i < tt.calls; i++ {
				d, err := g.Check(context.Background(), "id")
				if err != nil {
					t.Fatalf("Check() error = %v", err)
				}
				if d.Allowed {
					allowed++
				}
				clock.Advance(time.Second)
			}
			want := tt.max
			if tt.calls < want {
				want = tt.calls
			}
			if allowed != want {
				t.Errorf("allowed = %d, want %d", allowed, want)
			}
		})
	}
}

func TestGuard_ConcurrentCallersRespectLimit(t *testing.T) {
	g := NewGuard(memory.NewStore(), WithLimit(5, time.Hour))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := g.Check(context.Background(), "shared")
			if err == nil && d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 5 {
		t.Errorf("allowed = %d, want 5", allowed)
	}
}

func TestGuard_IdentifiersAreIndependent(t *testing.T) {
	g := NewGuard(memory.NewStore(), WithLimit(1, time.Hour))
	ctx := context.Background()

	if d, _ := g.Check(ctx, "a"); !d.Allowed {
		t.Error("a should be allowed")
	}
	if d, _ := g.Check(ctx, "b"); !d.Allowed {
		t.Error("b should be allowed")
	}
	if d, _ := g.Check(ctx, "a"); d.Allowed {
		t.Error("second a should be denied")
	}
}

func TestGuard_EvictsAboveThreshold(t *testing.T) {
	clock := newFakeClock()
	store := memory.NewStore()
	g := NewGuard(store, WithLimit(5, time.Second), WithEvictThreshold(3), WithClock(clock.Now))
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		g.Check(ctx, id)
	}
	clock.Advance(2 * time.Second)

	// store holds 4 > 3 entries; all are expired and swept before "e" is added
	g.Check(ctx, "e")

	n, _ := store.Len(ctx)
	if n != 1 {
		t.Errorf("Len() = %d, want 1 after eviction", n)
	}
}

func TestGuard_NoEvictionAtThreshold(t *testing.T) {
	clock := newFakeClock()
	store := memory.NewStore()
	g := NewGuard(store, WithLimit(5, time.Second), WithEvictThreshold(3), WithClock(clock.Now))
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		g.Check(ctx, id)
	}
	clock.Advance(2 * time.Second)
	g.Check(ctx, "d")

	if n, _ := store.Len(ctx); n != 4 {
		t.Errorf("Len() = %d, want 4 (no eviction at threshold)", n)
	}
}

func TestGuard_CheckQuota(t *testing.T) {
	clock := newFakeClock()
	ctx := context.Background()

	tests := []struct {
		name        string
		quota       *fakeQuota
		limit       int
		wantAllowed bool
	}{
		{"under limit", &fakeQuota{used: 10}, 100, true},
		{"at limit", &fakeQuota{used: 100}, 100, false},
		{"over limit", &fakeQuota{used: 150}, 100, false},
		{"default limit applies", &fakeQuota{used: 99}, 0, true},
		{"default limit reached", &fakeQuota{used: 100}, 0, false},
		{"lookup error fails open", &fakeQuota{used: 1000, err: errors.New("db down")}, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGuard(memory.NewStore(), WithQuotaCounter(tt.quota), WithClock(clock.Now))
			d := g.CheckQuota(ctx, "u1", tt.limit)
			if d.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", d.Allowed, tt.wantAllowed)
			}
		})
	}
}

func TestGuard_CheckQuotaUsesUTCDayStart(t *testing.T) {
	clock := newFakeClock()
	q := &fakeQuota{}
	g := NewGuard(memory.NewStore(), WithQuotaCounter(q), WithClock(clock.Now))

	g.CheckQuota(context.Background(), "u1", 100)

	want := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	if !q.since.Equal(want) {
		t.Errorf("since = %v, want %v", q.since, want)
	}
}

func TestGuard_CheckQuotaWithoutCounter(t *testing.T) {
	g := NewGuard(memory.NewStore())
	if d := g.CheckQuota(context.Background(), "u1", 1); !d.Allowed {
		t.Error("missing quota counter should allow")
	}
}

type failingStore struct{ *memory.Store }

func (f *failingStore) Update(ctx context.Context, id string, fn func(*domain.RateLimitEntry) domain.RateLimitEntry) error {
	return errors.New("store unavailable")
}

func TestGuard_StoreErrorSurfaces(t *testing.T) {
	g := NewGuard(&failingStore{Store: memory.NewStore()})
	if _, err := g.Check(context.Background(), "u"); err == nil {
		t.Fatal("expected store error")
	}
}

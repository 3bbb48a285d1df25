// Package ratelimit implements the fixed-window rate guard and daily quota check
// that run before any pipeline work starts.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
)

const (
	// DefaultMaxRequests is the per-window allowance for orchestration calls.
	DefaultMaxRequests = 5
	// DefaultWindow is the fixed window length.
	DefaultWindow = 5 * time.Minute
	// DefaultEvictThreshold is the store size above which expired entries are swept.
	DefaultEvictThreshold = 1000
	// DefaultDailyLimit applies when CheckQuota is called with a non-positive limit.
	DefaultDailyLimit = 100
)

// Decision is the outcome of a rate or quota check.
type Decision struct {
	Allowed    bool
	RetryAfter int // seconds, set when a rate check denies
	Limit      int
	Remaining  int
	ResetAt    time.Time
}

// Guard applies the fixed-window algorithm over an injected counter store.
// The decision logic is identical for every store; only persistence differs.
type Guard struct {
	store          ports.CounterStore
	quota          ports.QuotaCounter
	maxRequests    int
	window         time.Duration
	evictThreshold int
	now            func() time.Time
	logger         *slog.Logger
}

// Option configures a Guard.
type Option func(*Guard)

// WithLimit sets the maximum requests per window.
func WithLimit(maxRequests int, window time.Duration) Option {
	return func(g *Guard) {
		if maxRequests > 0 {
			g.maxRequests = maxRequests
		}
		if window > 0 {
			g.window = window
		}
	}
}

// WithEvictThreshold sets the store size that triggers eviction.
func WithEvictThreshold(n int) Option {
	return func(g *Guard) {
		if n > 0 {
			g.evictThreshold = n
		}
	}
}

// WithQuotaCounter sets the daily usage source for CheckQuota.
func WithQuotaCounter(q ports.QuotaCounter) Option {
	return func(g *Guard) {
		g.quota = q
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		g.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// NewGuard creates a guard backed by store.
func NewGuard(store ports.CounterStore, opts ...Option) *Guard {
	g := &Guard{
		store:          store,
		maxRequests:    DefaultMaxRequests,
		window:         DefaultWindow,
		evictThreshold: DefaultEvictThreshold,
		now:            time.Now,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Limit returns the configured max requests and window.
func (g *Guard) Limit() (int, time.Duration) {
	return g.maxRequests, g.window
}

// Check records one call for identifier and reports whether it is allowed.
func (g *Guard) Check(ctx context.Context, identifier string) (Decision, error) {
	now := g.now()
	g.evictIfLarge(ctx, now)

	var decision Decision
	err := g.store.Update(ctx, identifier, func(current *domain.RateLimitEntry) domain.RateLimitEntry {
		if current == nil || current.Expired(now) {
			resetAt := now.Add(g.window)
			decision = Decision{
				Allowed:   true,
				Limit:     g.maxRequests,
				Remaining: g.maxRequests - 1,
				ResetAt:   resetAt,
			}
			return domain.RateLimitEntry{Identifier: identifier, Count: 1, ResetTime: resetAt}
		}

		if current.Count >= g.maxRequests {
			decision = Decision{
				Allowed:    false,
				RetryAfter: retryAfterSeconds(current.ResetTime.Sub(now)),
				Limit:      g.maxRequests,
				Remaining:  0,
				ResetAt:    current.ResetTime,
			}
			return *current
		}

		next := *current
		next.Count++
		decision = Decision{
			Allowed:   true,
			Limit:     g.maxRequests,
			Remaining: g.maxRequests - next.Count,
			ResetAt:   next.ResetTime,
		}
		return next
	})
	if err != nil {
		return Decision{}, fmt.Errorf("update rate limit entry: %w", err)
	}

	return decision, nil
}

// CheckQuota reports whether identifier is still under dailyLimit units today (UTC).
// Any lookup failure allows the call.
func (g *Guard) CheckQuota(ctx context.Context, identifier string, dailyLimit int) Decision {
	if dailyLimit <= 0 {
		dailyLimit = DefaultDailyLimit
	}
	allow := Decision{Allowed: true, Limit: dailyLimit, Remaining: dailyLimit}

	if g.quota == nil {
		return allow
	}

	now := g.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	used, err := g.quota.UsageSince(ctx, identifier, dayStart)
	if err != nil {
		g.logger.Warn("quota lookup failed, allowing request",
			slog.String("user_id", identifier),
			slog.String("error", err.Error()))
		return allow
	}

	remaining := dailyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   used < dailyLimit,
		Limit:     dailyLimit,
		Remaining: remaining,
		ResetAt:   dayStart.Add(24 * time.Hour),
	}
}

func (g *Guard) evictIfLarge(ctx context.Context, now time.Time) {
	n, err := g.store.Len(ctx)
	if err != nil || n <= g.evictThreshold {
		return
	}
	evicted, err := g.store.EvictExpired(ctx, now)
	if err != nil {
		g.logger.Warn("rate limit eviction failed", slog.String("error", err.Error()))
		return
	}
	g.logger.Debug("evicted expired rate limit entries",
		slog.Int("evicted", evicted),
		slog.Int("size", n))
}

// retryAfterSeconds rounds the remaining window up to whole seconds.
func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(float64(d.Milliseconds()) / 1000))
}

// Package ports defines the interfaces between the orchestrator core and its adapters.
package ports

import (
	"context"
	"time"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
	"github.com/tjfontaine/campaign-orchestrator/internal/pkg/config"
)

// ConfigProvider loads and manages configuration.
// Implementations: file-based (default).
type ConfigProvider interface {
	Load(ctx context.Context) (*config.Config, error)
	Watch(ctx context.Context, onChange func(*config.Config)) error
	Close() error
}

// AuthProvider resolves a bearer token to a caller.
// Implementations: API key (default), HS256 JWT.
type AuthProvider interface {
	Authenticate(ctx context.Context, token string) (*AuthContext, error)
}

// AuthContext contains the authenticated caller.
type AuthContext struct {
	UserID   string
	Scopes   []string
	Metadata map[string]string
}

// CounterStore holds fixed-window rate limit entries.
// Implementations: in-memory (single instance), Firestore (multi-instance).
type CounterStore interface {
	// Update atomically applies fn to the entry for identifier and stores the
	// returned entry. current is nil when no entry exists. fn may be invoked
	// more than once by stores that retry transactions.
	Update(ctx context.Context, identifier string, fn func(current *domain.RateLimitEntry) domain.RateLimitEntry) error

	// Len returns the number of stored entries.
	Len(ctx context.Context) (int, error)

	// EvictExpired removes entries whose window ended before now.
	EvictExpired(ctx context.Context, now time.Time) (int, error)
}

// QuotaCounter reads daily usage owned by the usage store.
type QuotaCounter interface {
	// UsageSince returns the units recorded for userID at or after since.
	UsageSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// UsageStore persists usage records and agent activity logs.
// Implementations: SQLite (default).
type UsageStore interface {
	QuotaCounter
	InsertUsage(ctx context.Context, rec *domain.UsageRecord) error
	InsertAgentLog(ctx context.Context, log *domain.AgentLog) error
	ListAgentLogs(ctx context.Context, runID string) ([]*domain.AgentLog, error)
	Close() error
}

// EventPublisher publishes agent activity logs to downstream consumers.
// Implementations: direct storage (default), Pub/Sub.
type EventPublisher interface {
	Publish(ctx context.Context, log *domain.AgentLog) error
	Close() error
}

// QualityPolicy enforces rate limits and quotas before a pipeline run.
// Implementations: basic (no limits), rate limit + quota guard.
type QualityPolicy interface {
	CheckRequest(ctx context.Context, req *PolicyRequest) (*PolicyDecision, error)
	RecordUsage(ctx context.Context, usage *domain.UsageRecord) error
}

// PolicyRequest contains request context for policy checks.
type PolicyRequest struct {
	UserID   string
	Function string
}

// PolicyDecision is the result of a policy check.
type PolicyDecision struct {
	Allow         bool
	Reason        string
	Denial        domain.ErrorType // rate_limit or quota_exceeded when Allow is false
	RetryAfter    int              // seconds
	RateLimitInfo *RateLimitInfo
}

// RateLimitInfo contains rate limit information.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetAt   int64 // Unix timestamp
}

// Package limiter provides the quality policy that enforces the per-user
// rate window and the daily quota before a pipeline run starts.
package limiter

import (
	"context"
	"log/slog"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
	"github.com/tjfontaine/campaign-orchestrator/internal/ratelimit"
)

var _ ports.QualityPolicy = (*Policy)(nil)

// UsageRecorder accepts usage records for asynchronous persistence.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, rec *domain.UsageRecord) error
}

// Policy implements ports.QualityPolicy on top of a ratelimit.Guard.
type Policy struct {
	guard      *ratelimit.Guard
	dailyLimit int
	recorder   UsageRecorder
	logger     *slog.Logger
}

// Option configures a Policy.
type Option func(*Policy)

// WithDailyLimit sets the per-user daily quota.
func WithDailyLimit(n int) Option {
	return func(p *Policy) {
		p.dailyLimit = n
	}
}

// WithRecorder forwards RecordUsage calls to r.
func WithRecorder(r UsageRecorder) Option {
	return func(p *Policy) {
		p.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) {
		p.logger = logger
	}
}

// NewPolicy creates a policy around guard.
func NewPolicy(guard *ratelimit.Guard, opts ...Option) *Policy {
	p := &Policy{
		guard:      guard,
		dailyLimit: ratelimit.DefaultDailyLimit,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckRequest applies the rate window first, then the daily quota.
// A counter store failure allows the request.
func (p *Policy) CheckRequest(ctx context.Context, req *ports.PolicyRequest) (*ports.PolicyDecision, error) {
	if req == nil || req.UserID == "" {
		return &ports.PolicyDecision{Allow: true, Reason: "anonymous request"}, nil
	}

	rate, err := p.guard.Check(ctx, req.UserID)
	if err != nil {
		p.logger.Warn("rate limit check failed, allowing request",
			slog.String("user_id", req.UserID),
			slog.String("error", err.Error()))
		return &ports.PolicyDecision{Allow: true, Reason: "rate limit store unavailable"}, nil
	}

	info := &ports.RateLimitInfo{
		Limit:     rate.Limit,
		Remaining: rate.Remaining,
		ResetAt:   rate.ResetAt.Unix(),
	}

	if !rate.Allowed {
		return &ports.PolicyDecision{
			Allow:         false,
			Reason:        "rate limit exceeded",
			Denial:        domain.ErrorTypeRateLimit,
			RetryAfter:    rate.RetryAfter,
			RateLimitInfo: info,
		}, nil
	}

	quota := p.guard.CheckQuota(ctx, req.UserID, p.dailyLimit)
	if !quota.Allowed {
		return &ports.PolicyDecision{
			Allow:         false,
			Reason:        "daily quota exceeded",
			Denial:        domain.ErrorTypeQuotaExceeded,
			RateLimitInfo: info,
		}, nil
	}

	return &ports.PolicyDecision{Allow: true, RateLimitInfo: info}, nil
}

// RecordUsage hands the record to the configured recorder.
func (p *Policy) RecordUsage(ctx context.Context, usage *domain.UsageRecord) error {
	if p.recorder == nil || usage == nil {
		return nil
	}
	return p.recorder.RecordUsage(ctx, usage)
}

package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/campaign-orchestrator/internal/adapters/counter/memory"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
	"github.com/tjfontaine/campaign-orchestrator/internal/ratelimit"
)

type staticQuota int

func (q staticQuota) UsageSince(context.Context, string, time.Time) (int, error) {
	return int(q), nil
}

type brokenStore struct{ *memory.Store }

func (brokenStore) Update(context.Context, string, func(*domain.RateLimitEntry) domain.RateLimitEntry) error {
	return errors.New("unreachable")
}

type captureRecorder struct {
	records []*domain.UsageRecord
}

func (c *captureRecorder) RecordUsage(_ context.Context, rec *domain.UsageRecord) error {
	c.records = append(c.records, rec)
	return nil
}

func TestCheckRequest_RateLimitDenies(t *testing.T) {
	guard := ratelimit.NewGuard(memory.NewStore(), ratelimit.WithLimit(2, time.Minute))
	p := NewPolicy(guard)
	ctx := context.Background()
	req := &ports.PolicyRequest{UserID: "u1"}

	for i := 0; i < 2; i++ {
		d, err := p.CheckRequest(ctx, req)
		require.NoError(t, err)
		assert.True(t, d.Allow)
	}

	d, err := p.CheckRequest(ctx, req)
	require.NoError(t, err)
	assert.False(t, d.Allow)
	assert.Equal(t, domain.ErrorTypeRateLimit, d.Denial)
	assert.Greater(t, d.RetryAfter, 0)
	require.NotNil(t, d.RateLimitInfo)
	assert.Equal(t, 2, d.RateLimitInfo.Limit)
	assert.Equal(t, 0, d.RateLimitInfo.Remaining)
}

func TestCheckRequest_QuotaDenies(t *testing.T) {
	guard := ratelimit.NewGuard(memory.NewStore(), ratelimit.WithQuotaCounter(staticQuota(100)))
	p := NewPolicy(guard, WithDailyLimit(100))

	d, err := p.CheckRequest(context.Background(), &ports.PolicyRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.False(t, d.Allow)
	assert.Equal(t, domain.ErrorTypeQuotaExceeded, d.Denial)
	assert.Zero(t, d.RetryAfter)
}

func TestCheckRequest_UnderQuotaAllows(t *testing.T) {
	guard := ratelimit.NewGuard(memory.NewStore(), ratelimit.WithQuotaCounter(staticQuota(3)))
	p := NewPolicy(guard, WithDailyLimit(10))

	d, err := p.CheckRequest(context.Background(), &ports.PolicyRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, d.Allow)
	require.NotNil(t, d.RateLimitInfo)
	assert.Equal(t, ratelimit.DefaultMaxRequests-1, d.RateLimitInfo.Remaining)
}

func TestCheckRequest_StoreFailureAllows(t *testing.T) {
	guard := ratelimit.NewGuard(brokenStore{memory.NewStore()})
	p := NewPolicy(guard)

	d, err := p.CheckRequest(context.Background(), &ports.PolicyRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, d.Allow)
}

func TestCheckRequest_AnonymousSkipsGuard(t *testing.T) {
	store := memory.NewStore()
	p := NewPolicy(ratelimit.NewGuard(store))

	d, err := p.CheckRequest(context.Background(), &ports.PolicyRequest{})
	require.NoError(t, err)
	assert.True(t, d.Allow)

	n, _ := store.Len(context.Background())
	assert.Zero(t, n)
}

func TestRecordUsage_Forwards(t *testing.T) {
	rec := &captureRecorder{}
	p := NewPolicy(ratelimit.NewGuard(memory.NewStore()), WithRecorder(rec))

	usage := &domain.UsageRecord{UserID: "u1", FunctionName: "vertex-ai-orchestrator", Units: 5}
	require.NoError(t, p.RecordUsage(context.Background(), usage))
	require.Len(t, rec.records, 1)
	assert.Equal(t, 5, rec.records[0].Units)

	// nil records and a missing recorder are ignored
	require.NoError(t, p.RecordUsage(context.Background(), nil))
	require.NoError(t, NewPolicy(ratelimit.NewGuard(memory.NewStore())).RecordUsage(context.Background(), usage))
}

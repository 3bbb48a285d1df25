// Package basic is the allow-all policy for local development.
package basic

import (
	"context"
	"sync/atomic"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
)

// Reason is reported on every decision.
const Reason = "unrestricted"

// Policy admits every campaign run and tallies the usage it is told about.
type Policy struct {
	units atomic.Int64
	runs  atomic.Int64
}

var _ ports.QualityPolicy = (*Policy)(nil)

func NewPolicy() *Policy {
	return &Policy{}
}

func (p *Policy) CheckRequest(ctx context.Context, req *ports.PolicyRequest) (*ports.PolicyDecision, error) {
	return &ports.PolicyDecision{Allow: true, Reason: Reason}, nil
}

// RecordUsage adds usage to the tally. It never fails.
func (p *Policy) RecordUsage(ctx context.Context, usage *domain.UsageRecord) error {
	if usage == nil {
		return nil
	}
	p.runs.Add(1)
	p.units.Add(int64(usage.Units))
	return nil
}

// Tally returns the runs and units recorded so far.
func (p *Policy) Tally() (runs, units int64) {
	return p.runs.Load(), p.units.Load()
}

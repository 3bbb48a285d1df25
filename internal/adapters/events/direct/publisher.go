// Package direct provides an event publisher that writes agent logs straight
// to the usage store.
package direct

import (
	"context"
	"fmt"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
)

// LogWriter persists agent logs.
type LogWriter interface {
	InsertAgentLog(ctx context.Context, log *domain.AgentLog) error
}

var _ ports.EventPublisher = (*Publisher)(nil)

// Publisher implements ports.EventPublisher by writing directly to storage.
// This is the default implementation for single-instance deployments.
type Publisher struct {
	store LogWriter
}

// NewPublisher creates a new direct event publisher.
func NewPublisher(store LogWriter) (*Publisher, error) {
	if store == nil {
		return nil, fmt.Errorf("storage provider required")
	}
	return &Publisher{store: store}, nil
}

// Publish writes an agent log directly to storage.
func (p *Publisher) Publish(ctx context.Context, log *domain.AgentLog) error {
	if log == nil {
		return nil
	}
	return p.store.InsertAgentLog(ctx, log)
}

// Close is a no-op for direct publisher. The store is owned by the caller.
func (p *Publisher) Close() error {
	return nil
}

// Package pubsub publishes agent logs to a Google Cloud Pub/Sub topic for
// downstream dashboards.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
)

var _ ports.EventPublisher = (*Publisher)(nil)

// Publisher implements ports.EventPublisher on a Pub/Sub topic. Each log is
// one JSON message with its run id, component and event type as attributes.
type Publisher struct {
	client     *pubsub.Client
	topic      *pubsub.Topic
	ownsClient bool
}

// New creates a Pub/Sub client for projectID and publishes to topicID.
func New(ctx context.Context, projectID, topicID string, opts ...option.ClientOption) (*Publisher, error) {
	if projectID == "" {
		return nil, fmt.Errorf("pubsub project id required")
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	p, err := NewWithClient(ctx, client, topicID)
	if err != nil {
		client.Close()
		return nil, err
	}
	p.ownsClient = true
	return p, nil
}

// NewWithClient publishes through an existing client, creating the topic if
// it does not exist. The caller keeps ownership of the client.
func NewWithClient(ctx context.Context, client *pubsub.Client, topicID string) (*Publisher, error) {
	if topicID == "" {
		return nil, fmt.Errorf("pubsub topic required")
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check topic existence: %w", err)
	}
	if !exists {
		if topic, err = client.CreateTopic(ctx, topicID); err != nil {
			return nil, fmt.Errorf("failed to create topic: %w", err)
		}
	}

	return &Publisher{client: client, topic: topic}, nil
}

// Publish sends log and waits for the server acknowledgement.
func (p *Publisher) Publish(ctx context.Context, log *domain.AgentLog) error {
	if log == nil {
		return nil
	}
	data, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("failed to marshal agent log: %w", err)
	}

	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"run_id":     log.RunID,
			"component":  log.Component,
			"event_type": log.EventType,
		},
	}
	if _, err := p.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("failed to publish agent log: %w", err)
	}
	return nil
}

// Close flushes pending messages and releases the client when the publisher
// created it.
func (p *Publisher) Close() error {
	p.topic.Stop()
	if p.ownsClient {
		return p.client.Close()
	}
	return nil
}

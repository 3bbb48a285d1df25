// Package router decides, per subtask, whether a call runs on a local
// inference backend or on a cloud model tier.
package router

import (
	"fmt"
	"sync"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
)

// CloudTier describes one cloud model class.
type CloudTier struct {
	Model       string
	LatencyMs   int
	CostPerCall float64
}

// Tiers holds the two cloud classes the router can fall back to.
type Tiers struct {
	Fast    CloudTier
	Capable CloudTier
}

// DefaultTiers mirrors the stock cloud configuration.
func DefaultTiers() Tiers {
	return Tiers{
		Fast:    CloudTier{Model: "gemini-2.0-flash-lite", LatencyMs: 500, CostPerCall: 0.00002},
		Capable: CloudTier{Model: "gemini-2.0-flash-exp", LatencyMs: 500, CostPerCall: 0.0001},
	}
}

// Input describes a subtask to route.
type Input struct {
	TaskType               string
	Complexity             domain.Complexity
	RequiresWorldKnowledge bool
}

// Decide applies the routing rules to a registry snapshot. It has no side effects.
func Decide(snap Snapshot, tiers Tiers, in Input) domain.RouteDecision {
	if in.RequiresWorldKnowledge {
		return cloud(tiers, in.Complexity, "requires world knowledge")
	}
	if in.Complexity == domain.ComplexityVeryComplex {
		return cloud(tiers, in.Complexity, "very complex task")
	}

	var best *domain.BackendCapability
	for _, b := range snap.Backends {
		if !b.Healthy {
			continue
		}
		for i := range b.Capabilities {
			c := &b.Capabilities[i]
			if !c.Supports(in.TaskType) {
				continue
			}
			// strict comparison keeps the first registered model on ties
			if best == nil || c.LatencyMs < best.LatencyMs {
				best = c
			}
		}
	}

	if best != nil {
		return domain.RouteDecision{
			Destination:        domain.DestinationLocal,
			Model:              best.Model,
			Backend:            best.Owner,
			EstimatedLatencyMs: best.LatencyMs,
			EstimatedCost:      0,
			Reason:             fmt.Sprintf("local model supports %s", in.TaskType),
		}
	}
	return cloud(tiers, in.Complexity, fmt.Sprintf("no healthy local model for %s", in.TaskType))
}

func cloud(tiers Tiers, complexity domain.Complexity, reason string) domain.RouteDecision {
	tier, spec := domain.TierCapable, tiers.Capable
	if complexity == domain.ComplexitySimple {
		tier, spec = domain.TierFast, tiers.Fast
	}
	return domain.RouteDecision{
		Destination:        domain.DestinationCloud,
		Model:              spec.Model,
		Tier:               tier,
		EstimatedLatencyMs: spec.LatencyMs,
		EstimatedCost:      spec.CostPerCall,
		Reason:             reason,
	}
}

// Stats counts routing outcomes since start.
type Stats struct {
	Total           int64   `json:"totalRequests"`
	Local           int64   `json:"localRequests"`
	Cloud           int64   `json:"cloudRequests"`
	CostSaved       float64 `json:"costSavings"`
	LocalPercentage float64 `json:"localPercentage"`
	CloudPercentage float64 `json:"cloudPercentage"`
}

// Router routes subtasks over a live registry.
type Router struct {
	registry *Registry
	tiers    Tiers

	mu    sync.Mutex
	stats Stats
}

// Option configures a Router.
type Option func(*Router)

// WithTiers sets the cloud tiers.
func WithTiers(t Tiers) Option {
	return func(r *Router) {
		r.tiers = t
	}
}

// New creates a router reading from registry.
func New(registry *Registry, opts ...Option) *Router {
	r := &Router{
		registry: registry,
		tiers:    DefaultTiers(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route decides where a subtask runs and records the outcome.
func (r *Router) Route(taskType string, complexity domain.Complexity, requiresWorldKnowledge bool) domain.RouteDecision {
	d := Decide(r.registry.Snapshot(), r.tiers, Input{
		TaskType:               taskType,
		Complexity:             complexity,
		RequiresWorldKnowledge: requiresWorldKnowledge,
	})
	r.record(d, complexity)
	return d
}

// Fallback returns the cloud decision used when a local call fails. The
// earlier local decision is recounted as a cloud call.
func (r *Router) Fallback(taskType string, complexity domain.Complexity) domain.RouteDecision {
	d := cloud(r.tiers, complexity, fmt.Sprintf("local backend unavailable for %s", taskType))

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stats.Local > 0 {
		r.stats.Local--
		r.stats.Cloud++
		r.stats.CostSaved -= d.EstimatedCost
	}
	return d
}

// Cloud returns a cloud decision for work the local tier cannot take, such as
// grounded search or multimodal input, and records it.
func (r *Router) Cloud(complexity domain.Complexity, reason string) domain.RouteDecision {
	d := cloud(r.tiers, complexity, reason)
	r.record(d, complexity)
	return d
}

// Registry returns the registry the router reads from.
func (r *Router) Registry() *Registry {
	return r.registry
}

// Stats returns a copy of the routing counters.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.stats
	if s.Total > 0 {
		s.LocalPercentage = float64(s.Local) / float64(s.Total) * 100
		s.CloudPercentage = float64(s.Cloud) / float64(s.Total) * 100
	}
	return s
}

func (r *Router) record(d domain.RouteDecision, complexity domain.Complexity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.Total++
	if d.Destination == domain.DestinationLocal {
		r.stats.Local++
		// the cloud call that was avoided
		r.stats.CostSaved += cloud(r.tiers, complexity, "").EstimatedCost
		return
	}
	r.stats.Cloud++
}

package router

import (
	"sync"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
)

// Registry is the catalog of local backends and the models they serve.
// Backends keep their registration order, which routing uses to break ties.
type Registry struct {
	mu       sync.RWMutex
	backends []*registration
}

type registration struct {
	backend ports.LocalBackend
	models  []domain.BackendCapability
	healthy bool
}

// BackendState is one backend as seen by a snapshot.
type BackendState struct {
	Name         string                     `json:"name"`
	Healthy      bool                       `json:"healthy"`
	Capabilities []domain.BackendCapability `json:"capabilities"`
}

// Snapshot is an immutable copy of the registry.
type Snapshot struct {
	Backends []BackendState `json:"backends"`
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a backend with its declared models. A backend starts unhealthy
// until its first successful probe. Registering the same name again replaces
// its models and keeps its original position.
func (r *Registry) Register(b ports.LocalBackend, models []domain.BackendCapability) {
	r.mu.Lock()
	defer r.mu.Unlock()

	models = ownedCopy(b.Name(), models)
	for _, reg := range r.backends {
		if reg.backend.Name() == b.Name() {
			reg.backend = b
			reg.models = models
			return
		}
	}
	r.backends = append(r.backends, &registration{backend: b, models: models})
}

// SetHealthy records the outcome of a health probe.
func (r *Registry) SetHealthy(name string, healthy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg := r.find(name); reg != nil {
		reg.healthy = healthy
	}
}

// SetModels replaces the models served by a backend.
func (r *Registry) SetModels(name string, models []domain.BackendCapability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg := r.find(name); reg != nil {
		reg.models = ownedCopy(name, models)
	}
}

// Backend returns the registered backend with the given name.
func (r *Registry) Backend(name string) (ports.LocalBackend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if reg := r.find(name); reg != nil {
		return reg.backend, true
	}
	return nil, false
}

// Backends returns every registered backend in registration order.
func (r *Registry) Backends() []ports.LocalBackend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ports.LocalBackend, len(r.backends))
	for i, reg := range r.backends {
		out[i] = reg.backend
	}
	return out
}

// Snapshot copies the current catalog and health flags.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{Backends: make([]BackendState, len(r.backends))}
	for i, reg := range r.backends {
		snap.Backends[i] = BackendState{
			Name:         reg.backend.Name(),
			Healthy:      reg.healthy,
			Capabilities: ownedCopy(reg.backend.Name(), reg.models),
		}
	}
	return snap
}

// Healthy reports whether any backend in the snapshot is healthy.
func (s Snapshot) Healthy() bool {
	for _, b := range s.Backends {
		if b.Healthy {
			return true
		}
	}
	return false
}

func (r *Registry) find(name string) *registration {
	for _, reg := range r.backends {
		if reg.backend.Name() == name {
			return reg
		}
	}
	return nil
}

func ownedCopy(owner string, models []domain.BackendCapability) []domain.BackendCapability {
	out := make([]domain.BackendCapability, len(models))
	for i, m := range models {
		m.Capabilities = append([]string(nil), m.Capabilities...)
		m.Owner = owner
		out[i] = m
	}
	return out
}

package router

import (
	"context"
	"log/slog"
	"time"
)

// DefaultProbeInterval is how often local backends are health checked.
const DefaultProbeInterval = 30 * time.Second

// Refresher probes registered backends on a ticker and updates their health
// and model lists in the registry.
type Refresher struct {
	registry *Registry
	interval time.Duration
	logger   *slog.Logger
}

// NewRefresher creates a refresher. A non-positive interval uses DefaultProbeInterval.
func NewRefresher(registry *Registry, interval time.Duration, logger *slog.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{registry: registry, interval: interval, logger: logger}
}

// ProbeOnce checks every backend immediately.
func (f *Refresher) ProbeOnce(ctx context.Context) {
	for _, b := range f.registry.Backends() {
		healthy := b.HealthCheck(ctx)
		if healthy {
			f.registry.SetModels(b.Name(), b.ListCapableModels(ctx))
		}
		f.registry.SetHealthy(b.Name(), healthy)
		f.logger.Debug("local backend probed",
			slog.String("backend", b.Name()),
			slog.Bool("healthy", healthy))
	}
}

// Run probes once, then on every tick until ctx is done.
func (f *Refresher) Run(ctx context.Context) {
	f.ProbeOnce(ctx)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.ProbeOnce(ctx)
		}
	}
}

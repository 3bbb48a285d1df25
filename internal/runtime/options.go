package runtime

import (
	"fmt"
	"log/slog"

	"github.com/tjfontaine/campaign-orchestrator/internal/adapters/auth/apikey"
	"github.com/tjfontaine/campaign-orchestrator/internal/adapters/config/file"
	"github.com/tjfontaine/campaign-orchestrator/internal/adapters/policy/basic"
	"github.com/tjfontaine/campaign-orchestrator/internal/adapters/storage/sqlite"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
)

// Option is a functional option for configuring an Orchestrator.
type Option func(*Orchestrator) error

// WithFileConfig uses file-based configuration with hot-reload (default).
// The path should point to a config.yaml file that will be watched for changes.
func WithFileConfig(path string) Option {
	return func(o *Orchestrator) error {
		provider, err := file.NewProvider(path)
		if err != nil {
			return fmt.Errorf("create file config provider: %w", err)
		}
		o.config = provider
		return nil
	}
}

// WithAPIKeyAuth uses API key authentication with keys from the config
// provider, reloaded when the config changes.
func WithAPIKeyAuth() Option {
	return func(o *Orchestrator) error {
		if o.config == nil {
			return fmt.Errorf("config provider must be set before auth provider")
		}
		provider, err := apikey.NewProvider(o.config)
		if err != nil {
			return fmt.Errorf("create apikey auth provider: %w", err)
		}
		o.auth = provider
		return nil
	}
}

// WithSQLite stores usage in the SQLite database at path.
func WithSQLite(path string) Option {
	return func(o *Orchestrator) error {
		store, err := sqlite.NewProvider(path)
		if err != nil {
			return fmt.Errorf("create sqlite storage: %w", err)
		}
		o.store = store
		o.ownsStore = true
		return nil
	}
}

// WithBasicPolicy disables rate limits and quotas.
func WithBasicPolicy() Option {
	return func(o *Orchestrator) error {
		o.policy = basic.NewPolicy()
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		o.logger = logger
		return nil
	}
}

// WithLevelVar lets the configured log level, and later reloads of it, drive
// the level of the caller's handler.
func WithLevelVar(levels *slog.LevelVar) Option {
	return func(o *Orchestrator) error {
		o.levels = levels
		return nil
	}
}

// WithConfigProvider sets a custom config provider.
// For advanced use cases where you need full control over config loading.
func WithConfigProvider(provider ports.ConfigProvider) Option {
	return func(o *Orchestrator) error {
		o.config = provider
		return nil
	}
}

// WithAuthProvider sets a custom auth provider.
func WithAuthProvider(provider ports.AuthProvider) Option {
	return func(o *Orchestrator) error {
		o.auth = provider
		return nil
	}
}

// WithUsageStore sets a custom usage store. The caller keeps ownership.
func WithUsageStore(store ports.UsageStore) Option {
	return func(o *Orchestrator) error {
		o.store = store
		return nil
	}
}

// WithEventPublisher sets a custom event publisher. The caller keeps ownership.
func WithEventPublisher(publisher ports.EventPublisher) Option {
	return func(o *Orchestrator) error {
		o.events = publisher
		return nil
	}
}

// WithCounterStore sets a custom rate limit counter store.
func WithCounterStore(store ports.CounterStore) Option {
	return func(o *Orchestrator) error {
		o.counter = store
		return nil
	}
}

// WithQualityPolicy sets a custom quality policy.
func WithQualityPolicy(policy ports.QualityPolicy) Option {
	return func(o *Orchestrator) error {
		o.policy = policy
		return nil
	}
}

// WithCloudBackend sets the cloud inference client.
func WithCloudBackend(cloud ports.CloudBackend) Option {
	return func(o *Orchestrator) error {
		o.cloud = cloud
		return nil
	}
}

// WithLocalBackend sets the local inference bridge, replacing the configured one.
func WithLocalBackend(local ports.LocalBackend) Option {
	return func(o *Orchestrator) error {
		o.local = local
		return nil
	}
}

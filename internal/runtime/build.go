package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/api/option"

	"github.com/tjfontaine/campaign-orchestrator/internal/adapters/auth/apikey"
	"github.com/tjfontaine/campaign-orchestrator/internal/adapters/auth/jwt"
	"github.com/tjfontaine/campaign-orchestrator/internal/adapters/counter/firestore"
	"github.com/tjfontaine/campaign-orchestrator/internal/adapters/counter/memory"
	"github.com/tjfontaine/campaign-orchestrator/internal/adapters/events/direct"
	"github.com/tjfontaine/campaign-orchestrator/internal/adapters/events/pubsub"
	"github.com/tjfontaine/campaign-orchestrator/internal/adapters/policy/basic"
	"github.com/tjfontaine/campaign-orchestrator/internal/adapters/policy/limiter"
	"github.com/tjfontaine/campaign-orchestrator/internal/adapters/storage/sqlite"
	"github.com/tjfontaine/campaign-orchestrator/internal/backend/gemini"
	"github.com/tjfontaine/campaign-orchestrator/internal/backend/ollama"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
	"github.com/tjfontaine/campaign-orchestrator/internal/pipeline"
	"github.com/tjfontaine/campaign-orchestrator/internal/pkg/config"
	"github.com/tjfontaine/campaign-orchestrator/internal/pkg/safehttp"
	"github.com/tjfontaine/campaign-orchestrator/internal/ratelimit"
	"github.com/tjfontaine/campaign-orchestrator/internal/router"
	"github.com/tjfontaine/campaign-orchestrator/internal/tokens"
)

// ParseLevel maps a config log level to a slog.Level. Unknown values are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func credentials(file string) []option.ClientOption {
	if file == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(file)}
}

func buildStore(cfg config.StorageConfig) (ports.UsageStore, error) {
	switch cfg.Type {
	case "", "sqlite":
		return sqlite.NewProvider(cfg.SQLite.Path)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

func buildEvents(ctx context.Context, cfg config.EventsConfig, store ports.UsageStore) (ports.EventPublisher, error) {
	switch cfg.Type {
	case "", "direct":
		if store == nil {
			return nil, nil
		}
		return direct.NewPublisher(store)
	case "pubsub":
		return pubsub.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic, credentials(cfg.PubSub.CredentialsFile)...)
	default:
		return nil, fmt.Errorf("unknown events type %q", cfg.Type)
	}
}

func buildCounter(ctx context.Context, cfg config.CounterConfig) (ports.CounterStore, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.NewStore(), nil
	case "firestore":
		store, err := firestore.New(ctx, cfg.Firestore.ProjectID, cfg.Firestore.Collection, credentials(cfg.Firestore.CredentialsFile)...)
		if err != nil {
			return nil, err
		}
		store.SetCountTTL(cfg.Firestore.CountTTL)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown counter type %q", cfg.Type)
	}
}

func buildGuard(cfg config.PolicyConfig, counter ports.CounterStore, quota ports.QuotaCounter, logger *slog.Logger) *ratelimit.Guard {
	opts := []ratelimit.Option{
		ratelimit.WithLimit(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window),
		ratelimit.WithEvictThreshold(cfg.RateLimit.EvictThreshold),
		ratelimit.WithLogger(logger),
	}
	if quota != nil {
		opts = append(opts, ratelimit.WithQuotaCounter(quota))
	}
	return ratelimit.NewGuard(counter, opts...)
}

func buildPolicy(cfg config.PolicyConfig, guard *ratelimit.Guard, logger *slog.Logger) (ports.QualityPolicy, error) {
	switch cfg.Type {
	case "basic":
		return basic.NewPolicy(), nil
	case "", "ratelimit":
		return limiter.NewPolicy(guard,
			limiter.WithDailyLimit(cfg.Quota.DailyLimit),
			limiter.WithLogger(logger),
		), nil
	default:
		return nil, fmt.Errorf("unknown policy type %q", cfg.Type)
	}
}

func buildAuth(cfg config.AuthConfig) (ports.AuthProvider, error) {
	switch cfg.Type {
	case "", "apikey":
		return apikey.NewStaticProvider(cfg.APIKeys)
	case "jwt":
		var opts []jwt.Option
		if cfg.JWT.Issuer != "" {
			opts = append(opts, jwt.WithIssuer(cfg.JWT.Issuer))
		}
		if cfg.JWT.Audience != "" {
			opts = append(opts, jwt.WithAudience(cfg.JWT.Audience))
		}
		return jwt.NewProvider(cfg.JWT.Secret, opts...)
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}
}

func buildLocal(cfg config.LocalConfig, logger *slog.Logger) *ollama.Client {
	models := make([]ollama.Model, 0, len(cfg.Models))
	for _, m := range cfg.Models {
		models = append(models, ollama.Model{
			Name:          m.Name,
			Capabilities:  m.Capabilities,
			LatencyMs:     m.LatencyMs,
			ContextWindow: m.ContextWindow,
		})
	}
	return ollama.New(
		ollama.WithBaseURL(cfg.BaseURL),
		ollama.WithTimeouts(cfg.HealthTimeout, cfg.InvokeTimeout),
		ollama.WithModels(models),
		ollama.WithLogger(logger),
	)
}

// declaredModels is what a local backend advertises before its first probe.
func declaredModels(cfg config.LocalConfig, owner string) []domain.BackendCapability {
	out := make([]domain.BackendCapability, 0, len(cfg.Models))
	for _, m := range cfg.Models {
		out = append(out, domain.BackendCapability{
			Model:        m.Name,
			Capabilities: m.Capabilities,
			LatencyMs:    m.LatencyMs,
			Owner:        owner,
		})
	}
	return out
}

func buildCloud(cfg config.CloudConfig, tc *tokens.Counter, logger *slog.Logger) *gemini.Client {
	hc := http.DefaultClient
	if cfg.RestrictEgress {
		hc = safehttp.NewClient()
	}
	return gemini.New(cfg.APIKey,
		gemini.WithBaseURL(cfg.BaseURL),
		gemini.WithHTTPClient(hc),
		gemini.WithTier(domain.TierFast, gemini.TierConfig{
			Model:           cfg.Fast.Model,
			Temperature:     cfg.Fast.Temperature,
			MaxOutputTokens: cfg.Fast.MaxOutputTokens,
		}),
		gemini.WithTier(domain.TierCapable, gemini.TierConfig{
			Model:           cfg.Capable.Model,
			Temperature:     cfg.Capable.Temperature,
			MaxOutputTokens: cfg.Capable.MaxOutputTokens,
		}),
		gemini.WithImageModel(cfg.ImageModel, cfg.ImageAspectRatio),
		gemini.WithRateLimit(cfg.RequestsPerSecond, cfg.Burst),
		gemini.WithTokenCounter(tc),
		gemini.WithLogger(logger),
	)
}

func buildTiers(cfg config.CloudConfig) router.Tiers {
	t := router.DefaultTiers()
	if cfg.Fast.Model != "" {
		t.Fast = router.CloudTier{Model: cfg.Fast.Model, LatencyMs: cfg.Fast.LatencyMs, CostPerCall: cfg.Fast.CostPerCall}
	}
	if cfg.Capable.Model != "" {
		t.Capable = router.CloudTier{Model: cfg.Capable.Model, LatencyMs: cfg.Capable.LatencyMs, CostPerCall: cfg.Capable.CostPerCall}
	}
	return t
}

// recorders fans a usage record out to every destination. The sink persists
// it; the policy sees it for its own accounting.
type recorders []pipeline.UsageRecorder

func (rs recorders) RecordUsage(ctx context.Context, rec *domain.UsageRecord) error {
	var errs []error
	for _, r := range rs {
		if err := r.RecordUsage(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

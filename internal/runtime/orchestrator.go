// Package runtime assembles the campaign orchestrator from configuration and
// manages its lifecycle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/tjfontaine/campaign-orchestrator/internal/brand"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
	"github.com/tjfontaine/campaign-orchestrator/internal/frontdoor/orchestrate"
	"github.com/tjfontaine/campaign-orchestrator/internal/pipeline"
	"github.com/tjfontaine/campaign-orchestrator/internal/pkg/config"
	"github.com/tjfontaine/campaign-orchestrator/internal/ratelimit"
	"github.com/tjfontaine/campaign-orchestrator/internal/router"
	"github.com/tjfontaine/campaign-orchestrator/internal/server"
	"github.com/tjfontaine/campaign-orchestrator/internal/tokens"
	"github.com/tjfontaine/campaign-orchestrator/internal/usage"
)

// DefaultDrainTimeout bounds how long Shutdown waits for queued usage records.
const DefaultDrainTimeout = 5 * time.Second

// Orchestrator is the main entry point for running the campaign service.
// Dependencies not injected through options are built from configuration.
type Orchestrator struct {
	// Dependencies (injected via options or built from config)
	config  ports.ConfigProvider
	auth    ports.AuthProvider
	store   ports.UsageStore
	events  ports.EventPublisher
	counter ports.CounterStore
	policy  ports.QualityPolicy
	cloud   ports.CloudBackend
	local   ports.LocalBackend
	levels  *slog.LevelVar
	logger  *slog.Logger

	// Built on Init
	cfg       *config.Config
	registry  *router.Registry
	router    *router.Router
	guard     *ratelimit.Guard
	sink      *usage.Sink
	brand     *brand.Store
	server    *server.Server
	ownsStore bool
	ownsEvent bool

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// New creates an Orchestrator with the given options. A config provider is
// required; everything else has a config-driven default.
func New(opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{logger: slog.Default()}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if o.config == nil {
		return nil, errors.New("config provider required (use WithFileConfig or WithConfigProvider)")
	}
	return o, nil
}

// Init loads configuration and builds every component. It is called by Start
// and may be called directly to serve Handler without listening.
func (o *Orchestrator) Init(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.init(ctx)
}

func (o *Orchestrator) init(ctx context.Context) error {
	if o.cfg != nil {
		return nil
	}

	cfg, err := o.config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if o.levels != nil {
		o.levels.Set(ParseLevel(cfg.Log.Level))
	}

	if o.store == nil {
		if o.store, err = buildStore(cfg.Storage); err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		o.ownsStore = o.store != nil
	}
	if o.events == nil {
		if o.events, err = buildEvents(ctx, cfg.Events, o.store); err != nil {
			return fmt.Errorf("init events: %w", err)
		}
		o.ownsEvent = o.events != nil
	}
	if o.counter == nil {
		if o.counter, err = buildCounter(ctx, cfg.Policy.Counter); err != nil {
			return fmt.Errorf("init counter store: %w", err)
		}
	}
	if o.auth == nil {
		if o.auth, err = buildAuth(cfg.Auth); err != nil {
			return fmt.Errorf("init auth: %w", err)
		}
	}

	var usageWriter usage.UsageWriter
	var quota ports.QuotaCounter
	if o.store != nil {
		usageWriter = o.store
		quota = o.store
	}
	o.sink = usage.NewSink(usageWriter, o.events,
		usage.WithBufferSize(cfg.Events.BufferSize),
		usage.WithLogger(o.logger))

	o.guard = buildGuard(cfg.Policy, o.counter, quota, o.logger)
	if o.policy == nil {
		if o.policy, err = buildPolicy(cfg.Policy, o.guard, o.logger); err != nil {
			return fmt.Errorf("init policy: %w", err)
		}
	}

	tc := tokens.NewCounter()
	o.registry = router.NewRegistry()
	if o.local == nil && cfg.Local.Enabled {
		o.local = buildLocal(cfg.Local, o.logger)
	}
	if o.local != nil {
		o.registry.Register(o.local, declaredModels(cfg.Local, o.local.Name()))
	}
	o.router = router.New(o.registry, router.WithTiers(buildTiers(cfg.Cloud)))

	if o.cloud == nil {
		if cfg.Cloud.APIKey == "" {
			o.logger.Warn("cloud api key not set, cloud calls will be rejected upstream")
		}
		o.cloud = buildCloud(cfg.Cloud, tc, o.logger)
	}

	if o.brand, err = brand.NewStore(cfg.Pipeline.BrandProfile, o.logger); err != nil {
		return fmt.Errorf("load brand profile: %w", err)
	}

	invoker := pipeline.NewInvoker(o.router, o.cloud,
		pipeline.WithTokenCounter(tc),
		pipeline.WithInvokerLogger(o.logger))
	controller := pipeline.NewController(invoker,
		pipeline.WithMaxResearchQueries(cfg.Pipeline.MaxResearchQueries),
		pipeline.WithVisual(cfg.Pipeline.EnableVisual),
		pipeline.WithUsageFunction(cfg.Pipeline.UsageFunction),
		pipeline.WithAgentLogger(o.sink),
		pipeline.WithUsageRecorder(recorders{o.sink, o.policy}),
		pipeline.WithBrand(o.brand),
		pipeline.WithLogger(o.logger))

	handler := orchestrate.NewHandler(controller,
		orchestrate.WithPolicy(o.policy),
		orchestrate.WithRouter(o.router),
		orchestrate.WithQuota(o.guard, cfg.Policy.Quota.DailyLimit),
		orchestrate.WithFunction(cfg.Pipeline.UsageFunction),
		orchestrate.WithLogger(o.logger))

	o.server = server.New(cfg.Server.Port, o.logger,
		server.WithRequestTimeout(cfg.Server.RequestTimeout),
		server.WithServiceName(cfg.Telemetry.ServiceName))
	handler.Mount(o.server.Router, o.auth)

	o.cfg = cfg
	o.logger.Info("orchestrator initialized",
		slog.String("storage", cfg.Storage.Type),
		slog.String("events", cfg.Events.Type),
		slog.String("policy", cfg.Policy.Type),
		slog.String("auth", cfg.Auth.Type),
		slog.Bool("local", o.local != nil),
		slog.Bool("visual", cfg.Pipeline.EnableVisual))
	return nil
}

// Handler returns the HTTP handler. Init must have been called.
func (o *Orchestrator) Handler() http.Handler {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.server == nil {
		return http.NotFoundHandler()
	}
	return o.server.Router
}

// Config returns the loaded configuration, or nil before Init.
func (o *Orchestrator) Config() *config.Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg
}

// Router returns the model router. Init must have been called.
func (o *Orchestrator) Router() *router.Router {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.router
}

// Start initializes the orchestrator, starts the background workers and
// serves HTTP in the background.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.init(ctx); err != nil {
		return err
	}
	o.ctx, o.cancel = context.WithCancel(ctx)

	refresher := router.NewRefresher(o.registry, o.cfg.Router.ProbeInterval, o.logger)
	o.goRun(func() { refresher.Run(o.ctx) })

	if err := o.brand.Watch(o.ctx); err != nil {
		o.logger.Warn("brand profile watch failed", slog.String("error", err.Error()))
	}
	o.goRun(o.watchConfig)

	srv := o.server
	o.goRun(func() {
		if err := srv.Start(); err != nil {
			o.logger.Error("server error", slog.String("error", err.Error()))
		}
	})

	o.logger.Info("orchestrator started", slog.Int("port", o.cfg.Server.Port))
	return nil
}

func (o *Orchestrator) goRun(fn func()) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		fn()
	}()
}

// Shutdown stops serving, waits for open streams until ctx expires, then
// drains the usage queue and closes resources.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.logger.Info("shutting down orchestrator")

	var errs []error
	if o.server != nil && o.ctx != nil {
		if err := o.server.Shutdown(ctx); err != nil {
			o.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()

	if o.sink != nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), DefaultDrainTimeout)
		if err := o.sink.Close(drainCtx); err != nil {
			o.logger.Warn("usage queue not fully drained",
				slog.Int64("dropped", o.sink.Stats().Dropped),
				slog.String("error", err.Error()))
		}
		cancel()
	}

	if o.events != nil && o.ownsEvent {
		if err := o.events.Close(); err != nil {
			o.logger.Error("failed to close events", slog.String("error", err.Error()))
		}
	}
	if closer, ok := o.counter.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			o.logger.Error("failed to close counter store", slog.String("error", err.Error()))
		}
	}
	if o.store != nil && o.ownsStore {
		if err := o.store.Close(); err != nil {
			o.logger.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}
	if err := o.config.Close(); err != nil {
		o.logger.Error("failed to close config", slog.String("error", err.Error()))
	}

	o.logger.Info("orchestrator shutdown complete")
	return errors.Join(errs...)
}

// watchConfig applies runtime-safe settings when the config file changes.
func (o *Orchestrator) watchConfig() {
	if err := o.config.Watch(o.ctx, o.reload); err != nil && !errors.Is(err, context.Canceled) {
		o.logger.Error("config watch failed", slog.String("error", err.Error()))
	}
}

// reload applies the log level and the API key set from cfg. Everything else
// requires a restart.
func (o *Orchestrator) reload(cfg *config.Config) {
	if o.levels != nil {
		o.levels.Set(ParseLevel(cfg.Log.Level))
	}
	if reloader, ok := o.auth.(interface{ ReloadFromConfig(*config.Config) error }); ok {
		if err := reloader.ReloadFromConfig(cfg); err != nil {
			o.logger.Warn("failed to reload auth provider", slog.String("error", err.Error()))
		}
	}
	o.logger.Info("config reloaded", slog.String("log_level", cfg.Log.Level))
}

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/campaign-orchestrator/internal/brand"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
)

const (
	// DefaultMaxResearchQueries caps grounded searches per run.
	DefaultMaxResearchQueries = 3
	// DefaultUsageFunction is the function name usage is billed under.
	DefaultUsageFunction = "vertex-ai-orchestrator"

	summaryLimit     = 500
	cancelledMessage = "Campaign generation cancelled"
)

// Controller drives one run through the phase sequence.
type Controller struct {
	invoker       *Invoker
	maxQueries    int
	visual        bool
	usageFunction string
	logs          AgentLogger
	usage         UsageRecorder
	brand         BrandSource
	logger        *slog.Logger
	now           func() time.Time
	tracer        trace.Tracer
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxResearchQueries caps the grounded searches run per campaign.
func WithMaxResearchQueries(n int) Option {
	return func(c *Controller) {
		c.maxQueries = n
	}
}

// WithVisual enables hero image generation.
func WithVisual(enabled bool) Option {
	return func(c *Controller) {
		c.visual = enabled
	}
}

// WithUsageFunction sets the function name recorded with usage.
func WithUsageFunction(name string) Option {
	return func(c *Controller) {
		if name != "" {
			c.usageFunction = name
		}
	}
}

// WithAgentLogger sets the agent activity sink.
func WithAgentLogger(l AgentLogger) Option {
	return func(c *Controller) {
		c.logs = l
	}
}

// WithUsageRecorder sets where billing units are recorded.
func WithUsageRecorder(r UsageRecorder) Option {
	return func(c *Controller) {
		c.usage = r
	}
}

// WithBrand sets the brand profile source.
func WithBrand(b BrandSource) Option {
	return func(c *Controller) {
		c.brand = b
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

type staticBrand struct{ p brand.Profile }

func (s staticBrand) Current() brand.Profile { return s.p }

// NewController creates a controller dispatching through inv.
func NewController(inv *Invoker, opts ...Option) *Controller {
	c := &Controller{
		invoker:       inv,
		maxQueries:    DefaultMaxResearchQueries,
		usageFunction: DefaultUsageFunction,
		brand:         staticBrand{p: brand.Default()},
		logger:        slog.Default(),
		now:           time.Now,
		tracer:        otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) phases() []Phase {
	return []Phase{
		planningPhase{inv: c.invoker},
		researchPhase{inv: c.invoker, maxQueries: c.maxQueries},
		creativePhase{inv: c.invoker},
		auditPhase{inv: c.invoker},
		visualPhase{inv: c.invoker, enabled: c.visual},
	}
}

// Run executes the campaign pipeline for req, streaming progress to em. It
// emits exactly one terminal frame: the result on success, an error message
// otherwise. The returned error is the cause of the failure.
func (c *Controller) Run(ctx context.Context, req *domain.CampaignRequest, meta RunMeta, em Emitter) (*domain.CampaignResult, error) {
	ctx, span := c.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", meta.RunID),
		attribute.String("user.id", meta.UserID),
	))
	defer span.End()

	rc := &RunContext{
		Request: req,
		Meta:    meta,
		Brand:   c.brand.Current(),
		emitter: em,
		logs:    c.logs,
		logger:  c.logger,
		now:     c.now,
	}

	if err := req.Validate(); err != nil {
		return nil, c.terminate(ctx, rc, StatePlanning, failed(err))
	}

	start := c.now()
	for _, p := range c.phases() {
		rc.Transitions = append(rc.Transitions, p.Name())
		res := c.runPhase(ctx, p, rc)
		if res.Kind != KindOk {
			span.SetStatus(codes.Error, res.Kind.String())
			return nil, c.terminate(ctx, rc, p.Name(), res)
		}
	}
	rc.Transitions = append(rc.Transitions, StateCompleted)

	result := assemble(rc)
	c.recordUsage(ctx, rc)

	if err := em.EmitResult(result); err != nil {
		c.logger.Warn("result not delivered",
			slog.String("run_id", meta.RunID),
			slog.String("error", err.Error()))
	}
	c.logger.Info("campaign completed",
		slog.String("run_id", meta.RunID),
		slog.String("user_id", meta.UserID),
		slog.Int("research_findings", len(rc.Findings)),
		slog.Any("states", rc.Transitions),
		slog.Duration("duration", c.now().Sub(start)))
	return result, nil
}

// runPhase runs p in its own span and turns a panic into a failed result.
func (c *Controller) runPhase(ctx context.Context, p Phase, rc *RunContext) (res Result) {
	ctx, span := c.tracer.Start(ctx, "pipeline.phase."+string(p.Name()))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("phase panicked",
				slog.String("run_id", rc.Meta.RunID),
				slog.String("phase", string(p.Name())),
				slog.Any("panic", r))
			res = Result{Kind: KindUpstreamError, Err: domain.ErrServer(fmt.Sprintf("%s phase failed unexpectedly", p.Name()))}
		}
		span.SetAttributes(attribute.String("phase.result", res.Kind.String()))
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Kind.String())
		}
	}()

	if err := ctx.Err(); err != nil {
		return failed(err)
	}
	return p.Run(ctx, rc)
}

// terminate moves the run to failed and emits the single error frame.
func (c *Controller) terminate(ctx context.Context, rc *RunContext, at State, res Result) error {
	rc.Transitions = append(rc.Transitions, StateFailed)
	msg := failureMessage(res)

	if res.Kind == KindCancelled {
		c.logger.Info("campaign cancelled",
			slog.String("run_id", rc.Meta.RunID),
			slog.String("phase", string(at)))
	} else {
		c.logger.Error("campaign failed",
			slog.String("run_id", rc.Meta.RunID),
			slog.String("phase", string(at)),
			slog.String("kind", res.Kind.String()),
			slog.Any("states", rc.Transitions),
			slog.String("error", res.Err.Error()))
	}
	rc.logAgent(ctx, "Controller", domain.EventPipelineFailed, msg, 0,
		map[string]any{"phase": string(at), "kind": res.Kind.String()})

	if err := rc.emitter.EmitError(msg); err != nil {
		c.logger.Debug("error frame not delivered",
			slog.String("run_id", rc.Meta.RunID),
			slog.String("error", err.Error()))
	}
	return res.Err
}

func failureMessage(res Result) string {
	if res.Kind == KindCancelled {
		return cancelledMessage
	}
	if apiErr, ok := domain.AsAPIError(res.Err); ok {
		return apiErr.Message
	}
	return res.Err.Error()
}

func (c *Controller) recordUsage(ctx context.Context, rc *RunContext) {
	if c.usage == nil {
		return
	}
	err := c.usage.RecordUsage(ctx, &domain.UsageRecord{
		UserID:       rc.Meta.UserID,
		FunctionName: c.usageFunction,
		// research calls plus creative and audit
		Units:     len(rc.Findings) + 2,
		CreatedAt: c.now(),
	})
	if err != nil {
		c.logger.Warn("usage not recorded",
			slog.String("run_id", rc.Meta.RunID),
			slog.String("user_id", rc.Meta.UserID),
			slog.String("error", err.Error()))
	}
}

// assemble builds the campaign result from a completed run.
func assemble(rc *RunContext) *domain.CampaignResult {
	insights := make([]string, 0, len(rc.Findings))
	for _, f := range rc.Findings {
		insights = append(insights, f.Insights)
	}

	interests := rc.Copy.Hashtags
	if interests == nil {
		interests = []string{}
	}

	return &domain.CampaignResult{
		ResearchSummary: truncate(strings.Join(insights, " "), summaryLimit) + "...",
		AdCopy: domain.AdCopy{
			Headline:     rc.Copy.Headline,
			Subheadline:  rc.Copy.Subheadline,
			Body:         rc.Copy.Body,
			CallToAction: rc.Copy.CallToAction,
		},
		BrandAnalysis: rc.Analysis,
		Targeting: domain.Targeting{
			Location:     rc.Request.LocationOrDefault(),
			Demographics: []string{rc.Request.AudienceOrDefault()},
			Interests:    interests,
		},
		Compliance:   *rc.Compliance,
		VisualAssets: rc.Visual,
	}
}

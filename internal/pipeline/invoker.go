package pipeline

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
	"github.com/tjfontaine/campaign-orchestrator/internal/router"
	"github.com/tjfontaine/campaign-orchestrator/internal/tokens"
)

const tracerName = "github.com/tjfontaine/campaign-orchestrator/internal/pipeline"

// Task is one model call described by what it needs, not where it runs.
type Task struct {
	TaskType       string
	Complexity     domain.Complexity
	WorldKnowledge bool
	Prompt         string
	// Images force the cloud tier; the local bridge is text only.
	Images []ports.InlineImage
	JSON   bool
	// Cloud pins the task to the cloud tier for its complexity.
	Cloud bool
}

// Output is a completed call.
type Output struct {
	Text string
	// Route is the decision that produced Text. After a fallback it is the
	// cloud decision.
	Route        domain.RouteDecision
	FellBack     bool
	PromptTokens int
}

// Invoker dispatches tasks through the router to the local bridge or the
// cloud client.
type Invoker struct {
	router *router.Router
	cloud  ports.CloudBackend
	tokens *tokens.Counter
	tracer trace.Tracer
	logger *slog.Logger
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithTokenCounter sets the counter used for prompt size estimates.
func WithTokenCounter(tc *tokens.Counter) InvokerOption {
	return func(i *Invoker) {
		i.tokens = tc
	}
}

// WithInvokerLogger sets the logger.
func WithInvokerLogger(logger *slog.Logger) InvokerOption {
	return func(i *Invoker) {
		i.logger = logger
	}
}

// NewInvoker creates an invoker over r and cloud.
func NewInvoker(r *router.Router, cloud ports.CloudBackend, opts ...InvokerOption) *Invoker {
	i := &Invoker{
		router: r,
		cloud:  cloud,
		tracer: otel.Tracer(tracerName),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.tokens == nil {
		i.tokens = tokens.NewCounter()
	}
	return i
}

// Dispatch routes task and runs it. A local failure is retried once on the
// cloud tier; only cloud errors and cancellation are returned.
func (i *Invoker) Dispatch(ctx context.Context, task Task) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	var d domain.RouteDecision
	switch {
	case len(task.Images) > 0:
		d = i.router.Cloud(task.Complexity, "multimodal input")
	case task.Cloud:
		d = i.router.Cloud(task.Complexity, "cloud tier required")
	default:
		d = i.router.Route(task.TaskType, task.Complexity, task.WorldKnowledge)
	}

	ctx, span := i.tracer.Start(ctx, "pipeline.dispatch", trace.WithAttributes(
		attribute.String("task.type", task.TaskType),
		attribute.String("task.complexity", string(task.Complexity)),
		attribute.String("route.destination", string(d.Destination)),
		attribute.String("route.model", d.Model),
	))
	defer span.End()

	out := Output{Route: d, PromptTokens: i.tokens.Estimate(d.Model, task.Prompt)}
	span.SetAttributes(attribute.Int("prompt.tokens", out.PromptTokens))

	if d.Destination == domain.DestinationLocal {
		text, err := i.invokeLocal(ctx, d, task)
		if err == nil {
			out.Text = text
			return out, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			span.SetStatus(codes.Error, "cancelled")
			return out, ctxErr
		}

		i.logger.Warn("local inference failed, falling back to cloud",
			slog.String("backend", d.Backend),
			slog.String("model", d.Model),
			slog.String("task_type", task.TaskType),
			slog.String("error", err.Error()))
		i.router.Registry().SetHealthy(d.Backend, false)

		d = i.router.Fallback(task.TaskType, task.Complexity)
		out.Route = d
		out.FellBack = true
		span.SetAttributes(
			attribute.Bool("route.fallback", true),
			attribute.String("route.model", d.Model),
		)
	}

	text, err := i.cloud.Invoke(ctx, d.Tier, task.Prompt, ports.InvokeOptions{Images: task.Images, JSON: task.JSON})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, err
	}
	out.Text = text
	return out, nil
}

func (i *Invoker) invokeLocal(ctx context.Context, d domain.RouteDecision, task Task) (string, error) {
	backend, ok := i.router.Registry().Backend(d.Backend)
	if !ok {
		return "", domain.ErrBackendUnavailable("backend " + d.Backend + " not registered")
	}
	return backend.Invoke(ctx, d.Model, task.Prompt, task.TaskType)
}

// Search runs a grounded web search. Search always needs world knowledge, so
// it is recorded as a cloud decision.
func (i *Invoker) Search(ctx context.Context, query string) (*ports.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := i.router.Route(domain.TaskResearch, domain.ComplexityComplex, true)

	ctx, span := i.tracer.Start(ctx, "pipeline.search", trace.WithAttributes(
		attribute.String("route.model", d.Model),
	))
	defer span.End()

	res, err := i.cloud.InvokeWithSearch(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("search.sources", len(res.Sources)))
	return res, nil
}

// GenerateImage renders one image on the cloud image model.
func (i *Invoker) GenerateImage(ctx context.Context, prompt string) (*ports.ImageResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i.router.Cloud(domain.ComplexityComplex, "image generation")

	ctx, span := i.tracer.Start(ctx, "pipeline.generate_image")
	defer span.End()

	img, err := i.cloud.GenerateImage(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("image.model", img.Model))
	return img, nil
}

package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tjfontaine/campaign-orchestrator/internal/brand"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
)

// State is a position in the run state machine.
type State string

const (
	StatePlanning         State = "planning"
	StateResearching      State = "researching"
	StateCreating         State = "creating"
	StateAuditing         State = "auditing"
	StateVisualGenerating State = "visual_generating"
	StateCompleted        State = "completed"
	StateFailed           State = "failed"
)

// Kind tags a phase Result.
type Kind int

const (
	KindOk Kind = iota
	KindParseError
	KindUpstreamError
	KindComplianceFailure
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindOk:
		return "ok"
	case KindParseError:
		return "parse_error"
	case KindUpstreamError:
		return "upstream_error"
	case KindComplianceFailure:
		return "compliance_failure"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result is the outcome of one phase. Data is set for KindOk, Err otherwise.
type Result struct {
	Kind Kind
	Data any
	Err  error
}

func ok(data any) Result {
	return Result{Kind: KindOk, Data: data}
}

// failed classifies err into the matching result kind.
func failed(err error) Result {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Result{Kind: KindCancelled, Err: err}
	case domain.IsType(err, domain.ErrorTypeCompliance):
		return Result{Kind: KindComplianceFailure, Err: err}
	}
	if apiErr, ok := domain.AsAPIError(err); ok && apiErr.Code == domain.ErrorCodeParseFailure {
		return Result{Kind: KindParseError, Err: err}
	}
	return Result{Kind: KindUpstreamError, Err: err}
}

// Phase is one step of the run.
type Phase interface {
	Name() State
	Run(ctx context.Context, rc *RunContext) Result
}

// Emitter receives the run's stream frames.
// Implementations: stream.Streamer.
type Emitter interface {
	EmitThought(t domain.AgentThought) error
	EmitResult(result *domain.CampaignResult) error
	EmitError(message string) error
}

// AgentLogger records agent activity without blocking the run.
// Implementations: usage.Sink.
type AgentLogger interface {
	LogAgent(ctx context.Context, log *domain.AgentLog) error
}

// UsageRecorder records billing units after a successful run.
// Implementations: usage.Sink.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, rec *domain.UsageRecord) error
}

// BrandSource returns the brand profile in effect for a new run.
// Implementations: brand.Store.
type BrandSource interface {
	Current() brand.Profile
}

// RunMeta identifies a run and its caller.
type RunMeta struct {
	UserID string
	RunID  string
}

// RunContext is the state shared by the phases of one run. Each phase reads
// what earlier phases produced and fills in its own section.
type RunContext struct {
	Request *domain.CampaignRequest
	Meta    RunMeta
	Brand   brand.Profile

	Plan       *domain.CampaignPlan
	Findings   []domain.ResearchFinding
	Analysis   domain.BrandAnalysis
	Copy       *domain.CreativeCopy
	Compliance *domain.ComplianceResult
	Visual     *domain.VisualAssets

	// Transitions lists the states the run has entered, in order.
	Transitions []State

	emitter Emitter
	logs    AgentLogger
	logger  *slog.Logger
	now     func() time.Time
}

// thought emits a progress frame. Stream write failures are logged only; a
// gone client surfaces through the request context instead.
func (rc *RunContext) thought(t domain.AgentThought) {
	if t.Timestamp == 0 {
		t.Timestamp = rc.now().UnixMilli()
	}
	if err := rc.emitter.EmitThought(t); err != nil {
		rc.logger.Debug("thought not delivered",
			slog.String("run_id", rc.Meta.RunID),
			slog.String("key", t.Key()),
			slog.String("error", err.Error()))
	}
}

func (rc *RunContext) thinking(agent domain.AgentRole, action, details string) {
	rc.thought(domain.AgentThought{Agent: agent, Action: action, Details: details, Status: domain.ThoughtThinking})
}

// logAgent records an agent activity entry for the run.
func (rc *RunContext) logAgent(ctx context.Context, component, eventType, message string, costSaved float64, metadata map[string]any) {
	if rc.logs == nil {
		return
	}
	err := rc.logs.LogAgent(ctx, &domain.AgentLog{
		RunID:     rc.Meta.RunID,
		UserID:    rc.Meta.UserID,
		Component: component,
		EventType: eventType,
		Message:   message,
		CostSaved: costSaved,
		Metadata:  metadata,
		CreatedAt: rc.now(),
	})
	if err != nil {
		rc.logger.Warn("agent log dropped",
			slog.String("run_id", rc.Meta.RunID),
			slog.String("event_type", eventType),
			slog.String("error", err.Error()))
	}
}

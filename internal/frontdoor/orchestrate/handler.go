// Package orchestrate is the HTTP front door of the campaign pipeline. It
// authenticates the caller, applies the quality policy, validates the body and
// then hands the response over to the event stream.
package orchestrate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
	"github.com/tjfontaine/campaign-orchestrator/internal/pipeline"
	"github.com/tjfontaine/campaign-orchestrator/internal/ratelimit"
	"github.com/tjfontaine/campaign-orchestrator/internal/router"
	"github.com/tjfontaine/campaign-orchestrator/internal/server"
	"github.com/tjfontaine/campaign-orchestrator/internal/stream"
)

// MaxBodyBytes bounds the request body. Inline brand images dominate the size.
const MaxBodyBytes = 12 << 20

// Runner executes a campaign run against an event emitter.
// Implementations: pipeline.Controller.
type Runner interface {
	Run(ctx context.Context, req *domain.CampaignRequest, meta pipeline.RunMeta, em pipeline.Emitter) (*domain.CampaignResult, error)
}

// QuotaReporter reports a caller's daily quota state.
// Implementations: ratelimit.Guard.
type QuotaReporter interface {
	CheckQuota(ctx context.Context, identifier string, dailyLimit int) ratelimit.Decision
}

type Handler struct {
	runner     Runner
	policy     ports.QualityPolicy
	router     *router.Router
	quota      QuotaReporter
	dailyLimit int
	function   string
	newRunID   func() string
	logger     *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithPolicy sets the quality policy checked before each run.
func WithPolicy(p ports.QualityPolicy) Option {
	return func(h *Handler) {
		h.policy = p
	}
}

// WithRouter exposes routing health and counters.
func WithRouter(r *router.Router) Option {
	return func(h *Handler) {
		h.router = r
	}
}

// WithQuota enables the usage endpoint.
func WithQuota(q QuotaReporter, dailyLimit int) Option {
	return func(h *Handler) {
		h.quota = q
		h.dailyLimit = dailyLimit
	}
}

// WithFunction names the function checked and billed by the policy.
func WithFunction(name string) Option {
	return func(h *Handler) {
		if name != "" {
			h.function = name
		}
	}
}

// WithRunIDs overrides run ID generation.
func WithRunIDs(fn func() string) Option {
	return func(h *Handler) {
		h.newRunID = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func NewHandler(runner Runner, opts ...Option) *Handler {
	h := &Handler{
		runner:   runner,
		function: pipeline.DefaultUsageFunction,
		newRunID: func() string { return uuid.New().String() },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Mount registers the routes. Everything except /healthz requires auth.
func (h *Handler) Mount(r chi.Router, auth ports.AuthProvider) {
	r.Get("/healthz", h.HandleHealth)

	r.Group(func(r chi.Router) {
		r.Use(server.AuthMiddleware(auth))
		r.Use(server.RateLimitHeadersMiddleware)

		r.Post("/orchestrate", h.HandleOrchestrate)
		r.Get("/v1/usage", h.HandleUsage)
		r.Get("/v1/routing/stats", h.HandleRoutingStats)
	})
}

// HandleOrchestrate runs a campaign and streams its progress. Errors found
// before the stream opens are JSON responses; later ones are error frames.
func (h *Handler) HandleOrchestrate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := callerID(ctx)

	if err := h.checkPolicy(ctx, userID); err != nil {
		server.AddError(ctx, err)
		server.WriteJSONError(w, err)
		return
	}

	var req domain.CampaignRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&req); err != nil {
		server.AddError(ctx, err)
		server.WriteJSONError(w, domain.ErrInvalidRequest("Invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		server.AddError(ctx, err)
		server.WriteJSONError(w, err)
		return
	}

	runID := h.newRunID()
	server.AddLogField(ctx, "run_id", runID)
	server.AddLogField(ctx, "frontdoor", "orchestrate")

	stream.SetHeaders(w)
	w.WriteHeader(http.StatusOK)

	_, err := h.runner.Run(ctx, &req, pipeline.RunMeta{UserID: userID, RunID: runID}, stream.New(w))
	if err != nil {
		// already reported to the client as the terminal frame
		server.AddError(ctx, err)
	}
}

// checkPolicy returns the rejection as an *domain.APIError, or nil to proceed.
func (h *Handler) checkPolicy(ctx context.Context, userID string) error {
	if h.policy == nil {
		return nil
	}

	decision, err := h.policy.CheckRequest(ctx, &ports.PolicyRequest{UserID: userID, Function: h.function})
	if err != nil {
		h.logger.Error("policy check failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return domain.ErrServer("Internal server error").WithCause(err)
	}

	if info := decision.RateLimitInfo; info != nil {
		if rl := server.GetRateLimits(ctx); rl != nil {
			*rl = server.RateLimitInfo{Limit: info.Limit, Remaining: info.Remaining, ResetAt: info.ResetAt}
		}
	}

	if decision.Allow {
		return nil
	}
	switch decision.Denial {
	case domain.ErrorTypeQuotaExceeded:
		return domain.ErrQuotaExceeded("Quota exceeded. Please upgrade your plan.")
	default:
		return domain.ErrRateLimit("Rate limit exceeded. Please try again later.", decision.RetryAfter)
	}
}

// UsageResponse is the caller's daily quota state.
type UsageResponse struct {
	UserID    string `json:"userId"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	ResetAt   int64  `json:"resetAt,omitempty"`
}

// HandleUsage reports today's usage for the caller.
func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	if h.quota == nil {
		server.WriteJSONError(w, &domain.APIError{
			Type:       domain.ErrorTypeInvalidRequest,
			Message:    "Usage reporting is not enabled",
			StatusCode: http.StatusNotFound,
		})
		return
	}

	userID := callerID(r.Context())
	d := h.quota.CheckQuota(r.Context(), userID, h.dailyLimit)
	resp := UsageResponse{
		UserID:    userID,
		Used:      d.Limit - d.Remaining,
		Limit:     d.Limit,
		Remaining: d.Remaining,
	}
	if !d.ResetAt.IsZero() {
		resp.ResetAt = d.ResetAt.Unix()
	}
	server.WriteJSON(w, http.StatusOK, resp)
}

// HandleRoutingStats reports the router's counters.
func (h *Handler) HandleRoutingStats(w http.ResponseWriter, r *http.Request) {
	if h.router == nil {
		server.WriteJSON(w, http.StatusOK, router.Stats{})
		return
	}
	server.WriteJSON(w, http.StatusOK, h.router.Stats())
}

// HealthResponse is the liveness body.
type HealthResponse struct {
	Status       string                `json:"status"`
	LocalHealthy bool                  `json:"localHealthy"`
	Backends     []router.BackendState `json:"backends"`
	Time         string                `json:"time"`
}

// HandleHealth always answers 200 while the process serves. A down local
// bridge is reported but degrades to cloud routing, so it is not an outage.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Backends: []router.BackendState{},
		Time:     time.Now().UTC().Format(time.RFC3339),
	}
	if h.router != nil {
		snap := h.router.Registry().Snapshot()
		resp.LocalHealthy = snap.Healthy()
		if snap.Backends != nil {
			resp.Backends = snap.Backends
		}
		if len(snap.Backends) > 0 && !resp.LocalHealthy {
			resp.Status = "degraded"
		}
	}
	server.WriteJSON(w, http.StatusOK, resp)
}

func callerID(ctx context.Context) string {
	if a := server.GetAuthContext(ctx); a != nil {
		return a.UserID
	}
	return ""
}

// Package ollama bridges the router to a local Ollama server. Every failure is
// reported as ErrUnavailable so callers can fall back to a cloud tier.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
)

// ErrUnavailable is returned when the local server cannot serve a call.
var ErrUnavailable = errors.New("local inference unavailable")

const (
	DefaultBaseURL       = "http://localhost:11434"
	DefaultHealthTimeout = 5 * time.Second
	DefaultInvokeTimeout = 30 * time.Second
	backendName          = "ollama"
)

var _ ports.LocalBackend = (*Client)(nil)

// Client talks to the Ollama HTTP API.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	healthTimeout time.Duration
	invokeTimeout time.Duration
	catalog       []Model
	logger        *slog.Logger

	mu        sync.RWMutex
	healthy   bool
	installed map[string]bool
	metrics   Metrics
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets the server address.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client. Per-call timeouts still apply.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeouts sets the probe and generate timeouts.
func WithTimeouts(health, invoke time.Duration) ClientOption {
	return func(c *Client) {
		if health > 0 {
			c.healthTimeout = health
		}
		if invoke > 0 {
			c.invokeTimeout = invoke
		}
	}
}

// WithModels replaces the model catalog.
func WithModels(models []Model) ClientOption {
	return func(c *Client) {
		c.catalog = models
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the default local server and catalog.
func New(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:       DefaultBaseURL,
		httpClient:    http.DefaultClient,
		healthTimeout: DefaultHealthTimeout,
		invokeTimeout: DefaultInvokeTimeout,
		catalog:       DefaultModels(),
		logger:        slog.Default(),
		installed:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultModels is the catalog used when none is configured.
func DefaultModels() []Model {
	return []Model{
		{Name: "llama3.1:8b", Capabilities: []string{"classification", "sentiment", "simple_reasoning", "formatting", "planning", "validation"}, LatencyMs: 50, ContextWindow: 8192},
		{Name: "codellama:13b", Capabilities: []string{"code_generation", "technical_writing", "api_design"}, LatencyMs: 80, ContextWindow: 16384},
		{Name: "mistral:7b", Capabilities: []string{"creative_writing", "content_generation", "brainstorming"}, LatencyMs: 40, ContextWindow: 4096},
	}
}

// Name returns the backend name used in the registry.
func (c *Client) Name() string {
	return backendName
}

// HealthCheck probes /api/tags and refreshes the installed model set.
func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	tags, err := c.tags(ctx)
	if err != nil {
		c.logger.Debug("ollama health check failed", slog.String("error", err.Error()))
		c.setHealthy(false)
		return false
	}

	installed := make(map[string]bool, len(tags.Models))
	for _, m := range tags.Models {
		installed[m.Name] = true
	}

	c.mu.Lock()
	c.installed = installed
	c.healthy = true
	c.mu.Unlock()
	return true
}

// ListCapableModels returns catalog entries installed as of the last probe.
func (c *Client) ListCapableModels(ctx context.Context) []domain.BackendCapability {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []domain.BackendCapability
	for _, m := range c.catalog {
		if !c.installed[m.Name] {
			continue
		}
		out = append(out, domain.BackendCapability{
			Model:        m.Name,
			Capabilities: append([]string(nil), m.Capabilities...),
			LatencyMs:    m.LatencyMs,
			CostPerCall:  0,
			Owner:        backendName,
		})
	}
	return out
}

// Healthy reports the outcome of the last probe or call.
func (c *Client) Healthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy
}

// Metrics returns a copy of the bridge counters.
func (c *Client) Metrics() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m := c.metrics
	m.Healthy = c.healthy
	return m
}

// Invoke runs a non-streaming generate call for taskType on model.
func (c *Client) Invoke(ctx context.Context, model, prompt, taskType string) (string, error) {
	entry, ok := c.lookup(model)
	if !ok {
		return "", fmt.Errorf("%w: model %s not in catalog", ErrUnavailable, model)
	}

	body, err := json.Marshal(GenerateRequest{
		Model:   model,
		Prompt:  FormatPrompt(taskType, prompt),
		Stream:  false,
		Options: OptionsFor(taskType, entry),
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to marshal request: %v", ErrUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.invokeTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.generate(ctx, body)
	latency := time.Since(start)
	if err != nil {
		c.recordFailure()
		return "", err
	}

	c.recordSuccess(latency)
	c.logger.Debug("local inference complete",
		slog.String("model", model),
		slog.String("task_type", taskType),
		slog.Duration("latency", latency))
	return resp.Response, nil
}

func (c *Client) generate(ctx context.Context, body []byte) (*GenerateResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: generate returned %s: %s", ErrUnavailable, resp.Status, strings.TrimSpace(string(msg)))
	}

	var out GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrUnavailable, err)
	}
	return &out, nil
}

func (c *Client) tags(ctx context.Context) (*TagsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tags returned %s", resp.Status)
	}

	var out TagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return &out, nil
}

func (c *Client) lookup(model string) (Model, bool) {
	for _, m := range c.catalog {
		if m.Name == model {
			return m, true
		}
	}
	return Model{}, false
}

func (c *Client) setHealthy(healthy bool) {
	c.mu.Lock()
	c.healthy = healthy
	c.mu.Unlock()
}

// recordFailure marks the bridge unhealthy until the next successful probe.
func (c *Client) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.Requests++
	c.metrics.Failures++
	c.healthy = false
}

func (c *Client) recordSuccess(latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.Requests++
	ok := c.metrics.Requests - c.metrics.Failures
	ms := float64(latency.Microseconds()) / 1000
	c.metrics.AverageLatencyMs += (ms - c.metrics.AverageLatencyMs) / float64(ok)
}

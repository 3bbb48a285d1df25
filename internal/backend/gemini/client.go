// Package gemini is the cloud inference client. It calls the Generative
// Language REST API for text, search-grounded answers and Imagen images.
// Failures are hard errors and are never retried.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
	"github.com/tjfontaine/campaign-orchestrator/internal/tokens"
)

const (
	DefaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	DefaultImageModel  = "imagen-3.0-generate-001"
	DefaultAspectRatio = "16:9"
)

var _ ports.CloudBackend = (*Client)(nil)

// TierConfig is the model and sampling for one tier.
type TierConfig struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int
}

// DefaultTiers returns the stock tier models.
func DefaultTiers() map[domain.Tier]TierConfig {
	return map[domain.Tier]TierConfig{
		domain.TierFast:    {Model: "gemini-2.0-flash-lite", Temperature: 0.3, MaxOutputTokens: 2048},
		domain.TierCapable: {Model: "gemini-2.0-flash-exp", Temperature: 0.7, MaxOutputTokens: 4096},
	}
}

// Client calls Gemini and Imagen.
type Client struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	tiers       map[domain.Tier]TierConfig
	imageModel  string
	aspectRatio string
	limiter     *rate.Limiter
	counter     *tokens.Counter
	logger      *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API root.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTier overrides the configuration of one tier.
func WithTier(tier domain.Tier, cfg TierConfig) ClientOption {
	return func(c *Client) {
		c.tiers[tier] = cfg
	}
}

// WithImageModel sets the Imagen model and aspect ratio.
func WithImageModel(model, aspectRatio string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.imageModel = model
		}
		if aspectRatio != "" {
			c.aspectRatio = aspectRatio
		}
	}
}

// WithRateLimit paces outbound calls. A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTokenCounter sets the counter used for request size logging.
func WithTokenCounter(tc *tokens.Counter) ClientOption {
	return func(c *Client) {
		c.counter = tc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client authenticated with apiKey.
func New(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:      apiKey,
		baseURL:     DefaultBaseURL,
		httpClient:  http.DefaultClient,
		tiers:       DefaultTiers(),
		imageModel:  DefaultImageModel,
		aspectRatio: DefaultAspectRatio,
		counter:     tokens.NewCounter(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invoke generates text on the tier's model.
func (c *Client) Invoke(ctx context.Context, tier domain.Tier, prompt string, opts ports.InvokeOptions) (string, error) {
	cfg, ok := c.tiers[tier]
	if !ok {
		return "", domain.ErrUpstream(fmt.Sprintf("unknown cloud tier %q", tier))
	}

	parts := []Part{{Text: prompt}}
	for _, img := range opts.Images {
		parts = append(parts, Part{InlineData: &Blob{MIMEType: img.MIMEType, Data: img.Data}})
	}

	temp := cfg.Temperature
	req := &GenerateContentRequest{
		Contents: []Content{{Role: "user", Parts: parts}},
		GenerationConfig: &GenerationConfig{
			Temperature:     &temp,
			MaxOutputTokens: cfg.MaxOutputTokens,
		},
	}
	if opts.JSON {
		req.GenerationConfig.ResponseMIMEType = "application/json"
	}

	resp, err := c.generate(ctx, cfg.Model, req)
	if err != nil {
		return "", err
	}
	return resp.Candidates[0].Text(), nil
}

// InvokeWithSearch answers prompt with Google Search grounding on the capable tier.
func (c *Client) InvokeWithSearch(ctx context.Context, prompt string) (*ports.SearchResult, error) {
	cfg := c.tiers[domain.TierCapable]
	req := &GenerateContentRequest{
		Contents: []Content{{Role: "user", Parts: []Part{{Text: prompt}}}},
		Tools:    []Tool{{GoogleSearch: &GoogleSearch{}}},
	}

	resp, err := c.generate(ctx, cfg.Model, req)
	if err != nil {
		return nil, err
	}

	cand := resp.Candidates[0]
	result := &ports.SearchResult{Text: cand.Text()}
	if cand.GroundingMetadata != nil {
		result.Sources = Sources(cand.GroundingMetadata)
		result.Supports = Supports(cand.GroundingMetadata)
	}
	return result, nil
}

// Sources converts grounding chunks to citations.
func Sources(md *GroundingMetadata) []domain.Citation {
	out := make([]domain.Citation, 0, len(md.GroundingChunks))
	for _, chunk := range md.GroundingChunks {
		cite := domain.Citation{
			Title:   "Search Result",
			Snippet: "Verified market data via Google Search",
		}
		if chunk.Web != nil {
			cite.URL = chunk.Web.URI
			if chunk.Web.Title != "" {
				cite.Title = chunk.Web.Title
			}
			if chunk.Web.Snippet != "" {
				cite.Snippet = chunk.Web.Snippet
			}
		}
		out = append(out, cite)
	}
	return out
}

// Supports converts grounding supports to citations carrying their confidence.
func Supports(md *GroundingMetadata) []domain.Citation {
	out := make([]domain.Citation, 0, len(md.GroundingSupports))
	for _, s := range md.GroundingSupports {
		out = append(out, domain.Citation{
			Title:   "Grounding Support: " + truncate(s.Segment.Text, 50) + "...",
			URL:     s.Segment.Text,
			Snippet: fmt.Sprintf("Confidence: %.1f%%", s.Confidence()*100),
		})
	}
	return out
}

// GenerateImage renders one image with Imagen and returns it as a data URL.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (*ports.ImageResult, error) {
	req := &PredictRequest{
		Instances: []PredictInstance{{Prompt: prompt}},
		Parameters: PredictParameters{
			SampleCount:      1,
			AspectRatio:      c.aspectRatio,
			PersonGeneration: "dont_allow",
		},
	}

	var resp PredictResponse
	if err := c.post(ctx, c.imageModel, "predict", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Predictions) == 0 || resp.Predictions[0].BytesBase64Encoded == "" {
		return nil, domain.ErrUpstream("no image data received from " + c.imageModel)
	}

	pred := resp.Predictions[0]
	mime := pred.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return &ports.ImageResult{
		DataURL:  "data:" + mime + ";base64," + pred.BytesBase64Encoded,
		MIMEType: mime,
		Model:    c.imageModel,
	}, nil
}

func (c *Client) generate(ctx context.Context, model string, req *GenerateContentRequest) (*GenerateContentResponse, error) {
	var resp GenerateContentResponse
	if err := c.post(ctx, model, "generateContent", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 {
		return nil, domain.ErrUpstream(model + " returned no candidates")
	}
	if resp.UsageMetadata != nil {
		c.logger.Debug("cloud call complete",
			slog.String("model", model),
			slog.Int("prompt_tokens", resp.UsageMetadata.PromptTokenCount),
			slog.Int("completion_tokens", resp.UsageMetadata.CandidatesTokenCount))
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, model, method string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.ErrUpstream("cloud call cancelled while paced").WithCause(err)
		}
	}

	body, err := json.Marshal(in)
	if err != nil {
		return domain.ErrServer("failed to marshal request").WithCause(err)
	}

	url := fmt.Sprintf("%s/models/%s:%s", c.baseURL, model, method)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.ErrServer("failed to create request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	if req, ok := in.(*GenerateContentRequest); ok && c.logger.Enabled(ctx, slog.LevelDebug) {
		c.logger.Debug("cloud call",
			slog.String("model", model),
			slog.String("method", method),
			slog.Int("estimated_prompt_tokens", c.promptTokens(model, req)))
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.ErrUpstream(fmt.Sprintf("%s %s request failed: %v", model, method, err)).WithCause(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ErrUpstream("failed to read response").WithCause(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return upstreamError(model, resp.StatusCode, raw)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return domain.ErrUpstream(fmt.Sprintf("failed to decode %s response", model)).WithCause(err)
	}
	return nil
}

func (c *Client) promptTokens(model string, req *GenerateContentRequest) int {
	n := 0
	for _, content := range req.Contents {
		for _, p := range content.Parts {
			n += c.counter.Estimate(model, p.Text)
		}
	}
	return n
}

func upstreamError(model string, status int, raw []byte) error {
	msg := strings.TrimSpace(string(raw))
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error.Message != "" {
		msg = env.Error.Message
	}
	msg = truncate(msg, 300)
	return domain.ErrUpstream(fmt.Sprintf("%s returned HTTP %d: %s", model, status, msg))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

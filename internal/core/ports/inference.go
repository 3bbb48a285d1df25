package ports

import (
	"context"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
)

// LocalBackend is a low-latency local inference bridge.
// Implementations: Ollama.
type LocalBackend interface {
	Name() string
	HealthCheck(ctx context.Context) bool
	ListCapableModels(ctx context.Context) []domain.BackendCapability
	// Invoke fails soft: every failure wraps ollama.ErrUnavailable.
	Invoke(ctx context.Context, model, prompt, taskType string) (string, error)
}

// CloudBackend is a hosted inference client.
// Implementations: Gemini.
type CloudBackend interface {
	Invoke(ctx context.Context, tier domain.Tier, prompt string, opts InvokeOptions) (string, error)
	InvokeWithSearch(ctx context.Context, prompt string) (*SearchResult, error)
	GenerateImage(ctx context.Context, prompt string) (*ImageResult, error)
}

// InvokeOptions tunes a cloud call.
type InvokeOptions struct {
	// Images are sent as inline parts alongside the prompt.
	Images []InlineImage
	// JSON requests an application/json response body.
	JSON bool
}

// InlineImage is a base64 encoded image part.
type InlineImage struct {
	MIMEType string
	Data     string
}

// ImageResult is a generated image.
type ImageResult struct {
	DataURL  string
	MIMEType string
	Model    string
}

// SearchResult is a grounded answer with its sources.
type SearchResult struct {
	Text string
	// Sources are the web pages the answer was grounded on.
	Sources []domain.Citation
	// Supports are answer segments with the model's grounding confidence.
	Supports []domain.Citation
}

package ollama

import "time"

// Options are the sampling parameters sent with a generate call.
type Options struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Options *Options `json:"options,omitempty"`
}

// GenerateResponse is the non-streaming reply from /api/generate.
type GenerateResponse struct {
	Model         string    `json:"model"`
	CreatedAt     time.Time `json:"created_at"`
	Response      string    `json:"response"`
	Done          bool      `json:"done"`
	TotalDuration int64     `json:"total_duration,omitempty"`
	EvalCount     int       `json:"eval_count,omitempty"`
}

// ModelInfo is one installed model reported by /api/tags.
type ModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
}

// TagsResponse is the reply from GET /api/tags.
type TagsResponse struct {
	Models []ModelInfo `json:"models"`
}

// Model is a catalog entry the bridge can serve when installed.
type Model struct {
	Name          string
	Capabilities  []string
	LatencyMs     int
	ContextWindow int
}

// Metrics are the bridge's running counters.
type Metrics struct {
	Requests         int64   `json:"requests"`
	Failures         int64   `json:"failures"`
	AverageLatencyMs float64 `json:"averageLatencyMs"`
	Healthy          bool    `json:"healthy"`
}

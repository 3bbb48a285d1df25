// Package tokens estimates token counts for prompts sent to local and cloud
// models, so usage records and agent logs can carry a size next to the cost.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// CharsPerToken is the heuristic used when no tokenizer is available.
const CharsPerToken = 4.0

// Counter counts tokens with tiktoken encodings. Neither Gemini nor the local
// Llama family publish a tiktoken encoding, so counts are estimates.
type Counter struct {
	mu     sync.RWMutex
	codecs map[tokenizer.Encoding]tokenizer.Codec
}

// NewCounter creates a counter with an empty codec cache.
func NewCounter() *Counter {
	return &Counter{codecs: make(map[tokenizer.Encoding]tokenizer.Codec)}
}

// EncodingFor picks the closest encoding for model.
//
// - O200kBase: Gemini and Imagen, the newest vocabularies
// - Cl100kBase: Llama, Mistral and CodeLlama served locally
func EncodingFor(model string) tokenizer.Encoding {
	model = strings.ToLower(model)
	switch {
	case strings.HasPrefix(model, "llama"),
		strings.HasPrefix(model, "codellama"),
		strings.HasPrefix(model, "mistral"):
		return tokenizer.Cl100kBase
	default:
		return tokenizer.O200kBase
	}
}

func (c *Counter) codec(enc tokenizer.Encoding) (tokenizer.Codec, error) {
	c.mu.RLock()
	if cached, ok := c.codecs[enc]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	codec, err := tokenizer.Get(enc)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}

	c.mu.Lock()
	c.codecs[enc] = codec
	c.mu.Unlock()
	return codec, nil
}

// Count encodes text with the encoding for model.
func (c *Counter) Count(model, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	codec, err := c.codec(EncodingFor(model))
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("failed to encode text: %w", err)
	}
	return len(ids), nil
}

// Estimate is Count with a character heuristic on failure.
func (c *Counter) Estimate(model, text string) int {
	n, err := c.Count(model, text)
	if err != nil {
		return Heuristic(text)
	}
	return n
}

// Heuristic approximates a token count from the text length.
func Heuristic(text string) int {
	if text == "" {
		return 0
	}
	n := int(float64(len(text)) / CharsPerToken)
	if n == 0 {
		n = 1
	}
	return n
}

// Usage is the token footprint of one call.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// Total returns prompt and completion tokens combined.
func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Add accumulates o into u.
func (u *Usage) Add(o Usage) {
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
}

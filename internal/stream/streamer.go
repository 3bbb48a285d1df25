// Package stream writes pipeline progress to the caller as server-sent events.
//
// Every frame is a single "data: <json>\n\n" record. Thought frames carry the
// thought's identity key and a revision number so clients can upsert them.
// A stream ends with exactly one terminal frame, either a result or an error.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
)

// ErrClosed is returned for frames emitted after the terminal frame.
var ErrClosed = errors.New("stream closed")

// Frame is one event on the wire.
type Frame struct {
	ID        string                 `json:"id,omitempty"`
	Seq       int                    `json:"seq,omitempty"`
	Thought   *domain.AgentThought   `json:"thought,omitempty"`
	Result    *domain.CampaignResult `json:"result,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Completed *bool                  `json:"completed,omitempty"`
}

// Terminal reports whether the frame ends the stream.
func (f Frame) Terminal() bool {
	return f.Completed != nil
}

// Streamer serializes frames onto a writer. It is safe for concurrent use.
type Streamer struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	seq     int
	closed  bool
	now     func() time.Time
}

// Option configures a Streamer.
type Option func(*Streamer)

// WithClock sets the time source used to stamp thoughts without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Streamer) {
		s.now = now
	}
}

// New creates a streamer over w. When w is an http.Flusher every frame is
// flushed as soon as it is written.
func New(w io.Writer, opts ...Option) *Streamer {
	s := &Streamer{w: w, now: time.Now}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetHeaders prepares an HTTP response for event streaming.
func SetHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// EmitThought writes a progress frame.
func (s *Streamer) EmitThought(t domain.AgentThought) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if t.Timestamp == 0 {
		t.Timestamp = s.now().UnixMilli()
	}
	s.seq++
	return s.write(Frame{ID: t.Key(), Seq: s.seq, Thought: &t})
}

// EmitResult writes the successful terminal frame.
func (s *Streamer) EmitResult(result *domain.CampaignResult) error {
	completed := true
	return s.terminate(Frame{Result: result, Completed: &completed})
}

// EmitError writes the failed terminal frame.
func (s *Streamer) EmitError(message string) error {
	completed := false
	return s.terminate(Frame{Error: message, Completed: &completed})
}

// Closed reports whether a terminal frame was written.
func (s *Streamer) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Streamer) terminate(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.closed = true
	return s.write(f)
}

// write must be called with mu held.
func (s *Streamer) write(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

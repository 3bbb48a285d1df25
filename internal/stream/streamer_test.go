package stream

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
)

func thought(agent domain.AgentRole, action string, status domain.ThoughtStatus) domain.AgentThought {
	return domain.AgentThought{Agent: agent, Action: action, Status: status, Timestamp: 1}
}

func TestStreamer_WireFormat(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)

	if err := s.EmitThought(thought(domain.AgentPlanner, "Analyzing", domain.ThoughtThinking)); err != nil {
		t.Fatalf("EmitThought() error = %v", err)
	}
	if err := s.EmitResult(&domain.CampaignResult{ResearchSummary: "ok"}); err != nil {
		t.Fatalf("EmitResult() error = %v", err)
	}

	records := strings.Split(strings.TrimSuffix(buf.String(), "\n\n"), "\n\n")
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2: %q", len(records), buf.String())
	}
	for _, r := range records {
		if !strings.HasPrefix(r, "data: ") {
			t.Errorf("record %q missing data prefix", r)
		}
	}
	if !strings.Contains(records[0], `"id":"planner:Analyzing"`) || !strings.Contains(records[0], `"seq":1`) {
		t.Errorf("thought frame = %s", records[0])
	}
	if !strings.Contains(records[1], `"completed":true`) || !strings.Contains(records[1], `"researchSummary":"ok"`) {
		t.Errorf("result frame = %s", records[1])
	}
}

func TestStreamer_ErrorFrame(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)

	if err := s.EmitError("Compliance check failed: x"); err != nil {
		t.Fatalf("EmitError() error = %v", err)
	}
	got := buf.String()
	if !strings.Contains(got, `"error":"Compliance check failed: x"`) || !strings.Contains(got, `"completed":false`) {
		t.Errorf("error frame = %s", got)
	}
}

func TestStreamer_ExactlyOneTerminalFrame(t *testing.T) {
	tests := []struct {
		name  string
		first func(*Streamer) error
	}{
		{"result first", func(s *Streamer) error { return s.EmitResult(&domain.CampaignResult{}) }},
		{"error first", func(s *Streamer) error { return s.EmitError("boom") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			s := New(&buf)
			if err := tt.first(s); err != nil {
				t.Fatalf("first terminal error = %v", err)
			}

			if err := s.EmitResult(&domain.CampaignResult{}); !errors.Is(err, ErrClosed) {
				t.Errorf("EmitResult after close = %v, want ErrClosed", err)
			}
			if err := s.EmitError("again"); !errors.Is(err, ErrClosed) {
				t.Errorf("EmitError after close = %v, want ErrClosed", err)
			}
			if err := s.EmitThought(thought(domain.AgentAuditor, "late", domain.ThoughtThinking)); !errors.Is(err, ErrClosed) {
				t.Errorf("EmitThought after close = %v, want ErrClosed", err)
			}

			frames, err := Parse(&buf)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(frames) != 1 || !frames[0].Terminal() {
				t.Errorf("frames = %+v, want one terminal frame", frames)
			}
			if !s.Closed() {
				t.Error("Closed() = false")
			}
		})
	}
}

func TestStreamer_ConcurrentEmitters(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.EmitThought(thought(domain.AgentResearcher, "Searching", domain.ThoughtThinking))
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.EmitError("boom")
		}()
	}
	wg.Wait()

	frames, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	terminal := 0
	for _, f := range frames {
		if f.Terminal() {
			terminal++
		}
	}
	if terminal != 1 {
		t.Errorf("terminal frames = %d, want 1", terminal)
	}
	if !frames[len(frames)-1].Terminal() {
		t.Error("terminal frame is not last")
	}
}

func TestStreamer_StampsMissingTimestamp(t *testing.T) {
	var buf bytes.Buffer
	at := time.UnixMilli(1700000000000)
	s := New(&buf, WithClock(func() time.Time { return at }))

	_ = s.EmitThought(domain.AgentThought{Agent: domain.AgentCreative, Action: "Writing", Status: domain.ThoughtThinking})

	frames, _ := Parse(&buf)
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
	if frames[0].Thought.Timestamp != at.UnixMilli() {
		t.Errorf("Timestamp = %d, want %d", frames[0].Thought.Timestamp, at.UnixMilli())
	}
}

func TestStreamer_FlushesHTTPResponses(t *testing.T) {
	rec := httptest.NewRecorder()
	SetHeaders(rec)
	s := New(rec)

	_ = s.EmitThought(thought(domain.AgentPlanner, "Analyzing", domain.ThoughtThinking))

	if !rec.Flushed {
		t.Error("response was not flushed")
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}
}

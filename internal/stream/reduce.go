package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
)

// View is the client side picture of a stream: one entry per thought
// identity in first-seen order, plus the terminal outcome.
type View struct {
	Thoughts []domain.AgentThought
	Result   *domain.CampaignResult
	Error    string
	Done     bool
}

// Reduce folds frames into a View. A thought replaces any earlier thought
// with the same key; frames after the terminal frame are ignored.
func Reduce(frames []Frame) View {
	var v View
	index := make(map[string]int)
	lastSeq := make(map[string]int)

	for _, f := range frames {
		if v.Done {
			break
		}
		if f.Terminal() {
			v.Done = true
			v.Result = f.Result
			v.Error = f.Error
			continue
		}
		if f.Thought == nil {
			continue
		}

		key := f.ID
		if key == "" {
			key = f.Thought.Key()
		}
		if i, ok := index[key]; ok {
			if f.Seq < lastSeq[key] {
				continue
			}
			v.Thoughts[i] = *f.Thought
		} else {
			index[key] = len(v.Thoughts)
			v.Thoughts = append(v.Thoughts, *f.Thought)
		}
		lastSeq[key] = f.Seq
	}
	return v
}

// Parse reads "data:" records from an event stream body.
func Parse(r io.Reader) ([]Frame, error) {
	var frames []Frame
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var f Frame
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f); err != nil {
			return frames, fmt.Errorf("decode frame: %w", err)
		}
		frames = append(frames, f)
	}
	if err := scanner.Err(); err != nil {
		return frames, fmt.Errorf("read stream: %w", err)
	}
	return frames, nil
}

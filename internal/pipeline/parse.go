package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
)

// decode parses a model reply as a JSON object of type T. Markdown code fences
// and prose around the object are tolerated.
func decode[T any](what, raw string) (T, error) {
	var v T
	body := extractJSON(raw)
	if body == "" {
		return v, parseFailure(what, fmt.Errorf("no JSON object in reply"))
	}
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return v, parseFailure(what, err)
	}
	return v, nil
}

func parseFailure(what string, err error) error {
	return domain.ErrUpstream(fmt.Sprintf("failed to parse %s response", what)).
		WithCode(domain.ErrorCodeParseFailure).
		WithCause(err)
}

// extractJSON returns the outermost {...} span of raw after removing code
// fences, or "" when there is none.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			// drop the language tag line
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

// splitDataURL returns the MIME type and base64 payload of an image given as
// a data URL or as bare base64.
func splitDataURL(s string) (mimeType, data string) {
	const fallback = "image/jpeg"
	if !strings.HasPrefix(s, "data:") {
		return fallback, s
	}
	header, payload, found := strings.Cut(s, ",")
	if !found {
		return fallback, s
	}
	mimeType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = fallback
	}
	return mimeType, payload
}

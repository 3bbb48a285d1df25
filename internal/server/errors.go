package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
)

// ErrorBody is the JSON body of every pre-stream error response.
type ErrorBody struct {
	Error      string           `json:"error"`
	Type       domain.ErrorType `json:"type,omitempty"`
	Code       domain.ErrorCode `json:"code,omitempty"`
	Param      string           `json:"param,omitempty"`
	RetryAfter int              `json:"retryAfter,omitempty"`
}

// WriteJSONError writes err as a JSON error response. An *domain.APIError sets
// the status and, for rate limits, the Retry-After header; anything else is a
// 500 with a generic message.
func WriteJSONError(w http.ResponseWriter, err error) {
	apiErr, ok := domain.AsAPIError(err)
	if !ok {
		apiErr = domain.ErrServer("Internal server error")
	}

	if apiErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(apiErr.RetryAfter))
	}
	WriteJSON(w, apiErr.HTTPStatusCode(), ErrorBody{
		Error:      apiErr.Message,
		Type:       apiErr.Type,
		Code:       apiErr.Code,
		Param:      apiErr.Param,
		RetryAfter: apiErr.RetryAfter,
	})
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

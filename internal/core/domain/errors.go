// Package domain provides the canonical campaign types and error taxonomy for the orchestrator.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a malformed or invalid request body.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeAuthentication indicates missing or invalid credentials.
	ErrorTypeAuthentication ErrorType = "authentication"

	// ErrorTypeRateLimit indicates the per-user request window is full.
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// ErrorTypeQuotaExceeded indicates the daily quota was exhausted.
	ErrorTypeQuotaExceeded ErrorType = "quota_exceeded"

	// ErrorTypeBackendUnavailable indicates the local backend could not serve a call.
	// It is soft and never surfaces to callers.
	ErrorTypeBackendUnavailable ErrorType = "backend_unavailable"

	// ErrorTypeUpstream indicates the cloud model failed.
	ErrorTypeUpstream ErrorType = "upstream"

	// ErrorTypeCompliance indicates the audit rejected the generated campaign.
	ErrorTypeCompliance ErrorType = "compliance_failure"

	// ErrorTypeVisualGeneration indicates hero image generation failed.
	ErrorTypeVisualGeneration ErrorType = "visual_generation"

	// ErrorTypeServer indicates an internal server error.
	ErrorTypeServer ErrorType = "server"
)

// ErrorCode provides additional specificity beyond the error type.
type ErrorCode string

const (
	ErrorCodeRateLimitExceeded ErrorCode = "rate_limit_exceeded"
	ErrorCodeQuotaExceeded     ErrorCode = "daily_quota_exceeded"
	ErrorCodeMissingToken      ErrorCode = "missing_token"
	ErrorCodeInvalidToken      ErrorCode = "invalid_token"
	ErrorCodeMissingPrompt     ErrorCode = "missing_prompt"
	ErrorCodeParseFailure      ErrorCode = "parse_failure"
)

// APIError is the canonical error carried through the orchestrator and translated
// to HTTP responses or terminal stream frames.
type APIError struct {
	// Type is the category of error
	Type ErrorType `json:"type"`

	// Code is an optional specific error code
	Code ErrorCode `json:"code,omitempty"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Param is the request field that caused the error (if applicable)
	Param string `json:"param,omitempty"`

	// RetryAfter is the number of seconds a caller should wait (rate limit only)
	RetryAfter int `json:"retryAfter,omitempty"`

	// StatusCode is the suggested HTTP status code
	StatusCode int `json:"-"`

	cause error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *APIError) Unwrap() error {
	return e.cause
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeQuotaExceeded:
		return http.StatusForbidden
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeBackendUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeUpstream:
		return http.StatusBadGateway
	case ErrorTypeCompliance:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{
		Type:    errType,
		Message: message,
	}
}

// WithCode adds an error code to the error.
func (e *APIError) WithCode(code ErrorCode) *APIError {
	e.Code = code
	return e
}

// WithParam adds a parameter name to the error.
func (e *APIError) WithParam(param string) *APIError {
	e.Param = param
	return e
}

// WithStatusCode sets a specific HTTP status code.
func (e *APIError) WithStatusCode(code int) *APIError {
	e.StatusCode = code
	return e
}

// WithCause records the underlying error for errors.Is/As.
func (e *APIError) WithCause(err error) *APIError {
	e.cause = err
	return e
}

// Convenience constructors for common errors

// ErrInvalidRequest creates a validation error.
func ErrInvalidRequest(message string) *APIError {
	return NewAPIError(ErrorTypeInvalidRequest, message)
}

// ErrAuthentication creates an authentication error.
func ErrAuthentication(message string) *APIError {
	return NewAPIError(ErrorTypeAuthentication, message)
}

// ErrRateLimit creates a rate limit error carrying the retry interval in seconds.
func ErrRateLimit(message string, retryAfter int) *APIError {
	e := NewAPIError(ErrorTypeRateLimit, message).
		WithCode(ErrorCodeRateLimitExceeded)
	e.RetryAfter = retryAfter
	return e
}

// ErrQuotaExceeded creates a daily quota error.
func ErrQuotaExceeded(message string) *APIError {
	return NewAPIError(ErrorTypeQuotaExceeded, message).
		WithCode(ErrorCodeQuotaExceeded)
}

// ErrBackendUnavailable creates a soft local-backend error.
func ErrBackendUnavailable(message string) *APIError {
	return NewAPIError(ErrorTypeBackendUnavailable, message)
}

// ErrUpstream creates a hard cloud model error.
func ErrUpstream(message string) *APIError {
	return NewAPIError(ErrorTypeUpstream, message)
}

// ErrCompliance creates the audit rejection error. The message format is
// part of the stream contract.
func ErrCompliance(issues string) *APIError {
	return NewAPIError(ErrorTypeCompliance, "Compliance check failed: "+issues)
}

// ErrVisualGeneration creates a non-fatal visual generation error.
func ErrVisualGeneration(message string) *APIError {
	return NewAPIError(ErrorTypeVisualGeneration, message)
}

// ErrServer creates a server error.
func ErrServer(message string) *APIError {
	return NewAPIError(ErrorTypeServer, message)
}

// AsAPIError extracts an *APIError from err, if one is present in the chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsType reports whether err carries an *APIError of the given type.
func IsType(err error, t ErrorType) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Type == t
}

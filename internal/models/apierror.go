package models

import (
	"fmt"
	"net/http"
)

// APIError is the uniform error carried from any layer to the HTTP error
// handler, rendered as {"error":{"message","code",...}}.
type APIError struct {
	Status  int
	Code    string
	Message string
	Extra   map[string]any
}

func (e *APIError) Error() string {
	return e.Message
}

// Envelope renders the wire shape of the error body.
func (e *APIError) Envelope() map[string]any {
	inner := map[string]any{
		"message": e.Message,
		"code":    e.Code,
	}
	for k, v := range e.Extra {
		inner[k] = v
	}
	return map[string]any{"error": inner}
}

// BadRequest reports missing or invalid required input. Raised before any
// upstream call is attempted.
func BadRequest(message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: "bad_request", Message: message}
}

// Unauthorized reports an auth gate mismatch.
func Unauthorized() *APIError {
	return &APIError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "Unauthorized"}
}

// RateLimited reports an exhausted rate bucket.
func RateLimited() *APIError {
	return &APIError{Status: http.StatusTooManyRequests, Code: "rate_limited", Message: "Rate limit exceeded"}
}

// UnsupportedProvider reports that no adapter prefix matched.
func UnsupportedProvider(provider string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "unsupported_provider",
		Message: fmt.Sprintf("Unsupported provider: %s", provider),
	}
}

// UpstreamError reports a transport-level failure (connection, DNS,
// timeout) talking to a named upstream. Vendor HTTP error statuses are
// never translated here; they pass through verbatim.
func UpstreamError(name string, err error) *APIError {
	return &APIError{
		Status:  http.StatusBadGateway,
		Code:    name + "_upstream",
		Message: fmt.Sprintf("Upstream error: %v", err),
	}
}

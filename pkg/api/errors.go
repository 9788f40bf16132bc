package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error defines the standard error shape for the API: {"error": ..., "details": ...}
type Error struct {
	// HTTP Status Code (e.g., 400, 429, 500)
	Status int
	// Safe message for the client
	Message string
	// Optional structured details for the client
	Details interface{}
	// Original error for internal logging
	Log error
}

func (e *Error) Error() string {
	if e.Log != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Status, e.Message, e.Log)
	}
	return fmt.Sprintf("[%d] %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Log
}

func (e *Error) MarshalJSON() ([]byte, error) {
	body := struct {
		Error   string      `json:"error"`
		Details interface{} `json:"details,omitempty"`
	}{
		Error:   e.Message,
		Details: e.Details,
	}
	return json.Marshal(body)
}

const (
	MsgModelRequired  = "Model parameter is required"
	MsgInternal       = "Internal server error"
	MsgUpstreamFailed = "Upstream request failed"
)

// BadRequest creates a standard error for a bad request
func BadRequest(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: msg}
}

func ModelRequired() *Error {
	return BadRequest(MsgModelRequired)
}

func UnsupportedProvider(name string) *Error {
	return BadRequest(fmt.Sprintf("Unsupported provider: %s", name))
}

// ValidationError carries per-field messages in details
func ValidationError(fields map[string]string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: "Invalid request", Details: fields}
}

// ConfigurationError reports a provider whose credential is not configured
func ConfigurationError(provider, envVar string) *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Message: fmt.Sprintf("%s API key not configured (set %s)", provider, envVar),
	}
}

// InternalError creates the catch-all 500 with the cause as details
func InternalError(err error) *Error {
	e := &Error{Status: http.StatusInternalServerError, Message: MsgInternal, Log: err}
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

// UpstreamFailure is a transport-level failure talking to a provider
func UpstreamFailure(provider string, err error) *Error {
	return &Error{
		Status:  http.StatusBadGateway,
		Message: MsgUpstreamFailed,
		Details: fmt.Sprintf("%s: %v", provider, err),
		Log:     err,
	}
}

func NotFound() *Error {
	return &Error{Status: http.StatusNotFound, Message: "Not Found"}
}

func RateLimited() *Error {
	return &Error{Status: http.StatusTooManyRequests, Message: "Rate limit exceeded"}
}

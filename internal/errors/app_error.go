// Package errors provides the bridge's error taxonomy and the translation of
// heterogeneous failure shapes into OpenAI-style error responses.
package errors

import (
	"encoding/json"
	"fmt"
)

// OpenAI error type strings.
const (
	TypeInvalidRequest = "invalid_request_error"
	TypeAuthentication = "authentication_error"
	TypePermission     = "permission_error"
	TypeRateLimit      = "rate_limit_error"
	TypeAPI            = "api_error"
)

// Error codes surfaced to clients.
const (
	CodeBadRequest        = "bad_request"
	CodeInvalidAPIKey     = "invalid_api_key"
	CodeInsufficientPerms = "insufficient_permissions"
	CodeModelNotFound     = "model_not_found"
	CodeRateLimitExceeded = "rate_limit_exceeded"
	CodeServerError       = "server_error"
	CodeInternalError     = "internal_error"
	CodeInvalidMessages   = "invalid_messages"
	CodeInvalidModel      = "invalid_model"
)

// AppError represents a structured application error.
type AppError struct {
	// HTTPStatusCode is the HTTP status code to return.
	HTTPStatusCode int `json:"-"`
	// Code is an internal error code string.
	Code string `json:"code"`
	// Message is the user-facing error message.
	Message string `json:"message"`
	// Err is the underlying error (not marshaled to JSON).
	Err error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// ToJSON returns the JSON byte representation of the error.
func (e *AppError) ToJSON() []byte {
	b, _ := json.Marshal(e)
	return b
}

// New creates a new AppError.
func New(statusCode int, code, message string, err error) *AppError {
	return &AppError{
		HTTPStatusCode: statusCode,
		Code:           code,
		Message:        message,
		Err:            err,
	}
}

// NewValidation creates a 400 AppError for a request-schema failure. Schema
// failures are always reported as 400 regardless of internal error codes.
func NewValidation(code, message string) *AppError {
	return New(400, code, message, nil)
}

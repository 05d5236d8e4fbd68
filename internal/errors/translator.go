package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/modelbridge/gembridge/internal/engine"
)

// Response is the OpenAI-style error envelope written to clients.
type Response struct {
	Error Detail `json:"error"`
}

// Detail carries the message, type and code of one error.
type Detail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// Translate normalizes any failure into an HTTP status and an OpenAI-style
// error body. It understands AppError (validation and typed bridge errors)
// and engine.UpstreamError (provider failures with a raw body); everything
// else maps to 500 api_error/internal_error.
func Translate(err error) (int, Response) {
	status := http.StatusInternalServerError
	message := ""

	var appErr *AppError
	var upstream *engine.UpstreamError
	switch {
	case stderrors.As(err, &appErr):
		// Validation failures are always 400 regardless of internal code.
		status = appErr.HTTPStatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		message = appErr.Message
		errType, code := classify(status)
		if appErr.Code != "" {
			code = appErr.Code
		}
		return status, Response{Error: Detail{Message: message, Type: errType, Code: code}}
	case stderrors.As(err, &upstream):
		status = upstream.StatusCode
		message = upstreamMessage(upstream)
	default:
		// Errors from foreign layers that expose a status keep it; everything
		// else defaults to 500.
		if se, ok := err.(interface{ StatusCode() int }); ok && se.StatusCode() > 0 {
			status = se.StatusCode()
		}
		if err != nil {
			message = err.Error()
		}
	}

	if message == "" {
		message = fmt.Sprintf("HTTP %d error", status)
	}
	errType, code := classify(status)
	return status, Response{Error: Detail{Message: message, Type: errType, Code: code}}
}

// classify maps an HTTP status onto the OpenAI (type, code) pair.
func classify(status int) (string, string) {
	switch {
	case status == http.StatusBadRequest:
		return TypeInvalidRequest, CodeBadRequest
	case status == http.StatusUnauthorized:
		return TypeAuthentication, CodeInvalidAPIKey
	case status == http.StatusForbidden:
		return TypePermission, CodeInsufficientPerms
	case status == http.StatusNotFound:
		return TypeInvalidRequest, CodeModelNotFound
	case status == http.StatusTooManyRequests:
		return TypeRateLimit, CodeRateLimitExceeded
	case status >= http.StatusInternalServerError:
		return TypeAPI, CodeServerError
	default:
		return TypeAPI, CodeInternalError
	}
}

// upstreamMessage recovers the most specific message a provider error body
// offers: error.message in the JSON body, then the transport status text,
// then a generic "HTTP <status> error" string.
func upstreamMessage(upstream *engine.UpstreamError) string {
	if len(upstream.Body) > 0 && gjson.ValidBytes(upstream.Body) {
		if v := gjson.GetBytes(upstream.Body, "error.message"); v.Exists() && v.String() != "" {
			return v.String()
		}
		if v := gjson.GetBytes(upstream.Body, "message"); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	if s := strings.TrimSpace(upstream.Status); s != "" {
		return s
	}
	return fmt.Sprintf("HTTP %d error", upstream.StatusCode)
}

// Package engine defines the boundary to the model-invocation engine.
// It holds the content representation submitted per conversation turn, the
// semantic events the engine streams back, and a client interface the rest of
// the bridge depends on. The engine itself (session bootstrap, auth, actual
// generation) lives behind this contract.
package engine

import (
	"context"
	"fmt"
)

// Role values accepted by the engine content representation.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Part is one element of a turn's ordered part list. Exactly one of the
// pointer fields is set.
type Part struct {
	// Text carries plain text content.
	Text string `json:"text,omitempty"`

	// InlineData carries base64-encoded binary content, typically an image.
	InlineData *InlineData `json:"inlineData,omitempty"`

	// FunctionCall carries a model-requested tool invocation.
	FunctionCall *FunctionCall `json:"functionCall,omitempty"`

	// FunctionResponse carries a caller-supplied tool result.
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// InlineData is an inline binary payload with its MIME type.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// FunctionCall names a tool and carries its structured arguments.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse carries the raw result of a tool invocation back to the
// model. Response is passed through opaquely; the bridge never re-interprets
// the caller's tool output.
type FunctionResponse struct {
	Name     string `json:"name"`
	Response string `json:"response"`
}

// Content is one conversation turn in engine representation.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Finish reasons reported by the engine on the terminal event.
const (
	FinishStop       = "STOP"
	FinishMaxTokens  = "MAX_TOKENS"
	FinishSafety     = "SAFETY"
	FinishRecitation = "RECITATION"
	FinishOther      = "OTHER"
)

// Usage holds token accounting reported by the engine. Zero values mean the
// engine never reported usage for the turn.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// EventType discriminates StreamEvent variants.
type EventType string

const (
	// EventContent carries an incremental text fragment.
	EventContent EventType = "content"
	// EventThought carries a reasoning fragment.
	EventThought EventType = "thought"
	// EventToolCall carries a model-requested tool invocation.
	EventToolCall EventType = "tool_call"
	// EventFinished is terminal; it carries the finish reason and, when the
	// engine reports it, usage counts. It must be the last meaningful event.
	EventFinished EventType = "finished"
)

// Thought is a reasoning fragment with its subject line and body.
type Thought struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

// ToolCall is a model-requested tool invocation surfaced mid-stream.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// StreamEvent is one emission from the engine for an in-flight turn. The
// field matching Type is set; the rest are zero. Err reports a transport
// failure mid-stream; no further events follow it.
type StreamEvent struct {
	Type EventType

	// Err is set when the engine stream failed. The channel is closed right
	// after an event carrying Err.
	Err error

	// Text is set for EventContent.
	Text string

	// Thought is set for EventThought.
	Thought *Thought

	// ToolCall is set for EventToolCall.
	ToolCall *ToolCall

	// FinishReason and Usage are set for EventFinished. Usage may be nil when
	// the engine does not report token counts.
	FinishReason string
	Usage        *Usage
}

// GenerationParams are pass-through sampling controls for one turn.
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Stop        []string
}

// SendOptions configures one SendMessage call.
type SendOptions struct {
	// Model is the engine model identifier for this turn.
	Model string

	// SystemInstruction is the effective system prompt, empty when the
	// conversation carries none.
	SystemInstruction string

	// Params are optional sampling controls.
	Params GenerationParams
}

// Client is one engine conversation handle. SetHistory replaces the handle's
// conversation wholesale; SendMessage submits the next turn and returns the
// ordered event stream for it. The returned channel is closed after the
// terminal event, or early when ctx is cancelled.
type Client interface {
	SetHistory(history []Content)
	SendMessage(ctx context.Context, opts SendOptions, message Content) (<-chan StreamEvent, error)
	Close() error
}

// SessionOptions configure creation of a new engine conversation handle.
type SessionOptions struct {
	Model            string
	WorkingDirectory string
}

// Factory creates engine conversation handles.
type Factory func(opts SessionOptions) (Client, error)

// UpstreamError is a failure reported by the engine transport. It preserves
// the upstream HTTP status and raw body so the error translator can recover
// the provider's message.
type UpstreamError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *UpstreamError) Error() string {
	if len(e.Body) > 0 {
		return fmt.Sprintf("engine returned status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("engine returned status %d", e.StatusCode)
}

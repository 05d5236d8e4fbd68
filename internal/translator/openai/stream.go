package openai

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/modelbridge/gembridge/internal/engine"
)

// StreamChunk is one adapted emission: either a completion chunk or a
// terminal error. Err is the last value before the channel closes.
type StreamChunk struct {
	Chunk *ChatCompletionChunk
	Err   error
}

// StreamAdapter folds one engine event stream into OpenAI completion chunks.
// It is single-use and single-pass: chunk identity (id, created) is fixed at
// construction and shared by every chunk of the stream, including the
// terminal one.
type StreamAdapter struct {
	id               string
	created          int64
	model            string
	includeReasoning bool

	roleSent     bool
	nextToolIdx  int
	finishReason string
	usage        *engine.Usage
}

// NewStreamAdapter creates an adapter for one turn of the given model.
func NewStreamAdapter(model string, includeReasoning bool) *StreamAdapter {
	return &StreamAdapter{
		id:               "chatcmpl-" + uuid.NewString(),
		created:          time.Now().Unix(),
		model:            model,
		includeReasoning: includeReasoning,
	}
}

// ID returns the stream's stable completion id.
func (a *StreamAdapter) ID() string { return a.id }

// Created returns the stream's stable creation timestamp.
func (a *StreamAdapter) Created() int64 { return a.created }

// Adapt consumes events lazily and produces chunks. After the source closes
// it emits exactly one terminal chunk carrying the finish reason and any
// captured usage, then closes the output. The output closes early when ctx
// is cancelled or the source reports an error.
func (a *StreamAdapter) Adapt(ctx context.Context, events <-chan engine.StreamEvent) <-chan StreamChunk {
	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					a.emitTerminal(ctx, out)
					return
				}
				if ev.Err != nil {
					select {
					case out <- StreamChunk{Err: ev.Err}:
					case <-ctx.Done():
					}
					return
				}
				if chunk, emit := a.adaptEvent(ev); emit {
					select {
					case out <- StreamChunk{Chunk: chunk}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out
}

// adaptEvent maps one engine event onto at most one chunk. Events whose delta
// would be empty are dropped, except that the very first event always claims
// the assistant role marker so it is never lost, even when its own content is
// suppressed.
func (a *StreamAdapter) adaptEvent(ev engine.StreamEvent) (*ChatCompletionChunk, bool) {
	delta := Delta{}
	switch ev.Type {
	case engine.EventContent:
		delta.Content = ev.Text
	case engine.EventThought:
		if a.includeReasoning && ev.Thought != nil {
			delta.ReasoningContent = formatThought(ev.Thought)
		}
	case engine.EventToolCall:
		if ev.ToolCall != nil {
			args, err := json.Marshal(ev.ToolCall.Args)
			if err != nil {
				args = []byte("{}")
			}
			delta.ToolCalls = []ToolCallDelta{{
				Index: a.nextToolIdx,
				ID:    ev.ToolCall.ID,
				Type:  "function",
				Function: FunctionCall{
					Name:      ev.ToolCall.Name,
					Arguments: string(args),
				},
			}}
			a.nextToolIdx++
		}
	case engine.EventFinished:
		// Terminal metadata only; the finished event itself emits no chunk.
		a.finishReason = ev.FinishReason
		a.usage = ev.Usage
		return nil, false
	default:
		return nil, false
	}

	if !a.roleSent {
		a.roleSent = true
		delta.Role = RoleAssistant
	} else if delta.Empty() {
		return nil, false
	}
	return a.chunk(delta, nil), true
}

// emitTerminal sends the final chunk: empty delta, mapped finish reason and
// captured usage.
func (a *StreamAdapter) emitTerminal(ctx context.Context, out chan<- StreamChunk) {
	reason := mapFinishReason(a.finishReason)
	chunk := a.chunk(Delta{}, &reason)
	if a.usage != nil {
		chunk.Usage = &Usage{
			PromptTokens:     a.usage.PromptTokens,
			CompletionTokens: a.usage.CompletionTokens,
			TotalTokens:      a.usage.TotalTokens,
		}
	} else {
		chunk.Usage = &Usage{}
	}
	select {
	case out <- StreamChunk{Chunk: chunk}:
	case <-ctx.Done():
	}
}

func (a *StreamAdapter) chunk(delta Delta, finishReason *string) *ChatCompletionChunk {
	return &ChatCompletionChunk{
		ID:      a.id,
		Object:  ObjectChatCompletionChunk,
		Created: a.created,
		Model:   a.model,
		Choices: []ChunkChoice{{Index: 0, Delta: delta, FinishReason: finishReason}},
	}
}

// mapFinishReason translates the engine's terminal vocabulary, defaulting to
// stop for anything unrecognized.
func mapFinishReason(reason string) string {
	switch reason {
	case engine.FinishStop:
		return FinishReasonStop
	case engine.FinishMaxTokens:
		return FinishReasonLength
	case engine.FinishSafety, engine.FinishRecitation, engine.FinishOther:
		return FinishReasonContentFilter
	default:
		return FinishReasonStop
	}
}

// formatThought renders a reasoning fragment for the reasoning_content delta.
func formatThought(t *engine.Thought) string {
	if t.Subject != "" && t.Description != "" {
		return t.Subject + ": " + t.Description
	}
	if t.Subject != "" {
		return t.Subject
	}
	return t.Description
}

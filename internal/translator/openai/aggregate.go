package openai

import (
	"net/http"
	"sort"
	"strings"

	apperrors "github.com/modelbridge/gembridge/internal/errors"
)

// toolCallBuilder accumulates one reconstructed tool call. Arguments arrive
// as string fragments that concatenate across chunks sharing the index.
type toolCallBuilder struct {
	id   string
	name string
	args strings.Builder
}

// Aggregate drains an adapted chunk stream and folds it into one completion.
// Tool calls are keyed by stream-assigned index in a sparse map; indices are
// not assumed contiguous. A stream that produced neither content nor a tool
// call is an upstream failure, not an empty success: a silently-dropped
// engine error would be indistinguishable from it.
func Aggregate(chunks <-chan StreamChunk, model string) (*ChatCompletion, error) {
	var (
		id           string
		created      int64
		content      strings.Builder
		reasoning    strings.Builder
		finishReason string
		usage        Usage
		calls        = map[int]*toolCallBuilder{}
	)

	for sc := range chunks {
		if sc.Err != nil {
			return nil, sc.Err
		}
		chunk := sc.Chunk
		if chunk == nil {
			continue
		}
		id = chunk.ID
		created = chunk.Created
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := &chunk.Choices[0]
		content.WriteString(choice.Delta.Content)
		reasoning.WriteString(choice.Delta.ReasoningContent)
		for i := range choice.Delta.ToolCalls {
			tc := &choice.Delta.ToolCalls[i]
			builder, ok := calls[tc.Index]
			if !ok {
				builder = &toolCallBuilder{}
				calls[tc.Index] = builder
			}
			if tc.ID != "" {
				builder.id = tc.ID
			}
			if tc.Function.Name != "" {
				builder.name = tc.Function.Name
			}
			builder.args.WriteString(tc.Function.Arguments)
		}
		if choice.FinishReason != nil {
			finishReason = *choice.FinishReason
		}
	}

	if content.Len() == 0 && len(calls) == 0 {
		return nil, apperrors.New(http.StatusInternalServerError, apperrors.CodeServerError,
			"no content received from engine", nil)
	}

	msg := ResponseMessage{
		Role:             RoleAssistant,
		ReasoningContent: reasoning.String(),
		ToolCalls:        buildToolCalls(calls),
	}
	text := content.String()
	msg.Content = &text

	if finishReason == "" {
		finishReason = FinishReasonStop
	}
	return &ChatCompletion{
		ID:      id,
		Object:  ObjectChatCompletion,
		Created: created,
		Model:   model,
		Choices: []Choice{{Index: 0, Message: msg, FinishReason: finishReason}},
		Usage:   usage,
	}, nil
}

// buildToolCalls flattens the sparse index map in ascending index order.
func buildToolCalls(calls map[int]*toolCallBuilder) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	indices := make([]int, 0, len(calls))
	for idx := range calls {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	out := make([]ToolCall, 0, len(indices))
	for _, idx := range indices {
		builder := calls[idx]
		out = append(out, ToolCall{
			ID:   builder.id,
			Type: "function",
			Function: FunctionCall{
				Name:      builder.name,
				Arguments: builder.args.String(),
			},
		})
	}
	return out
}

// Package openai provides HTTP handlers for the OpenAI-compatible endpoints.
// It sequences each chat completion request through validation, message
// conversion, session acquisition, engine invocation and response adaptation,
// for both streaming and non-streaming callers.
package openai

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/modelbridge/gembridge/internal/api/handlers"
	"github.com/modelbridge/gembridge/internal/api/middleware"
	"github.com/modelbridge/gembridge/internal/engine"
	apperrors "github.com/modelbridge/gembridge/internal/errors"
	"github.com/modelbridge/gembridge/internal/session"
	openaitranslator "github.com/modelbridge/gembridge/internal/translator/openai"
)

// ChatAPIHandler contains the handlers for the OpenAI-compatible chat
// completion endpoints.
type ChatAPIHandler struct {
	*handlers.BaseHandler
}

// NewChatAPIHandler creates a chat handler instance on top of the shared
// handler state.
func NewChatAPIHandler(base *handlers.BaseHandler) *ChatAPIHandler {
	return &ChatAPIHandler{BaseHandler: base}
}

// ChatCompletions handles POST /v1/chat/completions. It validates the
// request, converts the conversation, submits the final turn to the engine
// and streams or aggregates the adapted result.
func (h *ChatAPIHandler) ChatCompletions(c *gin.Context) {
	rawJSON, err := c.GetRawData()
	if err != nil {
		h.WriteValidationError(c, apperrors.CodeBadRequest, "Invalid request: "+err.Error())
		return
	}

	var req openaitranslator.ChatCompletionRequest
	if err = json.Unmarshal(rawJSON, &req); err != nil {
		h.WriteValidationError(c, apperrors.CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	// Validation happens before any conversion work.
	if len(req.Messages) == 0 {
		h.WriteValidationError(c, apperrors.CodeInvalidMessages, "messages is required and cannot be empty")
		return
	}
	if req.Model == "" {
		h.WriteValidationError(c, apperrors.CodeInvalidModel, "model is required")
		return
	}

	ctx, cancel := h.RequestContext(c)
	defer cancel()

	converted, err := h.Converter.Convert(ctx, req.Messages)
	if err != nil {
		h.WriteErrorResponse(c, err)
		return
	}
	if len(converted.Contents) == 0 {
		h.WriteValidationError(c, apperrors.CodeInvalidMessages, "messages contain no convertible content")
		return
	}

	cfg := h.Config()
	sess, release, err := h.Sessions.Acquire(session.Options{
		Model:            req.Model,
		WorkingDirectory: cfg.WorkingDirectory,
	})
	if err != nil {
		h.WriteErrorResponse(c, err)
		return
	}
	defer release()

	// History is everything but the final turn; the final turn is submitted
	// as the new message.
	history := converted.Contents[:len(converted.Contents)-1]
	message := converted.Contents[len(converted.Contents)-1]

	opts := engine.SendOptions{
		Model:             req.Model,
		SystemInstruction: converted.SystemInstruction,
		Params: engine.GenerationParams{
			Temperature: req.Temperature,
			TopP:        req.TopP,
			MaxTokens:   req.MaxTokens,
			Stop:        req.Stop,
		},
	}

	events, err := sess.Submit(ctx, opts, history, message)
	if err != nil {
		middleware.RecordEngineError(req.Model)
		h.WriteErrorResponse(c, err)
		return
	}

	adapter := openaitranslator.NewStreamAdapter(req.Model, cfg.IncludeReasoning)
	chunks := adapter.Adapt(ctx, events)

	if req.Stream {
		h.streamResponse(c, cancel, req.Model, chunks)
		return
	}
	h.aggregateResponse(c, req.Model, chunks)
}

// streamResponse forwards adapted chunks as SSE frames. Failures after this
// point cannot change the HTTP status, so they surface as an in-band error
// event; the stream always terminates with the [DONE] sentinel so client
// consumption loops exit cleanly.
func (h *ChatAPIHandler) streamResponse(c *gin.Context, cancel context.CancelFunc, model string, chunks <-chan openaitranslator.StreamChunk) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		h.WriteErrorResponse(c, apperrors.New(http.StatusInternalServerError, apperrors.CodeServerError, "streaming not supported", nil))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	for {
		select {
		case <-c.Request.Context().Done():
			// Client went away: stop writing and cancel the engine call.
			cancel()
			return
		case sc, open := <-chunks:
			if !open {
				handlers.WriteSSEDone(c.Writer)
				flusher.Flush()
				return
			}
			if sc.Err != nil {
				middleware.RecordEngineError(model)
				log.Errorf("stream failed mid-flight: %v", sc.Err)
				handlers.WriteSSEError(c.Writer, sc.Err)
				handlers.WriteSSEDone(c.Writer)
				flusher.Flush()
				cancel()
				return
			}
			payload, err := json.Marshal(sc.Chunk)
			if err != nil {
				log.Errorf("marshal chunk: %v", err)
				continue
			}
			handlers.WriteSSEData(c.Writer, payload)
			flusher.Flush()
			middleware.RecordStreamedChunk(model)
			if sc.Chunk.Usage != nil {
				h.recordUsage(model, sc.Chunk.Usage)
			}
		}
	}
}

// aggregateResponse drains the adapted stream and replies with a single
// chat.completion body.
func (h *ChatAPIHandler) aggregateResponse(c *gin.Context, model string, chunks <-chan openaitranslator.StreamChunk) {
	resp, err := openaitranslator.Aggregate(chunks, model)
	if err != nil {
		middleware.RecordEngineError(model)
		h.WriteErrorResponse(c, err)
		return
	}
	h.recordUsage(model, &resp.Usage)
	if h.Config().RequestLog {
		log.WithFields(log.Fields{
			"model":             model,
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
			"finish_reason":     resp.Choices[0].FinishReason,
		}).Info("chat completion finished")
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ChatAPIHandler) recordUsage(model string, usage *openaitranslator.Usage) {
	middleware.RecordTokenUsage(model, "input", usage.PromptTokens)
	middleware.RecordTokenUsage(model, "output", usage.CompletionTokens)
}

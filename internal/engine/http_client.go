package engine

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ClientConfig configures the HTTP engine transport.
type ClientConfig struct {
	// BaseURL is the engine endpoint root, e.g. "https://generativelanguage.googleapis.com".
	BaseURL string

	// APIKey is sent as x-goog-api-key when non-empty.
	APIKey string

	// HTTPClient overrides the transport; nil uses a default with no timeout
	// (streams are bounded by the request context instead).
	HTTPClient *http.Client
}

// httpClient is a Client speaking the engine's streaming generate endpoint.
// It keeps the conversation history locally; every SendMessage submits the
// full history plus the new message, matching the stateless-resend semantics
// of the OpenAI surface in front of it.
type httpClient struct {
	cfg  ClientConfig
	http *http.Client

	mu      sync.Mutex
	history []Content
}

// NewHTTPClientFactory returns a Factory producing HTTP-backed engine handles.
func NewHTTPClientFactory(cfg ClientConfig) Factory {
	return func(_ SessionOptions) (Client, error) {
		hc := cfg.HTTPClient
		if hc == nil {
			hc = &http.Client{}
		}
		return &httpClient{cfg: cfg, http: hc}, nil
	}
}

func (c *httpClient) SetHistory(history []Content) {
	c.mu.Lock()
	c.history = append(c.history[:0:0], history...)
	c.mu.Unlock()
}

func (c *httpClient) Close() error { return nil }

// SendMessage submits one turn and returns the ordered event stream for it.
// The returned channel is closed after the synthesized finished event, or
// after an event carrying Err when the transport fails mid-stream.
func (c *httpClient) SendMessage(ctx context.Context, opts SendOptions, message Content) (<-chan StreamEvent, error) {
	c.mu.Lock()
	contents := append(append([]Content{}, c.history...), message)
	c.mu.Unlock()

	body, err := buildGenerateRequest(opts, contents)
	if err != nil {
		return nil, err
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/v1beta/models/" + opts.Model + ":streamGenerateContent?alt=sse"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		b, _ := io.ReadAll(httpResp.Body)
		if errClose := httpResp.Body.Close(); errClose != nil {
			log.Errorf("engine client: close response body error: %v", errClose)
		}
		return nil, &UpstreamError{StatusCode: httpResp.StatusCode, Status: httpResp.Status, Body: b}
	}

	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		defer func() {
			if errClose := httpResp.Body.Close(); errClose != nil {
				log.Errorf("engine client: close response body error: %v", errClose)
			}
		}()

		finishReason := ""
		var usage *Usage

		scanner := bufio.NewScanner(httpResp.Body)
		scanner.Buffer(nil, 10_485_760) // 10MB
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if !bytes.HasPrefix(line, []byte("data:")) {
				continue
			}
			payload := bytes.TrimSpace(line[len("data:"):])
			if len(payload) == 0 || bytes.Equal(payload, []byte("[DONE]")) {
				continue
			}
			reason, u := emitChunkEvents(ctx, out, payload)
			if reason != "" {
				finishReason = reason
			}
			if u != nil {
				usage = u
			}
			if ctx.Err() != nil {
				return
			}
		}
		if errScan := scanner.Err(); errScan != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case out <- StreamEvent{Err: errScan}:
			case <-ctx.Done():
			}
			return
		}

		if finishReason == "" {
			finishReason = FinishStop
		}
		select {
		case out <- StreamEvent{Type: EventFinished, FinishReason: finishReason, Usage: usage}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

// buildGenerateRequest assembles the engine wire request from the converted
// conversation and per-turn options.
func buildGenerateRequest(opts SendOptions, contents []Content) ([]byte, error) {
	body := []byte(`{}`)
	var err error
	if opts.SystemInstruction != "" {
		if body, err = sjson.SetBytes(body, "systemInstruction.parts.0.text", opts.SystemInstruction); err != nil {
			return nil, err
		}
	}
	if body, err = sjson.SetBytes(body, "contents", contents); err != nil {
		return nil, err
	}
	if opts.Params.Temperature != nil {
		if body, err = sjson.SetBytes(body, "generationConfig.temperature", *opts.Params.Temperature); err != nil {
			return nil, err
		}
	}
	if opts.Params.TopP != nil {
		if body, err = sjson.SetBytes(body, "generationConfig.topP", *opts.Params.TopP); err != nil {
			return nil, err
		}
	}
	if opts.Params.MaxTokens != nil {
		if body, err = sjson.SetBytes(body, "generationConfig.maxOutputTokens", *opts.Params.MaxTokens); err != nil {
			return nil, err
		}
	}
	if len(opts.Params.Stop) > 0 {
		if body, err = sjson.SetBytes(body, "generationConfig.stopSequences", opts.Params.Stop); err != nil {
			return nil, err
		}
	}
	return body, nil
}

// emitChunkEvents expands one engine wire chunk into semantic events and
// returns any finish reason and usage it carried.
func emitChunkEvents(ctx context.Context, out chan<- StreamEvent, payload []byte) (string, *Usage) {
	root := gjson.ParseBytes(payload)

	parts := root.Get("candidates.0.content.parts")
	parts.ForEach(func(_, part gjson.Result) bool {
		ev, ok := partToEvent(part)
		if !ok {
			return true
		}
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	})

	reason := root.Get("candidates.0.finishReason").String()

	var usage *Usage
	if meta := root.Get("usageMetadata"); meta.Exists() {
		usage = &Usage{
			PromptTokens:     int(meta.Get("promptTokenCount").Int()),
			CompletionTokens: int(meta.Get("candidatesTokenCount").Int()),
			TotalTokens:      int(meta.Get("totalTokenCount").Int()),
		}
	}
	return reason, usage
}

// partToEvent maps one wire part onto a StreamEvent.
func partToEvent(part gjson.Result) (StreamEvent, bool) {
	if fc := part.Get("functionCall"); fc.Exists() {
		args := map[string]any{}
		if m, ok := fc.Get("args").Value().(map[string]any); ok {
			args = m
		}
		id := fc.Get("id").String()
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		return StreamEvent{Type: EventToolCall, ToolCall: &ToolCall{
			ID:   id,
			Name: fc.Get("name").String(),
			Args: args,
		}}, true
	}

	text := part.Get("text").String()
	if text == "" {
		return StreamEvent{}, false
	}
	if part.Get("thought").Bool() {
		return StreamEvent{Type: EventThought, Thought: parseThought(text)}, true
	}
	return StreamEvent{Type: EventContent, Text: text}, true
}

// parseThought splits a reasoning fragment into subject and description. The
// engine formats thought summaries with a bold first line ("**subject**").
func parseThought(text string) *Thought {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "**") {
		if end := strings.Index(trimmed[2:], "**"); end >= 0 {
			subject := strings.TrimSpace(trimmed[2 : 2+end])
			description := strings.TrimSpace(trimmed[2+end+2:])
			return &Thought{Subject: subject, Description: description}
		}
	}
	return &Thought{Description: trimmed}
}

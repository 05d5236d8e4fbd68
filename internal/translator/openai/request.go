package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	apperrors "github.com/modelbridge/gembridge/internal/errors"
	"github.com/modelbridge/gembridge/internal/engine"
)

// Converted is the result of converting an inbound conversation: the
// effective system instruction (empty when none) and the per-turn engine
// contents, excluding system turns.
type Converted struct {
	SystemInstruction string
	Contents          []engine.Content
}

// Converter maps OpenAI-shaped conversations into engine content. The HTTP
// client is used for fetching remote image references synchronously relative
// to the request.
type Converter struct {
	httpClient *http.Client
}

// NewConverter returns a Converter fetching remote images with client, or a
// default client when nil.
func NewConverter(client *http.Client) *Converter {
	if client == nil {
		client = http.DefaultClient
	}
	return &Converter{httpClient: client}
}

// Convert walks the conversation in order. System turns overwrite the
// extracted instruction (last one wins) and never reach the contents list; a
// turn whose conversion yields zero parts is dropped entirely.
func (cv *Converter) Convert(ctx context.Context, messages []Message) (Converted, error) {
	out := Converted{}
	for i := range messages {
		msg := &messages[i]
		switch msg.Role {
		case RoleSystem:
			out.SystemInstruction = textOf(msg.Content)
		case RoleUser:
			parts := cv.contentToParts(ctx, msg.Content)
			if len(parts) > 0 {
				out.Contents = append(out.Contents, engine.Content{Role: engine.RoleUser, Parts: parts})
			}
		case RoleAssistant:
			parts, err := cv.assistantParts(ctx, msg)
			if err != nil {
				return Converted{}, err
			}
			if len(parts) > 0 {
				out.Contents = append(out.Contents, engine.Content{Role: engine.RoleModel, Parts: parts})
			}
		case RoleTool:
			// Tool results always survive: identity comes from the call id and
			// the payload passes through opaquely to preserve round-trip
			// fidelity with whatever the caller sent.
			out.Contents = append(out.Contents, engine.Content{
				Role: engine.RoleUser,
				Parts: []engine.Part{{FunctionResponse: &engine.FunctionResponse{
					Name:     msg.ToolCallID,
					Response: textOf(msg.Content),
				}}},
			})
		default:
			return Converted{}, apperrors.NewValidation(apperrors.CodeInvalidMessages,
				fmt.Sprintf("unsupported message role %q", msg.Role))
		}
	}
	return out, nil
}

// assistantParts builds the model turn: text first, then one functionCall
// part per requested tool invocation.
func (cv *Converter) assistantParts(ctx context.Context, msg *Message) ([]engine.Part, error) {
	parts := cv.contentToParts(ctx, msg.Content)
	for i := range msg.ToolCalls {
		call := &msg.ToolCalls[i]
		args := map[string]any{}
		if s := strings.TrimSpace(call.Function.Arguments); s != "" {
			if err := json.Unmarshal([]byte(s), &args); err != nil {
				return nil, apperrors.New(http.StatusBadRequest, apperrors.CodeBadRequest,
					fmt.Sprintf("tool call %q has malformed arguments", call.Function.Name), err)
			}
		}
		parts = append(parts, engine.Part{FunctionCall: &engine.FunctionCall{
			Name: call.Function.Name,
			Args: args,
		}})
	}
	return parts, nil
}

// contentToParts converts one turn's content into engine parts. Remote image
// fetch failures drop that image and continue; losing an image degrades the
// turn, it does not fail the request.
func (cv *Converter) contentToParts(ctx context.Context, content Content) []engine.Part {
	if !content.IsParts() {
		if strings.TrimSpace(content.Text) == "" {
			return nil
		}
		return []engine.Part{{Text: content.Text}}
	}

	var parts []engine.Part
	for i := range content.Parts {
		item := &content.Parts[i]
		switch item.Type {
		case PartTypeText:
			if strings.TrimSpace(item.Text) != "" {
				parts = append(parts, engine.Part{Text: item.Text})
			}
		case PartTypeImageURL:
			if item.ImageURL == nil || item.ImageURL.URL == "" {
				continue
			}
			inline, err := cv.imageToInlineData(ctx, item.ImageURL.URL)
			if err != nil {
				log.Warnf("dropping image part: %v", err)
				continue
			}
			parts = append(parts, engine.Part{InlineData: inline})
		}
	}
	return parts
}

// imageToInlineData resolves a data URI directly and fetches HTTP(S) URLs,
// re-encoding the payload as inline base64 data.
func (cv *Converter) imageToInlineData(ctx context.Context, url string) (*engine.InlineData, error) {
	if strings.HasPrefix(url, "data:") {
		return parseDataURI(url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("image fetch %s: %w", url, err)
	}
	resp, err := cv.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image fetch %s: %w", url, err)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("converter: close image response body error: %v", errClose)
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("image fetch %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("image fetch %s: %w", url, err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = mimeTypeFromURL(url)
	}
	return &engine.InlineData{
		MimeType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
	}, nil
}

// parseDataURI splits "data:<mime>;base64,<payload>" straight into inline data.
func parseDataURI(uri string) (*engine.InlineData, error) {
	rest := strings.TrimPrefix(uri, "data:")
	comma := strings.Index(rest, ",")
	if comma < 0 {
		return nil, fmt.Errorf("malformed data URI")
	}
	meta, payload := rest[:comma], rest[comma+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("data URI is not base64-encoded")
	}
	mimeType := strings.TrimSuffix(meta, ";base64")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return &engine.InlineData{MimeType: mimeType, Data: payload}, nil
}

// mimeTypeFromURL infers an image MIME type from the URL's file extension.
func mimeTypeFromURL(url string) string {
	lowered := strings.ToLower(url)
	if idx := strings.IndexAny(lowered, "?#"); idx >= 0 {
		lowered = lowered[:idx]
	}
	switch {
	case strings.HasSuffix(lowered, ".png"):
		return "image/png"
	case strings.HasSuffix(lowered, ".gif"):
		return "image/gif"
	case strings.HasSuffix(lowered, ".webp"):
		return "image/webp"
	case strings.HasSuffix(lowered, ".svg"):
		return "image/svg+xml"
	default:
		return "image/jpeg"
	}
}

// textOf flattens content to plain text, joining textual parts with newlines.
func textOf(content Content) string {
	if !content.IsParts() {
		return content.Text
	}
	var texts []string
	for i := range content.Parts {
		if content.Parts[i].Type == PartTypeText && content.Parts[i].Text != "" {
			texts = append(texts, content.Parts[i].Text)
		}
	}
	return strings.Join(texts, "\n")
}

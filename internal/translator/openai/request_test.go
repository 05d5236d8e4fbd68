package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/modelbridge/gembridge/internal/errors"
	"github.com/modelbridge/gembridge/internal/engine"
)

func textContent(s string) Content {
	var c Content
	if err := json.Unmarshal([]byte(`"`+s+`"`), &c); err != nil {
		panic(err)
	}
	return c
}

func partsContent(t *testing.T, raw string) Content {
	t.Helper()
	var c Content
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal parts content: %v", err)
	}
	return c
}

func TestConvert_SystemExtraction(t *testing.T) {
	cv := NewConverter(nil)
	out, err := cv.Convert(context.Background(), []Message{
		{Role: RoleSystem, Content: textContent("first instruction")},
		{Role: RoleUser, Content: textContent("hello")},
		{Role: RoleSystem, Content: textContent("second instruction")},
	})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	// The last system turn wins.
	if out.SystemInstruction != "second instruction" {
		t.Errorf("SystemInstruction = %q, want %q", out.SystemInstruction, "second instruction")
	}
	if len(out.Contents) != 1 {
		t.Fatalf("contents = %d, want 1 (system turns never reach contents)", len(out.Contents))
	}
	if out.Contents[0].Role != engine.RoleUser {
		t.Errorf("role = %q, want %q", out.Contents[0].Role, engine.RoleUser)
	}
}

func TestConvert_RoleMapping(t *testing.T) {
	cv := NewConverter(nil)
	out, err := cv.Convert(context.Background(), []Message{
		{Role: RoleUser, Content: textContent("question")},
		{Role: RoleAssistant, Content: textContent("answer")},
	})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if len(out.Contents) != 2 {
		t.Fatalf("contents = %d, want 2", len(out.Contents))
	}
	if out.Contents[0].Role != engine.RoleUser {
		t.Errorf("contents[0].Role = %q, want %q", out.Contents[0].Role, engine.RoleUser)
	}
	if out.Contents[1].Role != engine.RoleModel {
		t.Errorf("contents[1].Role = %q, want %q", out.Contents[1].Role, engine.RoleModel)
	}
}

func TestConvert_DropsEmptyTurns(t *testing.T) {
	cv := NewConverter(nil)
	out, err := cv.Convert(context.Background(), []Message{
		{Role: RoleUser, Content: textContent("   ")},
		{Role: RoleAssistant, Content: textContent("")},
		{Role: RoleUser, Content: textContent("real content")},
	})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if len(out.Contents) != 1 {
		t.Fatalf("contents = %d, want 1 (whitespace-only turns dropped)", len(out.Contents))
	}
	if out.Contents[0].Parts[0].Text != "real content" {
		t.Errorf("surviving text = %q", out.Contents[0].Parts[0].Text)
	}
}

func TestConvert_AssistantToolCalls(t *testing.T) {
	cv := NewConverter(nil)
	out, err := cv.Convert(context.Background(), []Message{
		{
			Role:    RoleAssistant,
			Content: textContent("let me check"),
			ToolCalls: []ToolCall{
				{ID: "call_1", Type: "function", Function: FunctionCall{Name: "lookup", Arguments: `{"city":"Oslo"}`}},
			},
		},
	})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	parts := out.Contents[0].Parts
	if len(parts) != 2 {
		t.Fatalf("parts = %d, want 2 (text then functionCall)", len(parts))
	}
	if parts[0].Text != "let me check" {
		t.Errorf("parts[0].Text = %q", parts[0].Text)
	}
	fc := parts[1].FunctionCall
	if fc == nil || fc.Name != "lookup" {
		t.Fatalf("parts[1] = %+v, want functionCall lookup", parts[1])
	}
	if fc.Args["city"] != "Oslo" {
		t.Errorf("args = %v, want city=Oslo", fc.Args)
	}
}

func TestConvert_MalformedToolArguments(t *testing.T) {
	cv := NewConverter(nil)
	_, err := cv.Convert(context.Background(), []Message{
		{
			Role: RoleAssistant,
			ToolCalls: []ToolCall{
				{ID: "call_1", Function: FunctionCall{Name: "lookup", Arguments: `{broken`}},
			},
		},
	})
	if err == nil {
		t.Fatal("Convert() error = nil, want malformed-arguments error")
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error type = %T, want *AppError", err)
	}
	if appErr.HTTPStatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", appErr.HTTPStatusCode)
	}
}

func TestConvert_ToolResultAlwaysSurvives(t *testing.T) {
	cv := NewConverter(nil)
	out, err := cv.Convert(context.Background(), []Message{
		{Role: RoleTool, ToolCallID: "call_9", Content: textContent("")},
	})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if len(out.Contents) != 1 {
		t.Fatalf("contents = %d, want 1 (tool results are never dropped)", len(out.Contents))
	}
	fr := out.Contents[0].Parts[0].FunctionResponse
	if fr == nil || fr.Name != "call_9" {
		t.Fatalf("functionResponse = %+v, want name call_9", fr)
	}
}

func TestConvert_UnknownRole(t *testing.T) {
	cv := NewConverter(nil)
	_, err := cv.Convert(context.Background(), []Message{
		{Role: "narrator", Content: textContent("once upon a time")},
	})
	if err == nil {
		t.Fatal("Convert() error = nil, want validation error")
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error type = %T, want *AppError", err)
	}
	if appErr.Code != apperrors.CodeInvalidMessages {
		t.Errorf("code = %q, want %q", appErr.Code, apperrors.CodeInvalidMessages)
	}
}

func TestConvert_DataURIImage(t *testing.T) {
	cv := NewConverter(nil)
	payload := base64.StdEncoding.EncodeToString([]byte("pixels"))
	content := partsContent(t, `[
		{"type":"text","text":"what is this"},
		{"type":"image_url","image_url":{"url":"data:image/png;base64,`+payload+`"}}
	]`)

	out, err := cv.Convert(context.Background(), []Message{{Role: RoleUser, Content: content}})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	parts := out.Contents[0].Parts
	if len(parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(parts))
	}
	inline := parts[1].InlineData
	if inline == nil {
		t.Fatal("parts[1].InlineData = nil")
	}
	if inline.MimeType != "image/png" {
		t.Errorf("mime = %q, want image/png", inline.MimeType)
	}
	if inline.Data != payload {
		t.Errorf("data = %q, want original base64 payload", inline.Data)
	}
}

func TestConvert_RemoteImageFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/webp")
		_, _ = w.Write([]byte("webp-bytes"))
	}))
	defer srv.Close()

	cv := NewConverter(srv.Client())
	content := partsContent(t, `[{"type":"image_url","image_url":{"url":"`+srv.URL+`/pic"}}]`)
	out, err := cv.Convert(context.Background(), []Message{{Role: RoleUser, Content: content}})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	inline := out.Contents[0].Parts[0].InlineData
	if inline == nil {
		t.Fatal("InlineData = nil")
	}
	if inline.MimeType != "image/webp" {
		t.Errorf("mime = %q, want image/webp", inline.MimeType)
	}
	if inline.Data != base64.StdEncoding.EncodeToString([]byte("webp-bytes")) {
		t.Errorf("data not re-encoded as base64")
	}
}

func TestConvert_RemoteImageFailureDropsPart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cv := NewConverter(srv.Client())
	content := partsContent(t, `[
		{"type":"text","text":"describe"},
		{"type":"image_url","image_url":{"url":"`+srv.URL+`/missing.png"}}
	]`)
	out, err := cv.Convert(context.Background(), []Message{{Role: RoleUser, Content: content}})
	if err != nil {
		t.Fatalf("Convert() error = %v, want degraded success", err)
	}
	parts := out.Contents[0].Parts
	if len(parts) != 1 || parts[0].Text != "describe" {
		t.Fatalf("parts = %+v, want just the text part", parts)
	}
}

func TestMimeTypeFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://host/a.png", "image/png"},
		{"https://host/a.PNG?size=2", "image/png"},
		{"https://host/a.gif", "image/gif"},
		{"https://host/a.webp#frag", "image/webp"},
		{"https://host/a.svg", "image/svg+xml"},
		{"https://host/a.jpg", "image/jpeg"},
		{"https://host/no-extension", "image/jpeg"},
	}
	for _, tt := range tests {
		if got := mimeTypeFromURL(tt.url); got != tt.want {
			t.Errorf("mimeTypeFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestTextOf_JoinsParts(t *testing.T) {
	content := Content{
		Parts: []ContentPart{
			{Type: PartTypeText, Text: "line one"},
			{Type: PartTypeImageURL, ImageURL: &ImageURL{URL: "https://host/a.png"}},
			{Type: PartTypeText, Text: "line two"},
		},
		isParts: true,
	}
	if got := textOf(content); got != "line one\nline two" {
		t.Errorf("textOf() = %q", got)
	}
}

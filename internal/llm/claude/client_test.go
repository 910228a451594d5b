package claude

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/radtriage/internal/triage"
)

func TestBuildParams(t *testing.T) {
	t.Parallel()

	p := buildParams("claude-test", &triage.ClassifyRequest{
		MIMEType:    "image/png",
		ImageBase64: "aGVsbG8=",
		Prompt:      "grade this",
	})

	if p.Model != anthropic.Model("claude-test") {
		t.Errorf("model = %q, want %q", p.Model, "claude-test")
	}
	if p.MaxTokens != defaultMaxTokens {
		t.Errorf("max tokens = %d, want %d", p.MaxTokens, defaultMaxTokens)
	}
	if len(p.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(p.Messages))
	}
	msg := p.Messages[0]
	if msg.Role != anthropic.MessageParamRoleUser {
		t.Errorf("role = %q, want user", msg.Role)
	}
	if len(msg.Content) != 2 {
		t.Fatalf("content len = %d, want 2", len(msg.Content))
	}

	img := msg.Content[0].OfImage
	if img == nil || img.Source.OfBase64 == nil {
		t.Fatal("expected base64 image block first")
	}
	if img.Source.OfBase64.Data != "aGVsbG8=" {
		t.Errorf("image data = %q", img.Source.OfBase64.Data)
	}
	if string(img.Source.OfBase64.MediaType) != "image/png" {
		t.Errorf("media type = %q, want image/png", img.Source.OfBase64.MediaType)
	}

	if msg.Content[1].OfText == nil || msg.Content[1].OfText.Text != "grade this" {
		t.Errorf("expected prompt text block second, got %+v", msg.Content[1])
	}
}

func TestTextOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  *anthropic.Message
		want string
	}{
		{"nil", nil, ""},
		{"single", &anthropic.Message{Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: "Hence its severity score is 4"},
		}}, "Hence its severity score is 4"},
		{"joins text and skips others", &anthropic.Message{Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: "a"},
			{Type: "thinking"},
			{Type: "text", Text: "b"},
		}}, "a\nb"},
		{"no text", &anthropic.Message{Content: []anthropic.ContentBlockUnion{{Type: "tool_use"}}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := textOf(tt.msg); got != tt.want {
				t.Errorf("textOf = %q, want %q", got, tt.want)
			}
		})
	}
}

func newTestServer(t *testing.T, status int, body any) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q, want /v1/messages", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestClassify_ReturnsText(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, http.StatusOK, map[string]any{
		"id":          "msg_1",
		"type":        "message",
		"role":        "assistant",
		"model":       "claude-test",
		"content":     []map[string]any{{"type": "text", "text": "Mild edema. Hence its severity score is 3.5"}},
		"stop_reason": "end_turn",
		"usage":       map[string]any{"input_tokens": 10, "output_tokens": 5},
	})

	c := New("key", "claude-test", option.WithBaseURL(srv.URL))
	got, err := c.Classify(context.Background(), &triage.ClassifyRequest{MIMEType: "image/png", ImageBase64: "aGVsbG8=", Prompt: "p"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != "Mild edema. Hence its severity score is 3.5" {
		t.Errorf("Classify = %q", got)
	}
}

func TestClassify_ServerErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	srv, calls := newTestServer(t, http.StatusInternalServerError, map[string]any{
		"type":  "error",
		"error": map[string]any{"type": "api_error", "message": "boom"},
	})

	c := New("key", "claude-test", option.WithBaseURL(srv.URL))
	if _, err := c.Classify(context.Background(), &triage.ClassifyRequest{MIMEType: "image/png", ImageBase64: "aGVsbG8=", Prompt: "p"}); err == nil {
		t.Fatal("Classify succeeded, want error")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server called %d times, want 1", n)
	}
}

func TestClassify_EmptyContent(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, http.StatusOK, map[string]any{
		"id": "msg_2", "type": "message", "role": "assistant", "model": "claude-test",
		"content": []map[string]any{}, "stop_reason": "end_turn",
		"usage": map[string]any{"input_tokens": 1, "output_tokens": 0},
	})

	c := New("key", "claude-test", option.WithBaseURL(srv.URL))
	if _, err := c.Classify(context.Background(), &triage.ClassifyRequest{MIMEType: "image/png", ImageBase64: "aGVsbG8=", Prompt: "p"}); err == nil {
		t.Fatal("Classify succeeded on empty content, want error")
	}
}

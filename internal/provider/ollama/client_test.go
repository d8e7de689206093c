package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yanmxa/finsight/internal/message"
	"github.com/yanmxa/finsight/internal/provider"
)

func newTestServer(t *testing.T, chatBody string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"models":[{"name":"nomic-embed-text:latest"},{"name":"qwen3:8b"}]}`)
		case "/api/chat":
			if captured != nil {
				body, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(body, captured)
			}
			w.Header().Set("Content-Type", "application/x-ndjson")
			_, _ = io.WriteString(w, chatBody)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestListModels(t *testing.T) {
	srv := newTestServer(t, "", nil)
	p, err := NewClient(context.Background(), provider.Endpoint{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	models, err := p.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 || models[1].ID != "qwen3:8b" {
		t.Errorf("unexpected models %+v", models)
	}
}

func TestStreamTextAndToolCalls(t *testing.T) {
	body := strings.Join([]string{
		`{"model":"qwen3:8b","message":{"role":"assistant","content":"","thinking":"need data"},"done":false}`,
		`{"model":"qwen3:8b","message":{"role":"assistant","content":"Let me check."},"done":false}`,
		`{"model":"qwen3:8b","message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"finance_search","arguments":{"query":"AAPL price"}}}]},"done":false}`,
		`{"model":"qwen3:8b","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":42,"eval_count":7}`,
	}, "\n") + "\n"

	var captured map[string]any
	srv := newTestServer(t, body, &captured)
	p, _ := NewClient(context.Background(), provider.Endpoint{BaseURL: srv.URL})

	resp, err := provider.Complete(context.Background(), p, provider.CompletionOptions{
		Model:        "qwen3:8b",
		SystemPrompt: "You are a finance assistant.",
		Turns: []message.Turn{
			message.UserTurn("AAPL?"),
			message.AssistantTurn("", "", []message.ToolCall{{ID: "c0", Name: "finance_search", Input: `{"query":"AAPL"}`}}),
			message.ToolResultTurn(message.ToolResult{ToolCallID: "c0", Content: "189.5"}),
		},
		Tools: []provider.Tool{{
			Name:        "finance_search",
			Description: "Search financial data",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"query": map[string]any{"type": "string", "description": "q"}},
				"required":   []string{"query"},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if resp.Content != "Let me check." {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if resp.Thinking != "need data" {
		t.Errorf("unexpected thinking %q", resp.Thinking)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "finance_search" {
		t.Fatalf("unexpected tool calls %+v", resp.ToolCalls)
	}
	if !strings.Contains(resp.ToolCalls[0].Input, "AAPL price") {
		t.Errorf("unexpected tool input %q", resp.ToolCalls[0].Input)
	}
	if resp.StopReason != "tool_use" {
		t.Errorf("expected tool_use, got %q", resp.StopReason)
	}
	if resp.Usage.InputTokens != 42 || resp.Usage.OutputTokens != 7 {
		t.Errorf("unexpected usage %+v", resp.Usage)
	}

	msgs, _ := captured["messages"].([]any)
	if len(msgs) != 4 {
		t.Fatalf("expected system+3 messages, got %d", len(msgs))
	}
	if role := msgs[3].(map[string]any)["role"]; role != "tool" {
		t.Errorf("expected tool role for result, got %v", role)
	}
	if tools, _ := captured["tools"].([]any); len(tools) != 1 {
		t.Errorf("expected 1 tool in request, got %d", len(tools))
	}
}

func TestStreamRequestsThinking(t *testing.T) {
	body := `{"model":"qwen3:8b","message":{"role":"assistant","content":"hi"},"done":true,"done_reason":"stop"}` + "\n"
	for _, reasoning := range []bool{true, false} {
		var captured map[string]any
		srv := newTestServer(t, body, &captured)
		p, _ := NewClient(context.Background(), provider.Endpoint{BaseURL: srv.URL})

		_, err := provider.Complete(context.Background(), p, provider.CompletionOptions{
			Model:     "qwen3:8b",
			Turns:     []message.Turn{message.UserTurn("hi")},
			Reasoning: reasoning,
		})
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		think, present := captured["think"]
		if reasoning && think != true {
			t.Errorf("expected think=true in request, got %v", captured)
		}
		if !reasoning && present {
			t.Errorf("think should be omitted without reasoning, got %v", think)
		}
	}
}

func TestStreamCompatibilityError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"registry.ollama.ai/library/gemma2:2b does not support tools"}`)
	}))
	defer srv.Close()

	p, _ := NewClient(context.Background(), provider.Endpoint{BaseURL: srv.URL})
	_, err := provider.Complete(context.Background(), p, provider.CompletionOptions{Model: "gemma2:2b"})
	var ce *provider.CompatibilityError
	if !errors.As(err, &ce) {
		t.Fatalf("expected compatibility error, got %v", err)
	}
	if ce.Feature != provider.FeatureTools {
		t.Errorf("expected tools feature, got %q", ce.Feature)
	}
}

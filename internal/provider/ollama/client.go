// Package ollama implements the LLMProvider interface on a local Ollama server.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"

	"github.com/yanmxa/finsight/internal/log"
	"github.com/yanmxa/finsight/internal/message"
	"github.com/yanmxa/finsight/internal/provider"
)

// Meta is the metadata for a local Ollama server
var Meta = provider.ProviderMeta{
	Provider:    provider.ProviderOllama,
	AuthMethod:  provider.AuthLocal,
	DisplayName: "Ollama",
}

// Client streams chat completions from Ollama
type Client struct {
	client *api.Client
	name   string
}

// NewClient creates a client for the Ollama server at ep.BaseURL
func NewClient(_ context.Context, ep provider.Endpoint) (provider.LLMProvider, error) {
	if ep.BaseURL == "" {
		return nil, errors.New("ollama: base url is required")
	}
	parsed, err := url.Parse(ep.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid base url: %w", err)
	}
	return &Client{
		client: api.NewClient(parsed, http.DefaultClient),
		name:   Meta.Key(),
	}, nil
}

// Name returns the provider name
func (c *Client) Name() string {
	return c.name
}

// ListModels returns the models pulled on the server
func (c *Client) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]provider.ModelInfo, len(resp.Models))
	for i, m := range resp.Models {
		models[i] = provider.ModelInfo{
			ID:          m.Name,
			Name:        m.Name,
			DisplayName: m.Name,
		}
	}
	return models, nil
}

func convertTurns(systemPrompt string, turns []message.Turn) []api.Message {
	msgs := make([]api.Message, 0, len(turns)+1)
	if systemPrompt != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: systemPrompt})
	}
	for _, t := range turns {
		switch t.Role {
		case message.RoleUser:
			msgs = append(msgs, api.Message{Role: "user", Content: t.Content})
		case message.RoleToolResult:
			if t.ToolResult != nil {
				msgs = append(msgs, api.Message{Role: "tool", Content: t.ToolResult.Content})
			}
		case message.RoleAssistant:
			m := api.Message{Role: "assistant", Content: t.Content}
			for _, tc := range t.ToolCalls {
				args, _ := message.ParseToolInput(tc.Input)
				m.ToolCalls = append(m.ToolCalls, api.ToolCall{
					Function: api.ToolCallFunction{
						Name:      tc.Name,
						Arguments: args,
					},
				})
			}
			msgs = append(msgs, m)
		}
	}
	return msgs
}

// convertTools maps JSON-schema tool definitions onto Ollama's typed schema
// by round-tripping through JSON.
func convertTools(tools []provider.Tool) ([]api.Tool, error) {
	out := make([]api.Tool, 0, len(tools))
	for _, t := range tools {
		tool := api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        t.Name,
				Description: t.Description,
			},
		}
		if t.Parameters != nil {
			raw, err := json.Marshal(t.Parameters)
			if err != nil {
				return nil, fmt.Errorf("tool %s: %w", t.Name, err)
			}
			if err := json.Unmarshal(raw, &tool.Function.Parameters); err != nil {
				return nil, fmt.Errorf("tool %s: %w", t.Name, err)
			}
		}
		out = append(out, tool)
	}
	return out, nil
}

// Stream sends a chat request and returns a channel of streaming chunks
func (c *Client) Stream(ctx context.Context, opts provider.CompletionOptions) <-chan message.StreamChunk {
	ch := make(chan message.StreamChunk)

	go func() {
		defer close(ch)

		send := func(chunk message.StreamChunk) error {
			select {
			case ch <- chunk:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		tools, err := convertTools(opts.Tools)
		if err != nil {
			_ = send(message.StreamChunk{Type: message.ChunkTypeError, Error: err})
			return
		}

		stream := true
		req := &api.ChatRequest{
			Model:    opts.Model,
			Messages: convertTurns(opts.SystemPrompt, opts.Turns),
			Tools:    tools,
			Stream:   &stream,
		}
		if opts.Reasoning {
			req.Think = &api.ThinkValue{Value: true}
		}
		if opts.Temperature > 0 || opts.MaxTokens > 0 {
			req.Options = map[string]any{}
			if opts.Temperature > 0 {
				req.Options["temperature"] = opts.Temperature
			}
			if opts.MaxTokens > 0 {
				req.Options["num_predict"] = opts.MaxTokens
			}
		}

		log.LogRequest(c.name, opts.Model, opts)

		var response message.CompletionResponse
		var thinking strings.Builder
		streamStart := time.Now()
		chunkCount := 0

		err = c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			chunkCount++
			if resp.Message.Thinking != "" {
				thinking.WriteString(resp.Message.Thinking)
				if err := send(message.StreamChunk{Type: message.ChunkTypeThinking, Text: resp.Message.Thinking}); err != nil {
					return err
				}
			}
			if resp.Message.Content != "" {
				response.Content += resp.Message.Content
				if err := send(message.StreamChunk{Type: message.ChunkTypeText, Text: resp.Message.Content}); err != nil {
					return err
				}
			}
			for _, tc := range resp.Message.ToolCalls {
				input, err := json.Marshal(tc.Function.Arguments)
				if err != nil {
					input = []byte("{}")
				}
				call := message.ToolCall{
					ID:    "call_" + uuid.NewString()[:8],
					Name:  tc.Function.Name,
					Input: string(input),
				}
				response.ToolCalls = append(response.ToolCalls, call)
				if err := send(message.StreamChunk{Type: message.ChunkTypeToolStart, ToolID: call.ID, ToolName: call.Name}); err != nil {
					return err
				}
			}
			if resp.Done {
				response.Usage.InputTokens = resp.PromptEvalCount
				response.Usage.OutputTokens = resp.EvalCount
				switch {
				case len(response.ToolCalls) > 0:
					response.StopReason = "tool_use"
				case resp.DoneReason == "length":
					response.StopReason = "max_tokens"
				default:
					response.StopReason = "end_turn"
				}
			}
			return nil
		})

		log.LogStreamDone(c.name, time.Since(streamStart), chunkCount)

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.LogError(c.name, err)
			_ = send(message.StreamChunk{Type: message.ChunkTypeError, Error: provider.Classify(opts.Model, err)})
			return
		}

		response.Thinking = thinking.String()
		log.LogResponse(c.name, response)
		_ = send(message.StreamChunk{Type: message.ChunkTypeDone, Response: &response})
	}()

	return ch
}

// Ensure Client implements LLMProvider
var _ provider.LLMProvider = (*Client)(nil)

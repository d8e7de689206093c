package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/yanmxa/finsight/internal/log"
	"github.com/yanmxa/finsight/internal/message"
	"github.com/yanmxa/finsight/internal/provider"
)

const defaultMaxTokens = 8192

// Client implements the LLMProvider interface using the Anthropic SDK
type Client struct {
	client anthropic.Client
	name   string
}

// NewClient creates a new Anthropic client with the given SDK client
func NewClient(client anthropic.Client, name string) *Client {
	return &Client{
		client: client,
		name:   name,
	}
}

// Name returns the provider name
func (c *Client) Name() string {
	return c.name
}

// convertTurns maps provider-level turns to Anthropic messages. Consecutive
// tool results are grouped into one user message.
func convertTurns(turns []message.Turn) []anthropic.MessageParam {
	msgs := make([]anthropic.MessageParam, 0, len(turns))
	var pending []anthropic.ContentBlockParamUnion

	flushResults := func() {
		if len(pending) > 0 {
			msgs = append(msgs, anthropic.NewUserMessage(pending...))
			pending = nil
		}
	}

	for _, t := range turns {
		switch t.Role {
		case message.RoleToolResult:
			if t.ToolResult != nil {
				pending = append(pending, anthropic.NewToolResultBlock(
					t.ToolResult.ToolCallID,
					t.ToolResult.Content,
					t.ToolResult.IsError,
				))
			}
		case message.RoleUser:
			flushResults()
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Content)))
		case message.RoleAssistant:
			flushResults()
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(t.ToolCalls)+1)
			if t.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(t.Content))
			}
			for _, tc := range t.ToolCalls {
				var input any
				if tc.Input != "" {
					if err := json.Unmarshal([]byte(tc.Input), &input); err != nil {
						input = map[string]any{}
					}
				} else {
					// For tools with no parameters, use empty object instead of nil
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(blocks) > 0 {
				msgs = append(msgs, anthropic.NewAssistantMessage(blocks...))
			}
		}
	}
	flushResults()
	return msgs
}

func convertTools(tools []provider.Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{}
		if props, ok := t.Parameters.(map[string]any); ok {
			if properties, ok := props["properties"]; ok {
				inputSchema.Properties = properties
			}
			switch required := props["required"].(type) {
			case []string:
				inputSchema.Required = required
			case []any:
				for _, r := range required {
					if s, ok := r.(string); ok {
						inputSchema.Required = append(inputSchema.Required, s)
					}
				}
			}
		}

		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: inputSchema,
			},
		})
	}
	return out
}

// Stream sends a completion request and returns a channel of streaming chunks
func (c *Client) Stream(ctx context.Context, opts provider.CompletionOptions) <-chan message.StreamChunk {
	ch := make(chan message.StreamChunk)

	go func() {
		defer close(ch)

		send := func(chunk message.StreamChunk) bool {
			select {
			case ch <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		maxTokens := opts.MaxTokens
		if maxTokens <= 0 {
			maxTokens = defaultMaxTokens
		}

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(opts.Model),
			MaxTokens: int64(maxTokens),
			Messages:  convertTurns(opts.Turns),
		}

		if opts.SystemPrompt != "" {
			params.System = []anthropic.TextBlockParam{
				{Text: opts.SystemPrompt},
			}
		}

		if len(opts.Tools) > 0 {
			params.Tools = convertTools(opts.Tools)
		}

		log.LogRequest(c.name, opts.Model, opts)

		stream := c.client.Messages.NewStreaming(ctx, params)

		var currentTool *message.ToolCall
		var response message.CompletionResponse

		streamStart := time.Now()
		chunkCount := 0

		for stream.Next() {
			event := stream.Current()
			chunkCount++

			switch event.Type {
			case "content_block_start":
				block := event.AsContentBlockStart()
				if block.ContentBlock.Type == "tool_use" {
					currentTool = &message.ToolCall{
						ID:   block.ContentBlock.ID,
						Name: block.ContentBlock.Name,
					}
					if !send(message.StreamChunk{Type: message.ChunkTypeToolStart, ToolID: currentTool.ID, ToolName: currentTool.Name}) {
						return
					}
				}

			case "content_block_delta":
				delta := event.AsContentBlockDelta()
				switch delta.Delta.Type {
				case "text_delta":
					if delta.Delta.Text != "" {
						if !send(message.StreamChunk{Type: message.ChunkTypeText, Text: delta.Delta.Text}) {
							return
						}
						response.Content += delta.Delta.Text
					}
				case "thinking_delta":
					if delta.Delta.Thinking != "" {
						if !send(message.StreamChunk{Type: message.ChunkTypeThinking, Text: delta.Delta.Thinking}) {
							return
						}
						response.Thinking += delta.Delta.Thinking
					}
				case "input_json_delta":
					if currentTool != nil {
						currentTool.Input += delta.Delta.PartialJSON
					}
				}

			case "content_block_stop":
				if currentTool != nil {
					response.ToolCalls = append(response.ToolCalls, *currentTool)
					currentTool = nil
				}

			case "message_delta":
				msgDelta := event.AsMessageDelta()
				response.StopReason = string(msgDelta.Delta.StopReason)
				response.Usage.OutputTokens = int(msgDelta.Usage.OutputTokens)

			case "message_start":
				msgStart := event.AsMessageStart()
				response.Usage.InputTokens = int(msgStart.Message.Usage.InputTokens)
			}
		}

		log.LogStreamDone(c.name, time.Since(streamStart), chunkCount)

		if err := stream.Err(); err != nil {
			log.LogError(c.name, err)
			send(message.StreamChunk{Type: message.ChunkTypeError, Error: provider.Classify(opts.Model, err)})
			return
		}

		log.LogResponse(c.name, response)

		send(message.StreamChunk{Type: message.ChunkTypeDone, Response: &response})
	}()

	return ch
}

// ListModels returns available models using the Anthropic Models API
func (c *Client) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	pager := c.client.Models.ListAutoPaging(ctx, anthropic.ModelListParams{})

	var models []provider.ModelInfo
	for pager.Next() {
		m := pager.Current()
		models = append(models, provider.ModelInfo{
			ID:          m.ID,
			Name:        m.DisplayName,
			DisplayName: m.DisplayName,
		})
	}
	if err := pager.Err(); err != nil {
		return nil, err
	}

	if len(models) == 0 {
		return nil, fmt.Errorf("no models returned from API")
	}
	return models, nil
}

// Ensure Client implements LLMProvider
var _ provider.LLMProvider = (*Client)(nil)

package openai

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"

	"github.com/yanmxa/finsight/internal/log"
	"github.com/yanmxa/finsight/internal/message"
	"github.com/yanmxa/finsight/internal/provider"
)

// Client implements the LLMProvider interface on the Chat Completions API.
// The same client serves OpenAI, LM Studio and the model gateway, which all
// speak the OpenAI wire format.
type Client struct {
	client openai.Client
	name   string
}

// NewClient creates a new OpenAI client with the given SDK client
func NewClient(client openai.Client, name string) *Client {
	return &Client{
		client: client,
		name:   name,
	}
}

// Name returns the provider name
func (c *Client) Name() string {
	return c.name
}

// convertTurns maps provider-level turns to Chat Completions messages.
func convertTurns(systemPrompt string, turns []message.Turn) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+1)

	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}

	for _, t := range turns {
		switch t.Role {
		case message.RoleUser:
			messages = append(messages, openai.UserMessage(t.Content))
		case message.RoleToolResult:
			if t.ToolResult != nil {
				messages = append(messages, openai.ToolMessage(t.ToolResult.Content, t.ToolResult.ToolCallID))
			}
		case message.RoleAssistant:
			if len(t.ToolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(t.Content))
				continue
			}
			var asstMsg openai.ChatCompletionAssistantMessageParam
			if t.Content != "" {
				asstMsg.Content.OfString = openai.Opt(t.Content)
			}
			asstMsg.ToolCalls = make([]openai.ChatCompletionMessageToolCallUnionParam, len(t.ToolCalls))
			for i, tc := range t.ToolCalls {
				args := tc.Input
				if strings.TrimSpace(args) == "" {
					args = "{}"
				}
				asstMsg.ToolCalls[i] = openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: args,
						},
					},
				}
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &asstMsg})
		}
	}
	return messages
}

func convertTools(tools []provider.Tool) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var funcParams openai.FunctionParameters
		if props, ok := t.Parameters.(map[string]any); ok {
			funcParams = props
		}
		out = append(out, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters:  funcParams,
				},
			},
		})
	}
	return out
}

// Stream sends a completion request and returns a channel of streaming chunks.
func (c *Client) Stream(ctx context.Context, opts provider.CompletionOptions) <-chan message.StreamChunk {
	ch := make(chan message.StreamChunk)

	go func() {
		defer close(ch)

		params := openai.ChatCompletionNewParams{
			Model:    opts.Model,
			Messages: convertTurns(opts.SystemPrompt, opts.Turns),
			StreamOptions: openai.ChatCompletionStreamOptionsParam{
				IncludeUsage: openai.Bool(true),
			},
		}

		if opts.MaxTokens > 0 {
			params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
		}

		if opts.Temperature > 0 {
			params.Temperature = openai.Float(opts.Temperature)
		}

		if len(opts.Tools) > 0 {
			params.Tools = convertTools(opts.Tools)
		}

		log.LogRequest(c.name, opts.Model, opts)

		stream := c.client.Chat.Completions.NewStreaming(ctx, params)

		// Tool calls arrive as fragments keyed by index
		toolCalls := make(map[int]*message.ToolCall)
		var response message.CompletionResponse

		streamStart := time.Now()
		chunkCount := 0

		send := func(chunk message.StreamChunk) bool {
			select {
			case ch <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for stream.Next() {
			chunk := stream.Current()
			chunkCount++

			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					if !send(message.StreamChunk{Type: message.ChunkTypeText, Text: choice.Delta.Content}) {
						return
					}
					response.Content += choice.Delta.Content
				}

				for _, tc := range choice.Delta.ToolCalls {
					idx := int(tc.Index)

					if _, exists := toolCalls[idx]; !exists {
						toolCalls[idx] = &message.ToolCall{
							ID:   tc.ID,
							Name: tc.Function.Name,
						}
						if !send(message.StreamChunk{Type: message.ChunkTypeToolStart, ToolID: tc.ID, ToolName: tc.Function.Name}) {
							return
						}
					}

					if tc.Function.Arguments != "" {
						toolCalls[idx].Input += tc.Function.Arguments
					}
				}

				if choice.FinishReason != "" {
					response.StopReason = mapFinishReason(choice.FinishReason)
				}
			}

			if chunk.Usage.PromptTokens > 0 {
				response.Usage.InputTokens = int(chunk.Usage.PromptTokens)
			}
			if chunk.Usage.CompletionTokens > 0 {
				response.Usage.OutputTokens = int(chunk.Usage.CompletionTokens)
			}
		}

		log.LogStreamDone(c.name, time.Since(streamStart), chunkCount)

		if err := stream.Err(); err != nil {
			log.LogError(c.name, err)
			send(message.StreamChunk{Type: message.ChunkTypeError, Error: provider.Classify(opts.Model, err)})
			return
		}

		indexes := make([]int, 0, len(toolCalls))
		for idx := range toolCalls {
			indexes = append(indexes, idx)
		}
		sort.Ints(indexes)
		for _, idx := range indexes {
			response.ToolCalls = append(response.ToolCalls, *toolCalls[idx])
		}
		if len(response.ToolCalls) > 0 && response.StopReason == "" {
			response.StopReason = "tool_use"
		}

		log.LogResponse(c.name, response)

		send(message.StreamChunk{Type: message.ChunkTypeDone, Response: &response})
	}()

	return ch
}

func mapFinishReason(reason string) string {
	switch reason {
	case "stop":
		return "end_turn"
	case "tool_calls":
		return "tool_use"
	case "length":
		return "max_tokens"
	default:
		return reason
	}
}

// ListModels returns the chat-capable models the endpoint reports
func (c *Client) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, err
	}

	models := make([]provider.ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		id := m.ID
		if strings.HasPrefix(id, "dall-e") ||
			strings.HasPrefix(id, "tts-") ||
			strings.HasPrefix(id, "whisper-") ||
			strings.HasPrefix(id, "omni-moderation") ||
			strings.HasPrefix(id, "gpt-image") ||
			strings.Contains(id, "-transcribe") ||
			strings.Contains(id, "-realtime") {
			continue
		}
		models = append(models, provider.ModelInfo{
			ID:          id,
			Name:        id,
			DisplayName: id,
		})
	}

	sort.Slice(models, func(i, j int) bool {
		return models[i].ID < models[j].ID
	})

	return models, nil
}

// Ensure Client implements LLMProvider
var _ provider.LLMProvider = (*Client)(nil)

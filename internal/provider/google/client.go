package google

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/yanmxa/finsight/internal/log"
	"github.com/yanmxa/finsight/internal/message"
	"github.com/yanmxa/finsight/internal/provider"
)

// Client implements the LLMProvider interface using the Google GenAI SDK
type Client struct {
	client *genai.Client
	name   string
}

// NewClient creates a new Google client with the given SDK client
func NewClient(client *genai.Client, name string) *Client {
	return &Client{
		client: client,
		name:   name,
	}
}

// Name returns the provider name
func (c *Client) Name() string {
	return c.name
}

// convertTurns maps provider-level turns to Gemini contents. Function
// responses need the tool name, which is recovered from the preceding call.
func convertTurns(turns []message.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	names := make(map[string]string)

	for _, t := range turns {
		switch t.Role {
		case message.RoleUser:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: t.Content}},
			})
		case message.RoleToolResult:
			if t.ToolResult == nil {
				continue
			}
			var result map[string]any
			if err := json.Unmarshal([]byte(t.ToolResult.Content), &result); err != nil {
				// Wrap non-JSON content in a result object
				result = map[string]any{"result": t.ToolResult.Content}
			}
			if t.ToolResult.IsError {
				result = map[string]any{"error": t.ToolResult.Content}
			}
			name := t.ToolResult.ToolName
			if name == "" {
				name = names[t.ToolResult.ToolCallID]
			}
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       t.ToolResult.ToolCallID,
						Name:     name,
						Response: result,
					},
				}},
			})
		case message.RoleAssistant:
			parts := make([]*genai.Part, 0, len(t.ToolCalls)+1)
			if t.Content != "" {
				parts = append(parts, &genai.Part{Text: t.Content})
			}
			for _, tc := range t.ToolCalls {
				names[tc.ID] = tc.Name
				args, err := message.ParseToolInput(tc.Input)
				if err != nil {
					args = nil
				}
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   tc.ID,
						Name: tc.Name,
						Args: args,
					},
				})
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: "model", Parts: parts})
			}
		}
	}
	return contents
}

func buildConfig(opts provider.CompletionOptions) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if opts.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: opts.SystemPrompt}},
		}
	}

	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}

	if opts.Temperature > 0 {
		temp := float32(opts.Temperature)
		config.Temperature = &temp
	}

	if len(opts.Tools) > 0 {
		funcDecls := make([]*genai.FunctionDeclaration, 0, len(opts.Tools))
		for _, t := range opts.Tools {
			fd := &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
			}
			if t.Parameters != nil {
				fd.ParametersJsonSchema = t.Parameters
			}
			funcDecls = append(funcDecls, fd)
		}
		config.Tools = []*genai.Tool{
			{FunctionDeclarations: funcDecls},
		}
	}
	return config
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

		log.LogRequest(c.name, opts.Model, opts)

		var response message.CompletionResponse
		streamStart := time.Now()
		chunkCount := 0

		for result, err := range c.client.Models.GenerateContentStream(ctx, opts.Model, convertTurns(opts.Turns), buildConfig(opts)) {
			if err != nil {
				log.LogError(c.name, err)
				send(message.StreamChunk{Type: message.ChunkTypeError, Error: provider.Classify(opts.Model, err)})
				return
			}
			chunkCount++

			for _, candidate := range result.Candidates {
				if candidate.Content == nil {
					continue
				}

				for _, part := range candidate.Content.Parts {
					if part.Text != "" {
						if part.Thought {
							response.Thinking += part.Text
							if !send(message.StreamChunk{Type: message.ChunkTypeThinking, Text: part.Text}) {
								return
							}
						} else {
							response.Content += part.Text
							if !send(message.StreamChunk{Type: message.ChunkTypeText, Text: part.Text}) {
								return
							}
						}
					}

					if fc := part.FunctionCall; fc != nil {
						argsJSON, _ := json.Marshal(fc.Args)
						id := fc.ID
						if id == "" {
							id = fmt.Sprintf("call_%d_%s", len(response.ToolCalls), fc.Name)
						}
						if !send(message.StreamChunk{Type: message.ChunkTypeToolStart, ToolID: id, ToolName: fc.Name}) {
							return
						}
						response.ToolCalls = append(response.ToolCalls, message.ToolCall{
							ID:    id,
							Name:  fc.Name,
							Input: string(argsJSON),
						})
					}
				}

				switch candidate.FinishReason {
				case "":
				case genai.FinishReasonStop:
					response.StopReason = "end_turn"
				case genai.FinishReasonMaxTokens:
					response.StopReason = "max_tokens"
				default:
					response.StopReason = string(candidate.FinishReason)
				}
			}

			if result.UsageMetadata != nil {
				response.Usage.InputTokens = int(result.UsageMetadata.PromptTokenCount)
				response.Usage.OutputTokens = int(result.UsageMetadata.CandidatesTokenCount)
			}
		}

		log.LogStreamDone(c.name, time.Since(streamStart), chunkCount)

		if len(response.ToolCalls) > 0 {
			response.StopReason = "tool_use"
		}

		log.LogResponse(c.name, response)

		send(message.StreamChunk{Type: message.ChunkTypeDone, Response: &response})
	}()

	return ch
}

// ListModels returns the available Gemini models
func (c *Client) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	models := make([]provider.ModelInfo, 0)

	for m, err := range c.client.Models.All(ctx) {
		if err != nil {
			return nil, err
		}

		if !strings.Contains(m.Name, "gemini") {
			continue
		}
		// "models/gemini-2.0-flash" -> "gemini-2.0-flash"
		id, _ := strings.CutPrefix(m.Name, "models/")
		if strings.Contains(id, "-exp") || strings.Contains(id, "embedding") {
			continue
		}

		displayName := m.DisplayName
		if displayName == "" {
			displayName = id
		}

		models = append(models, provider.ModelInfo{
			ID:               id,
			Name:             displayName,
			DisplayName:      displayName,
			InputTokenLimit:  int(m.InputTokenLimit),
			OutputTokenLimit: int(m.OutputTokenLimit),
		})
	}

	sort.Slice(models, func(i, j int) bool {
		return models[i].ID < models[j].ID
	})

	return models, nil
}

// Ensure Client implements LLMProvider
var _ provider.LLMProvider = (*Client)(nil)

// Package message defines the conversation types shared by providers, the
// reasoning loop, the stream multiplexer and the session store.
package message

import (
	"encoding/json"
	"strings"
)

// Role represents the role of a provider-level turn.
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool_result"
)

// Turn is one provider-level exchange. Stored Messages are flattened into
// Turns before every model round (see Turns).
type Turn struct {
	Role       Role        `json:"role"`
	Content    string      `json:"content,omitempty"`
	Thinking   string      `json:"thinking,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// UserTurn creates a user turn.
func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Content: text}
}

// AssistantTurn creates an assistant turn.
func AssistantTurn(text, thinking string, calls []ToolCall) Turn {
	return Turn{
		Role:      RoleAssistant,
		Content:   text,
		Thinking:  thinking,
		ToolCalls: calls,
	}
}

// ToolResultTurn creates a tool result turn.
func ToolResultTurn(result ToolResult) Turn {
	return Turn{Role: RoleToolResult, ToolResult: &result}
}

// ErrorResult creates an error ToolResult for a tool call.
func ErrorResult(tc ToolCall, content string) ToolResult {
	return ToolResult{
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
		Content:    content,
		IsError:    true,
	}
}

// ParseToolInput deserializes JSON tool input into a params map.
func ParseToolInput(input string) (map[string]any, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return map[string]any{}, nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(input), &params); err != nil {
		return nil, err
	}
	return params, nil
}

// CompletionResponse represents a completion response from an LLM provider.
type CompletionResponse struct {
	Content    string     `json:"content,omitempty"`
	Thinking   string     `json:"thinking,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	StopReason string     `json:"stop_reason"` // "end_turn", "tool_use", "max_tokens"
	Usage      Usage      `json:"usage"`
}

// Usage contains token usage information.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add returns the sum of two usages.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
	}
}

// ChunkType represents the type of a stream chunk.
type ChunkType string

const (
	ChunkTypeText      ChunkType = "text"
	ChunkTypeThinking  ChunkType = "thinking"
	ChunkTypeToolStart ChunkType = "tool_start"
	ChunkTypeToolInput ChunkType = "tool_input"
	ChunkTypeDone      ChunkType = "done"
	ChunkTypeError     ChunkType = "error"
)

// StreamChunk represents a chunk in a streaming response.
type StreamChunk struct {
	Type     ChunkType
	Text     string              // For text and thinking chunks
	ToolID   string              // For tool_start chunks
	ToolName string              // For tool_start chunks
	Response *CompletionResponse // For done chunks
	Error    error               // For error chunks
}

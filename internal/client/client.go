// Package client wraps an LLM provider with model and token configuration.
package client

import (
	"context"
	"sync"

	"github.com/yanmxa/finsight/internal/message"
	"github.com/yanmxa/finsight/internal/provider"
)

const defaultMaxTokens = 8192

// TokenUsage tracks token consumption for a request.
type TokenUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

// Client wraps an LLM provider with model and token configuration.
type Client struct {
	Provider  provider.LLMProvider
	Model     string
	MaxTokens int  // 0 means defaultMaxTokens
	Reasoning bool // request extended reasoning when the model supports it

	mu     sync.Mutex
	tokens TokenUsage
}

// AddUsage accumulates token usage from a completion response.
func (c *Client) AddUsage(usage message.Usage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens.InputTokens += usage.InputTokens
	c.tokens.OutputTokens += usage.OutputTokens
	c.tokens.TotalTokens = c.tokens.InputTokens + c.tokens.OutputTokens
}

// Tokens returns the accumulated token usage.
func (c *Client) Tokens() TokenUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens
}

// Stream starts a streaming completion request and returns a chunk channel.
func (c *Client) Stream(ctx context.Context, turns []message.Turn,
	tools []provider.Tool, sysPrompt string) <-chan message.StreamChunk {
	return c.Provider.Stream(ctx, c.opts(turns, tools, sysPrompt))
}

// Send sends a completion request and collects the full response.
func (c *Client) Send(ctx context.Context, turns []message.Turn,
	tools []provider.Tool, sysPrompt string) (message.CompletionResponse, error) {
	return provider.Complete(ctx, c.Provider, c.opts(turns, tools, sysPrompt))
}

// Name returns the provider name (e.g., "anthropic").
func (c *Client) Name() string {
	return c.Provider.Name()
}

// ModelID returns the model identifier.
func (c *Client) ModelID() string {
	return c.Model
}

func (c *Client) opts(turns []message.Turn, tools []provider.Tool, sysPrompt string) provider.CompletionOptions {
	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return provider.CompletionOptions{
		Model:        c.Model,
		Turns:        turns,
		MaxTokens:    maxTokens,
		Tools:        tools,
		SystemPrompt: sysPrompt,
		Reasoning:    c.Reasoning,
	}
}

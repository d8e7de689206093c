package provider

import (
	"context"

	"github.com/yanmxa/finsight/internal/message"
)

// Provider represents a provider name
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
	ProviderOllama    Provider = "ollama"
	ProviderLMStudio  Provider = "lmstudio"
	ProviderGateway   Provider = "gateway"
)

// AuthMethod represents an authentication method
type AuthMethod string

const (
	AuthAPIKey AuthMethod = "api_key"
	AuthVertex AuthMethod = "vertex"
	AuthLocal  AuthMethod = "local"
)

// ProviderMeta contains static metadata about a provider
type ProviderMeta struct {
	Provider    Provider
	AuthMethod  AuthMethod
	DisplayName string
}

// Key returns a unique key for this provider configuration
func (m ProviderMeta) Key() string {
	return makeProviderKey(m.Provider, m.AuthMethod)
}

// Endpoint carries the connection settings a factory needs. Which fields
// matter depends on the provider.
type Endpoint struct {
	BaseURL string
	APIKey  string
	Project string
	Region  string
}

// ModelInfo represents information about an available model
type ModelInfo struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	DisplayName      string `json:"displayName,omitempty"`
	InputTokenLimit  int    `json:"inputTokenLimit,omitempty"`
	OutputTokenLimit int    `json:"outputTokenLimit,omitempty"`
}

// CompletionOptions contains options for a completion request
type CompletionOptions struct {
	Model        string
	Turns        []message.Turn
	MaxTokens    int
	Temperature  float64
	Tools        []Tool
	SystemPrompt string
	Reasoning    bool
}

// Tool represents a tool definition
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters"` // JSON Schema
}

// LLMProvider is the interface that all providers must implement
type LLMProvider interface {
	// Stream sends a completion request and returns a channel of streaming chunks
	Stream(ctx context.Context, opts CompletionOptions) <-chan message.StreamChunk

	// ListModels returns the available models for this provider
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// Name returns the provider name
	Name() string
}

// Factory creates a new LLMProvider instance for an endpoint
type Factory func(ctx context.Context, ep Endpoint) (LLMProvider, error)

// Complete is a helper function that collects stream chunks into a complete response
// This provides non-streaming output from any LLMProvider
func Complete(ctx context.Context, p LLMProvider, opts CompletionOptions) (message.CompletionResponse, error) {
	var response message.CompletionResponse

	for chunk := range p.Stream(ctx, opts) {
		switch chunk.Type {
		case message.ChunkTypeText:
			response.Content += chunk.Text
		case message.ChunkTypeThinking:
			response.Thinking += chunk.Text
		case message.ChunkTypeDone:
			if chunk.Response != nil {
				return *chunk.Response, nil
			}
			return response, nil
		case message.ChunkTypeError:
			return response, Classify(opts.Model, chunk.Error)
		}
	}

	return response, nil
}

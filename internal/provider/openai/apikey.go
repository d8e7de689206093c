package openai

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/yanmxa/finsight/internal/provider"
)

// APIKeyMeta is the metadata for OpenAI via API Key
var APIKeyMeta = provider.ProviderMeta{
	Provider:    provider.ProviderOpenAI,
	AuthMethod:  provider.AuthAPIKey,
	DisplayName: "OpenAI",
}

// LMStudioMeta is the metadata for a local LM Studio server
var LMStudioMeta = provider.ProviderMeta{
	Provider:    provider.ProviderLMStudio,
	AuthMethod:  provider.AuthLocal,
	DisplayName: "LM Studio",
}

// GatewayMeta is the metadata for the OpenAI-compatible model gateway
var GatewayMeta = provider.ProviderMeta{
	Provider:    provider.ProviderGateway,
	AuthMethod:  provider.AuthAPIKey,
	DisplayName: "Gateway",
}

// NewAPIKeyClient creates a new OpenAI client using API Key authentication
func NewAPIKeyClient(_ context.Context, ep provider.Endpoint) (provider.LLMProvider, error) {
	if ep.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(ep.APIKey)}
	if ep.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(ep.BaseURL))
	}
	return NewClient(openai.NewClient(opts...), APIKeyMeta.Key()), nil
}

// NewLMStudioClient creates a client for LM Studio's OpenAI-compatible server.
// LM Studio ignores the key but the SDK requires one.
func NewLMStudioClient(_ context.Context, ep provider.Endpoint) (provider.LLMProvider, error) {
	if ep.BaseURL == "" {
		return nil, errors.New("lmstudio: base url is required")
	}
	key := ep.APIKey
	if key == "" {
		key = "lm-studio"
	}
	client := openai.NewClient(
		option.WithAPIKey(key),
		option.WithBaseURL(ep.BaseURL),
		option.WithMaxRetries(0),
	)
	return NewClient(client, LMStudioMeta.Key()), nil
}

// NewGatewayClient creates a client for the model gateway. Model names are
// provider-qualified aliases such as "openai/gpt-4o".
func NewGatewayClient(_ context.Context, ep provider.Endpoint) (provider.LLMProvider, error) {
	if ep.APIKey == "" || ep.BaseURL == "" {
		return nil, errors.New("gateway: base url and api key are required")
	}
	client := openai.NewClient(
		option.WithAPIKey(ep.APIKey),
		option.WithBaseURL(ep.BaseURL),
	)
	return NewClient(client, GatewayMeta.Key()), nil
}

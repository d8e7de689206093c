package anthropic

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/yanmxa/finsight/internal/provider"
)

// APIKeyMeta is the metadata for Anthropic via API Key
var APIKeyMeta = provider.ProviderMeta{
	Provider:    provider.ProviderAnthropic,
	AuthMethod:  provider.AuthAPIKey,
	DisplayName: "Anthropic",
}

// NewAPIKeyClient creates a new Anthropic client using API Key authentication
func NewAPIKeyClient(_ context.Context, ep provider.Endpoint) (provider.LLMProvider, error) {
	if ep.APIKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(ep.APIKey)}
	if ep.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(ep.BaseURL))
	}
	return NewClient(anthropic.NewClient(opts...), APIKeyMeta.Key()), nil
}

package google

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"github.com/yanmxa/finsight/internal/provider"
)

// APIKeyMeta is the metadata for Google via API Key
var APIKeyMeta = provider.ProviderMeta{
	Provider:    provider.ProviderGoogle,
	AuthMethod:  provider.AuthAPIKey,
	DisplayName: "Gemini",
}

// NewAPIKeyClient creates a new Google client using API Key authentication
func NewAPIKeyClient(ctx context.Context, ep provider.Endpoint) (provider.LLMProvider, error) {
	if ep.APIKey == "" {
		return nil, errors.New("google: api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  ep.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	return NewClient(client, APIKeyMeta.Key()), nil
}

package anthropic

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/vertex"

	"github.com/yanmxa/finsight/internal/provider"
)

// VertexMeta is the metadata for Anthropic via Vertex AI
var VertexMeta = provider.ProviderMeta{
	Provider:    provider.ProviderAnthropic,
	AuthMethod:  provider.AuthVertex,
	DisplayName: "Vertex AI",
}

// NewVertexClient creates a new Anthropic client using Vertex AI authentication
func NewVertexClient(ctx context.Context, ep provider.Endpoint) (provider.LLMProvider, error) {
	if ep.Project == "" {
		return nil, errors.New("vertex: project id is required")
	}
	region := ep.Region
	if region == "" {
		region = "us-east5"
	}

	client := anthropic.NewClient(
		vertex.WithGoogleAuth(ctx, region, ep.Project),
	)

	return NewClient(client, VertexMeta.Key()), nil
}

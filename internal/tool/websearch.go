package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/yanmxa/finsight/internal/provider/search"
)

// WebSearchTool searches the web for news and general information
type WebSearchTool struct {
	Provider search.Provider
	Timeout  time.Duration
}

func (t *WebSearchTool) Name() string { return WebSearch }
func (t *WebSearchTool) Description() string {
	return "Search the web for recent news and information not covered by the financial datasets"
}

func (t *WebSearchTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query",
			},
			"num_results": map[string]any{
				"type":        "integer",
				"description": "Number of results to return. Default is 10.",
			},
			"allowed_domains": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Only include results from these domains",
			},
			"blocked_domains": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Never include results from these domains",
			},
		},
		"required": []string{"query"},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	query, err := requireString(params, "query")
	if err != nil {
		return "", err
	}
	if t.Provider == nil || !t.Provider.IsAvailable() {
		return "", fmt.Errorf("web search is not configured")
	}

	opts := search.DefaultOptions()
	opts.NumResults = optInt(params, "num_results", 10)
	opts.AllowedDomains = optStrings(params, "allowed_domains")
	opts.BlockedDomains = optStrings(params, "blocked_domains")
	if t.Timeout > 0 {
		opts.Timeout = t.Timeout
	}

	results, err := t.Provider.Search(ctx, query, opts)
	if err != nil {
		return "", fmt.Errorf("search via %s failed: %w", t.Provider.DisplayName(), err)
	}
	return formatResults(query, results), nil
}

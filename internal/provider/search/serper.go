package search

import (
	"context"
	"errors"
	"net/http"
)

const serperEndpoint = "https://google.serper.dev/search"

// SerperProvider implements the Serper.dev search provider
type SerperProvider struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewSerperProvider creates a new Serper provider
func NewSerperProvider(apiKey string) *SerperProvider {
	return &SerperProvider{apiKey: apiKey, endpoint: serperEndpoint}
}

func (p *SerperProvider) Name() ProviderName  { return ProviderSerper }
func (p *SerperProvider) DisplayName() string { return "Serper (Google)" }
func (p *SerperProvider) IsAvailable() bool   { return p.apiKey != "" }

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
	} `json:"organic"`
}

// Search performs a web search using Serper
func (p *SerperProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	if !p.IsAvailable() {
		return nil, errors.New("serper api key is not configured")
	}

	numResults := opts.NumResults
	if numResults <= 0 {
		numResults = 10
	}

	var resp serperResponse
	headers := map[string]string{"X-API-KEY": p.apiKey}
	if err := doJSON(ctx, p.client, getTimeout(opts), http.MethodPost, p.endpoint, headers, serperRequest{Q: query, Num: numResults}, &resp); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(resp.Organic))
	for _, r := range resp.Organic {
		// Serper has no native domain filtering
		if !matchesDomainFilter(r.Link, opts.AllowedDomains, opts.BlockedDomains) {
			continue
		}
		results = append(results, SearchResult{
			Title:   r.Title,
			URL:     r.Link,
			Snippet: truncateSnippet(r.Snippet, 200),
			Date:    r.Date,
		})
	}
	return results, nil
}

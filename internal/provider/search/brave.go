package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// BraveProvider implements the Brave Search provider
type BraveProvider struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewBraveProvider creates a new Brave provider
func NewBraveProvider(apiKey string) *BraveProvider {
	return &BraveProvider{apiKey: apiKey, endpoint: braveEndpoint}
}

func (p *BraveProvider) Name() ProviderName  { return ProviderBrave }
func (p *BraveProvider) DisplayName() string { return "Brave Search" }
func (p *BraveProvider) IsAvailable() bool   { return p.apiKey != "" }

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Age         string `json:"age"`
		} `json:"results"`
	} `json:"web"`
}

// Search performs a web search using Brave Search
func (p *BraveProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	if !p.IsAvailable() {
		return nil, errors.New("brave api key is not configured")
	}

	numResults := opts.NumResults
	if numResults <= 0 {
		numResults = 10
	}

	u, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("count", fmt.Sprintf("%d", numResults))
	u.RawQuery = q.Encode()

	var resp braveResponse
	headers := map[string]string{"X-Subscription-Token": p.apiKey}
	if err := doJSON(ctx, p.client, getTimeout(opts), http.MethodGet, u.String(), headers, nil, &resp); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(resp.Web.Results))
	for _, r := range resp.Web.Results {
		if !matchesDomainFilter(r.URL, opts.AllowedDomains, opts.BlockedDomains) {
			continue
		}
		results = append(results, SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: truncateSnippet(r.Description, 200),
			Date:    r.Age,
		})
	}
	return results, nil
}

package search

import (
	"context"
	"errors"
	"net/http"
)

const exaEndpoint = "https://api.exa.ai/search"

// ExaProvider implements the Exa AI search provider
type ExaProvider struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewExaProvider creates a new Exa provider
func NewExaProvider(apiKey string) *ExaProvider {
	return &ExaProvider{apiKey: apiKey, endpoint: exaEndpoint}
}

func (p *ExaProvider) Name() ProviderName  { return ProviderExa }
func (p *ExaProvider) DisplayName() string { return "Exa AI" }
func (p *ExaProvider) IsAvailable() bool   { return p.apiKey != "" }

type exaRequest struct {
	Query          string      `json:"query"`
	NumResults     int         `json:"numResults,omitempty"`
	Type           string      `json:"type,omitempty"`
	Contents       exaContents `json:"contents"`
	IncludeDomains []string    `json:"includeDomains,omitempty"`
	ExcludeDomains []string    `json:"excludeDomains,omitempty"`
}

type exaContents struct {
	Text bool `json:"text"`
}

type exaResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Text          string  `json:"text"`
		PublishedDate string  `json:"publishedDate"`
		Score         float64 `json:"score"`
	} `json:"results"`
}

// Search performs a web search using the Exa search API
func (p *ExaProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	if !p.IsAvailable() {
		return nil, errors.New("exa api key is not configured")
	}

	numResults := opts.NumResults
	if numResults <= 0 {
		numResults = 8
	}

	req := exaRequest{
		Query:          query,
		NumResults:     numResults,
		Type:           "auto",
		Contents:       exaContents{Text: true},
		IncludeDomains: opts.AllowedDomains,
		ExcludeDomains: opts.BlockedDomains,
	}

	var resp exaResponse
	headers := map[string]string{"x-api-key": p.apiKey}
	if err := doJSON(ctx, p.client, getTimeout(opts), http.MethodPost, p.endpoint, headers, req, &resp); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: truncateSnippet(r.Text, 200),
			Date:    r.PublishedDate,
			Score:   r.Score,
		})
	}
	return results, nil
}

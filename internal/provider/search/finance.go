package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Dataset names a group of sources on the financial data service.
type Dataset string

const (
	DatasetMarkets   Dataset = "markets"
	DatasetFilings   Dataset = "filings"
	DatasetEconomics Dataset = "economics"
)

// datasetSources maps datasets to the source identifiers the service expects.
var datasetSources = map[Dataset][]string{
	DatasetMarkets: {
		"valyu/valyu-stocks-US",
		"valyu/valyu-earnings-US",
		"valyu/valyu-crypto",
		"valyu/valyu-forex",
	},
	DatasetFilings: {
		"valyu/valyu-sec-filings",
	},
	DatasetEconomics: {
		"valyu/valyu-bls",
		"valyu/valyu-fred",
		"valyu/valyu-world-bank",
	},
}

// FinanceQuery is a request to the financial data service.
type FinanceQuery struct {
	Query      string
	Dataset    Dataset
	NumResults int
	StartDate  string // YYYY-MM-DD, optional
	EndDate    string
}

// FinanceClient searches the remote financial data service.
type FinanceClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

// NewFinanceClient creates a client for the service at baseURL.
func NewFinanceClient(baseURL, apiKey string, timeout time.Duration) *FinanceClient {
	return &FinanceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
	}
}

// WithHTTPClient overrides the HTTP client.
func (c *FinanceClient) WithHTTPClient(hc *http.Client) *FinanceClient {
	c.client = hc
	return c
}

// IsAvailable reports whether the client has credentials.
func (c *FinanceClient) IsAvailable() bool {
	return c.baseURL != "" && c.apiKey != ""
}

type financeRequest struct {
	Query           string   `json:"query"`
	SearchType      string   `json:"search_type"`
	MaxNumResults   int      `json:"max_num_results"`
	IncludedSources []string `json:"included_sources,omitempty"`
	StartDate       string   `json:"start_date,omitempty"`
	EndDate         string   `json:"end_date,omitempty"`
}

type financeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Results []struct {
		Title          string  `json:"title"`
		URL            string  `json:"url"`
		Content        any     `json:"content"`
		Source         string  `json:"source"`
		DataType       string  `json:"data_type"`
		RelevanceScore float64 `json:"relevance_score"`
		Date           string  `json:"publication_date"`
	} `json:"results"`
}

// Search runs a query against one dataset.
func (c *FinanceClient) Search(ctx context.Context, q FinanceQuery) ([]SearchResult, error) {
	if !c.IsAvailable() {
		return nil, errors.New("financial data service is not configured")
	}
	if strings.TrimSpace(q.Query) == "" {
		return nil, errors.New("query is required")
	}
	sources, ok := datasetSources[q.Dataset]
	if !ok {
		return nil, fmt.Errorf("unknown dataset %q", q.Dataset)
	}
	n := q.NumResults
	if n <= 0 {
		n = 10
	}

	req := financeRequest{
		Query:           q.Query,
		SearchType:      "proprietary",
		MaxNumResults:   n,
		IncludedSources: sources,
		StartDate:       q.StartDate,
		EndDate:         q.EndDate,
	}

	timeout := c.timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	var resp financeResponse
	headers := map[string]string{"x-api-key": c.apiKey}
	if err := doJSON(ctx, c.client, timeout, http.MethodPost, c.baseURL+"/deepsearch", headers, req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success && resp.Error != "" {
		return nil, fmt.Errorf("financial data service: %s", resp.Error)
	}

	results := make([]SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, SearchResult{
			Title:    r.Title,
			URL:      r.URL,
			Snippet:  truncateSnippet(contentString(r.Content), 2000),
			Source:   r.Source,
			Date:     r.Date,
			Score:    r.RelevanceScore,
			DataType: r.DataType,
		})
	}
	return results, nil
}

// contentString flattens structured content (tables, series) into text.
func contentString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	default:
		return fmt.Sprint(c)
	}
}

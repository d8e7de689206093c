package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/yanmxa/finsight/internal/provider/search"
)

// financeSearcher is the part of search.FinanceClient the tools need.
type financeSearcher interface {
	Search(ctx context.Context, q search.FinanceQuery) ([]search.SearchResult, error)
}

// DatasetSearchTool searches one dataset of the financial data service.
type DatasetSearchTool struct {
	name        string
	description string
	dataset     search.Dataset
	client      financeSearcher
}

// NewFinanceSearch searches market data: prices, earnings, crypto and forex.
func NewFinanceSearch(c financeSearcher) *DatasetSearchTool {
	return &DatasetSearchTool{
		name: FinanceSearch,
		description: "Search market data: stock prices, earnings, balance sheets, crypto and forex. " +
			"Use for any question about a company's or asset's financial figures.",
		dataset: search.DatasetMarkets,
		client:  c,
	}
}

// NewSECSearch searches SEC filings such as 10-K and 10-Q reports.
func NewSECSearch(c financeSearcher) *DatasetSearchTool {
	return &DatasetSearchTool{
		name: SECSearch,
		description: "Search SEC filings (10-K, 10-Q, 8-K). Use for risk factors, segment disclosures, " +
			"management discussion and other regulatory filing content.",
		dataset: search.DatasetFilings,
		client:  c,
	}
}

// NewEconomicsSearch searches macroeconomic series.
func NewEconomicsSearch(c financeSearcher) *DatasetSearchTool {
	return &DatasetSearchTool{
		name: EconomicsSearch,
		description: "Search economic indicators (BLS, FRED, World Bank): inflation, employment, " +
			"interest rates, GDP.",
		dataset: search.DatasetEconomics,
		client:  c,
	}
}

func (t *DatasetSearchTool) Name() string        { return t.name }
func (t *DatasetSearchTool) Description() string { return t.description }

func (t *DatasetSearchTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Natural language query, e.g. 'Apple quarterly revenue 2024'",
			},
			"max_results": map[string]any{
				"type":        "integer",
				"description": "Maximum number of results. Default is 10.",
			},
			"start_date": map[string]any{
				"type":        "string",
				"description": "Earliest publication date, YYYY-MM-DD",
			},
			"end_date": map[string]any{
				"type":        "string",
				"description": "Latest publication date, YYYY-MM-DD",
			},
		},
		"required": []string{"query"},
	}
}

func (t *DatasetSearchTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	query, err := requireString(params, "query")
	if err != nil {
		return "", err
	}
	results, err := t.client.Search(ctx, search.FinanceQuery{
		Query:      query,
		Dataset:    t.dataset,
		NumResults: optInt(params, "max_results", 10),
		StartDate:  optString(params, "start_date", ""),
		EndDate:    optString(params, "end_date", ""),
	})
	if err != nil {
		return "", fmt.Errorf("%s failed: %w", t.name, err)
	}
	return formatResults(query, results), nil
}

// formatResults renders search results as markdown with numbered sources.
func formatResults(query string, results []search.SearchResult) string {
	if len(results) == 0 {
		return "No results found for: " + query
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d results for: %s\n\n", len(results), query)
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = "Untitled"
		}
		if r.URL != "" {
			fmt.Fprintf(&sb, "[%d] [%s](%s)", i+1, title, r.URL)
		} else {
			fmt.Fprintf(&sb, "[%d] %s", i+1, title)
		}
		if r.Date != "" {
			fmt.Fprintf(&sb, " (%s)", r.Date)
		}
		sb.WriteString("\n")
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "%s\n", r.Snippet)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

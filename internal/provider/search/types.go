// Package search provides the web and financial data search backends used
// by the search tools.
package search

import (
	"context"
	"time"
)

// ProviderName identifies a search provider
type ProviderName string

const (
	ProviderExa    ProviderName = "exa"
	ProviderSerper ProviderName = "serper"
	ProviderBrave  ProviderName = "brave"
)

// SearchResult represents a single search result
type SearchResult struct {
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Snippet  string  `json:"snippet"`
	Source   string  `json:"source,omitempty"`
	Date     string  `json:"date,omitempty"`
	Score    float64 `json:"score,omitempty"`
	DataType string  `json:"dataType,omitempty"`
}

// SearchOptions configures search behavior
type SearchOptions struct {
	NumResults     int
	AllowedDomains []string
	BlockedDomains []string
	Timeout        time.Duration
}

// DefaultOptions returns default search options
func DefaultOptions() SearchOptions {
	return SearchOptions{
		NumResults: 10,
		Timeout:    30 * time.Second,
	}
}

// truncateSnippet truncates a snippet to maxLength runes
func truncateSnippet(s string, maxLength int) string {
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	return string(r[:maxLength]) + "..."
}

// getTimeout returns the timeout or default if not set
func getTimeout(opts SearchOptions) time.Duration {
	if opts.Timeout <= 0 {
		return 30 * time.Second
	}
	return opts.Timeout
}

// Provider is the interface for web search providers
type Provider interface {
	// Name returns the provider name
	Name() ProviderName

	// DisplayName returns the human-readable name
	DisplayName() string

	// IsAvailable checks if the provider is configured and ready
	IsAvailable() bool

	// Search performs a web search
	Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error)
}

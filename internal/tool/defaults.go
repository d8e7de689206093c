package tool

import (
	"net/http"

	"github.com/yanmxa/finsight/internal/config"
	"github.com/yanmxa/finsight/internal/provider/search"
)

// Default builds the registry of every tool from the tools configuration.
func Default(cfg config.ToolsConfig) *Registry {
	finance := search.NewFinanceClient(cfg.FinanceURL, cfg.FinanceKey, cfg.Timeout)
	web := search.CreateProvider(search.ProviderName(cfg.WebSearch), search.Keys{
		Exa:    cfg.ExaKey,
		Serper: cfg.SerperKey,
		Brave:  cfg.BraveKey,
	})
	httpClient := &http.Client{Timeout: cfg.Timeout}

	return NewRegistry(
		NewFinanceSearch(finance),
		NewSECSearch(finance),
		NewEconomicsSearch(finance),
		&WebSearchTool{Provider: web, Timeout: cfg.Timeout},
		&FetchURLTool{Client: httpClient},
		&CodeExecutionTool{BaseURL: cfg.SandboxURL, APIKey: cfg.SandboxKey, Client: httpClient},
		&ChartTool{},
	)
}

package search

import (
	"net/url"
	"strings"
)

// Keys carries the API keys of the web search providers
type Keys struct {
	Exa    string
	Serper string
	Brave  string
}

// CreateProvider creates a web search provider by name. When the named
// provider has no key, the first configured one is used instead.
func CreateProvider(name ProviderName, keys Keys) Provider {
	all := map[ProviderName]Provider{
		ProviderExa:    NewExaProvider(keys.Exa),
		ProviderSerper: NewSerperProvider(keys.Serper),
		ProviderBrave:  NewBraveProvider(keys.Brave),
	}
	if p, ok := all[name]; ok && p.IsAvailable() {
		return p
	}
	for _, n := range []ProviderName{ProviderExa, ProviderSerper, ProviderBrave} {
		if all[n].IsAvailable() {
			return all[n]
		}
	}
	if p, ok := all[name]; ok {
		return p
	}
	return all[ProviderExa]
}

// matchesDomainFilter checks if a URL matches the domain filter criteria
func matchesDomainFilter(urlStr string, allowedDomains, blockedDomains []string) bool {
	if len(allowedDomains) == 0 && len(blockedDomains) == 0 {
		return true
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return true // If we can't parse, let it through
	}

	host := strings.ToLower(parsedURL.Host)

	for _, blocked := range blockedDomains {
		blocked = strings.ToLower(blocked)
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return false
		}
	}

	if len(allowedDomains) > 0 {
		for _, allowed := range allowedDomains {
			allowed = strings.ToLower(allowed)
			if host == allowed || strings.HasSuffix(host, "."+allowed) {
				return true
			}
		}
		return false
	}

	return true
}

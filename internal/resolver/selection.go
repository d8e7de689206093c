// Package resolver picks the model that serves a request: local inference
// when it answers within the probe timeout, otherwise the first configured
// hosted credential, otherwise the model gateway.
package resolver

import (
	"errors"
	"strings"

	"github.com/yanmxa/finsight/internal/provider"
)

// Kind tags where the selected model runs.
type Kind int

const (
	KindLocal Kind = iota + 1
	KindHosted
	KindGateway
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindHosted:
		return "hosted"
	case KindGateway:
		return "gateway"
	default:
		return "unknown"
	}
}

// Selection is the outcome of resolution for one request.
type Selection struct {
	Kind Kind
	// Local is the local provider (ollama or lmstudio) when Kind is KindLocal.
	Local provider.Provider
	// Credential names the hosted credential (openai, anthropic, google, vertex)
	// when Kind is KindHosted.
	Credential string
	Model      string
	Provider   provider.LLMProvider
	// Reasoning is true when the model emits separate reasoning content.
	Reasoning bool
}

var displayNames = map[string]string{
	"ollama":    "Ollama",
	"lmstudio":  "LM Studio",
	"openai":    "OpenAI",
	"anthropic": "Anthropic",
	"google":    "Google",
	"vertex":    "Vertex AI",
}

// Label renders the selection for display, e.g. "Ollama · qwen3:8b".
func (s *Selection) Label() string {
	var name string
	switch s.Kind {
	case KindLocal:
		name = displayName(string(s.Local))
	case KindHosted:
		name = displayName(s.Credential)
	case KindGateway:
		name = "Gateway"
	default:
		name = "Unknown"
	}
	return name + " · " + s.Model
}

func displayName(key string) string {
	if n, ok := displayNames[key]; ok {
		return n
	}
	return key
}

// Preferences are the per-request overrides taken from request headers.
type Preferences struct {
	LocalEnabled  *bool // nil means not specified
	LocalProvider provider.Provider
	Model         string
}

// ErrNoProvider is returned when no model source is usable.
var ErrNoProvider = errors.New("no model provider available")

// NoProviderError carries the reason each source was skipped.
type NoProviderError struct {
	Reasons []string
}

func (e *NoProviderError) Error() string {
	if len(e.Reasons) == 0 {
		return ErrNoProvider.Error()
	}
	return ErrNoProvider.Error() + ": " + strings.Join(e.Reasons, "; ")
}

func (e *NoProviderError) Unwrap() error { return ErrNoProvider }

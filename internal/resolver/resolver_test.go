package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yanmxa/finsight/internal/client"
	"github.com/yanmxa/finsight/internal/config"
	"github.com/yanmxa/finsight/internal/provider"
)

// fakeRegistry registers fake providers for the given keys and counts
// factory invocations per key.
func fakeRegistry(fakes map[string]*client.FakeProvider, built map[string]int) *provider.Registry {
	r := provider.NewRegistry()
	for key, fake := range fakes {
		meta := metaFor(key)
		f := fake
		k := key
		r.Register(meta, func(_ context.Context, _ provider.Endpoint) (provider.LLMProvider, error) {
			if built != nil {
				built[k]++
			}
			return f, nil
		})
	}
	return r
}

func metaFor(key string) provider.ProviderMeta {
	switch key {
	case "ollama":
		return provider.ProviderMeta{Provider: provider.ProviderOllama, AuthMethod: provider.AuthLocal}
	case "lmstudio":
		return provider.ProviderMeta{Provider: provider.ProviderLMStudio, AuthMethod: provider.AuthLocal}
	case "openai":
		return provider.ProviderMeta{Provider: provider.ProviderOpenAI, AuthMethod: provider.AuthAPIKey}
	case "anthropic":
		return provider.ProviderMeta{Provider: provider.ProviderAnthropic, AuthMethod: provider.AuthAPIKey}
	case "gateway":
		return provider.ProviderMeta{Provider: provider.ProviderGateway, AuthMethod: provider.AuthAPIKey}
	}
	panic("unknown key " + key)
}

func models(ids ...string) []provider.ModelInfo {
	out := make([]provider.ModelInfo, len(ids))
	for i, id := range ids {
		out[i] = provider.ModelInfo{ID: id, Name: id}
	}
	return out
}

func boolPtr(b bool) *bool { return &b }

func TestResolveLocalPreferredModel(t *testing.T) {
	cfg := config.Default()
	local := &client.FakeProvider{Models: models("nomic-embed-text", "llama3.2:3b", "qwen3:8b")}
	r := New(cfg, fakeRegistry(map[string]*client.FakeProvider{"ollama": local}, nil))

	sel, err := r.Resolve(context.Background(), Preferences{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sel.Kind != KindLocal || sel.Model != "qwen3:8b" {
		t.Errorf("expected local qwen3:8b, got %s %s", sel.Kind, sel.Model)
	}
	if !sel.Reasoning {
		t.Error("qwen3 should be reasoning-capable")
	}
	if sel.Label() != "Ollama · qwen3:8b" {
		t.Errorf("unexpected label %q", sel.Label())
	}
}

func TestResolveLocalRequestedModel(t *testing.T) {
	cfg := config.Default()
	local := &client.FakeProvider{Models: models("qwen3:8b", "mistral:7b")}
	r := New(cfg, fakeRegistry(map[string]*client.FakeProvider{"lmstudio": local}, nil))

	sel, err := r.Resolve(context.Background(), Preferences{LocalProvider: provider.ProviderLMStudio, Model: "mistral:7b"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sel.Local != provider.ProviderLMStudio || sel.Model != "mistral:7b" || sel.Reasoning {
		t.Errorf("unexpected selection %+v", sel)
	}
}

func TestPickModel(t *testing.T) {
	r := New(config.Default(), provider.NewRegistry())
	tests := []struct {
		name      string
		models    []provider.ModelInfo
		requested string
		want      string
	}{
		{"embedding only", models("bge-m3", "all-minilm", "text-embedding-3-small"), "", ""},
		{"requested missing falls to preference", models("phi3", "llama3.1:8b"), "qwen3", "llama3.1:8b"},
		{"no preference match", models("phi3", "gemma2"), "", "phi3"},
		{"requested embedding ignored", models("nomic-embed-text", "phi3"), "nomic-embed-text", "phi3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.pickModel(tt.models, tt.requested); got != tt.want {
				t.Errorf("pickModel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveProbeTimeoutFallsBackWithinBound(t *testing.T) {
	cfg := config.Default()
	cfg.Local.ProbeTimeout = 50 * time.Millisecond
	cfg.Hosted.OpenAI.APIKey = "sk-test"

	local := &client.FakeProvider{Models: models("qwen3:8b"), ListDelay: 5 * time.Second}
	hosted := &client.FakeProvider{}
	r := New(cfg, fakeRegistry(map[string]*client.FakeProvider{"ollama": local, "openai": hosted}, nil))

	start := time.Now()
	sel, err := r.Resolve(context.Background(), Preferences{})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sel.Kind != KindHosted || sel.Credential != "openai" || sel.Model != "gpt-4o" {
		t.Errorf("expected hosted openai, got %+v", sel)
	}
	if elapsed > time.Second {
		t.Errorf("fallback took %s, expected close to the probe timeout", elapsed)
	}
}

func TestResolveLocalDisabledUsesHostedOrder(t *testing.T) {
	cfg := config.Default()
	cfg.Hosted.Anthropic.APIKey = "sk-ant"
	built := map[string]int{}
	r := New(cfg, fakeRegistry(map[string]*client.FakeProvider{
		"ollama":    {Models: models("qwen3")},
		"anthropic": {},
	}, built))

	sel, err := r.Resolve(context.Background(), Preferences{LocalEnabled: boolPtr(false)})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sel.Credential != "anthropic" {
		t.Errorf("expected anthropic, got %+v", sel)
	}
	if built["ollama"] != 0 {
		t.Error("local provider should not be constructed when disabled")
	}
}

func TestResolveHostedModeSkipsLocal(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = config.ModeHosted
	cfg.Gateway.APIKey = "gw"
	r := New(cfg, fakeRegistry(map[string]*client.FakeProvider{
		"ollama":  {Models: models("qwen3")},
		"gateway": {},
	}, nil))

	sel, err := r.Resolve(context.Background(), Preferences{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sel.Kind != KindGateway || sel.Label() != "Gateway · openai/gpt-4o" {
		t.Errorf("expected gateway, got %+v", sel)
	}
}

func TestResolveNoProvider(t *testing.T) {
	cfg := config.Default()
	r := New(cfg, fakeRegistry(map[string]*client.FakeProvider{
		"ollama": {ListErr: errors.New("connection refused")},
	}, nil))

	_, err := r.Resolve(context.Background(), Preferences{})
	if !errors.Is(err, ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
	var npe *NoProviderError
	if !errors.As(err, &npe) || len(npe.Reasons) < 3 {
		t.Errorf("expected reasons for local, hosted and gateway, got %v", err)
	}
}

func TestListingCachedOnlyOnSuccess(t *testing.T) {
	cfg := config.Default()
	local := &client.FakeProvider{ListErr: errors.New("down")}
	r := New(cfg, fakeRegistry(map[string]*client.FakeProvider{"ollama": local}, nil))

	if _, err := r.listModels(context.Background(), local, "http://ollama"); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := r.listings.Get("http://ollama"); ok {
		t.Error("failed listing must not be cached")
	}

	local.ListErr = nil
	local.Models = models("qwen3")
	if _, err := r.listModels(context.Background(), local, "http://ollama"); err != nil {
		t.Fatalf("listModels: %v", err)
	}
	local.Models = nil
	got, err := r.listModels(context.Background(), local, "http://ollama")
	if err != nil || len(got) != 1 {
		t.Errorf("expected cached listing, got %v, %v", got, err)
	}
}

package resolver

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/yanmxa/finsight/internal/config"
	"github.com/yanmxa/finsight/internal/log"
	"github.com/yanmxa/finsight/internal/provider"
	"github.com/yanmxa/finsight/internal/provider/anthropic"
	"github.com/yanmxa/finsight/internal/provider/google"
	"github.com/yanmxa/finsight/internal/provider/ollama"
	"github.com/yanmxa/finsight/internal/provider/openai"
)

// embeddingFragments mark models that cannot chat.
var embeddingFragments = []string{"embed", "bge-", "minilm", "text-embedding"}

// DefaultRegistry registers every SDK-backed provider.
func DefaultRegistry() *provider.Registry {
	r := provider.NewRegistry()
	r.Register(ollama.Meta, ollama.NewClient)
	r.Register(openai.LMStudioMeta, openai.NewLMStudioClient)
	r.Register(openai.APIKeyMeta, openai.NewAPIKeyClient)
	r.Register(openai.GatewayMeta, openai.NewGatewayClient)
	r.Register(anthropic.APIKeyMeta, anthropic.NewAPIKeyClient)
	r.Register(anthropic.VertexMeta, anthropic.NewVertexClient)
	r.Register(google.APIKeyMeta, google.NewAPIKeyClient)
	return r
}

// Resolver selects a model per request. It is safe for concurrent use.
type Resolver struct {
	cfg      *config.Config
	registry *provider.Registry
	listings *cache.Cache // local base URL -> []provider.ModelInfo
}

// New creates a resolver over cfg using the providers in registry.
func New(cfg *config.Config, registry *provider.Registry) *Resolver {
	ttl := cfg.Local.ListingTTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &Resolver{
		cfg:      cfg,
		registry: registry,
		listings: cache.New(ttl, 2*time.Minute),
	}
}

// Resolve walks local, hosted and gateway sources in order and returns the
// first usable one. Every failure along the way is recorded in the returned
// *NoProviderError when nothing is usable.
func (r *Resolver) Resolve(ctx context.Context, prefs Preferences) (*Selection, error) {
	var reasons []string

	if r.localAllowed(prefs) {
		sel, err := r.resolveLocal(ctx, prefs)
		if err == nil {
			return sel, nil
		}
		log.Logger().Info("local inference unavailable, falling back", zap.Error(err))
		reasons = append(reasons, err.Error())
	}

	sel, hostedReasons := r.resolveHosted(ctx)
	if sel != nil {
		return sel, nil
	}
	reasons = append(reasons, hostedReasons...)

	sel, err := r.resolveGateway(ctx)
	if err == nil {
		return sel, nil
	}
	reasons = append(reasons, err.Error())

	return nil, &NoProviderError{Reasons: reasons}
}

func (r *Resolver) localAllowed(prefs Preferences) bool {
	if r.cfg.IsHosted() {
		return false
	}
	return prefs.LocalEnabled == nil || *prefs.LocalEnabled
}

func (r *Resolver) resolveLocal(ctx context.Context, prefs Preferences) (*Selection, error) {
	name := prefs.LocalProvider
	if name == "" {
		name = provider.Provider(r.cfg.Local.Provider)
	}

	var baseURL string
	switch name {
	case provider.ProviderOllama:
		baseURL = r.cfg.Local.OllamaURL
	case provider.ProviderLMStudio:
		baseURL = r.cfg.Local.LMStudioURL
	default:
		return nil, fmt.Errorf("unknown local provider %q", name)
	}

	p, err := r.registry.New(ctx, name, provider.AuthLocal, provider.Endpoint{BaseURL: baseURL})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	models, err := r.listModels(ctx, p, baseURL)
	if err != nil {
		return nil, fmt.Errorf("%s probe: %w", name, err)
	}

	model := r.pickModel(models, prefs.Model)
	if model == "" {
		return nil, fmt.Errorf("%s: no chat models installed", name)
	}

	return &Selection{
		Kind:      KindLocal,
		Local:     name,
		Model:     model,
		Provider:  p,
		Reasoning: containsAny(model, r.cfg.Local.ThinkingModels),
	}, nil
}

type listing struct {
	models []provider.ModelInfo
	err    error
}

// listModels probes the local server within the probe timeout. Successful
// listings are cached per base URL; failures are not.
func (r *Resolver) listModels(ctx context.Context, p provider.LLMProvider, baseURL string) ([]provider.ModelInfo, error) {
	if cached, ok := r.listings.Get(baseURL); ok {
		return cached.([]provider.ModelInfo), nil
	}

	timeout := r.cfg.Local.ProbeTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan listing, 1)
	go func() {
		models, err := p.ListModels(ctx)
		ch <- listing{models, err}
	}()

	select {
	case l := <-ch:
		if l.err != nil {
			return nil, l.err
		}
		r.listings.SetDefault(baseURL, l.models)
		return l.models, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("no answer within %s: %w", timeout, ctx.Err())
	}
}

// pickModel filters embedding models and then chooses the requested model,
// the first preferred match, or the first listed model.
func (r *Resolver) pickModel(models []provider.ModelInfo, requested string) string {
	var chat []string
	for _, m := range models {
		id := m.ID
		if id == "" {
			id = m.Name
		}
		if id == "" || containsAny(id, embeddingFragments) {
			continue
		}
		chat = append(chat, id)
	}
	if len(chat) == 0 {
		return ""
	}
	if requested != "" && slices.Contains(chat, requested) {
		return requested
	}
	for _, frag := range r.cfg.Local.PreferredModels {
		for _, id := range chat {
			if strings.Contains(strings.ToLower(id), strings.ToLower(frag)) {
				return id
			}
		}
	}
	return chat[0]
}

// hostedSource describes one entry of the hosted credential order.
type hostedSource struct {
	provider provider.Provider
	auth     provider.AuthMethod
	endpoint provider.Endpoint
	model    string
	ok       bool
}

func (r *Resolver) hostedSource(name string) (hostedSource, error) {
	h := r.cfg.Hosted
	switch name {
	case "openai":
		return hostedSource{provider.ProviderOpenAI, provider.AuthAPIKey,
			provider.Endpoint{APIKey: h.OpenAI.APIKey}, h.OpenAI.Model, h.OpenAI.APIKey != ""}, nil
	case "anthropic":
		return hostedSource{provider.ProviderAnthropic, provider.AuthAPIKey,
			provider.Endpoint{APIKey: h.Anthropic.APIKey}, h.Anthropic.Model, h.Anthropic.APIKey != ""}, nil
	case "google":
		return hostedSource{provider.ProviderGoogle, provider.AuthAPIKey,
			provider.Endpoint{APIKey: h.Google.APIKey}, h.Google.Model, h.Google.APIKey != ""}, nil
	case "vertex":
		return hostedSource{provider.ProviderAnthropic, provider.AuthVertex,
			provider.Endpoint{Project: h.Vertex.Project, Region: h.Vertex.Region}, h.Vertex.Model, h.Vertex.Project != ""}, nil
	default:
		return hostedSource{}, fmt.Errorf("unknown hosted credential %q", name)
	}
}

func (r *Resolver) resolveHosted(ctx context.Context) (*Selection, []string) {
	var reasons []string
	for _, name := range r.cfg.Hosted.Order {
		src, err := r.hostedSource(name)
		if err != nil {
			reasons = append(reasons, err.Error())
			continue
		}
		if !src.ok {
			continue
		}
		p, err := r.registry.New(ctx, src.provider, src.auth, src.endpoint)
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		return &Selection{
			Kind:       KindHosted,
			Credential: name,
			Model:      src.model,
			Provider:   p,
		}, nil
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "no hosted credentials configured")
	}
	return nil, reasons
}

func (r *Resolver) resolveGateway(ctx context.Context) (*Selection, error) {
	gw := r.cfg.Gateway
	if gw.APIKey == "" {
		return nil, fmt.Errorf("gateway: no api key configured")
	}
	p, err := r.registry.New(ctx, provider.ProviderGateway, provider.AuthAPIKey,
		provider.Endpoint{BaseURL: gw.BaseURL, APIKey: gw.APIKey})
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}
	return &Selection{Kind: KindGateway, Model: gw.Model, Provider: p}, nil
}

func containsAny(s string, fragments []string) bool {
	s = strings.ToLower(s)
	for _, f := range fragments {
		if f != "" && strings.Contains(s, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

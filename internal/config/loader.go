package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is read when FINSIGHT_CONFIG is unset.
const DefaultFile = "finsight.yaml"

// Loader resolves a Config from a YAML file and environment variables.
type Loader struct {
	// path is the YAML file; a missing file is not an error
	path string

	// lookup reads environment variables
	lookup func(string) (string, bool)
}

// NewLoader creates a loader reading FINSIGHT_CONFIG (or finsight.yaml) and
// the process environment.
func NewLoader() *Loader {
	path := os.Getenv("FINSIGHT_CONFIG")
	if path == "" {
		path = DefaultFile
	}
	return &Loader{path: path, lookup: os.LookupEnv}
}

// NewLoaderWithOptions creates a loader with a custom file and env lookup.
func NewLoaderWithOptions(path string, lookup func(string) (string, bool)) *Loader {
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	return &Loader{path: path, lookup: lookup}
}

// Load resolves the configuration.
// Priority (lowest to highest):
//  1. Default()
//  2. YAML file
//  3. environment variables
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.path != "" {
		data, err := os.ReadFile(l.path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", l.path, err)
			}
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("read %s: %w", l.path, err)
		}
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load resolves the configuration with the default loader.
func Load() (*Config, error) {
	return NewLoader().Load()
}

func (l *Loader) applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := l.lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := l.lookup(key); ok && v != "" {
			*dst = splitList(v)
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := l.lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	millis := func(key string, dst *time.Duration) {
		var n int
		num(key, &n)
		if n > 0 {
			*dst = time.Duration(n) * time.Millisecond
		}
	}

	var mode string
	str("APP_MODE", &mode)
	if mode != "" {
		cfg.Mode = Mode(mode)
	}
	if port, ok := l.lookup("HTTP_PORT"); ok && port != "" {
		cfg.HTTP.Addr = ":" + port
	}
	list("CORS_ALLOWED_ORIGINS", &cfg.HTTP.AllowedOrigins)

	str("LOCAL_PROVIDER", &cfg.Local.Provider)
	str("OLLAMA_BASE_URL", &cfg.Local.OllamaURL)
	str("LMSTUDIO_BASE_URL", &cfg.Local.LMStudioURL)
	list("LOCAL_PREFERRED_MODELS", &cfg.Local.PreferredModels)
	list("LOCAL_THINKING_MODELS", &cfg.Local.ThinkingModels)
	millis("PROBE_TIMEOUT_MS", &cfg.Local.ProbeTimeout)

	list("HOSTED_PROVIDER_ORDER", &cfg.Hosted.Order)
	str("OPENAI_API_KEY", &cfg.Hosted.OpenAI.APIKey)
	str("OPENAI_MODEL", &cfg.Hosted.OpenAI.Model)
	str("ANTHROPIC_API_KEY", &cfg.Hosted.Anthropic.APIKey)
	str("ANTHROPIC_MODEL", &cfg.Hosted.Anthropic.Model)
	str("GOOGLE_API_KEY", &cfg.Hosted.Google.APIKey)
	str("GOOGLE_MODEL", &cfg.Hosted.Google.Model)
	str("ANTHROPIC_VERTEX_PROJECT_ID", &cfg.Hosted.Vertex.Project)
	str("CLOUD_ML_REGION", &cfg.Hosted.Vertex.Region)
	str("VERTEX_MODEL", &cfg.Hosted.Vertex.Model)

	str("AI_GATEWAY_BASE_URL", &cfg.Gateway.BaseURL)
	str("AI_GATEWAY_API_KEY", &cfg.Gateway.APIKey)
	str("AI_GATEWAY_MODEL", &cfg.Gateway.Model)

	num("CHAT_MAX_ROUNDS", &cfg.Chat.MaxRounds)
	num("COMPLETION_MAX_ROUNDS", &cfg.Completion.MaxRounds)
	num("MAX_CONCURRENT_TOOLS", &cfg.MaxConcurrentTools)

	str("FINANCE_API_URL", &cfg.Tools.FinanceURL)
	str("FINANCE_API_KEY", &cfg.Tools.FinanceKey)
	str("SANDBOX_API_URL", &cfg.Tools.SandboxURL)
	str("SANDBOX_API_KEY", &cfg.Tools.SandboxKey)
	str("WEB_SEARCH_PROVIDER", &cfg.Tools.WebSearch)
	str("EXA_API_KEY", &cfg.Tools.ExaKey)
	str("SERPER_API_KEY", &cfg.Tools.SerperKey)
	str("BRAVE_API_KEY", &cfg.Tools.BraveKey)
	millis("TOOL_TIMEOUT_MS", &cfg.Tools.Timeout)

	str("STORE_DRIVER", &cfg.Store.Driver)
	str("STORE_DSN", &cfg.Store.DSN)
	str("REDIS_ADDR", &cfg.Store.RedisAddr)
	str("REDIS_PASSWORD", &cfg.Store.RedisPassword)
	num("REDIS_DB", &cfg.Store.RedisDB)

	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FILE", &cfg.Log.File)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

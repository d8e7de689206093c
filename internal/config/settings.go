// Package config resolves the process configuration once at start-up.
package config

import (
	"fmt"
	"time"
)

// Mode is the deployment mode of the backend.
type Mode string

const (
	ModeHosted     Mode = "hosted"
	ModeSelfHosted Mode = "self-hosted"
)

// Config is the immutable process configuration. It is resolved once by
// Load and passed explicitly; request-scoped overrides live elsewhere.
type Config struct {
	Mode               Mode          `yaml:"mode"`
	HTTP               HTTPConfig    `yaml:"http"`
	Local              LocalConfig   `yaml:"local"`
	Hosted             HostedConfig  `yaml:"hosted"`
	Gateway            GatewayConfig `yaml:"gateway"`
	Chat               LoopConfig    `yaml:"chat"`
	Completion         LoopConfig    `yaml:"completion"`
	MaxConcurrentTools int           `yaml:"maxConcurrentTools"`
	Tools              ToolsConfig   `yaml:"tools"`
	Store              StoreConfig   `yaml:"store"`
	Log                LogConfig     `yaml:"log"`
}

// HTTPConfig configures the HTTP listener.
type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// LocalConfig configures local inference discovery.
type LocalConfig struct {
	Provider        string        `yaml:"provider"` // "ollama" or "lmstudio"
	OllamaURL       string        `yaml:"ollamaURL"`
	LMStudioURL     string        `yaml:"lmstudioURL"`
	PreferredModels []string      `yaml:"preferredModels"`
	ThinkingModels  []string      `yaml:"thinkingModels"`
	ProbeTimeout    time.Duration `yaml:"probeTimeout"`
	ListingTTL      time.Duration `yaml:"listingTTL"`
}

// Credential is an API key with the model to use when it is selected.
type Credential struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

// VertexConfig configures Anthropic models served through Vertex AI.
type VertexConfig struct {
	Project string `yaml:"project"`
	Region  string `yaml:"region"`
	Model   string `yaml:"model"`
}

// HostedConfig lists hosted credentials and the order they are tried.
type HostedConfig struct {
	Order     []string     `yaml:"order"`
	OpenAI    Credential   `yaml:"openai"`
	Anthropic Credential   `yaml:"anthropic"`
	Google    Credential   `yaml:"google"`
	Vertex    VertexConfig `yaml:"vertex"`
}

// GatewayConfig configures the OpenAI-compatible model gateway fallback.
type GatewayConfig struct {
	BaseURL string `yaml:"baseURL"`
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
}

// LoopConfig bounds one entry point's reasoning loop.
type LoopConfig struct {
	MaxRounds    int           `yaml:"maxRounds"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxTokens    int           `yaml:"maxTokens"`
	StreamBuffer int           `yaml:"streamBuffer"`
}

// ToolsConfig configures the remote services behind the tools.
type ToolsConfig struct {
	FinanceURL string        `yaml:"financeURL"`
	FinanceKey string        `yaml:"financeKey"`
	SandboxURL string        `yaml:"sandboxURL"`
	SandboxKey string        `yaml:"sandboxKey"`
	WebSearch  string        `yaml:"webSearch"` // exa, serper or brave
	ExaKey     string        `yaml:"exaKey"`
	SerperKey  string        `yaml:"serperKey"`
	BraveKey   string        `yaml:"braveKey"`
	Timeout    time.Duration `yaml:"timeout"`
}

// StoreConfig selects the conversation store engine.
type StoreConfig struct {
	Driver        string `yaml:"driver"` // sqlite, redis or memory
	DSN           string `yaml:"dsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Mode: ModeSelfHosted,
		HTTP: HTTPConfig{Addr: ":8080", AllowedOrigins: []string{"*"}},
		Local: LocalConfig{
			Provider:        "ollama",
			OllamaURL:       "http://localhost:11434",
			LMStudioURL:     "http://localhost:1234/v1",
			PreferredModels: []string{"qwen3", "gpt-oss", "llama3.1", "llama3.2", "qwen2.5", "mistral", "deepseek-r1"},
			ThinkingModels:  []string{"qwen3", "deepseek-r1", "gpt-oss", "qwq", "magistral"},
			ProbeTimeout:    3 * time.Second,
			ListingTTL:      15 * time.Second,
		},
		Hosted: HostedConfig{
			Order:     []string{"openai", "anthropic", "google", "vertex"},
			OpenAI:    Credential{Model: "gpt-4o"},
			Anthropic: Credential{Model: "claude-sonnet-4-5"},
			Google:    Credential{Model: "gemini-2.5-flash"},
			Vertex:    VertexConfig{Region: "us-east5", Model: "claude-sonnet-4-5"},
		},
		Gateway: GatewayConfig{
			BaseURL: "https://ai-gateway.vercel.sh/v1",
			Model:   "openai/gpt-4o",
		},
		Chat:               LoopConfig{MaxRounds: 15, Timeout: 800 * time.Second, MaxTokens: 8192, StreamBuffer: 64},
		Completion:         LoopConfig{MaxRounds: 10, Timeout: 300 * time.Second, MaxTokens: 4096, StreamBuffer: 64},
		MaxConcurrentTools: 5,
		Tools: ToolsConfig{
			FinanceURL: "https://api.valyu.network/v1",
			WebSearch:  "exa",
			Timeout:    60 * time.Second,
		},
		Store: StoreConfig{Driver: "sqlite", DSN: "finsight.db"},
		Log:   LogConfig{Level: "info", MaxSizeMB: 50, MaxBackups: 3, MaxAgeDays: 7, Compress: true},
	}
}

// Validate reports configuration values that cannot work.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeHosted, ModeSelfHosted:
	default:
		return fmt.Errorf("invalid mode %q: want %q or %q", c.Mode, ModeHosted, ModeSelfHosted)
	}
	switch c.Local.Provider {
	case "ollama", "lmstudio":
	default:
		return fmt.Errorf("invalid local provider %q", c.Local.Provider)
	}
	switch c.Store.Driver {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("invalid store driver %q", c.Store.Driver)
	}
	for name, lc := range map[string]LoopConfig{"chat": c.Chat, "completion": c.Completion} {
		if lc.MaxRounds < 1 {
			return fmt.Errorf("%s: maxRounds must be positive", name)
		}
		if lc.StreamBuffer < 1 {
			return fmt.Errorf("%s: streamBuffer must be positive", name)
		}
	}
	if c.MaxConcurrentTools < 1 {
		return fmt.Errorf("maxConcurrentTools must be positive")
	}
	return nil
}

// IsHosted reports whether the backend runs in hosted mode.
func (c *Config) IsHosted() bool {
	return c.Mode == ModeHosted
}

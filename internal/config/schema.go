package config

// Config holds folio configuration.
// Stored at: ~/.folio/config.yaml
type Config struct {
	Server       ServerCfg                 `mapstructure:"server" yaml:"server"`
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Translate    TranslateCfg              `mapstructure:"translate" yaml:"translate"`
	Reader       ReaderCfg                 `mapstructure:"reader" yaml:"reader"`
	Patterns     PatternsCfg               `mapstructure:"patterns" yaml:"patterns"`
	Defra        DefraConfig               `mapstructure:"defra" yaml:"defra"`
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	// RateLimitRPM is the per-client budget on the predict and
	// translate endpoints. Zero disables the limiter.
	RateLimitRPM int `mapstructure:"rate_limit_rpm" yaml:"rate_limit_rpm"`
}

// LLMProviderCfg configures an LLM provider.
type LLMProviderCfg struct {
	Type      string `mapstructure:"type" yaml:"type"`             // "openrouter", "openai"
	Model     string `mapstructure:"model" yaml:"model"`           // Default model name
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`       // API key (supports ${ENV_VAR} syntax)
	RateLimit int    `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per minute
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
}

// ChainEntryCfg is one provider/model pair in the translation
// fallback chain, tried in order.
type ChainEntryCfg struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
	Model    string `mapstructure:"model" yaml:"model"`
}

// TranslateCfg configures the translation service.
type TranslateCfg struct {
	Chain         []ChainEntryCfg `mapstructure:"chain" yaml:"chain"`
	TargetLang    string          `mapstructure:"target_lang" yaml:"target_lang"`
	CacheTTLHours int             `mapstructure:"cache_ttl_hours" yaml:"cache_ttl_hours"`
}

// ReaderCfg configures chapter content fetching.
type ReaderCfg struct {
	ProxyBase        string `mapstructure:"proxy_base" yaml:"proxy_base"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	DirectFallback   bool   `mapstructure:"direct_fallback" yaml:"direct_fallback"`
	CacheLifeMinutes int    `mapstructure:"cache_life_minutes" yaml:"cache_life_minutes"`
	UserAgent        string `mapstructure:"user_agent" yaml:"user_agent"`
}

// PatternsCfg configures pattern store maintenance.
type PatternsCfg struct {
	// EvictAfter drops patterns unused for longer than this duration
	// (e.g. "720h"). Empty or "0s" disables eviction; patterns are
	// kept forever by default.
	EvictAfter string `mapstructure:"evict_after" yaml:"evict_after"`
}

// DefraConfig holds DefraDB container configuration.
type DefraConfig struct {
	// ContainerName is the Docker container name (default: folio-defra)
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	// Image is the Docker image to use (default: sourcenetwork/defradb:latest)
	Image string `mapstructure:"image" yaml:"image"`
	// Port is the host port to bind (default: 9181)
	Port string `mapstructure:"port" yaml:"port"`
	// StopOnShutdown stops the container when the server exits.
	StopOnShutdown bool `mapstructure:"stop_on_shutdown" yaml:"stop_on_shutdown"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host:         "127.0.0.1",
			Port:         8888,
			RateLimitRPM: 60,
		},
		LLMProviders: map[string]LLMProviderCfg{
			"openrouter": {
				Type:      "openrouter",
				Model:     "anthropic/claude-3.5-sonnet",
				APIKey:    "${OPENROUTER_API_KEY}",
				RateLimit: 150,
				Enabled:   true,
			},
			"openai": {
				Type:      "openai",
				Model:     "gpt-4o-mini",
				APIKey:    "${OPENAI_API_KEY}",
				RateLimit: 60,
				Enabled:   true,
			},
		},
		Translate: TranslateCfg{
			Chain: []ChainEntryCfg{
				{Provider: "openrouter", Model: "anthropic/claude-3.5-sonnet"},
				{Provider: "openai", Model: "gpt-4o-mini"},
			},
			TargetLang:    "en",
			CacheTTLHours: 24,
		},
		Reader: ReaderCfg{
			ProxyBase:        "https://r.jina.ai",
			TimeoutSeconds:   30,
			DirectFallback:   true,
			CacheLifeMinutes: 30,
		},
		Patterns: PatternsCfg{
			EvictAfter: "",
		},
		Defra: DefraConfig{
			ContainerName:  "folio-defra",
			Image:          "sourcenetwork/defradb:latest",
			Port:           "9181",
			StopOnShutdown: true,
		},
	}
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

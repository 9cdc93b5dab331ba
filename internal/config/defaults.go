package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// DefaultEntries returns the default configuration entries.
// These are seeded into DefraDB on first run.
func DefaultEntries() []Entry {
	return []Entry{
		// ===================
		// LLM Providers
		// ===================

		// LLM Providers - OpenRouter
		{
			Key:         "providers.llm.openrouter.type",
			Value:       "openrouter",
			Description: "LLM provider type for OpenRouter",
		},
		{
			Key:         "providers.llm.openrouter.model",
			Value:       "anthropic/claude-3.5-sonnet",
			Description: "Default model for OpenRouter",
		},
		{
			Key:         "providers.llm.openrouter.api_key",
			Value:       "${OPENROUTER_API_KEY}",
			Description: "OpenRouter API key (uses environment variable)",
		},
		{
			Key:         "providers.llm.openrouter.rate_limit",
			Value:       150,
			Description: "Rate limit in requests per minute for OpenRouter",
		},
		{
			Key:         "providers.llm.openrouter.enabled",
			Value:       true,
			Description: "Whether OpenRouter LLM provider is enabled",
		},
		{
			Key:         "providers.llm.openrouter.timeout_seconds",
			Value:       120,
			Description: "HTTP timeout in seconds for OpenRouter requests",
		},
		{
			Key:         "providers.llm.openrouter.max_retries",
			Value:       3,
			Description: "Maximum retry attempts for failed OpenRouter requests",
		},

		// LLM Providers - OpenAI
		{
			Key:         "providers.llm.openai.type",
			Value:       "openai",
			Description: "LLM provider type for OpenAI",
		},
		{
			Key:         "providers.llm.openai.model",
			Value:       "gpt-4o-mini",
			Description: "Default model for OpenAI",
		},
		{
			Key:         "providers.llm.openai.api_key",
			Value:       "${OPENAI_API_KEY}",
			Description: "OpenAI API key (uses environment variable)",
		},
		{
			Key:         "providers.llm.openai.rate_limit",
			Value:       60,
			Description: "Rate limit in requests per minute for OpenAI",
		},
		{
			Key:         "providers.llm.openai.enabled",
			Value:       true,
			Description: "Whether OpenAI LLM provider is enabled",
		},

		// ===================
		// Translation
		// ===================
		{
			Key: "translate.chain",
			Value: []map[string]any{
				{"provider": "openrouter", "model": "anthropic/claude-3.5-sonnet"},
				{"provider": "openai", "model": "gpt-4o-mini"},
			},
			Description: "Ordered provider/model fallback chain for translation",
		},
		{
			Key:         "translate.target_lang",
			Value:       "en",
			Description: "Default target language for translation",
		},
		{
			Key:         "translate.cache_ttl_hours",
			Value:       24,
			Description: "Translation cache lifetime in hours",
		},

		// ===================
		// Reader
		// ===================
		{
			Key:         "reader.proxy_base",
			Value:       "https://r.jina.ai",
			Description: "Base URL of the markdown extraction proxy",
		},
		{
			Key:         "reader.timeout_seconds",
			Value:       30,
			Description: "HTTP timeout in seconds for chapter fetches",
		},
		{
			Key:         "reader.direct_fallback",
			Value:       true,
			Description: "Fetch pages directly when the proxy fails",
		},
		{
			Key:         "reader.cache_life_minutes",
			Value:       30,
			Description: "Chapter content cache lifetime in minutes",
		},

		// ===================
		// Patterns
		// ===================
		{
			Key:         "patterns.evict_after",
			Value:       "",
			Description: "Drop patterns unused for this duration (e.g. 720h); empty disables eviction",
		},

		// ===================
		// Server
		// ===================
		{
			Key:         "server.rate_limit_rpm",
			Value:       60,
			Description: "Per-client request budget on predict and translate endpoints",
		},
	}
}

// SeedDefaults seeds default configuration entries into the store.
// This is idempotent - existing entries are not overwritten.
func SeedDefaults(ctx context.Context, store Store, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	defaults := DefaultEntries()
	seeded := 0
	skipped := 0

	for _, entry := range defaults {
		// Check if key already exists
		existing, err := store.Get(ctx, entry.Key)
		if err != nil {
			return fmt.Errorf("failed to check key %q: %w", entry.Key, err)
		}

		if existing != nil {
			skipped++
			continue
		}

		// Create the entry
		if err := store.Set(ctx, entry.Key, entry.Value, entry.Description); err != nil {
			return fmt.Errorf("failed to seed key %q: %w", entry.Key, err)
		}
		seeded++
	}

	if seeded > 0 {
		logger.Info("seeded default config entries", "seeded", seeded, "skipped", skipped)
	}
	return nil
}

// GetDefault returns the default value for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// ResetToDefault resets a config key to its default value.
// Returns ErrNoDefault if no default exists for the key.
func ResetToDefault(ctx context.Context, store Store, key string) error {
	def := GetDefault(key)
	if def == nil {
		return fmt.Errorf("%w for key %q", ErrNoDefault, key)
	}
	return store.Set(ctx, key, def.Value, def.Description)
}

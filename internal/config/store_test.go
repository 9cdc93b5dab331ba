package config

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/foliolabs/folio/internal/defra"
)

// mockDefraServer creates a test server that simulates DefraDB responses.
func mockDefraServer(t *testing.T, handler func(query string) map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health-check" {
			w.WriteHeader(http.StatusOK)
			return
		}

		var req defra.GQLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}

		data := handler(req.Query)
		resp := defra.GQLResponse{Data: data}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestDefraStore_Get(t *testing.T) {
	server := mockDefraServer(t, func(query string) map[string]any {
		if strings.Contains(query, `key: {_eq: "providers.llm.openrouter.type"}`) {
			return map[string]any{
				"Config": []any{
					map[string]any{
						"_docID":      "doc123",
						"key":         "providers.llm.openrouter.type",
						"value":       `"openrouter"`,
						"description": "LLM provider type",
					},
				},
			}
		}
		return map[string]any{"Config": []any{}}
	})
	defer server.Close()

	client := defra.NewClient(server.URL)
	store := NewStore(client)

	t.Run("existing_key", func(t *testing.T) {
		entry, err := store.Get(t.Context(), "providers.llm.openrouter.type")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if entry == nil {
			t.Fatal("Get() returned nil for existing key")
		}
		if entry.Key != "providers.llm.openrouter.type" {
			t.Errorf("Key = %q, want %q", entry.Key, "providers.llm.openrouter.type")
		}
		if entry.Value != "openrouter" {
			t.Errorf("Value = %v, want %q", entry.Value, "openrouter")
		}
	})

	t.Run("non_existent_key", func(t *testing.T) {
		entry, err := store.Get(t.Context(), "does.not.exist")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if entry != nil {
			t.Errorf("Get() = %v, want nil for non-existent key", entry)
		}
	})
}

func TestDefraStore_GetAll(t *testing.T) {
	server := mockDefraServer(t, func(query string) map[string]any {
		return map[string]any{
			"Config": []any{
				map[string]any{
					"_docID":      "doc1",
					"key":         "providers.llm.openrouter.type",
					"value":       `"openrouter"`,
					"description": "LLM provider type",
				},
				map[string]any{
					"_docID":      "doc2",
					"key":         "translate.target_lang",
					"value":       `"en"`,
					"description": "Default target language",
				},
			},
		}
	})
	defer server.Close()

	client := defra.NewClient(server.URL)
	store := NewStore(client)

	entries, err := store.GetAll(t.Context())
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}

	if len(entries) != 2 {
		t.Errorf("GetAll() returned %d entries, want 2", len(entries))
	}

	if _, ok := entries["providers.llm.openrouter.type"]; !ok {
		t.Error("GetAll() missing key 'providers.llm.openrouter.type'")
	}
	if _, ok := entries["translate.target_lang"]; !ok {
		t.Error("GetAll() missing key 'translate.target_lang'")
	}
}

func TestDefraStore_GetByPrefix(t *testing.T) {
	server := mockDefraServer(t, func(query string) map[string]any {
		return map[string]any{
			"Config": []any{
				map[string]any{
					"_docID": "doc1",
					"key":    "providers.llm.openrouter.type",
					"value":  `"openrouter"`,
				},
				map[string]any{
					"_docID": "doc2",
					"key":    "providers.llm.openai.type",
					"value":  `"openai"`,
				},
				map[string]any{
					"_docID": "doc3",
					"key":    "reader.proxy_base",
					"value":  `"https://r.jina.ai"`,
				},
			},
		}
	})
	defer server.Close()

	client := defra.NewClient(server.URL)
	store := NewStore(client)

	entries, err := store.GetByPrefix(t.Context(), "providers.llm.")
	if err != nil {
		t.Fatalf("GetByPrefix() error = %v", err)
	}

	if len(entries) != 2 {
		t.Errorf("GetByPrefix('providers.llm.') returned %d entries, want 2", len(entries))
	}

	// Should not include reader settings
	if _, ok := entries["reader.proxy_base"]; ok {
		t.Error("GetByPrefix() should not include non-matching prefix")
	}
}

func TestExtractProviders(t *testing.T) {
	entries := map[string]Entry{
		"providers.llm.openrouter.type":       {Key: "providers.llm.openrouter.type", Value: "openrouter"},
		"providers.llm.openrouter.api_key":    {Key: "providers.llm.openrouter.api_key", Value: "${OPENROUTER_API_KEY}"},
		"providers.llm.openrouter.rate_limit": {Key: "providers.llm.openrouter.rate_limit", Value: float64(150)},
		"providers.llm.openrouter.enabled":    {Key: "providers.llm.openrouter.enabled", Value: true},
		"providers.llm.openai.type":           {Key: "providers.llm.openai.type", Value: "openai"},
		"translate.target_lang":               {Key: "translate.target_lang", Value: "en"},
	}

	t.Run("extract_llm_providers", func(t *testing.T) {
		result := extractProviders(entries, "providers.llm.")

		if len(result) != 2 {
			t.Errorf("extractProviders() returned %d providers, want 2", len(result))
		}

		openrouter, ok := result["openrouter"]
		if !ok {
			t.Fatal("extractProviders() missing 'openrouter' provider")
		}
		if openrouter["type"] != "openrouter" {
			t.Errorf("openrouter.type = %v, want %q", openrouter["type"], "openrouter")
		}
		if openrouter["enabled"] != true {
			t.Errorf("openrouter.enabled = %v, want true", openrouter["enabled"])
		}
	})

	t.Run("no_matching_prefix", func(t *testing.T) {
		result := extractProviders(entries, "nonexistent.")
		if len(result) != 0 {
			t.Errorf("extractProviders() with non-matching prefix should return empty map")
		}
	})
}

func TestStoreToProviderRegistryConfig(t *testing.T) {
	store := newMockStore()
	ctx := t.Context()

	t.Setenv("TEST_OR_KEY", "or-secret")

	store.Set(ctx, "providers.llm.openrouter.type", "openrouter", "")
	store.Set(ctx, "providers.llm.openrouter.model", "anthropic/claude-3.5-sonnet", "")
	store.Set(ctx, "providers.llm.openrouter.api_key", "${TEST_OR_KEY}", "")
	store.Set(ctx, "providers.llm.openrouter.rate_limit", float64(150), "")
	store.Set(ctx, "providers.llm.openrouter.enabled", true, "")

	cfg, err := StoreToProviderRegistryConfig(ctx, store)
	if err != nil {
		t.Fatalf("StoreToProviderRegistryConfig() error = %v", err)
	}

	or, ok := cfg.LLMProviders["openrouter"]
	if !ok {
		t.Fatal("missing openrouter provider")
	}
	if or.Type != "openrouter" {
		t.Errorf("Type = %q", or.Type)
	}
	if or.APIKey != "or-secret" {
		t.Errorf("APIKey = %q, want resolved env value", or.APIKey)
	}
	if or.RateLimit != 150 {
		t.Errorf("RateLimit = %d, want 150", or.RateLimit)
	}
	if !or.Enabled {
		t.Error("Enabled should be true")
	}
}

func TestStoreToTranslateChain(t *testing.T) {
	store := newMockStore()
	ctx := t.Context()

	t.Run("missing key", func(t *testing.T) {
		chain, err := StoreToTranslateChain(ctx, store)
		if err != nil {
			t.Fatalf("StoreToTranslateChain() error = %v", err)
		}
		if chain != nil {
			t.Errorf("chain = %v, want nil", chain)
		}
	})

	t.Run("parses entries and skips malformed", func(t *testing.T) {
		store.Set(ctx, "translate.chain", []any{
			map[string]any{"provider": "openrouter", "model": "anthropic/claude-3.5-sonnet"},
			map[string]any{"provider": "openai"}, // missing model
			"not-a-map",
			map[string]any{"provider": "openai", "model": "gpt-4o-mini"},
		}, "")

		chain, err := StoreToTranslateChain(ctx, store)
		if err != nil {
			t.Fatalf("StoreToTranslateChain() error = %v", err)
		}
		if len(chain) != 2 {
			t.Fatalf("chain len = %d, want 2", len(chain))
		}
		if chain[0].Provider != "openrouter" || chain[1].Model != "gpt-4o-mini" {
			t.Errorf("chain = %+v", chain)
		}
	})
}

func TestGetHelpers(t *testing.T) {
	m := map[string]any{
		"string_val": "hello",
		"float_val":  3.14,
		"int_val":    42,
		"bool_val":   true,
	}

	if got := getString(m, "string_val"); got != "hello" {
		t.Errorf("getString() = %q, want %q", got, "hello")
	}
	if got := getString(m, "missing"); got != "" {
		t.Errorf("getString() for missing = %q, want empty", got)
	}

	if got := getInt(m, "float_val"); got != 3 {
		t.Errorf("getInt() for float = %v, want 3", got)
	}
	if got := getInt(m, "int_val"); got != 42 {
		t.Errorf("getInt() = %v, want 42", got)
	}
	if got := getInt(m, "missing"); got != 0 {
		t.Errorf("getInt() for missing = %v, want 0", got)
	}

	if got := getBool(m, "bool_val"); got != true {
		t.Errorf("getBool() = %v, want true", got)
	}
	if got := getBool(m, "missing"); got != false {
		t.Errorf("getBool() for missing = %v, want false", got)
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid simple key", "foo", false},
		{"valid dotted key", "providers.llm.openrouter.type", false},
		{"valid with underscore", "translate.target_lang", false},
		{"valid with hyphen", "my-setting", false},
		{"valid with numbers", "provider1.config2", false},
		{"empty key", "", true},
		{"starts with dot", ".foo", true},
		{"ends with dot", "foo.", true},
		{"contains space", "foo bar", true},
		{"contains special char", "foo@bar", true},
		{"contains slash", "foo/bar", true},
		{"contains colon", "foo:bar", true},
		{"contains quote", "foo\"bar", true},
		{"contains curly brace", "foo{bar}", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidKey) {
				t.Errorf("ValidateKey(%q) error should wrap ErrInvalidKey, got %v", tt.key, err)
			}
		})
	}
}

package providers

import (
	"sort"
	"testing"
)

func testRegistryConfig() RegistryConfig {
	return RegistryConfig{
		LLMProviders: map[string]LLMProviderConfig{
			"openrouter": {Type: "openrouter", Model: "anthropic/claude-3.5-sonnet", APIKey: "or-key", RateLimit: 150, Enabled: true},
			"openai":     {Type: "openai", Model: "gpt-4o-mini", APIKey: "oa-key", RateLimit: 60, Enabled: true},
		},
	}
}

func TestNewRegistryFromConfig(t *testing.T) {
	r := NewRegistryFromConfig(testRegistryConfig())

	names := r.List()
	sort.Strings(names)
	if len(names) != 2 || names[0] != "openai" || names[1] != "openrouter" {
		t.Fatalf("List() = %v, want [openai openrouter]", names)
	}

	client, err := r.Get("openrouter")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, ok := client.(*OpenRouterClient); !ok {
		t.Errorf("Get(openrouter) = %T, want *OpenRouterClient", client)
	}

	if _, err := r.Get("missing"); err == nil {
		t.Error("Get(missing) error = nil, want error")
	}
}

func TestNewRegistryFromConfigSkipsDisabledAndKeyless(t *testing.T) {
	cfg := RegistryConfig{
		LLMProviders: map[string]LLMProviderConfig{
			"disabled": {Type: "openrouter", APIKey: "k", Enabled: false},
			"no-key":   {Type: "openrouter", Enabled: true},
			"unknown":  {Type: "llamafile", APIKey: "k", Enabled: true},
		},
	}
	r := NewRegistryFromConfig(cfg)
	if got := r.List(); len(got) != 0 {
		t.Errorf("List() = %v, want empty", got)
	}
}

func TestRegistryReload(t *testing.T) {
	cfg := testRegistryConfig()
	r := NewRegistryFromConfig(cfg)

	before, _ := r.Get("openrouter")

	// Change one provider's model, drop the other.
	cfg.LLMProviders["openrouter"] = LLMProviderConfig{
		Type: "openrouter", Model: "meta-llama/llama-3.3-70b", APIKey: "or-key", RateLimit: 150, Enabled: true,
	}
	delete(cfg.LLMProviders, "openai")
	r.Reload(cfg)

	if r.Has("openai") {
		t.Error("openai still registered after removal from config")
	}

	after, err := r.Get("openrouter")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if after == before {
		t.Error("openrouter client not recreated for changed model")
	}
	if after.(*OpenRouterClient).defaultModel != "meta-llama/llama-3.3-70b" {
		t.Errorf("defaultModel = %q", after.(*OpenRouterClient).defaultModel)
	}
}

func TestRegistryReloadKeepsUnchangedClient(t *testing.T) {
	cfg := testRegistryConfig()
	r := NewRegistryFromConfig(cfg)

	before, _ := r.Get("openai")
	r.Reload(testRegistryConfig())
	after, _ := r.Get("openai")
	if before != after {
		t.Error("unchanged client was recreated on reload")
	}
}

func TestRegistryRegisterUnregister(t *testing.T) {
	r := NewRegistry()
	mock := NewMockClient()
	r.Register("mock", mock)

	if !r.Has("mock") {
		t.Fatal("Has(mock) = false after Register")
	}
	clients := r.Clients()
	if clients["mock"] != mock {
		t.Error("Clients() missing registered mock")
	}

	r.Unregister("mock")
	if r.Has("mock") {
		t.Error("Has(mock) = true after Unregister")
	}
}

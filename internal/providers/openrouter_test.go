package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type chatFixture struct {
	content string
	model   string
}

func openRouterServer(t *testing.T, responses []chatFixture) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing auth header")
		}
		idx := int(n) - 1
		if idx >= len(responses) {
			idx = len(responses) - 1
		}
		fx := responses[idx]
		model := fx.model
		if model == "" {
			model = "test/model"
		}
		resp := map[string]any{
			"id":    fmt.Sprintf("gen-%d", n),
			"model": model,
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": fx.content}, "finish_reason": "stop"},
			},
			"usage": map[string]any{
				"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17, "cost": 0.0003,
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestOpenRouterChat(t *testing.T) {
	srv, _ := openRouterServer(t, []chatFixture{{content: "bonjour"}})
	c := NewOpenRouterClient(OpenRouterConfig{APIKey: "test-key", BaseURL: srv.URL})

	result, err := c.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "translate: hello"}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !result.Success || result.Content != "bonjour" {
		t.Errorf("Chat() = %+v, want success with content", result)
	}
	if result.TotalTokens != 17 || result.PromptTokens != 12 {
		t.Errorf("token counts = %d/%d, want 12/17", result.PromptTokens, result.TotalTokens)
	}
	if result.CostUSD != 0.0003 {
		t.Errorf("CostUSD = %v, want 0.0003", result.CostUSD)
	}
	if result.ModelUsed != "test/model" {
		t.Errorf("ModelUsed = %q", result.ModelUsed)
	}
	if result.RequestID == "" {
		t.Error("RequestID is empty, want generated id")
	}
}

func TestOpenRouterChatStructuredOutput(t *testing.T) {
	srv, calls := openRouterServer(t, []chatFixture{
		{content: "```json\n{\"translation\":\"hola\",\"detected_language\":\"en\"}\n```"},
	})
	c := NewOpenRouterClient(OpenRouterConfig{APIKey: "test-key", BaseURL: srv.URL})

	rf := &ResponseFormat{
		Type: "json_schema",
		JSONSchema: json.RawMessage(`{"name":"translation_result","schema":{
			"type":"object",
			"properties":{"translation":{"type":"string"},"detected_language":{"type":"string"}},
			"required":["translation"]
		}}`),
	}
	result, err := c.Chat(context.Background(), &ChatRequest{
		Messages:       []Message{{Role: "user", Content: "translate"}},
		Model:          "google/gemini-2.0-flash",
		ResponseFormat: rf,
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if len(result.ParsedJSON) == 0 {
		t.Fatal("ParsedJSON empty, want parsed structured output")
	}
	var out map[string]string
	if err := json.Unmarshal(result.ParsedJSON, &out); err != nil {
		t.Fatalf("unmarshal ParsedJSON: %v", err)
	}
	if out["translation"] != "hola" {
		t.Errorf("translation = %q, want hola", out["translation"])
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestOpenRouterChatRepairsInvalidStructuredOutput(t *testing.T) {
	srv, calls := openRouterServer(t, []chatFixture{
		{content: "sorry, here you go: not json"},
		{content: `{"translation":"hola"}`},
	})
	c := NewOpenRouterClient(OpenRouterConfig{APIKey: "test-key", BaseURL: srv.URL})

	rf := &ResponseFormat{
		Type: "json_schema",
		JSONSchema: json.RawMessage(`{"name":"translation_result","schema":{
			"type":"object","properties":{"translation":{"type":"string"}},"required":["translation"]
		}}`),
	}
	result, err := c.Chat(context.Background(), &ChatRequest{
		Messages:       []Message{{Role: "user", Content: "translate"}},
		Model:          "google/gemini-2.0-flash",
		ResponseFormat: rf,
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2 (one repair round)", calls.Load())
	}
	if result.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", result.Attempts)
	}
	if len(result.ParsedJSON) == 0 {
		t.Error("ParsedJSON empty after repair")
	}
	// Token usage accumulates across rounds.
	if result.TotalTokens != 34 {
		t.Errorf("TotalTokens = %d, want 34", result.TotalTokens)
	}
}

func TestOpenRouterChatRepairExhausted(t *testing.T) {
	srv, calls := openRouterServer(t, []chatFixture{{content: "never json"}})
	c := NewOpenRouterClient(OpenRouterConfig{APIKey: "test-key", BaseURL: srv.URL})

	rf := &ResponseFormat{
		Type:       "json_schema",
		JSONSchema: json.RawMessage(`{"name":"t","schema":{"type":"object"}}`),
	}
	result, err := c.Chat(context.Background(), &ChatRequest{
		Messages:       []Message{{Role: "user", Content: "translate"}},
		Model:          "google/gemini-2.0-flash",
		ResponseFormat: rf,
	})
	if err == nil {
		t.Fatal("Chat() error = nil, want structured output failure")
	}
	if result.ErrorType != "invalid_structured_output" {
		t.Errorf("ErrorType = %q", result.ErrorType)
	}
	if calls.Load() != int64(1+maxStructuredRepairAttempts) {
		t.Errorf("calls = %d, want %d", calls.Load(), 1+maxStructuredRepairAttempts)
	}
}

func TestOpenRouterRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model": "test/model",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "ok"}},
			},
			"usage": map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		})
	}))
	defer srv.Close()

	c := NewOpenRouterClient(OpenRouterConfig{
		APIKey: "test-key", BaseURL: srv.URL, RetryDelay: time.Millisecond,
	})
	result, err := c.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if result.Content != "ok" {
		t.Errorf("Content = %q, want ok", result.Content)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestOpenRouterBadRequestNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"bad model"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewOpenRouterClient(OpenRouterConfig{
		APIKey: "test-key", BaseURL: srv.URL, RetryDelay: time.Millisecond,
	})
	result, err := c.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("Chat() error = nil, want error")
	}
	if result.ErrorType != "http_error" {
		t.Errorf("ErrorType = %q", result.ErrorType)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (400 is not retried)", calls.Load())
	}
}

func TestOpenRouterDefaults(t *testing.T) {
	c := NewOpenRouterClient(OpenRouterConfig{APIKey: "k"})
	if c.Name() != OpenRouterName {
		t.Errorf("Name() = %q", c.Name())
	}
	if c.RequestsPerMinute() != 150 {
		t.Errorf("RequestsPerMinute() = %d, want 150", c.RequestsPerMinute())
	}
	if c.MaxRetries() != 3 {
		t.Errorf("MaxRetries() = %d, want 3", c.MaxRetries())
	}
	if c.RetryDelayBase() != time.Second {
		t.Errorf("RetryDelayBase() = %v, want 1s", c.RetryDelayBase())
	}
}

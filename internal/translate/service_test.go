package translate

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/foliolabs/folio/internal/cache"
	"github.com/foliolabs/folio/internal/providers"
	"github.com/foliolabs/folio/internal/reader"
)

type stubFetcher struct {
	chapter *reader.Chapter
	err     error
	gotURL  string
}

func (f *stubFetcher) FetchChapter(ctx context.Context, url string) (*reader.Chapter, error) {
	f.gotURL = url
	return f.chapter, f.err
}

func mockWith(jsonBody string) *providers.MockClient {
	m := providers.NewMockClient()
	m.Latency = 0
	m.ResponseJSON = json.RawMessage(jsonBody)
	return m
}

func newTestService(t *testing.T, cfg Config) *Service {
	t.Helper()
	if cfg.Registry == nil {
		cfg.Registry = providers.NewRegistry()
	}
	return NewService(cfg)
}

func TestTranslateText(t *testing.T) {
	reg := providers.NewRegistry()
	reg.Register("mock", mockWith(`{"translation":"Bonjour tout le monde","detected_language":"en"}`))

	svc := newTestService(t, Config{
		Chain:    []ChainEntry{{Provider: "mock", Model: "test-model"}},
		Registry: reg,
	})

	got, err := svc.Translate(context.Background(), Request{Text: "Hello everyone", TargetLang: "fr"})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got.Translation != "Bonjour tout le monde" {
		t.Errorf("Translation = %q", got.Translation)
	}
	if got.DetectedLang != "en" {
		t.Errorf("DetectedLang = %q, want en", got.DetectedLang)
	}
	if got.Provider != "mock" {
		t.Errorf("Provider = %q, want mock", got.Provider)
	}
	if got.Cached {
		t.Error("Cached = true on first call")
	}
}

func TestTranslateFromURL(t *testing.T) {
	reg := providers.NewRegistry()
	reg.Register("mock", mockWith(`{"translation":"translated","detected_language":"ja"}`))
	fetcher := &stubFetcher{chapter: &reader.Chapter{
		URL: "https://site.example/novel/50", Title: "Chapter 50", Content: "原文",
	}}

	svc := newTestService(t, Config{
		Chain:    []ChainEntry{{Provider: "mock", Model: "m"}},
		Registry: reg,
		Fetcher:  fetcher,
	})

	got, err := svc.Translate(context.Background(), Request{URL: "https://site.example/novel/50", TargetLang: "en"})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if fetcher.gotURL != "https://site.example/novel/50" {
		t.Errorf("fetcher got %q", fetcher.gotURL)
	}
	if got.Title != "Chapter 50" {
		t.Errorf("Title = %q", got.Title)
	}
	if got.SourceURL != "https://site.example/novel/50" {
		t.Errorf("SourceURL = %q", got.SourceURL)
	}
}

func TestTranslateFetcherFailure(t *testing.T) {
	reg := providers.NewRegistry()
	reg.Register("mock", mockWith(`{"translation":"x","detected_language":"en"}`))
	svc := newTestService(t, Config{
		Chain:    []ChainEntry{{Provider: "mock", Model: "m"}},
		Registry: reg,
		Fetcher:  &stubFetcher{err: errors.New("upstream down")},
	})

	if _, err := svc.Translate(context.Background(), Request{URL: "https://site.example/x", TargetLang: "en"}); err == nil {
		t.Fatal("Translate() error = nil, want fetch failure")
	}
}

func TestTranslateFallbackChain(t *testing.T) {
	broken := providers.NewMockClient()
	broken.Latency = 0
	broken.ShouldFail = true

	reg := providers.NewRegistry()
	reg.Register("primary", broken)
	reg.Register("backup", mockWith(`{"translation":"ok","detected_language":"ko"}`))

	svc := newTestService(t, Config{
		Chain: []ChainEntry{
			{Provider: "primary", Model: "a"},
			{Provider: "backup", Model: "b"},
		},
		Registry: reg,
	})

	got, err := svc.Translate(context.Background(), Request{Text: "text", TargetLang: "en"})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got.Provider != "backup" {
		t.Errorf("Provider = %q, want backup", got.Provider)
	}
}

func TestTranslateMalformedPayloadFailsOver(t *testing.T) {
	reg := providers.NewRegistry()
	reg.Register("vague", mockWith(`{"something_else":true}`))
	reg.Register("solid", mockWith(`{"translation":"fine","detected_language":"zh"}`))

	svc := newTestService(t, Config{
		Chain: []ChainEntry{
			{Provider: "vague", Model: "a"},
			{Provider: "solid", Model: "b"},
		},
		Registry: reg,
	})

	got, err := svc.Translate(context.Background(), Request{Text: "text", TargetLang: "en"})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got.Provider != "solid" {
		t.Errorf("Provider = %q, want solid", got.Provider)
	}
}

func TestTranslateChainExhausted(t *testing.T) {
	broken := providers.NewMockClient()
	broken.Latency = 0
	broken.ShouldFail = true

	reg := providers.NewRegistry()
	reg.Register("only", broken)

	svc := newTestService(t, Config{
		Chain:    []ChainEntry{{Provider: "only", Model: "m"}, {Provider: "missing", Model: "m"}},
		Registry: reg,
	})

	if _, err := svc.Translate(context.Background(), Request{Text: "text", TargetLang: "en"}); err == nil {
		t.Fatal("Translate() error = nil, want chain exhaustion")
	} else if !strings.Contains(err.Error(), "all translation providers failed") {
		t.Errorf("error = %v", err)
	}
}

func TestTranslateCached(t *testing.T) {
	mock := mockWith(`{"translation":"hola","detected_language":"en"}`)
	reg := providers.NewRegistry()
	reg.Register("mock", mock)

	svc := newTestService(t, Config{
		Chain:    []ChainEntry{{Provider: "mock", Model: "m"}},
		Registry: reg,
		Cache:    cache.New(time.Minute, time.Minute),
	})

	first, err := svc.Translate(context.Background(), Request{Text: "hello", TargetLang: "es"})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	second, err := svc.Translate(context.Background(), Request{Text: "hello", TargetLang: "es"})
	if err != nil {
		t.Fatalf("second Translate() error = %v", err)
	}

	if first.Cached || !second.Cached {
		t.Errorf("Cached flags = %v/%v, want false/true", first.Cached, second.Cached)
	}
	if second.Translation != first.Translation {
		t.Errorf("cached translation differs: %q vs %q", second.Translation, first.Translation)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("provider calls = %d, want 1", mock.RequestCount())
	}

	// Different target language misses the cache.
	if _, err := svc.Translate(context.Background(), Request{Text: "hello", TargetLang: "fr"}); err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if mock.RequestCount() != 2 {
		t.Errorf("provider calls = %d, want 2 after language change", mock.RequestCount())
	}
}

func TestTranslateValidation(t *testing.T) {
	svc := newTestService(t, Config{Chain: []ChainEntry{{Provider: "x", Model: "m"}}})
	if _, err := svc.Translate(context.Background(), Request{TargetLang: "en"}); err == nil {
		t.Error("Translate() error = nil for empty request, want error")
	}

	empty := newTestService(t, Config{})
	if _, err := empty.Translate(context.Background(), Request{Text: "hi", TargetLang: "en"}); err == nil {
		t.Error("Translate() error = nil for empty chain, want error")
	}
}

func TestSetChain(t *testing.T) {
	svc := newTestService(t, Config{Chain: []ChainEntry{{Provider: "a", Model: "1"}}})
	svc.SetChain([]ChainEntry{{Provider: "b", Model: "2"}})
	got := svc.Chain()
	if len(got) != 1 || got[0].Provider != "b" {
		t.Errorf("Chain() = %v, want [{b 2}]", got)
	}
}

func TestSystemPrompt(t *testing.T) {
	got, err := SystemPrompt("French")
	if err != nil {
		t.Fatalf("SystemPrompt() error = %v", err)
	}
	if !strings.Contains(got, "French") {
		t.Errorf("prompt missing target language: %q", got)
	}
	if !strings.Contains(got, "detected_language") {
		t.Errorf("prompt missing structured output contract: %q", got)
	}
}

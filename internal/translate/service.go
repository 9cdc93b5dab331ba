package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/foliolabs/folio/internal/nav"
	"github.com/foliolabs/folio/internal/providers"
	"github.com/foliolabs/folio/internal/reader"
)

// DefaultCacheTTL is how long a finished translation is reused.
const DefaultCacheTTL = 24 * time.Hour

// DefaultTargetLang is used when a request does not name a language.
const DefaultTargetLang = "en"

// ChainEntry is one provider/model pair in the fallback chain.
type ChainEntry struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// ChapterFetcher resolves a URL to chapter content. The reader package
// provides the production implementation.
type ChapterFetcher interface {
	FetchChapter(ctx context.Context, url string) (*reader.Chapter, error)
}

// Cache is the TTL cache surface the service needs; may be nil.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
}

// Request asks for a translation of either literal text or a chapter URL.
type Request struct {
	Text       string `json:"text,omitempty"`
	URL        string `json:"url,omitempty"`
	TargetLang string `json:"target_lang"`
}

// Result is a finished translation.
type Result struct {
	Translation      string  `json:"translation"`
	DetectedLang     string  `json:"detected_language,omitempty"`
	Provider         string  `json:"provider"`
	Model            string  `json:"model"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	CostUSD          float64 `json:"cost_usd"`
	Cached           bool    `json:"cached"`
	SourceURL        string  `json:"source_url,omitempty"`
	Title            string  `json:"title,omitempty"`
	DurationMs       int64   `json:"duration_ms"`
}

// Config configures a translation Service.
type Config struct {
	Chain    []ChainEntry
	Registry *providers.Registry
	Fetcher  ChapterFetcher // required for URL requests
	Cache    Cache
	CacheTTL time.Duration
	Records  *RecordStore // optional
	Logger   *slog.Logger
}

// Service translates chapter text through an ordered provider/model
// fallback chain. Each attempt is rate limited per provider and recorded;
// the first structurally valid response wins.
type Service struct {
	chain    []ChainEntry
	registry *providers.Registry
	fetcher  ChapterFetcher
	cache    Cache
	cacheTTL time.Duration
	records  *RecordStore
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	limiters map[string]*providers.RateLimiter
}

// NewService creates a translation Service.
func NewService(cfg Config) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		chain:    cfg.Chain,
		registry: cfg.Registry,
		fetcher:  cfg.Fetcher,
		cache:    cfg.Cache,
		cacheTTL: cfg.CacheTTL,
		records:  cfg.Records,
		logger:   cfg.Logger.With("component", "translate"),
		now:      time.Now,
		limiters: make(map[string]*providers.RateLimiter),
	}
}

// SetChain replaces the fallback chain (config hot-reload).
func (s *Service) SetChain(chain []ChainEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chain = chain
}

// Chain returns the current fallback chain.
func (s *Service) Chain() []ChainEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChainEntry, len(s.chain))
	copy(out, s.chain)
	return out
}

// Translate resolves the request's content and runs the fallback chain.
func (s *Service) Translate(ctx context.Context, req Request) (*Result, error) {
	start := s.now()

	if req.TargetLang == "" {
		req.TargetLang = DefaultTargetLang
	}
	if req.Text == "" && req.URL == "" {
		return nil, fmt.Errorf("either text or url is required")
	}

	text := req.Text
	title := ""
	if text == "" {
		if s.fetcher == nil {
			return nil, fmt.Errorf("url translation requires a chapter fetcher")
		}
		ch, err := s.fetcher.FetchChapter(ctx, req.URL)
		if err != nil {
			return nil, fmt.Errorf("chapter fetch failed: %w", err)
		}
		text = ch.Content
		title = ch.Title
	}

	key := cacheKey(text, req.TargetLang)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			if cached, ok := v.(Result); ok {
				cached.Cached = true
				cached.SourceURL = req.URL
				cached.DurationMs = time.Since(start).Milliseconds()
				return &cached, nil
			}
		}
	}

	system, err := SystemPrompt(req.TargetLang)
	if err != nil {
		return nil, fmt.Errorf("prompt render failed: %w", err)
	}

	chain := s.Chain()
	if len(chain) == 0 {
		return nil, fmt.Errorf("translation chain is empty")
	}

	var lastErr error
	for _, entry := range chain {
		result, err := s.attempt(ctx, entry, system, text, req)
		if err != nil {
			lastErr = err
			s.logger.Warn("translation attempt failed",
				"provider", entry.Provider, "model", entry.Model, "error", err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		result.SourceURL = req.URL
		result.Title = title
		result.DurationMs = time.Since(start).Milliseconds()
		if s.cache != nil {
			s.cache.Set(key, *result, s.cacheTTL)
		}
		return result, nil
	}

	return nil, fmt.Errorf("all translation providers failed: %w", lastErr)
}

// attempt runs one chain entry end to end and records the outcome.
func (s *Service) attempt(ctx context.Context, entry ChainEntry, system, text string, req Request) (*Result, error) {
	attemptStart := s.now()

	client, err := s.registry.Get(entry.Provider)
	if err != nil {
		s.record(req, entry, attemptStart, nil, "provider_missing")
		return nil, err
	}

	if err := s.limiter(client).Wait(ctx); err != nil {
		return nil, err
	}

	chat, err := client.Chat(ctx, &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: text},
		},
		Model: entry.Model,
		ResponseFormat: &providers.ResponseFormat{
			Type:       "json_schema",
			JSONSchema: resultSchema,
		},
	})
	if err != nil {
		if chat != nil && chat.RetryAfter > 0 {
			s.limiter(client).Record429(chat.RetryAfter)
		}
		s.record(req, entry, attemptStart, chat, errType(chat, "chat_error"))
		return nil, err
	}

	var parsed structuredResult
	if err := json.Unmarshal(chat.ParsedJSON, &parsed); err != nil {
		s.record(req, entry, attemptStart, chat, "malformed_response")
		return nil, fmt.Errorf("malformed translation payload: %w", err)
	}
	if parsed.Translation == "" {
		s.record(req, entry, attemptStart, chat, "empty_translation")
		return nil, fmt.Errorf("provider returned empty translation")
	}

	s.record(req, entry, attemptStart, chat, "")

	return &Result{
		Translation:      parsed.Translation,
		DetectedLang:     parsed.DetectedLanguage,
		Provider:         entry.Provider,
		Model:            modelUsed(chat, entry.Model),
		PromptTokens:     chat.PromptTokens,
		CompletionTokens: chat.CompletionTokens,
		CostUSD:          chat.CostUSD,
	}, nil
}

func (s *Service) limiter(client providers.LLMClient) *providers.RateLimiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.limiters[client.Name()]; ok {
		return l
	}
	l := providers.NewRateLimiter(client.RequestsPerMinute())
	s.limiters[client.Name()] = l
	return l
}

// record persists one attempt, fire-and-forget.
func (s *Service) record(req Request, entry ChainEntry, start time.Time, chat *providers.ChatResult, errType string) {
	if s.records == nil {
		return
	}
	rec := Record{
		Timestamp:  start,
		SourceURL:  req.URL,
		Domain:     nav.Domain(req.URL),
		TargetLang: req.TargetLang,
		Provider:   entry.Provider,
		Model:      entry.Model,
		DurationMs: time.Since(start).Milliseconds(),
		Success:    errType == "",
		ErrorType:  errType,
	}
	if chat != nil {
		rec.PromptTokens = chat.PromptTokens
		rec.CompletionTokens = chat.CompletionTokens
		rec.CostUSD = chat.CostUSD
		if chat.ModelUsed != "" {
			rec.Model = chat.ModelUsed
		}
	}
	s.records.Record(rec)
}

func errType(chat *providers.ChatResult, fallback string) string {
	if chat != nil && chat.ErrorType != "" {
		return chat.ErrorType
	}
	return fallback
}

func modelUsed(chat *providers.ChatResult, requested string) string {
	if chat.ModelUsed != "" {
		return chat.ModelUsed
	}
	return requested
}

func cacheKey(text, lang string) string {
	h := sha256.New()
	h.Write([]byte(lang))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return "translation:" + hex.EncodeToString(h.Sum(nil))
}

package nav

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// Method records which tier produced a prediction.
type Method string

const (
	// MethodPattern means a URL template generated and validated the links.
	MethodPattern Method = "pattern"
	// MethodScraping means the links were lifted from page content.
	MethodScraping Method = "scraping"
)

// scrapeConfidence is the fixed trust assigned to scraped links. The
// scrape fetched the real page, so links found on it are returned as
// validated without a further existence check.
const scrapeConfidence = 0.3

// Prediction is the engine's answer for one source URL. All tiers converge
// on this shape so callers need no tier-specific handling.
type Prediction struct {
	NextURL     string   `json:"next_url,omitempty"`
	PreviousURL string   `json:"previous_url,omitempty"`
	Pattern     *Pattern `json:"pattern,omitempty"`
	Confidence  float64  `json:"confidence"`
	Method      Method   `json:"method"`
	SourceURL   string   `json:"source_url"`
	Validated   bool     `json:"validated"`
}

// Engine predicts next/previous chapter URLs. Collaborators are injected:
// tests substitute an in-memory store and stub fetchers, production wires
// the durable store, the probing validator, and the reader-backed scraper.
type Engine struct {
	store     PatternStore
	validator *Validator
	scraper   *LinkScraper
	logger    *slog.Logger
	now       func() time.Time
}

// EngineConfig configures an Engine. Store, Validator, and Scraper are
// required.
type EngineConfig struct {
	Store     PatternStore
	Validator *Validator
	Scraper   *LinkScraper
	Logger    *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		store:     cfg.Store,
		validator: cfg.Validator,
		scraper:   cfg.Scraper,
		logger:    cfg.Logger.With("component", "nav"),
		now:       time.Now,
	}
}

// Predict resolves navigation for a source URL through three tiers: reuse
// a trusted stored pattern, learn and validate a new one, then scrape the
// page. Extraction misses and network failures route between tiers rather
// than erroring; the only errors are for input that cannot name a page at
// all. The returned prediction may have both URLs empty.
func (e *Engine) Predict(ctx context.Context, rawURL string) (*Prediction, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid source url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	id := Extract(rawURL)
	if id.Kind != KindNone {
		next, prev := Next(rawURL, id), Previous(rawURL, id)
		if next != "" || prev != "" {
			domain := Domain(rawURL)

			pred, attempted := e.predictFromStored(ctx, rawURL, domain, next, prev)
			if pred != nil {
				return pred, nil
			}
			if !attempted {
				if pred := e.predictFromLearned(ctx, rawURL, next, prev); pred != nil {
					return pred, nil
				}
			}
			// A trusted pattern whose candidates just failed validation
			// skips re-learning: the learner would regenerate the same
			// candidates against a warm negative cache.
		}
	}

	return e.predictFromScrape(ctx, rawURL), nil
}

// predictFromStored is tier 1. The second return reports whether a stored
// pattern was actually exercised; if it was and validation failed, the
// engine goes straight to scraping.
func (e *Engine) predictFromStored(ctx context.Context, rawURL, domain, next, prev string) (*Prediction, bool) {
	if domain == "" {
		return nil, false
	}
	stored, err := e.store.Get(ctx, domain)
	if err != nil {
		e.logger.Warn("pattern lookup failed", "domain", domain, "error", err)
		return nil, false
	}
	if stored == nil || stored.Confidence <= reuseThreshold || !stored.Usable() {
		return nil, false
	}

	nextOK, prevOK := e.validatePair(ctx, next, prev)
	outcome := nextOK || prevOK
	stored.RecordOutcome(outcome, e.now())
	e.persistScores(ctx, stored)

	e.logger.Debug("stored pattern exercised",
		"domain", domain, "outcome", outcome, "confidence", stored.Confidence)

	if !outcome {
		return nil, true
	}

	pred := &Prediction{
		Pattern:    stored,
		Confidence: stored.Confidence,
		Method:     MethodPattern,
		SourceURL:  rawURL,
		Validated:  true,
	}
	if nextOK {
		pred.NextURL = next
	}
	if prevOK {
		pred.PreviousURL = prev
	}
	return pred, true
}

// predictFromLearned is tier 2. A learned candidate is promoted to storage
// only after at least one generated URL validates; otherwise it is
// discarded.
func (e *Engine) predictFromLearned(ctx context.Context, rawURL, next, prev string) *Prediction {
	learned := Learn(rawURL)
	if learned == nil {
		return nil
	}

	nextOK, prevOK := e.validatePair(ctx, next, prev)
	if !nextOK && !prevOK {
		return nil
	}

	learned.Confidence = seedConfidence
	learned.SuccessRate = seedSuccessRate
	learned.LastUsed = e.now()
	if err := e.store.Upsert(ctx, learned); err != nil {
		e.logger.Warn("pattern upsert failed", "domain", learned.Domain, "error", err)
	}

	e.logger.Info("learned new pattern",
		"domain", learned.Domain, "template", learned.Template, "kind", learned.IdentifierKind)

	pred := &Prediction{
		Pattern:    learned,
		Confidence: learned.Confidence,
		Method:     MethodPattern,
		SourceURL:  rawURL,
		Validated:  true,
	}
	if nextOK {
		pred.NextURL = next
	}
	if prevOK {
		pred.PreviousURL = prev
	}
	return pred
}

// predictFromScrape is tier 3 and always produces a result.
func (e *Engine) predictFromScrape(ctx context.Context, rawURL string) *Prediction {
	links := e.scraper.ScrapeLinks(ctx, rawURL)
	return &Prediction{
		NextURL:     links.NextURL,
		PreviousURL: links.PreviousURL,
		Confidence:  scrapeConfidence,
		Method:      MethodScraping,
		SourceURL:   rawURL,
		Validated:   true,
	}
}

// validatePair probes both candidates concurrently; empty candidates are
// reported false without a probe.
func (e *Engine) validatePair(ctx context.Context, next, prev string) (bool, bool) {
	results := e.validator.ExistsAll(ctx, []string{next, prev})
	return results[0], results[1]
}

// persistScores writes updated statistics back to the store. Failures are
// logged and absorbed: statistics are best-effort and never block a
// prediction.
func (e *Engine) persistScores(ctx context.Context, p *Pattern) {
	update := PatternUpdate{
		Confidence:  &p.Confidence,
		SuccessRate: &p.SuccessRate,
		LastUsed:    &p.LastUsed,
	}
	if err := e.store.Update(ctx, p.Domain, update); err != nil {
		e.logger.Warn("pattern update failed", "domain", p.Domain, "error", err)
	}
}

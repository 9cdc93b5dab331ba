package nav

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// DefaultScrapeTTL is how long an extracted link pair is reused before the
// page is scraped again.
const DefaultScrapeTTL = 24 * time.Hour

// ContentFetcher supplies page content as markdown-like text. The reader
// package provides the production implementation (extraction proxy with a
// local fallback).
type ContentFetcher interface {
	FetchContent(ctx context.Context, url string) (string, error)
}

// NavLinks is the scraper's best-effort answer; either side may be empty.
type NavLinks struct {
	NextURL     string `json:"next_url,omitempty"`
	PreviousURL string `json:"previous_url,omitempty"`
}

// markdownLinkRe matches [text](target) tokens in extracted page content.
var markdownLinkRe = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)\)`)

// Keyword sets for classifying link text, checked case-insensitively by
// containment.
var (
	nextKeywords = []string{
		"next chapter", "next page", "next", "continue", "forward",
		"→", ">>", "下一章", "下一页", "次へ", "다음",
	}
	prevKeywords = []string{
		"previous chapter", "previous page", "previous", "prev", "back",
		"←", "<<", "上一章", "上一页", "前へ", "이전",
	}
)

// Raw-text fallback: a navigation keyword closely followed by a bare URL,
// for pages whose extracted content lost its markdown link structure.
var (
	rawNextRe = regexp.MustCompile(`(?i)(?:next|continue|forward|→|>>|下一章|下一页|次へ|다음)[^\n]{0,16}?(https?://[^\s<>"'\)\]]+)`)
	rawPrevRe = regexp.MustCompile(`(?i)(?:previous|prev|back|←|<<|上一章|上一页|前へ|이전)[^\n]{0,16}?(https?://[^\s<>"'\)\]]+)`)
)

// LinkScraper extracts next/previous chapter links from page content. It
// is the engine's last tier: failures of any kind collapse to an empty
// result, never an error.
type LinkScraper struct {
	fetcher ContentFetcher
	cache   Cache
	logger  *slog.Logger
	ttl     time.Duration
}

// LinkScraperConfig configures a LinkScraper. Cache may be nil.
type LinkScraperConfig struct {
	Fetcher  ContentFetcher
	Cache    Cache
	Logger   *slog.Logger
	CacheTTL time.Duration
}

// NewLinkScraper creates a LinkScraper.
func NewLinkScraper(cfg LinkScraperConfig) *LinkScraper {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultScrapeTTL
	}
	return &LinkScraper{
		fetcher: cfg.Fetcher,
		cache:   cfg.Cache,
		logger:  cfg.Logger.With("component", "scraper"),
		ttl:     cfg.CacheTTL,
	}
}

// ScrapeLinks fetches the page and classifies its links. Extracted pairs
// are cached, including empty ones from link-less pages; fetch failures
// are not cached and will be retried on the next call.
func (s *LinkScraper) ScrapeLinks(ctx context.Context, rawURL string) NavLinks {
	key := scrapeCacheKey(rawURL)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			if links, ok := cached.(NavLinks); ok {
				return links
			}
		}
	}

	content, err := s.fetcher.FetchContent(ctx, rawURL)
	if err != nil {
		s.logger.Debug("scrape fetch failed", "url", rawURL, "error", err)
		return NavLinks{}
	}

	links := ParseNavLinks(content, rawURL)
	if s.cache != nil {
		s.cache.Set(key, links, s.ttl)
	}
	return links
}

// ParseNavLinks classifies markdown links in page content as next/previous
// chapter navigation; first match per direction wins. Relative targets
// resolve against baseURL. When no markdown link qualifies for a
// direction, a raw-text keyword-then-URL search fills it.
func ParseNavLinks(content, baseURL string) NavLinks {
	var links NavLinks
	for _, m := range markdownLinkRe.FindAllStringSubmatch(content, -1) {
		text := strings.ToLower(m[1])
		if links.NextURL == "" && containsAny(text, nextKeywords) {
			links.NextURL = resolveURL(baseURL, m[2])
		}
		if links.PreviousURL == "" && containsAny(text, prevKeywords) {
			links.PreviousURL = resolveURL(baseURL, m[2])
		}
		if links.NextURL != "" && links.PreviousURL != "" {
			return links
		}
	}

	if links.NextURL == "" {
		if m := rawNextRe.FindStringSubmatch(content); m != nil {
			links.NextURL = m[1]
		}
	}
	if links.PreviousURL == "" {
		if m := rawPrevRe.FindStringSubmatch(content); m != nil {
			links.PreviousURL = m[1]
		}
	}
	return links
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func resolveURL(baseURL, target string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return target
	}
	ref, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func scrapeCacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return "navlinks:" + hex.EncodeToString(sum[:])
}

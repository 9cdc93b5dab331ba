package reader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/avast/retry-go/v4"
	readability "github.com/go-shiori/go-readability"
	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"

	"github.com/foliolabs/folio/internal/cache"
)

const (
	// DefaultProxyBase is a Jina-style extraction proxy that returns page
	// content as markdown with links preserved.
	DefaultProxyBase = "https://r.jina.ai"

	DefaultTimeout     = 30 * time.Second
	DefaultMaxBodySize = 2 << 20 // 2 MiB
	DefaultCacheLife   = 30 * time.Minute
	DefaultUserAgent   = "Folio/1.0 (+https://github.com/foliolabs/folio)"

	robotsTTL = time.Hour
)

// Chapter is one fetched chapter page. Cached reports whether the content
// came from the local cache rather than the network.
type Chapter struct {
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	FetchedAt time.Time `json:"fetched_at"`
	Cached    bool      `json:"cached"`
}

// Config configures a reader Client.
type Config struct {
	ProxyBase             string        // "" uses DefaultProxyBase
	Timeout               time.Duration // per-fetch budget
	MaxBodySize           int64         // response size cap in bytes
	UserAgent             string        // sent on direct fetches
	DisableDirectFallback bool          // proxy-only mode
	CacheLife             time.Duration // bigcache life window
	HTTPClient            *http.Client
	Logger                *slog.Logger
}

// Client fetches chapter pages as markdown-like text. The primary path
// goes through an extraction proxy; when that fails the page is fetched
// directly and reduced with readability.
type Client struct {
	proxyBase string
	client    *http.Client
	userAgent string
	maxBody   int64
	direct    bool
	content   *bigcache.BigCache
	robots    *cache.TTL
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a reader Client.
func New(cfg Config) (*Client, error) {
	if cfg.ProxyBase == "" {
		cfg.ProxyBase = DefaultProxyBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.CacheLife <= 0 {
		cfg.CacheLife = DefaultCacheLife
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	bcCfg := bigcache.DefaultConfig(cfg.CacheLife)
	bcCfg.HardMaxCacheSize = 256 // MB
	bcCfg.Verbose = false
	content, err := bigcache.New(context.Background(), bcCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create content cache: %w", err)
	}

	return &Client{
		proxyBase: strings.TrimRight(cfg.ProxyBase, "/"),
		client:    cfg.HTTPClient,
		userAgent: cfg.UserAgent,
		maxBody:   cfg.MaxBodySize,
		direct:    !cfg.DisableDirectFallback,
		content:   content,
		robots:    cache.New(robotsTTL, robotsTTL),
		logger:    cfg.Logger.With("component", "reader"),
		now:       time.Now,
	}, nil
}

// FetchContent returns the page content as markdown-like text. Implements
// the navigation engine's scraping collaborator.
func (c *Client) FetchContent(ctx context.Context, rawURL string) (string, error) {
	ch, err := c.FetchChapter(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return ch.Content, nil
}

// FetchChapter returns the chapter at a URL, from cache when fresh.
func (c *Client) FetchChapter(ctx context.Context, rawURL string) (*Chapter, error) {
	key := contentCacheKey(rawURL)
	if data, err := c.content.Get(key); err == nil {
		var ch Chapter
		if err := json.Unmarshal(data, &ch); err == nil {
			ch.Cached = true
			return &ch, nil
		}
	}

	ch, err := c.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(ch); err == nil {
		if err := c.content.Set(key, data); err != nil {
			c.logger.Debug("content cache set failed", "url", rawURL, "error", err)
		}
	}
	return ch, nil
}

func (c *Client) fetch(ctx context.Context, rawURL string) (*Chapter, error) {
	ch, proxyErr := c.fetchViaProxy(ctx, rawURL)
	if proxyErr == nil {
		return ch, nil
	}
	c.logger.Debug("proxy fetch failed", "url", rawURL, "error", proxyErr)

	if !c.direct {
		return nil, proxyErr
	}

	ch, directErr := c.fetchDirect(ctx, rawURL)
	if directErr != nil {
		return nil, fmt.Errorf("proxy fetch failed (%v); direct fetch failed: %w", proxyErr, directErr)
	}
	return ch, nil
}

// fetchViaProxy asks the extraction proxy for the page as markdown.
func (c *Client) fetchViaProxy(ctx context.Context, rawURL string) (*Chapter, error) {
	var body string
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.proxyBase+"/"+rawURL, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Accept", "text/plain")

			resp, err := c.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("proxy status %d", resp.StatusCode)
			}

			data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
			if err != nil {
				return err
			}
			body = string(data)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(500*time.Millisecond),
	)
	if err != nil {
		return nil, err
	}

	title, content := splitProxyResponse(body)
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("proxy returned empty content")
	}
	return &Chapter{URL: rawURL, Title: title, Content: content, FetchedAt: c.now()}, nil
}

// fetchDirect downloads the page and reduces it to article text with
// markdown links.
func (c *Client) fetchDirect(ctx context.Context, rawURL string) (*Chapter, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if !c.allowedByRobots(ctx, u) {
		return nil, fmt.Errorf("disallowed by robots.txt: %s", u.Host)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	// Normalize legacy encodings (GBK, Shift-JIS, EUC-KR) to UTF-8 before
	// parsing; novel sites are rarely UTF-8 clean.
	utf8Body, err := charset.NewReader(io.LimitReader(resp.Body, c.maxBody), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("charset detection failed: %w", err)
	}

	article, err := readability.FromReader(utf8Body, u)
	if err != nil {
		return nil, fmt.Errorf("article extraction failed: %w", err)
	}

	content, err := renderMarkdown(article.Content, u)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("no readable content extracted")
	}

	return &Chapter{URL: rawURL, Title: article.Title, Content: content, FetchedAt: c.now()}, nil
}

type robotsEntry struct {
	group *robotstxt.Group
}

// allowedByRobots checks the host's robots.txt, cached per host. Fetch
// failures allow the request; robotstxt itself treats 4xx as allow-all.
func (c *Client) allowedByRobots(ctx context.Context, u *url.URL) bool {
	key := "robots:" + u.Host
	if v, ok := c.robots.Get(key); ok {
		if entry, ok := v.(robotsEntry); ok {
			return entry.group == nil || entry.group.Test(u.RequestURI())
		}
	}

	entry := robotsEntry{}
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err == nil {
		req.Header.Set("User-Agent", c.userAgent)
		if resp, err := c.client.Do(req); err == nil {
			data, err := robotstxt.FromResponse(resp)
			resp.Body.Close()
			if err == nil {
				entry.group = data.FindGroup(c.userAgent)
			}
		}
	}
	c.robots.Set(key, entry, robotsTTL)

	return entry.group == nil || entry.group.Test(u.RequestURI())
}

// splitProxyResponse pulls a "Title:" header line out of a Jina-style
// response, leaving the rest as content.
func splitProxyResponse(body string) (title, content string) {
	lines := strings.SplitN(body, "\n", 8)
	consumed := 0
	for i, line := range lines {
		if consumed != i {
			break
		}
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "Title:"):
			title = strings.TrimSpace(strings.TrimPrefix(trimmed, "Title:"))
			consumed = i + 1
		case strings.HasPrefix(trimmed, "URL Source:") || strings.HasPrefix(trimmed, "Markdown Content:") || trimmed == "":
			consumed = i + 1
		}
	}
	if consumed == 0 {
		return "", body
	}
	return title, strings.Join(lines[consumed:], "\n")
}

func contentCacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return "chapter:" + hex.EncodeToString(sum[:])
}

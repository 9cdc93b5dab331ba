package nav

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultProbeTimeout bounds a single existence probe.
	DefaultProbeTimeout = 5 * time.Second
	// DefaultValidationTTL is how long a probe result (hit or miss) is
	// reused before the URL is probed again.
	DefaultValidationTTL = time.Hour
)

// Cache is the TTL key/value store the validator and scraper memoize
// through. Implementations must be safe for concurrent use.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
}

// Validator answers whether candidate chapter URLs exist. Probes are
// HEAD-first with a bounded fallback GET, and fail closed: an unknown
// outcome is reported as absent so pattern confidence drifts down, not up.
type Validator struct {
	client    *http.Client
	cache     Cache
	logger    *slog.Logger
	timeout   time.Duration
	ttl       time.Duration
	userAgent string
}

// ValidatorConfig configures a Validator. Zero values get defaults; Cache
// may be nil to disable memoization (tests).
type ValidatorConfig struct {
	Client    *http.Client
	Cache     Cache
	Logger    *slog.Logger
	Timeout   time.Duration
	CacheTTL  time.Duration
	UserAgent string
}

// NewValidator creates a Validator.
func NewValidator(cfg ValidatorConfig) *Validator {
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProbeTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultValidationTTL
	}
	return &Validator{
		client:    cfg.Client,
		cache:     cfg.Cache,
		logger:    cfg.Logger.With("component", "validator"),
		timeout:   cfg.Timeout,
		ttl:       cfg.CacheTTL,
		userAgent: cfg.UserAgent,
	}
}

// Exists reports whether a URL plausibly exists. Results are cached by URL
// hash so repeated predictions against the same candidate are cheap.
func (v *Validator) Exists(ctx context.Context, rawURL string) bool {
	key := validationCacheKey(rawURL)
	if v.cache != nil {
		if cached, ok := v.cache.Get(key); ok {
			if exists, ok := cached.(bool); ok {
				return exists
			}
		}
	}

	exists := v.probe(ctx, rawURL)
	if v.cache != nil {
		v.cache.Set(key, exists, v.ttl)
	}
	return exists
}

// ExistsAll probes every URL concurrently and reports results in input
// order. Both legs of a prediction are independently useful, so there is
// no short-circuit on the first result. Empty entries are false without a
// probe.
func (v *Validator) ExistsAll(ctx context.Context, urls []string) []bool {
	results := make([]bool, len(urls))
	g, ctx := errgroup.WithContext(ctx)
	for i, u := range urls {
		if u == "" {
			continue
		}
		g.Go(func() error {
			results[i] = v.Exists(ctx, u)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// probe runs the two-step existence check: a HEAD with 2xx/403/405
// counting as "exists" (403/405 mean the path is recognized even though
// the method or auth is rejected), then, only on transport failure of the
// HEAD, a single GET where any 2xx counts.
func (v *Validator) probe(ctx context.Context, rawURL string) bool {
	status, err := v.request(ctx, http.MethodHead, rawURL)
	if err == nil {
		return status/100 == 2 || status == http.StatusForbidden || status == http.StatusMethodNotAllowed
	}

	status, err = v.request(ctx, http.MethodGet, rawURL)
	if err != nil {
		v.logger.Debug("existence probe failed", "url", rawURL, "error", err)
		return false
	}
	return status/100 == 2
}

func (v *Validator) request(ctx context.Context, method, rawURL string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, err
	}
	if v.userAgent != "" {
		req.Header.Set("User-Agent", v.userAgent)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if method == http.MethodGet {
		// Drain a bounded amount so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	}
	return resp.StatusCode, nil
}

func validationCacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return "urlcheck:" + hex.EncodeToString(sum[:])
}

package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/foliolabs/folio/internal/config"
	"github.com/foliolabs/folio/internal/svcctx"
)

func TestIPLimiter_Allow(t *testing.T) {
	l := newIPLimiter(2)

	if !l.allow("10.0.0.1:4312") {
		t.Error("first request should be allowed")
	}
	if !l.allow("10.0.0.1:4313") {
		t.Error("second request should be allowed")
	}
	if l.allow("10.0.0.1:4314") {
		t.Error("third request should be rejected")
	}

	// Separate clients get separate buckets
	if !l.allow("10.0.0.2:4312") {
		t.Error("different client should have its own bucket")
	}
}

func TestWithRateLimit(t *testing.T) {
	s := &Server{limiter: newIPLimiter(1), logger: slog.Default()}
	handler := s.withRateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/translate", nil)
	req.RemoteAddr = "10.1.1.1:9999"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response should carry Retry-After")
	}

	// Health routes are never throttled
	health := httptest.NewRequest("GET", "/health", nil)
	health.RemoteAddr = "10.1.1.1:9999"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, health)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestWithCORS(t *testing.T) {
	s := &Server{logger: slog.Default()}
	handler := s.withCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/translate", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("preflight status = %d, want %d", rec.Code, http.StatusNoContent)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Error("missing Access-Control-Allow-Origin header")
		}
	})

	t.Run("normal_request", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/health", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Error("missing Access-Control-Allow-Origin header")
		}
	})
}

func TestRequireInit(t *testing.T) {
	s := &Server{logger: slog.Default()}
	handler := s.requireInit(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/api/navigation/patterns", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("uninitialized status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestWithServices(t *testing.T) {
	s := &Server{logger: slog.Default(), services: &svcctx.Services{Logger: slog.Default()}}
	var got *svcctx.Services
	handler := s.withServices(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = svcctx.ServicesFrom(r.Context())
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil {
		t.Fatal("services not attached to request context")
	}
}

func TestChainFromConfig(t *testing.T) {
	chain := chainFromConfig([]config.ChainEntryCfg{
		{Provider: "openrouter", Model: "anthropic/claude-3.5-sonnet"},
		{Provider: "openai", Model: "gpt-4o-mini"},
	})

	if len(chain) != 2 {
		t.Fatalf("chain len = %d, want 2", len(chain))
	}
	if chain[0].Provider != "openrouter" || chain[1].Model != "gpt-4o-mini" {
		t.Errorf("chain = %+v", chain)
	}
}

package server

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/foliolabs/folio/internal/providers"
)

// ipLimiter keeps one token bucket per client address. Buckets accumulate
// for the life of the process; the reading client population is small.
type ipLimiter struct {
	mu      sync.Mutex
	rpm     int
	buckets map[string]*providers.RateLimiter
}

func newIPLimiter(rpm int) *ipLimiter {
	return &ipLimiter{
		rpm:     rpm,
		buckets: make(map[string]*providers.RateLimiter),
	}
}

// allow reports whether the client may proceed without waiting.
func (l *ipLimiter) allow(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	l.mu.Lock()
	bucket, ok := l.buckets[host]
	if !ok {
		bucket = providers.NewRateLimiter(l.rpm)
		l.buckets[host] = bucket
	}
	l.mu.Unlock()

	return bucket.TryConsume()
}

// withRateLimit rejects over-limit API requests with 429. Health and
// swagger routes stay unthrottled so probes keep working under load.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") && !s.limiter.allow(r.RemoteAddr) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withCORS allows browser readers on any origin to call the API.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

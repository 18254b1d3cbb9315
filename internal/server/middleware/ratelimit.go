package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	limiterSweepEvery = 10 * time.Minute
	limiterIdleAfter  = 30 * time.Minute
)

type keyedLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet hands out one token bucket per key and forgets keys that have
// been idle for limiterIdleAfter.
type limiterSet[K comparable] struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[K]*keyedLimiter
}

func newLimiterSet[K comparable](ctx context.Context, requestsPerSecond float64, burst int) *limiterSet[K] {
	s := &limiterSet[K]{
		rps:      rate.Limit(requestsPerSecond),
		burst:    burst,
		limiters: make(map[K]*keyedLimiter),
	}
	go s.sweep(ctx)
	return s
}

func (s *limiterSet[K]) get(key K) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	kl, ok := s.limiters[key]
	if !ok {
		kl = &keyedLimiter{limiter: rate.NewLimiter(s.rps, s.burst)}
		s.limiters[key] = kl
	}
	kl.lastAccess = time.Now()
	return kl.limiter
}

func (s *limiterSet[K]) sweep(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-limiterIdleAfter)
			s.mu.Lock()
			for key, kl := range s.limiters {
				if kl.lastAccess.Before(cutoff) {
					delete(s.limiters, key)
				}
			}
			s.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

// tooManyRequests writes a huma-style problem body and a Retry-After hint
// derived from the limiter's refill rate.
func tooManyRequests(w http.ResponseWriter, lim *rate.Limiter) {
	retry := 1
	if l := lim.Limit(); l > 0 && l < 1 {
		retry = int(1/float64(l) + 0.5)
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"title":"Too Many Requests","status":429,"detail":"rate limit exceeded"}`))
}

// RateLimitByIP applies per-client-IP rate limiting, e.g. to WebSocket
// upgrades. It reads r.RemoteAddr, which chi's RealIP middleware rewrites
// when a proxy header is present. Idle entries are swept every 10 minutes.
func RateLimitByIP(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	set := newLimiterSet[string](ctx, requestsPerSecond, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			if host, _, err := net.SplitHostPort(ip); err == nil {
				ip = host
			}
			if lim := set.get(ip); !lim.Allow() {
				tooManyRequests(w, lim)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies per-workspace rate limiting to requests carrying a
// workspace id (see WorkspaceFromPath). Requests without one pass through.
func RateLimit(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	set := newLimiterSet[uuid.UUID](ctx, requestsPerSecond, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			workspaceID, ok := WorkspaceIDFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			if lim := set.get(workspaceID); !lim.Allow() {
				tooManyRequests(w, lim)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

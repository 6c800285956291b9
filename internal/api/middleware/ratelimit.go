package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lumeo/edugate/internal/authz"
)

// RateLimiter tracks request timestamps per client key over a sliding
// window.
type RateLimiter struct {
	limit   int
	window  time.Duration
	mu      sync.Mutex
	clients map[string][]time.Time
}

func NewRateLimiter(limit, windowSeconds int) *RateLimiter {
	if limit <= 0 {
		limit = 100
	}
	if windowSeconds <= 0 {
		windowSeconds = 60
	}

	rl := &RateLimiter{
		limit:   limit,
		window:  time.Duration(windowSeconds) * time.Second,
		clients: make(map[string][]time.Time),
	}
	go rl.evictLoop()
	return rl
}

// evictLoop drops clients with no activity inside two windows so the
// map does not grow with every IP ever seen.
func (rl *RateLimiter) evictLoop() {
	for range time.Tick(time.Minute) {
		cutoff := time.Now().Add(-2 * rl.window)
		rl.mu.Lock()
		for key, stamps := range rl.clients {
			if len(stamps) == 0 || stamps[len(stamps)-1].Before(cutoff) {
				delete(rl.clients, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Allow records a request for key and reports whether it fits in the
// window, along with the remaining budget and the window reset time.
func (rl *RateLimiter) Allow(key string) (bool, int, time.Time) {
	now := time.Now()
	windowStart := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	stamps := rl.clients[key]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= rl.limit {
		rl.clients[key] = kept
		return false, 0, kept[0].Add(rl.window)
	}

	kept = append(kept, now)
	rl.clients[key] = kept
	return true, rl.limit - len(kept), now.Add(rl.window)
}

// RateLimit limits requests per client IP.
func RateLimit(limit, windowSeconds int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(limit, windowSeconds)
	return rateLimitWith(limiter, func(r *http.Request) string {
		return clientIP(r)
	})
}

// RateLimitByUser limits per authenticated user, falling back to the
// client IP for unauthenticated requests.
func RateLimitByUser(limit, windowSeconds int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(limit, windowSeconds)
	return rateLimitWith(limiter, func(r *http.Request) string {
		if id, ok := authz.IdentityFromContext(r.Context()); ok {
			return "user:" + id.User.ID.String()
		}
		return clientIP(r)
	})
}

func rateLimitWith(limiter *RateLimiter, keyFn func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, reset := limiter.Allow(keyFn(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

			if !allowed {
				w.Header().Set("Retry-After", strconv.FormatInt(int64(time.Until(reset).Seconds())+1, 10))
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers proxy headers over the raw remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if i := strings.LastIndexByte(ip, ':'); i >= 0 {
		return ip[:i]
	}
	return ip
}

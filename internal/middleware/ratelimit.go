package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/dukerupert/hearth/internal/auth"
)

// RealIP extracts the client's real IP address, preferring Cloudflare's
// CF-Connecting-IP header, then X-Forwarded-For, and falling back to RemoteAddr.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// UserOrIP keys requests by the authenticated user, falling back to the
// client IP.
func UserOrIP(r *http.Request) string {
	if ac, ok := auth.FromContext(r.Context()); ok {
		return "user:" + ac.UserID.String()
	}
	return "ip:" + RealIP(r)
}

// Limiter is satisfied by *redis_rate.Limiter and MemoryLimiter.
type Limiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

// NewRedisLimiter shares limits across instances through Redis.
func NewRedisLimiter(client redis.UniversalClient) *redis_rate.Limiter {
	return redis_rate.NewLimiter(client)
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter is a per-process token bucket limiter.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	idleTTL time.Duration
	now     func() time.Time
}

func NewMemoryLimiter(idleTTL time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok {
		every := rate.Limit(float64(limit.Rate) / limit.Period.Seconds())
		b = &bucket{limiter: rate.NewLimiter(every, limit.Burst)}
		m.buckets[key] = b
	}
	b.lastSeen = now

	res := &redis_rate.Result{Limit: limit, RetryAfter: -1}
	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return res, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		res.RetryAfter = delay
		return res, nil
	}
	res.Allowed = 1
	res.Remaining = int(math.Floor(b.limiter.TokensAt(now)))
	return res, nil
}

// Cleanup drops buckets idle longer than the idle TTL.
func (m *MemoryLimiter) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.idleTTL)
	for key, b := range m.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
}

// RateLimit returns middleware that limits requests per key. Limiter
// failures let the request through.
func RateLimit(limiter Limiter, name string, limit redis_rate.Limit, keyFunc func(*http.Request) string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ratelimit:" + name + ":" + keyFunc(r)
			res, err := limiter.Allow(r.Context(), key, limit)
			if err != nil {
				logger.Warn("rate limiter unavailable", "limit", name, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if res.Allowed == 0 {
				if res.RetryAfter > 0 {
					secs := int(math.Ceil(res.RetryAfter.Seconds()))
					w.Header().Set("Retry-After", strconv.Itoa(secs))
				}
				writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

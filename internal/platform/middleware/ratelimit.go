package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hospital/hms/internal/platform/auth"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// IdleTTL drops buckets that have not been used for this long. Zero keeps them forever.
	IdleTTL time.Duration
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
		IdleTTL:           10 * time.Minute,
	}
}

// ClientKey identifies the caller for rate limiting: "user:<id>" once an auth
// middleware has run, "ip:<addr>" otherwise. Mount limiters after auth for
// the per-user form to apply.
func ClientKey(c echo.Context) string {
	if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
		return "user:" + uid
	}
	return "ip:" + c.RealIP()
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// bucketLimiter keeps one token bucket per client key.
type bucketLimiter struct {
	mu        sync.Mutex
	rate      float64
	burst     float64
	idleTTL   time.Duration
	now       func() time.Time
	buckets   map[string]*bucket
	lastSweep time.Time
}

func newBucketLimiter(cfg RateLimitConfig, now func() time.Time) *bucketLimiter {
	return &bucketLimiter{
		rate:      cfg.RequestsPerSecond,
		burst:     float64(cfg.BurstSize),
		idleTTL:   cfg.IdleTTL,
		now:       now,
		buckets:   make(map[string]*bucket),
		lastSweep: now(),
	}
}

// take spends one token for key. When none is left it returns the whole
// seconds until the next token.
func (l *bucketLimiter) take(key string) (ok bool, retryAfter int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, found := l.buckets[key]
	if !found {
		b = &bucket{tokens: l.burst, lastSeen: now}
		l.buckets[key] = b
	}
	b.tokens = math.Min(l.burst, b.tokens+now.Sub(b.lastSeen).Seconds()*l.rate)
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if l.rate <= 0 {
		return false, 1
	}
	return false, int(math.Ceil((1 - b.tokens) / l.rate))
}

func (l *bucketLimiter) sweep(now time.Time) {
	if l.idleTTL <= 0 || now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.idleTTL {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

func (l *bucketLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RateLimit returns an in-process token bucket middleware keyed by ClientKey.
// Used when no shared limiter store is configured.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	return rateLimit(newBucketLimiter(cfg, time.Now), cfg)
}

func rateLimit(l *bucketLimiter, cfg RateLimitConfig) echo.MiddlewareFunc {
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			if ok, retry := l.take(ClientKey(c)); !ok {
				h.Set("X-RateLimit-Remaining", "0")
				h.Set("Retry-After", strconv.Itoa(retry))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

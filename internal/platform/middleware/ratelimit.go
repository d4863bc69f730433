package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/careconnect/clinic/internal/platform/auth"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// IdleTTL drops buckets unused for this long. Zero keeps them forever.
	IdleTTL time.Duration
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 50,
		BurstSize:         100,
		IdleTTL:           10 * time.Minute,
	}
}

// tokenBucket implements a token bucket rate limiter.
type tokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

func newTokenBucket(rate float64, burst int, now time.Time) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: rate,
		lastRefill: now,
	}
}

func (b *tokenBucket) allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

func (b *tokenBucket) retryAfter() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refillRate <= 0 {
		return 1
	}
	return int((1-b.tokens)/b.refillRate) + 1
}

func (b *tokenBucket) idleSince(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return now.Sub(b.lastRefill)
}

// rateLimiterStore holds per-key token buckets.
type rateLimiterStore struct {
	buckets   map[string]*tokenBucket
	mu        sync.Mutex
	config    RateLimitConfig
	now       func() time.Time
	lastSweep time.Time
}

func newRateLimiterStore(cfg RateLimitConfig) *rateLimiterStore {
	return &rateLimiterStore{
		buckets:   make(map[string]*tokenBucket),
		config:    cfg,
		now:       time.Now,
		lastSweep: time.Now(),
	}
}

func (s *rateLimiterStore) getBucket(key string, now time.Time) *tokenBucket {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.IdleTTL > 0 && now.Sub(s.lastSweep) > s.config.IdleTTL {
		for k, b := range s.buckets {
			if b.idleSince(now) > s.config.IdleTTL {
				delete(s.buckets, k)
			}
		}
		s.lastSweep = now
	}

	bucket, ok := s.buckets[key]
	if !ok {
		bucket = newTokenBucket(s.config.RequestsPerSecond, s.config.BurstSize, now)
		s.buckets[key] = bucket
	}
	return bucket
}

func (s *rateLimiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// RateLimit returns a rate limiting middleware keyed by authenticated user,
// falling back to client IP.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	return rateLimit(newRateLimiterStore(cfg))
}

func rateLimit(store *rateLimiterStore) echo.MiddlewareFunc {
	limit := strconv.FormatFloat(store.config.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "ip:" + c.RealIP()
			if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
				key = "user:" + uid
			}

			bucket := store.getBucket(key, store.now())
			c.Response().Header().Set("X-RateLimit-Limit", limit)
			if !bucket.allow(store.now()) {
				c.Response().Header().Set("Retry-After", strconv.Itoa(bucket.retryAfter()))
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}

			return next(c)
		}
	}
}

package icd11

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// tokenSafetyMargin is subtracted from expires_in so a token is never used
// right at its expiry.
const tokenSafetyMargin = 60 * time.Second

// SharedTokenKey is the key under which the token is shared between
// replicas.
const SharedTokenKey = "icd11:access_token"

// FetchFunc obtains a fresh token and its lifetime.
type FetchFunc func(ctx context.Context) (token string, expiresIn time.Duration, err error)

// SharedCache is an optional second-level store shared by all replicas.
type SharedCache interface {
	Get(ctx context.Context, key string) (string, time.Duration, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// ErrCacheMiss is returned by SharedCache.Get when nothing is stored.
var ErrCacheMiss = errors.New("cache miss")

// TokenCache holds one access token. Concurrent callers that find it
// missing or expired share a single refresh.
type TokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time

	fetch  FetchFunc
	shared SharedCache
	group  singleflight.Group
	now    func() time.Time
	logger zerolog.Logger
}

func NewTokenCache(fetch FetchFunc, shared SharedCache, logger zerolog.Logger) *TokenCache {
	return &TokenCache{
		fetch:  fetch,
		shared: shared,
		now:    time.Now,
		logger: logger,
	}
}

// Token returns a valid token, refreshing it if needed.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if tok, ok := c.cached(); ok {
		return tok, nil
	}

	v, err, _ := c.group.Do("token", func() (interface{}, error) {
		// Another caller may have refreshed while we waited.
		if tok, ok := c.cached(); ok {
			return tok, nil
		}
		// The refresh outlives any single caller's cancellation.
		return c.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the local token, forcing the next call to refresh.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, true
	}
	return "", false
}

func (c *TokenCache) store(token string, ttl time.Duration) {
	c.mu.Lock()
	c.token = token
	c.expiresAt = c.now().Add(ttl)
	c.mu.Unlock()
}

func (c *TokenCache) refresh(ctx context.Context) (string, error) {
	if c.shared != nil {
		tok, ttl, err := c.shared.Get(ctx, SharedTokenKey)
		switch {
		case err == nil && tok != "" && ttl > 0:
			c.store(tok, ttl)
			return tok, nil
		case err != nil && !errors.Is(err, ErrCacheMiss):
			c.logger.Warn().Err(err).Msg("shared ICD-11 token cache unavailable")
		}
	}

	tok, expiresIn, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}

	ttl := expiresIn - tokenSafetyMargin
	if ttl <= 0 {
		// Too short-lived to cache; use it once.
		return tok, nil
	}
	c.store(tok, ttl)

	if c.shared != nil {
		if err := c.shared.Set(ctx, SharedTokenKey, tok, ttl); err != nil {
			c.logger.Warn().Err(err).Msg("failed to share ICD-11 token")
		}
	}
	return tok, nil
}

// Package auth provides a process-wide cache for Spotify client-credentials tokens.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// refreshKey is the single singleflight slot shared by all refreshes.
const refreshKey = "token"

// CachedToken is a bearer token together with its absolute expiry.
type CachedToken struct {
	Value     string
	ExpiresAt time.Time
}

// ValidAt reports whether the token may still be handed out at now.
// A token is valid only while now is strictly before ExpiresAt minus margin.
func (t CachedToken) ValidAt(now time.Time, margin time.Duration) bool {
	return t.Value != "" && now.Before(t.ExpiresAt.Add(-margin))
}

// TokenCache hands out a valid bearer token, exchanging client credentials with the
// upstream only when the cached token has expired. Concurrent callers that find the
// token expired share one outstanding exchange.
type TokenCache struct {
	exchanger *exchanger
	margin    time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu    sync.RWMutex
	token *CachedToken

	flight singleflight.Group
}

// Option configures a TokenCache.
type Option func(*tokenCacheConfig)

type tokenCacheConfig struct {
	tokenURL   string
	httpClient *http.Client
	timeout    time.Duration
	margin     time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// WithTokenURL overrides the credential-exchange endpoint.
func WithTokenURL(url string) Option {
	return func(c *tokenCacheConfig) {
		c.tokenURL = url
	}
}

// WithHTTPClient sets the HTTP client used for credential exchanges.
func WithHTTPClient(client *http.Client) Option {
	return func(c *tokenCacheConfig) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout bounds each credential exchange.
func WithTimeout(d time.Duration) Option {
	return func(c *tokenCacheConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRefreshMargin treats tokens as expired d before their declared expiry.
// The default is zero: a token is used until its exact deadline.
func WithRefreshMargin(d time.Duration) Option {
	return func(c *tokenCacheConfig) {
		if d >= 0 {
			c.margin = d
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *tokenCacheConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger used for refresh diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *tokenCacheConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewTokenCache creates an empty TokenCache. No I/O is performed until the first
// Token call. Returns ErrMissingCredentials if either credential is empty.
func NewTokenCache(creds Credentials, opts ...Option) (*TokenCache, error) {
	if err := creds.validate(); err != nil {
		return nil, err
	}

	cfg := &tokenCacheConfig{
		tokenURL:   DefaultTokenURL,
		httpClient: http.DefaultClient,
		timeout:    DefaultTimeout,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &TokenCache{
		exchanger: newExchanger(creds, cfg.tokenURL, cfg.httpClient, cfg.timeout),
		margin:    cfg.margin,
		now:       cfg.now,
		logger:    cfg.logger,
	}, nil
}

// Token returns a valid bearer token, refreshing it first if the cached one has
// expired. Failures wrap ErrUpstreamAuth and leave the cache untouched.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if value, ok := c.cached(); ok {
		return value, nil
	}

	// The exchange outlives any single caller; each caller only stops waiting.
	refreshCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(refreshKey, func() (any, error) {
		// A flight that finished just before this one started may have refreshed already.
		if value, ok := c.cached(); ok {
			return value, nil
		}
		return c.refresh(refreshCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrUpstreamAuth, ctx.Err())
	}
}

// Cached returns a copy of the current token, or false if nothing has been cached yet.
// The returned token may already be expired.
func (c *TokenCache) Cached() (CachedToken, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token == nil {
		return CachedToken{}, false
	}
	return *c.token, true
}

// Invalidate drops the cached token so the next Token call performs an exchange.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

// cached returns the token value if one is cached and still valid.
func (c *TokenCache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token == nil || !c.token.ValidAt(c.now(), c.margin) {
		return "", false
	}
	return c.token.Value, true
}

// refresh performs one credential exchange and replaces the cached token on success.
func (c *TokenCache) refresh(ctx context.Context) (string, error) {
	started := c.now()

	value, lifetime, err := c.exchanger.exchange(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "spotify token refresh failed", "error", err)
		return "", err
	}

	token := &CachedToken{
		Value:     value,
		ExpiresAt: started.Add(lifetime),
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	c.logger.DebugContext(ctx, "spotify token refreshed", "expires_at", token.ExpiresAt)
	return value, nil
}

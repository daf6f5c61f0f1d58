// Package spotify resolves track titles and artists to Spotify track identifiers
// using the Spotify Web API search endpoint.
package spotify

import (
	"context"
	"errors"
	"net/http"
	"time"
)

const (
	// DefaultBaseURL is the Spotify Web API root. It must end with a slash.
	DefaultBaseURL = "https://api.spotify.com/v1/"

	// DefaultTimeout bounds a single search request.
	DefaultTimeout = 10 * time.Second
)

var (
	// ErrInvalidQuery is returned when the title or artist is missing.
	ErrInvalidQuery = errors.New("invalid track query")

	// ErrSearch is returned when the search request fails or returns a non-2xx status.
	ErrSearch = errors.New("spotify search failed")
)

// TokenProvider supplies a valid bearer token for API calls.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Resolver maps (title, artist) pairs to Spotify track identifiers.
type Resolver struct {
	tokens    TokenProvider
	baseURL   string
	transport http.RoundTripper
	timeout   time.Duration
	retry     bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithBaseURL overrides the Web API root, e.g. for a test server.
func WithBaseURL(url string) Option {
	return func(r *Resolver) {
		if url != "" {
			r.baseURL = url
		}
	}
}

// WithTransport sets the base transport for search requests.
func WithTransport(transport http.RoundTripper) Option {
	return func(r *Resolver) {
		r.transport = transport
	}
}

// WithTimeout bounds each search request.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRetry enables waiting out 429 responses using the Retry-After header.
// Disabled by default: a rate-limited search fails immediately.
func WithRetry(retry bool) Option {
	return func(r *Resolver) {
		r.retry = retry
	}
}

// NewResolver creates a Resolver that authenticates with tokens from tp.
func NewResolver(tp TokenProvider, opts ...Option) *Resolver {
	r := &Resolver{
		tokens:  tp,
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	baseURL   = "http://ws.audioscrobbler.com/2.0/"
	userAgent = "moodtunes/1.0"

	// DefaultRateLimit is Last.fm's documented ceiling of five requests per second.
	DefaultRateLimit = 5
)

// Last.fm API error codes.
const (
	errCodeInvalidParams = 6
	errCodeInvalidAPIKey = 10
	errCodeRateLimited   = 29
)

// Sentinel errors.
var (
	// ErrRateLimited is returned when the API rate limit is exceeded after retries.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidAPIKey is returned when the API key is invalid.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrInvalidParams is returned when Last.fm rejects the request parameters,
	// e.g. an unknown tag.
	ErrInvalidParams = errors.New("invalid parameters")
)

// Client is a Last.fm API client with caching and rate limiting.
type Client struct {
	apiKey      string
	httpClient  *http.Client
	baseURL     string
	limiter     *rate.Limiter
	retryDelays []time.Duration

	// In-memory cache: key = "tag:{tag}:{limit}"
	cache   map[string][]TagTrack
	cacheMu sync.RWMutex
}

// NewClient creates a new Last.fm API client from the provided configuration.
func NewClient(cfg *Config) *Client {
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = DefaultRateLimit
	}

	return &Client{
		apiKey: cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:     baseURL,
		limiter:     rate.NewLimiter(rate.Limit(limit), 1),
		retryDelays: []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
		cache:       make(map[string][]TagTrack),
	}
}

// TopTracks fetches the most popular tracks for a tag, at most limit of them.
// Results are cached in memory. Returns an empty slice (not nil) if the tag has no tracks.
func (c *Client) TopTracks(ctx context.Context, tag string, limit int) ([]TagTrack, error) {
	cacheKey := fmt.Sprintf("tag:%s:%d", tag, limit)

	// Check cache
	c.cacheMu.RLock()
	if cached, ok := c.cache[cacheKey]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	params := url.Values{
		"method":  {"tag.getTopTracks"},
		"tag":     {tag},
		"limit":   {strconv.Itoa(limit)},
		"format":  {"json"},
		"api_key": {c.apiKey},
	}

	body, err := c.doRequest(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetching top tracks for tag %q: %w", tag, err)
	}

	var resp topTracksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing top tracks response: %w", err)
	}

	tracks := make([]TagTrack, 0, len(resp.Tracks.Track))
	for _, t := range resp.Tracks.Track {
		tracks = append(tracks, TagTrack{
			Name:   t.Name,
			Artist: t.Artist.Name,
			URL:    t.URL,
		})
	}

	// Last.fm treats limit as a page size hint and can return more.
	if limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}

	c.cacheMu.Lock()
	c.cache[cacheKey] = tracks
	c.cacheMu.Unlock()

	return tracks, nil
}

// doRequest performs an HTTP GET request with retry on rate limit.
// Retries once per entry in retryDelays, waiting that long before each attempt.
func (c *Client) doRequest(ctx context.Context, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + "?" + params.Encode()

	var lastErr error

	for attempt := 0; attempt <= len(c.retryDelays); attempt++ {
		// Wait before retry (skip on first attempt)
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelays[attempt-1]):
			}
		}

		body, err := c.doSingleRequest(ctx, reqURL)
		if err == nil {
			return body, nil
		}

		if errors.Is(err, ErrRateLimited) {
			lastErr = err
			continue
		}

		return nil, err
	}

	return nil, lastErr
}

// doSingleRequest performs a single rate-limited HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, reqURL string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	// Check for API error in response
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		switch apiErr.Error {
		case errCodeRateLimited:
			return nil, ErrRateLimited
		case errCodeInvalidAPIKey:
			return nil, ErrInvalidAPIKey
		case errCodeInvalidParams:
			return nil, fmt.Errorf("%w: %s", ErrInvalidParams, apiErr.Message)
		default:
			return nil, fmt.Errorf("API error %d: %s", apiErr.Error, apiErr.Message)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return body, nil
}

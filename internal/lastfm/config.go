// Package lastfm provides Last.fm API integration for fetching tag charts.
package lastfm

import "errors"

// ErrMissingAPIKey is returned when no Last.fm API key is configured.
var ErrMissingAPIKey = errors.New("missing Last.fm API key (set LASTFM_API_KEY)")

// Config holds Last.fm API configuration.
type Config struct {
	APIKey string

	// RateLimit caps outbound requests per second. Zero means DefaultRateLimit.
	RateLimit float64
}

// Validate returns ErrMissingAPIKey if APIKey is empty.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Package config defines the moodtunes configuration and loads it from a TOML
// file, the environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/justestif/go-spotify-moodtunes/internal/auth"
	"github.com/justestif/go-spotify-moodtunes/internal/lastfm"
	"github.com/justestif/go-spotify-moodtunes/internal/recommend"
	"github.com/justestif/go-spotify-moodtunes/internal/spotify"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// Default configuration values
const (
	DefaultLogFormat       = LogFormatText
	DefaultServerHost      = "127.0.0.1"
	DefaultServerPort      = 8000
	DefaultShutdownTimeout = 10 * time.Second
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout" validate:"gte=0"`
}

// SpotifyConfig holds the client-credentials pair and upstream endpoints.
type SpotifyConfig struct {
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
	TokenURL     string `json:"token_url" validate:"required,url"`
	APIBaseURL   string `json:"api_base_url" validate:"required,url"`

	// Timeout bounds each credential exchange and each search.
	Timeout time.Duration `json:"timeout" validate:"gte=0"`

	// RefreshMargin renews the token this long before it expires.
	RefreshMargin time.Duration `json:"refresh_margin" validate:"gte=0"`

	// Retry enables retrying rate-limited searches.
	Retry bool `json:"retry"`
}

// LastFMConfig holds Last.fm configuration. Recommendations are disabled
// without an API key.
type LastFMConfig struct {
	APIKey    string  `json:"api_key"`
	PerTag    int     `json:"per_tag" validate:"gte=0,lte=50"`
	RateLimit float64 `json:"rate_limit" validate:"gte=0"`
}

// Enabled reports whether an API key is configured.
func (l LastFMConfig) Enabled() bool {
	return l.APIKey != ""
}

// DatabaseConfig holds PostgreSQL configuration. Persistence is disabled
// without a URL.
type DatabaseConfig struct {
	URL string `json:"url"`
}

// Enabled reports whether a database URL is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// RecommendConfig holds recommendation tuning.
type RecommendConfig struct {
	Concurrency int `json:"concurrency" validate:"gte=0"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level      `json:"log_level"`
	LogFormat LogFormat       `json:"log_format" validate:"oneof=text json"`
	Server    ServerConfig    `json:"server"`
	Shutdown  ShutdownConfig  `json:"shutdown"`
	Spotify   SpotifyConfig   `json:"spotify"`
	LastFM    LastFMConfig    `json:"lastfm"`
	Database  DatabaseConfig  `json:"database"`
	Recommend RecommendConfig `json:"recommend"`
}

// ApplyDefaults fills unset config fields with defaults.
func (c *Config) ApplyDefaults() {
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultShutdownTimeout
	}
	if c.Spotify.TokenURL == "" {
		c.Spotify.TokenURL = auth.DefaultTokenURL
	}
	if c.Spotify.APIBaseURL == "" {
		c.Spotify.APIBaseURL = spotify.DefaultBaseURL
	}
	// The Web API client resolves endpoints relative to the base URL.
	if !strings.HasSuffix(c.Spotify.APIBaseURL, "/") {
		c.Spotify.APIBaseURL += "/"
	}
	if c.Spotify.Timeout == 0 {
		c.Spotify.Timeout = auth.DefaultTimeout
	}
	if c.LastFM.PerTag == 0 {
		c.LastFM.PerTag = recommend.DefaultPerTag
	}
	if c.LastFM.RateLimit == 0 {
		c.LastFM.RateLimit = lastfm.DefaultRateLimit
	}
	if c.Recommend.Concurrency == 0 {
		c.Recommend.Concurrency = recommend.DefaultConcurrency
	}
}

// Validate validates the configuration using struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.Spotify.RefreshMargin >= time.Hour {
		return errors.New("spotify.refresh_margin must be shorter than the one-hour token lifetime")
	}

	return nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/justestif/go-spotify-moodtunes/internal/auth"
	"github.com/justestif/go-spotify-moodtunes/internal/config"
	"github.com/justestif/go-spotify-moodtunes/internal/db"
	"github.com/justestif/go-spotify-moodtunes/internal/lastfm"
	"github.com/justestif/go-spotify-moodtunes/internal/recommend"
	"github.com/justestif/go-spotify-moodtunes/internal/spotify"
)

// app holds the components built from configuration.
type app struct {
	tokens      *auth.TokenCache
	resolver    *spotify.Resolver
	recommender *recommend.Service
	database    *db.DB // nil when persistence is off
}

// newApp wires the token cache, resolver and recommendation service. It connects
// to the database and migrates it when one is configured.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	tokens, err := auth.NewTokenCache(
		auth.Credentials{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
		},
		auth.WithTokenURL(cfg.Spotify.TokenURL),
		auth.WithTimeout(cfg.Spotify.Timeout),
		auth.WithRefreshMargin(cfg.Spotify.RefreshMargin),
		auth.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("creating token cache: %w", err)
	}

	resolver := spotify.NewResolver(tokens,
		spotify.WithBaseURL(cfg.Spotify.APIBaseURL),
		spotify.WithTimeout(cfg.Spotify.Timeout),
		spotify.WithRetry(cfg.Spotify.Retry),
	)

	a := &app{
		tokens:   tokens,
		resolver: resolver,
	}

	if cfg.Database.Enabled() {
		database, err := openDatabase(ctx, cfg.Database.URL, logger)
		if err != nil {
			return nil, err
		}
		a.database = database
	}

	opts := []recommend.Option{
		recommend.WithPerTag(cfg.LastFM.PerTag),
		recommend.WithConcurrency(cfg.Recommend.Concurrency),
		recommend.WithLogger(logger),
	}
	if a.database != nil {
		opts = append(opts, recommend.WithStore(recommend.NewDBStore(a.database)))
	}

	var charts recommend.ChartFetcher
	if cfg.LastFM.Enabled() {
		client := lastfm.NewClient(&lastfm.Config{
			APIKey:    cfg.LastFM.APIKey,
			RateLimit: cfg.LastFM.RateLimit,
		})
		charts = client
		if a.database != nil {
			charts = recommend.NewCachedCharts(a.database.TagTracks(), client, logger)
		}
	}

	a.recommender = recommend.NewService(charts, resolver, opts...)

	return a, nil
}

// openDatabase connects, applies the schema and prunes stale chart cache rows.
func openDatabase(ctx context.Context, url string, logger *slog.Logger) (*db.DB, error) {
	database, err := db.New(ctx, url)
	if err != nil {
		return nil, err
	}

	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, err
	}

	pruned, err := recommend.Prune(ctx, database.TagTracks())
	if err != nil {
		// Stale rows are also skipped on read
		logger.WarnContext(ctx, "pruning chart cache failed", "error", err)
	} else if pruned > 0 {
		logger.InfoContext(ctx, "pruned stale chart cache", "rows", pruned)
	}

	return database, nil
}

// Close releases the database connection, if any.
func (a *app) Close() {
	if a.database != nil {
		a.database.Close()
	}
}

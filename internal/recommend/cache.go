package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/justestif/go-spotify-moodtunes/internal/db"
	"github.com/justestif/go-spotify-moodtunes/internal/lastfm"
)

// ChartCacheTTL is the duration after which a cached tag chart is considered stale.
const ChartCacheTTL = 7 * 24 * time.Hour

// ChartStore persists tag charts. *db.TagTrackRepository implements it.
type ChartStore interface {
	GetForTag(ctx context.Context, tag string) ([]db.TagTrack, error)
	ReplaceForTag(ctx context.Context, tag string, fetchLimit int, tracks []db.TagTrack, fetchedAt time.Time) error
}

// CachedCharts implements ChartFetcher with database persistence.
// It serves charts from the database while they are fresh and were fetched with
// a large enough limit, and otherwise falls back to the wrapped fetcher and
// writes the result back.
type CachedCharts struct {
	store  ChartStore
	client ChartFetcher
	logger *slog.Logger
	now    func() time.Time
}

// NewCachedCharts wraps client with the given store.
func NewCachedCharts(store ChartStore, client ChartFetcher, logger *slog.Logger) *CachedCharts {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedCharts{
		store:  store,
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// TopTracks returns up to limit tracks for tag, using the database cache when possible.
func (c *CachedCharts) TopTracks(ctx context.Context, tag string, limit int) ([]lastfm.TagTrack, error) {
	cached, err := c.store.GetForTag(ctx, tag)
	if err != nil {
		// Log error but don't fail - Last.fm can still answer
		c.logger.WarnContext(ctx, "reading cached chart failed", "tag", tag, "error", err)
	} else if c.usable(cached, limit) {
		return dbTracksToTagTracks(cached, limit), nil
	}

	tracks, err := c.client.TopTracks(ctx, tag, limit)
	if err != nil {
		return nil, err
	}

	if err := c.store.ReplaceForTag(ctx, tag, limit, tagTracksToDBTracks(tag, tracks), c.now()); err != nil {
		c.logger.WarnContext(ctx, "persisting chart failed", "tag", tag, "error", err)
	}

	return tracks, nil
}

// usable reports whether a cached chart is fresh and covers limit entries.
func (c *CachedCharts) usable(cached []db.TagTrack, limit int) bool {
	if len(cached) == 0 {
		return false
	}

	// Lazy invalidation on read
	if cached[0].FetchedAt.Before(c.now().Add(-ChartCacheTTL)) {
		return false
	}

	return cached[0].FetchLimit >= limit
}

// Prune deletes cached charts older than ChartCacheTTL.
func Prune(ctx context.Context, repo *db.TagTrackRepository) (int64, error) {
	n, err := repo.DeleteStale(ctx, time.Now().Add(-ChartCacheTTL))
	if err != nil {
		return 0, fmt.Errorf("pruning chart cache: %w", err)
	}
	return n, nil
}

// dbTracksToTagTracks converts at most limit cached rows to lastfm.TagTrack.
func dbTracksToTagTracks(rows []db.TagTrack, limit int) []lastfm.TagTrack {
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	tracks := make([]lastfm.TagTrack, len(rows))
	for i, r := range rows {
		tracks[i] = lastfm.TagTrack{
			Name:   r.Name,
			Artist: r.Artist,
			URL:    r.URL,
		}
	}
	return tracks
}

// tagTracksToDBTracks converts fetched tracks to rows for persistence.
func tagTracksToDBTracks(tag string, tracks []lastfm.TagTrack) []db.TagTrack {
	rows := make([]db.TagTrack, len(tracks))
	for i, t := range tracks {
		rows[i] = db.TagTrack{
			Tag:      tag,
			Position: i,
			Name:     t.Name,
			Artist:   t.Artist,
			URL:      t.URL,
		}
	}
	return rows
}

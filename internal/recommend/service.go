// Package recommend turns a detected emotion into a list of songs: it samples
// Last.fm tag charts for the emotion and resolves each song to a Spotify track.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/justestif/go-spotify-moodtunes/internal/lastfm"
	"github.com/justestif/go-spotify-moodtunes/internal/spotify"
)

// Defaults for a Service.
const (
	DefaultPerTag      = 3
	DefaultConcurrency = 5
)

var (
	// ErrUnknownEmotion is returned for an emotion without a tag mapping.
	ErrUnknownEmotion = errors.New("unknown emotion")

	// ErrNotFound is returned when a saved recommendation does not exist.
	ErrNotFound = errors.New("recommendation not found")

	// ErrInvalidID is returned when a recommendation ID is not a UUID.
	ErrInvalidID = errors.New("invalid recommendation id")

	// ErrNoStore is returned by Get when the service was built without a Store.
	ErrNoStore = errors.New("recommendation storage is not configured")
)

// Song is a recommended track. TrackID and SpotifyURL are empty when the song
// could not be matched on Spotify.
type Song struct {
	Name       string
	Artist     string
	TrackID    string
	SpotifyURL string
}

// Recommendation is one batch of songs for an emotion.
type Recommendation struct {
	ID        uuid.UUID
	Emotion   Emotion
	Songs     []Song
	CreatedAt time.Time
}

// ChartFetcher abstracts the Last.fm client.
type ChartFetcher interface {
	TopTracks(ctx context.Context, tag string, limit int) ([]lastfm.TagTrack, error)
}

// TrackResolver abstracts the Spotify resolver.
type TrackResolver interface {
	Resolve(ctx context.Context, title, artist string) (spotify.TrackMatch, error)
}

// Store persists recommendations.
type Store interface {
	Save(ctx context.Context, rec *Recommendation) error
	Get(ctx context.Context, id uuid.UUID) (*Recommendation, error)
}

// Service builds recommendations.
type Service struct {
	charts      ChartFetcher
	resolver    TrackResolver
	store       Store
	perTag      int
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPerTag sets how many chart entries are sampled per tag.
func WithPerTag(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.perTag = n
		}
	}
}

// WithConcurrency sets the number of concurrent Spotify resolutions.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithStore enables saving recommendations.
func WithStore(store Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithLogger sets the logger for skipped tags and unresolved songs.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a new recommendation service.
func NewService(charts ChartFetcher, resolver TrackResolver, opts ...Option) *Service {
	s := &Service{
		charts:      charts,
		resolver:    resolver,
		perTag:      DefaultPerTag,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Recommend samples the charts of every tag mapped to emotion, drops duplicate
// songs, and resolves the rest on Spotify. A tag whose chart cannot be fetched is
// skipped and a song that cannot be resolved is kept without a track ID; neither
// fails the batch. Songs keep the order in which the charts listed them.
func (s *Service) Recommend(ctx context.Context, emotion string) (*Recommendation, error) {
	e, err := ParseEmotion(emotion)
	if err != nil {
		return nil, err
	}

	songs, err := s.collect(ctx, e)
	if err != nil {
		return nil, err
	}

	s.resolveAll(ctx, songs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec := &Recommendation{
		ID:        uuid.New(),
		Emotion:   e,
		Songs:     songs,
		CreatedAt: s.now(),
	}

	if s.store != nil {
		if err := s.store.Save(ctx, rec); err != nil {
			return nil, fmt.Errorf("saving recommendation: %w", err)
		}
	}

	return rec, nil
}

// Get returns a saved recommendation.
func (s *Service) Get(ctx context.Context, id string) (*Recommendation, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidID, err)
	}

	return s.store.Get(ctx, parsed)
}

// collect gathers de-duplicated songs from each tag chart in order.
func (s *Service) collect(ctx context.Context, e Emotion) ([]Song, error) {
	songs := []Song{}
	seen := make(map[string]bool)

	for _, tag := range e.Tags() {
		tracks, err := s.charts.TopTracks(ctx, tag, s.perTag)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.logger.WarnContext(ctx, "skipping tag", "tag", tag, "error", err)
			continue
		}

		for _, t := range tracks {
			key := t.Name + "-" + t.Artist
			if seen[key] {
				continue
			}
			seen[key] = true

			songs = append(songs, Song{Name: t.Name, Artist: t.Artist})
		}
	}

	return songs, nil
}

// resolveAll fills in Spotify IDs in place, s.concurrency at a time.
func (s *Service) resolveAll(ctx context.Context, songs []Song) {
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i := range songs {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			match, err := s.resolver.Resolve(ctx, songs[i].Name, songs[i].Artist)
			if err != nil {
				s.logger.WarnContext(ctx, "spotify lookup failed",
					"track", songs[i].Name, "artist", songs[i].Artist, "error", err)
				return nil
			}

			if match.Found() {
				songs[i].TrackID = match.ID
				songs[i].SpotifyURL = match.URL
			}
			return nil
		})
	}

	// Resolution errors are logged per song, never returned.
	_ = g.Wait()
}

package recommend

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/justestif/go-spotify-moodtunes/internal/db"
)

// DBStore implements Store on top of PostgreSQL.
type DBStore struct {
	repo *db.RecommendationRepository
}

// NewDBStore creates a Store backed by database.
func NewDBStore(database *db.DB) *DBStore {
	return &DBStore{repo: database.Recommendations()}
}

// Save persists rec.
func (s *DBStore) Save(ctx context.Context, rec *Recommendation) error {
	return s.repo.Create(ctx, toDBRecommendation(rec))
}

// Get loads a recommendation, translating db.ErrNotFound to ErrNotFound.
func (s *DBStore) Get(ctx context.Context, id uuid.UUID) (*Recommendation, error) {
	row, err := s.repo.Get(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading recommendation: %w", err)
	}
	return fromDBRecommendation(row), nil
}

func toDBRecommendation(rec *Recommendation) *db.Recommendation {
	songs := make([]db.RecommendedSong, len(rec.Songs))
	for i, s := range rec.Songs {
		songs[i] = db.RecommendedSong{
			Position:   i,
			Name:       s.Name,
			Artist:     s.Artist,
			TrackID:    nullable(s.TrackID),
			SpotifyURL: nullable(s.SpotifyURL),
		}
	}

	return &db.Recommendation{
		ID:        rec.ID,
		Emotion:   string(rec.Emotion),
		CreatedAt: rec.CreatedAt,
		Songs:     songs,
	}
}

func fromDBRecommendation(row *db.Recommendation) *Recommendation {
	songs := make([]Song, len(row.Songs))
	for i, s := range row.Songs {
		songs[i] = Song{
			Name:   s.Name,
			Artist: s.Artist,
		}
		if s.TrackID != nil {
			songs[i].TrackID = *s.TrackID
		}
		if s.SpotifyURL != nil {
			songs[i].SpotifyURL = *s.SpotifyURL
		}
	}

	return &Recommendation{
		ID:        row.ID,
		Emotion:   Emotion(row.Emotion),
		Songs:     songs,
		CreatedAt: row.CreatedAt,
	}
}

// nullable maps the empty string to NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ Store = (*DBStore)(nil)

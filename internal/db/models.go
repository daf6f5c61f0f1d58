package db

import (
	"time"

	"github.com/google/uuid"
)

// TagTrack is a cached entry of a Last.fm tag chart.
type TagTrack struct {
	Tag        string
	Position   int
	Name       string
	Artist     string
	URL        string
	FetchLimit int // The limit the chart was fetched with
	FetchedAt  time.Time
}

// Recommendation is a saved batch of songs recommended for an emotion.
type Recommendation struct {
	ID        uuid.UUID
	Emotion   string
	CreatedAt time.Time
	Songs     []RecommendedSong
}

// RecommendedSong is one song of a saved recommendation.
type RecommendedSong struct {
	Position   int
	Name       string
	Artist     string
	TrackID    *string // nullable
	SpotifyURL *string // nullable
}

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RecommendationRepository handles saved recommendation batches.
type RecommendationRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a recommendation with its songs. A nil ID is replaced with a new one
// and a zero CreatedAt with the current time.
func (r *RecommendationRepository) Create(ctx context.Context, rec *Recommendation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO recommendations (id, emotion, created_at)
		VALUES ($1, $2, $3)
	`
	if _, err := tx.Exec(ctx, query, rec.ID, rec.Emotion, rec.CreatedAt); err != nil {
		return fmt.Errorf("inserting recommendation: %w", err)
	}

	if len(rec.Songs) > 0 {
		songsQuery := `
			INSERT INTO recommendation_songs (recommendation_id, position, name, artist, track_id, spotify_url)
			SELECT $1, p, n, a, t, u
			FROM unnest($2::int[], $3::text[], $4::text[], $5::text[], $6::text[]) AS s(p, n, a, t, u)
		`

		positions := make([]int, len(rec.Songs))
		names := make([]string, len(rec.Songs))
		artists := make([]string, len(rec.Songs))
		trackIDs := make([]*string, len(rec.Songs))
		urls := make([]*string, len(rec.Songs))

		for i, s := range rec.Songs {
			positions[i] = i
			names[i] = s.Name
			artists[i] = s.Artist
			trackIDs[i] = s.TrackID
			urls[i] = s.SpotifyURL
		}

		if _, err := tx.Exec(ctx, songsQuery, rec.ID, positions, names, artists, trackIDs, urls); err != nil {
			return fmt.Errorf("inserting recommendation songs: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Get retrieves a recommendation and its songs by ID.
func (r *RecommendationRepository) Get(ctx context.Context, id uuid.UUID) (*Recommendation, error) {
	query := `
		SELECT id, emotion, created_at
		FROM recommendations
		WHERE id = $1
	`
	var rec Recommendation
	err := r.pool.QueryRow(ctx, query, id).Scan(&rec.ID, &rec.Emotion, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying recommendation: %w", err)
	}

	songsQuery := `
		SELECT position, name, artist, track_id, spotify_url
		FROM recommendation_songs
		WHERE recommendation_id = $1
		ORDER BY position
	`
	rows, err := r.pool.Query(ctx, songsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("querying recommendation songs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s RecommendedSong
		if err := rows.Scan(&s.Position, &s.Name, &s.Artist, &s.TrackID, &s.SpotifyURL); err != nil {
			return nil, fmt.Errorf("scanning recommendation song: %w", err)
		}
		rec.Songs = append(rec.Songs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating recommendation songs: %w", err)
	}

	return &rec, nil
}

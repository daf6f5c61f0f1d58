package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TagTrackRepository handles cached Last.fm tag charts.
type TagTrackRepository struct {
	pool *pgxpool.Pool
}

// GetForTag retrieves the cached chart for a tag, ordered by chart position.
// Returns no rows if the tag has never been cached.
func (r *TagTrackRepository) GetForTag(ctx context.Context, tag string) ([]TagTrack, error) {
	query := `
		SELECT tag, position, name, artist, url, fetch_limit, fetched_at
		FROM tag_tracks
		WHERE tag = $1
		ORDER BY position
	`
	rows, err := r.pool.Query(ctx, query, tag)
	if err != nil {
		return nil, fmt.Errorf("querying tag tracks: %w", err)
	}
	defer rows.Close()

	var tracks []TagTrack
	for rows.Next() {
		var t TagTrack
		if err := rows.Scan(
			&t.Tag,
			&t.Position,
			&t.Name,
			&t.Artist,
			&t.URL,
			&t.FetchLimit,
			&t.FetchedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning tag track: %w", err)
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// ReplaceForTag swaps the cached chart for a tag with tracks in one transaction.
// Positions are assigned from the slice order.
func (r *TagTrackRepository) ReplaceForTag(ctx context.Context, tag string, fetchLimit int, tracks []TagTrack, fetchedAt time.Time) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM tag_tracks WHERE tag = $1`, tag); err != nil {
			return fmt.Errorf("deleting tag tracks: %w", err)
		}

		if len(tracks) == 0 {
			return nil
		}

		query := `
			INSERT INTO tag_tracks (tag, position, name, artist, url, fetch_limit, fetched_at)
			SELECT $1, p, n, a, u, $6, $7
			FROM unnest($2::int[], $3::text[], $4::text[], $5::text[]) AS t(p, n, a, u)
		`

		positions := make([]int, len(tracks))
		names := make([]string, len(tracks))
		artists := make([]string, len(tracks))
		urls := make([]string, len(tracks))

		for i, t := range tracks {
			positions[i] = i
			names[i] = t.Name
			artists[i] = t.Artist
			urls[i] = t.URL
		}

		if _, err := tx.Exec(ctx, query, tag, positions, names, artists, urls, fetchLimit, fetchedAt); err != nil {
			return fmt.Errorf("inserting tag tracks: %w", err)
		}
		return nil
	})
}

// DeleteStale removes cached charts fetched before olderThan.
func (r *TagTrackRepository) DeleteStale(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM tag_tracks WHERE fetched_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("deleting stale tag tracks: %w", err)
	}
	return result.RowsAffected(), nil
}

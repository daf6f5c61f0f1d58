package spotify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

// Resolve searches for the best match for title by artist.
// Returns ErrInvalidQuery before any network call if either is blank. Token errors
// are returned unchanged; search failures wrap ErrSearch. No match yields a
// TrackMatch without an ID and a nil error.
func (r *Resolver) Resolve(ctx context.Context, title, artist string) (TrackMatch, error) {
	query := TrackQuery{Title: title, Artist: artist}
	if err := query.Validate(); err != nil {
		return TrackMatch{}, err
	}

	token, err := r.tokens.Token(ctx)
	if err != nil {
		return TrackMatch{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.client(token).Search(ctx, query.SearchString(), spotify.SearchTypeTrack, spotify.Limit(1))
	if err != nil {
		return TrackMatch{}, fmt.Errorf("%w: %w", ErrSearch, err)
	}

	if result == nil || result.Tracks == nil || len(result.Tracks.Tracks) == 0 {
		return TrackMatch{}, nil
	}

	return convertTrack(result.Tracks.Tracks[0]), nil
}

// client builds an API client that sends token as a bearer credential.
func (r *Resolver) client(token string) *spotify.Client {
	httpClient := &http.Client{
		Timeout: r.timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   r.transport,
		},
	}

	return spotify.New(httpClient, spotify.WithBaseURL(r.baseURL), spotify.WithRetry(r.retry))
}

// convertTrack converts a Spotify FullTrack to a TrackMatch.
func convertTrack(track spotify.FullTrack) TrackMatch {
	artists := make([]string, len(track.Artists))
	for i, a := range track.Artists {
		artists[i] = a.Name
	}

	return TrackMatch{
		ID:     track.ID.String(),
		Name:   track.Name,
		Artist: strings.Join(artists, ", "),
		URL:    track.ExternalURLs["spotify"],
	}
}

package spotify

import (
	"fmt"
	"strings"
)

// TrackQuery identifies a track by title and artist.
type TrackQuery struct {
	Title  string
	Artist string
}

// Validate returns ErrInvalidQuery if either field is blank.
func (q TrackQuery) Validate() error {
	if strings.TrimSpace(q.Title) == "" || strings.TrimSpace(q.Artist) == "" {
		return fmt.Errorf("%w: title and artist are required", ErrInvalidQuery)
	}
	return nil
}

// SearchString returns the field-filtered search expression, e.g.
// "track:Shape of You artist:Ed Sheeran". Percent-encoding happens when the
// expression is placed in the request URL.
func (q TrackQuery) SearchString() string {
	return "track:" + q.Title + " artist:" + q.Artist
}

// TrackMatch is the outcome of a resolution. An empty ID means no track matched,
// which is a successful result rather than an error.
type TrackMatch struct {
	ID     string
	Name   string
	Artist string // Comma-separated artist names
	URL    string // open.spotify.com link, if the API returned one
}

// Found reports whether the search produced a track.
func (m TrackMatch) Found() bool {
	return m.ID != ""
}

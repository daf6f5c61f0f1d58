// Package web exposes track lookup and mood recommendations over HTTP.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/justestif/go-spotify-moodtunes/internal/recommend"
	"github.com/justestif/go-spotify-moodtunes/internal/spotify"
)

// Client-facing error messages. Causes are logged, never returned.
const (
	msgMissingTrack      = "Missing track or artist"
	msgSearchFailed      = "Spotify search failed"
	msgMissingEmotion    = "Missing emotion"
	msgUnknownEmotion    = "Unknown emotion"
	msgRecommendFailed   = "Recommendation failed"
	msgInvalidID         = "Invalid recommendation id"
	msgRecommendNotFound = "Recommendation not found"
)

// TrackResolver resolves a title and artist to a Spotify track.
type TrackResolver interface {
	Resolve(ctx context.Context, title, artist string) (spotify.TrackMatch, error)
}

// Recommender builds a recommendation for an emotion.
type Recommender interface {
	Recommend(ctx context.Context, emotion string) (*recommend.Recommendation, error)
}

// RecommendationReader loads a saved recommendation.
type RecommendationReader interface {
	Get(ctx context.Context, id string) (*recommend.Recommendation, error)
}

// Handlers contains HTTP handlers for the web application.
type Handlers struct {
	tracks      TrackResolver
	recommender Recommender
	saved       RecommendationReader
	logger      *slog.Logger
}

// NewHandlers creates a new Handlers instance. recommender and saved may be nil.
func NewHandlers(tracks TrackResolver, recommender Recommender, saved RecommendationReader, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		tracks:      tracks,
		recommender: recommender,
		saved:       saved,
		logger:      logger,
	}
}

type trackIDResponse struct {
	TrackID *string `json:"trackId"`
}

type songResponse struct {
	Name       string  `json:"name"`
	Artist     string  `json:"artist"`
	TrackID    *string `json:"trackId"`
	SpotifyURL *string `json:"spotifyUrl"`
}

type recommendationResponse struct {
	ID        string         `json:"id"`
	Emotion   string         `json:"emotion"`
	CreatedAt time.Time      `json:"createdAt"`
	Songs     []songResponse `json:"songs"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// Healthz reports liveness (GET /healthz).
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, healthResponse{Status: "ok"}, http.StatusOK)
}

// TrackID looks up the Spotify ID of a song (GET /spotify/track-id?track=&artist=).
func (h *Handlers) TrackID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	title := r.URL.Query().Get("track")
	artist := r.URL.Query().Get("artist")

	if strings.TrimSpace(title) == "" || strings.TrimSpace(artist) == "" {
		writeJSONError(ctx, w, msgMissingTrack, http.StatusBadRequest)
		return
	}

	match, err := h.tracks.Resolve(ctx, title, artist)
	switch {
	case errors.Is(err, spotify.ErrInvalidQuery):
		writeJSONError(ctx, w, msgMissingTrack, http.StatusBadRequest)
		return
	case err != nil:
		h.logger.ErrorContext(ctx, "track lookup failed", "track", title, "artist", artist, "error", err)
		writeJSONError(ctx, w, msgSearchFailed, http.StatusInternalServerError)
		return
	}

	writeJSON(ctx, w, trackIDResponse{TrackID: optional(match.ID)}, http.StatusOK)
}

// Recommend builds a recommendation for an emotion (GET /recommendations?emotion=).
func (h *Handlers) Recommend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	emotion := r.URL.Query().Get("emotion")

	if strings.TrimSpace(emotion) == "" {
		writeJSONError(ctx, w, msgMissingEmotion, http.StatusBadRequest)
		return
	}

	rec, err := h.recommender.Recommend(ctx, emotion)
	switch {
	case errors.Is(err, recommend.ErrUnknownEmotion):
		writeJSONError(ctx, w, msgUnknownEmotion, http.StatusBadRequest)
		return
	case err != nil:
		h.logger.ErrorContext(ctx, "recommendation failed", "emotion", emotion, "error", err)
		writeJSONError(ctx, w, msgRecommendFailed, http.StatusInternalServerError)
		return
	}

	writeJSON(ctx, w, toRecommendationResponse(rec), http.StatusOK)
}

// GetRecommendation returns a saved recommendation (GET /recommendations/{id}).
func (h *Handlers) GetRecommendation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	rec, err := h.saved.Get(ctx, id)
	switch {
	case errors.Is(err, recommend.ErrInvalidID):
		writeJSONError(ctx, w, msgInvalidID, http.StatusBadRequest)
		return
	case errors.Is(err, recommend.ErrNotFound):
		writeJSONError(ctx, w, msgRecommendNotFound, http.StatusNotFound)
		return
	case err != nil:
		h.logger.ErrorContext(ctx, "loading recommendation failed", "id", id, "error", err)
		writeJSONError(ctx, w, msgRecommendFailed, http.StatusInternalServerError)
		return
	}

	writeJSON(ctx, w, toRecommendationResponse(rec), http.StatusOK)
}

func toRecommendationResponse(rec *recommend.Recommendation) recommendationResponse {
	songs := make([]songResponse, len(rec.Songs))
	for i, s := range rec.Songs {
		songs[i] = songResponse{
			Name:       s.Name,
			Artist:     s.Artist,
			TrackID:    optional(s.TrackID),
			SpotifyURL: optional(s.SpotifyURL),
		}
	}

	return recommendationResponse{
		ID:        rec.ID.String(),
		Emotion:   string(rec.Emotion),
		CreatedAt: rec.CreatedAt,
		Songs:     songs,
	}
}

// optional maps the empty string to a JSON null.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

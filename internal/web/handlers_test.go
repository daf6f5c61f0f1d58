package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/go-spotify-moodtunes/internal/auth"
	"github.com/justestif/go-spotify-moodtunes/internal/recommend"
	"github.com/justestif/go-spotify-moodtunes/internal/spotify"
)

// upstream fakes both the Spotify accounts service and the Web API.
type upstream struct {
	server *httptest.Server

	tokenStatus int
	searchBody  string

	tokenRequests  atomic.Int32
	searchRequests atomic.Int32
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()

	u := &upstream{
		tokenStatus: http.StatusOK,
		searchBody:  `{"tracks":{"items":[]}}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", func(w http.ResponseWriter, r *http.Request) {
		u.tokenRequests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if u.tokenStatus != http.StatusOK {
			w.WriteHeader(u.tokenStatus)
			fmt.Fprint(w, `{"error":"invalid_client"}`)
			return
		}
		fmt.Fprint(w, `{"access_token":"test-token","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("GET /v1/search", func(w http.ResponseWriter, r *http.Request) {
		u.searchRequests.Add(1)
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, u.searchBody)
	})

	u.server = httptest.NewServer(mux)
	t.Cleanup(u.server.Close)

	return u
}

// resolver wires a real TokenCache and Resolver against the fake upstream.
func (u *upstream) resolver(t *testing.T) *spotify.Resolver {
	t.Helper()

	tokens, err := auth.NewTokenCache(
		auth.Credentials{ClientID: "client-id", ClientSecret: "client-secret"},
		auth.WithTokenURL(u.server.URL+"/api/token"),
		auth.WithHTTPClient(u.server.Client()),
	)
	if err != nil {
		t.Fatalf("NewTokenCache() error = %v", err)
	}

	return spotify.NewResolver(tokens,
		spotify.WithBaseURL(u.server.URL+"/v1/"),
		spotify.WithTransport(u.server.Client().Transport),
	)
}

// mockRecommender implements Recommender and RecommendationReader for testing.
type mockRecommender struct {
	rec *recommend.Recommendation
	err error
}

func (m *mockRecommender) Recommend(_ context.Context, emotion string) (*recommend.Recommendation, error) {
	if m.err != nil {
		return nil, m.err
	}
	if _, err := recommend.ParseEmotion(emotion); err != nil {
		return nil, err
	}
	return m.rec, nil
}

func (m *mockRecommender) Get(_ context.Context, id string) (*recommend.Recommendation, error) {
	if m.err != nil {
		return nil, m.err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", recommend.ErrInvalidID, err)
	}
	if m.rec == nil || parsed != m.rec.ID {
		return nil, recommend.ErrNotFound
	}
	return m.rec, nil
}

func newTestServer(t *testing.T, cfg ServerConfig) *httptest.Server {
	t.Helper()

	s, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	server := httptest.NewServer(s)
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, server *httptest.Server, path string) (int, map[string]any) {
	t.Helper()

	resp, err := server.Client().Get(server.URL + path)
	if err != nil {
		t.Fatalf("GET %s error = %v", path, err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("body %q is not a JSON object: %v", raw, err)
	}
	return resp.StatusCode, body
}

func trackIDPath(title, artist string) string {
	q := url.Values{}
	if title != "" {
		q.Set("track", title)
	}
	if artist != "" {
		q.Set("artist", artist)
	}
	return "/spotify/track-id?" + q.Encode()
}

func TestTrackID_Found(t *testing.T) {
	up := newUpstream(t)
	up.searchBody = `{"tracks":{"items":[{"id":"0VjIjW4GlUZAMYd2vXMi3b","name":"Blinding Lights","artists":[{"name":"The Weeknd"}]}]}}`

	server := newTestServer(t, ServerConfig{Tracks: up.resolver(t)})

	status, body := get(t, server, trackIDPath("Blinding Lights", "The Weeknd"))

	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["trackId"] != "0VjIjW4GlUZAMYd2vXMi3b" {
		t.Errorf("trackId = %v, want 0VjIjW4GlUZAMYd2vXMi3b", body["trackId"])
	}
	if len(body) != 1 {
		t.Errorf("body = %v, want only trackId", body)
	}
}

func TestTrackID_NoMatch(t *testing.T) {
	up := newUpstream(t)
	server := newTestServer(t, ServerConfig{Tracks: up.resolver(t)})

	status, body := get(t, server, trackIDPath("Nonexistent Song", "Nobody"))

	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	value, ok := body["trackId"]
	if !ok || value != nil {
		t.Errorf("trackId = %v (present %v), want null", value, ok)
	}
}

func TestTrackID_MissingParameters(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		artist string
	}{
		{"missing artist", "Blinding Lights", ""},
		{"missing track", "", "The Weeknd"},
		{"blank artist", "Blinding Lights", "   "},
		{"both missing", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := newUpstream(t)
			server := newTestServer(t, ServerConfig{Tracks: up.resolver(t)})

			status, body := get(t, server, trackIDPath(tt.title, tt.artist))

			if status != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", status)
			}
			if body["error"] != "Missing track or artist" {
				t.Errorf("error = %v, want Missing track or artist", body["error"])
			}
			if n := up.tokenRequests.Load(); n != 0 {
				t.Errorf("token requests = %d, want 0", n)
			}
			if n := up.searchRequests.Load(); n != 0 {
				t.Errorf("search requests = %d, want 0", n)
			}
		})
	}
}

func TestTrackID_TokenFailure(t *testing.T) {
	up := newUpstream(t)
	up.tokenStatus = http.StatusUnauthorized

	server := newTestServer(t, ServerConfig{Tracks: up.resolver(t)})

	status, body := get(t, server, trackIDPath("Blinding Lights", "The Weeknd"))

	if status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", status)
	}
	if body["error"] != "Spotify search failed" {
		t.Errorf("error = %v, want Spotify search failed", body["error"])
	}
	if n := up.searchRequests.Load(); n != 0 {
		t.Errorf("search requests = %d, want 0 after token failure", n)
	}
}

func TestTrackID_TokenReused(t *testing.T) {
	up := newUpstream(t)
	server := newTestServer(t, ServerConfig{Tracks: up.resolver(t)})

	for range 3 {
		if status, _ := get(t, server, trackIDPath("Blinding Lights", "The Weeknd")); status != http.StatusOK {
			t.Fatalf("status = %d, want 200", status)
		}
	}

	if n := up.tokenRequests.Load(); n != 1 {
		t.Errorf("token requests = %d, want 1", n)
	}
	if n := up.searchRequests.Load(); n != 3 {
		t.Errorf("search requests = %d, want 3", n)
	}
}

func testRecommendation() *recommend.Recommendation {
	return &recommend.Recommendation{
		ID:      uuid.MustParse("7b6f2a4e-3c1d-4e8f-9a0b-1c2d3e4f5a6b"),
		Emotion: recommend.EmotionHappy,
		Songs: []recommend.Song{
			{Name: "Happy", Artist: "Pharrell Williams", TrackID: "60nZcImufyMA1MKQY3dcCH", SpotifyURL: "https://open.spotify.com/track/60nZcImufyMA1MKQY3dcCH"},
			{Name: "Walking on Sunshine", Artist: "Katrina and the Waves"},
		},
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		err        error
		wantStatus int
		wantError  string
	}{
		{name: "success", query: "?emotion=happy", wantStatus: http.StatusOK},
		{name: "missing emotion", query: "", wantStatus: http.StatusBadRequest, wantError: "Missing emotion"},
		{name: "unknown emotion", query: "?emotion=bored", wantStatus: http.StatusBadRequest, wantError: "Unknown emotion"},
		{name: "failure", query: "?emotion=happy", err: errors.New("database down"), wantStatus: http.StatusInternalServerError, wantError: "Recommendation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := newUpstream(t)
			rec := &mockRecommender{rec: testRecommendation(), err: tt.err}
			server := newTestServer(t, ServerConfig{Tracks: up.resolver(t), Recommender: rec})

			status, body := get(t, server, "/recommendations"+tt.query)

			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d", status, tt.wantStatus)
			}
			if tt.wantError != "" {
				if body["error"] != tt.wantError {
					t.Errorf("error = %v, want %q", body["error"], tt.wantError)
				}
				return
			}

			if body["id"] != "7b6f2a4e-3c1d-4e8f-9a0b-1c2d3e4f5a6b" || body["emotion"] != "happy" {
				t.Errorf("body = %v", body)
			}
			songs, ok := body["songs"].([]any)
			if !ok || len(songs) != 2 {
				t.Fatalf("songs = %v, want 2 entries", body["songs"])
			}
			first := songs[0].(map[string]any)
			if first["trackId"] != "60nZcImufyMA1MKQY3dcCH" {
				t.Errorf("songs[0].trackId = %v", first["trackId"])
			}
			second := songs[1].(map[string]any)
			if v, ok := second["trackId"]; !ok || v != nil {
				t.Errorf("songs[1].trackId = %v, want null", v)
			}
			if v, ok := second["spotifyUrl"]; !ok || v != nil {
				t.Errorf("songs[1].spotifyUrl = %v, want null", v)
			}
		})
	}
}

func TestGetRecommendation(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		err        error
		wantStatus int
		wantError  string
	}{
		{name: "found", id: "7b6f2a4e-3c1d-4e8f-9a0b-1c2d3e4f5a6b", wantStatus: http.StatusOK},
		{name: "not found", id: "00000000-0000-0000-0000-000000000001", wantStatus: http.StatusNotFound, wantError: "Recommendation not found"},
		{name: "malformed id", id: "not-a-uuid", wantStatus: http.StatusBadRequest, wantError: "Invalid recommendation id"},
		{name: "store failure", id: "7b6f2a4e-3c1d-4e8f-9a0b-1c2d3e4f5a6b", err: errors.New("connection reset"), wantStatus: http.StatusInternalServerError, wantError: "Recommendation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := newUpstream(t)
			rec := &mockRecommender{rec: testRecommendation(), err: tt.err}
			server := newTestServer(t, ServerConfig{Tracks: up.resolver(t), Recommender: rec, Saved: rec})

			status, body := get(t, server, "/recommendations/"+tt.id)

			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d", status, tt.wantStatus)
			}
			if tt.wantError != "" && body["error"] != tt.wantError {
				t.Errorf("error = %v, want %q", body["error"], tt.wantError)
			}
			if tt.wantError == "" && body["createdAt"] != "2026-03-01T12:00:00Z" {
				t.Errorf("createdAt = %v", body["createdAt"])
			}
		})
	}
}

func TestOptionalRoutesNotMounted(t *testing.T) {
	up := newUpstream(t)
	server := newTestServer(t, ServerConfig{Tracks: up.resolver(t)})

	for _, path := range []string{"/recommendations?emotion=happy", "/recommendations/7b6f2a4e-3c1d-4e8f-9a0b-1c2d3e4f5a6b"} {
		status, body := get(t, server, path)
		if status != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, status)
		}
		if body["error"] != "Not found" {
			t.Errorf("GET %s error = %v, want Not found", path, body["error"])
		}
	}
}

func TestHealthz(t *testing.T) {
	up := newUpstream(t)
	server := newTestServer(t, ServerConfig{Tracks: up.resolver(t)})

	status, body := get(t, server, "/healthz")
	if status != http.StatusOK || body["status"] != "ok" {
		t.Errorf("GET /healthz = %d %v, want 200 ok", status, body)
	}
}

func TestCORS(t *testing.T) {
	up := newUpstream(t)
	server := newTestServer(t, ServerConfig{Tracks: up.resolver(t)})

	req, err := http.NewRequest(http.MethodGet, server.URL+"/healthz", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "http://localhost:3000")

	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestNewServer_RequiresResolver(t *testing.T) {
	if _, err := NewServer(ServerConfig{}); err == nil {
		t.Error("NewServer() error = nil, want error without a resolver")
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	up := newUpstream(t)
	s, err := NewServer(ServerConfig{
		Addr:            "127.0.0.1:0",
		Tracks:          up.resolver(t),
		ShutdownTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
}

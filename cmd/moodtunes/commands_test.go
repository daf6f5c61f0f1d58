package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v3"
)

func TestFlagKey(t *testing.T) {
	tests := []struct {
		flag string
		want string
	}{
		{"log-level", "log_level"},
		{"server--host", "server.host"},
		{"spotify--refresh-margin", "spotify.refresh_margin"},
		{"lastfm--per-tag", "lastfm.per_tag"},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			if got := flagKey(tt.flag); got != tt.want {
				t.Errorf("flagKey(%q) = %q, want %q", tt.flag, got, tt.want)
			}
		})
	}
}

func TestExtractAndTransformFlags(t *testing.T) {
	var got map[string]any

	root := rootCommand()
	for _, sub := range root.Commands {
		if sub.Name == "serve" {
			sub.Action = func(_ context.Context, cmd *cli.Command) error {
				got = extractAndTransformFlags(cmd)
				return nil
			}
		}
	}

	err := root.Run(context.Background(), []string{
		"moodtunes", "--config", "moodtunes.toml", "--log-level", "debug", "--spotify--refresh-margin", "30s",
		"serve", "--server--port", "9000",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := map[string]any{
		"log_level":              "debug",
		"spotify.refresh_margin": 30 * time.Second,
		"server.port":            9000,
	}
	if len(got) != len(want) {
		t.Fatalf("flags = %v, want %v", got, want)
	}
	for key, value := range want {
		if fmt.Sprint(got[key]) != fmt.Sprint(value) {
			t.Errorf("flags[%q] = %v, want %v", key, got[key], value)
		}
	}
}

func TestLookupCommand(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"test-token","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("GET /v1/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"tracks":{"items":[{"id":"0VjIjW4GlUZAMYd2vXMi3b","name":"Blinding Lights",
			"artists":[{"name":"The Weeknd"}],
			"external_urls":{"spotify":"https://open.spotify.com/track/0VjIjW4GlUZAMYd2vXMi3b"}}]}}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	t.Setenv("SPOTIFY_CLIENT_ID", "client-id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "client-secret")
	t.Setenv("MOODTUNES_SPOTIFY__TOKEN_URL", server.URL+"/api/token")
	t.Setenv("MOODTUNES_SPOTIFY__API_BASE_URL", server.URL+"/v1")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("MOODTUNES_LOG_LEVEL", "error")

	var out bytes.Buffer
	root := rootCommand()
	root.Writer = &out

	err := root.Run(context.Background(), []string{"moodtunes", "lookup", "Blinding Lights", "The Weeknd"})
	if err != nil {
		t.Fatalf("lookup error = %v", err)
	}

	if !strings.HasPrefix(out.String(), "0VjIjW4GlUZAMYd2vXMi3b\t") {
		t.Errorf("output = %q, want track id first", out.String())
	}
}

func TestLookupCommand_Usage(t *testing.T) {
	root := rootCommand()
	root.Writer = &bytes.Buffer{}

	if err := root.Run(context.Background(), []string{"moodtunes", "lookup", "Blinding Lights"}); err == nil {
		t.Error("lookup with one argument error = nil, want usage error")
	}
}

func TestRecommendCommand_RequiresLastFM(t *testing.T) {
	t.Setenv("SPOTIFY_CLIENT_ID", "client-id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "client-secret")
	t.Setenv("LASTFM_API_KEY", "")
	t.Setenv("MOODTUNES_LASTFM__API_KEY", "")
	t.Setenv("MOODTUNES_LOG_LEVEL", "error")

	root := rootCommand()
	root.Writer = &bytes.Buffer{}

	err := root.Run(context.Background(), []string{"moodtunes", "recommend", "happy"})
	if err == nil || !strings.Contains(err.Error(), "Last.fm API key") {
		t.Errorf("recommend error = %v, want missing Last.fm key", err)
	}
}

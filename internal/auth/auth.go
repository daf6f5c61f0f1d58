package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// DefaultTokenURL is Spotify's credential-exchange endpoint.
	DefaultTokenURL = "https://accounts.spotify.com/api/token"

	// DefaultTimeout bounds a single credential exchange.
	DefaultTimeout = 10 * time.Second
)

var (
	// ErrMissingCredentials is returned when the client id or secret is not configured.
	ErrMissingCredentials = errors.New("missing SPOTIFY_CLIENT_ID or SPOTIFY_CLIENT_SECRET")

	// ErrUpstreamAuth is returned when the credential exchange fails for any reason:
	// non-2xx status, network error, timeout or a malformed response body.
	ErrUpstreamAuth = errors.New("spotify credential exchange failed")
)

// Credentials identifies the application to the credential-exchange endpoint.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

func (c Credentials) validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return ErrMissingCredentials
	}
	return nil
}

// exchanger performs the client_credentials grant against the token endpoint.
type exchanger struct {
	config     clientcredentials.Config
	httpClient *http.Client
	timeout    time.Duration
}

func newExchanger(creds Credentials, tokenURL string, httpClient *http.Client, timeout time.Duration) *exchanger {
	return &exchanger{
		config: clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     tokenURL,
			// Spotify expects the credentials in a Basic auth header.
			AuthStyle: oauth2.AuthStyleInHeader,
		},
		httpClient: httpClient,
		timeout:    timeout,
	}
}

// exchange requests a fresh token. The returned lifetime is the provider-declared
// expires_in; a zero lifetime means the response carried none.
func (e *exchanger) exchange(ctx context.Context) (string, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// oauth2 picks up a custom HTTP client from the context.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)

	token, err := e.config.Token(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrUpstreamAuth, err)
	}
	if token.AccessToken == "" {
		return "", 0, fmt.Errorf("%w: response missing access_token", ErrUpstreamAuth)
	}

	lifetime := time.Duration(token.ExpiresIn) * time.Second
	if lifetime <= 0 && !token.Expiry.IsZero() {
		lifetime = time.Until(token.Expiry)
	}

	return token.AccessToken, lifetime, nil
}

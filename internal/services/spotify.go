// Spotify OAuth2 flow and client construction
package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/desertthunder/statify/internal/shared"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// Scopes requested during authorization.
var Scopes = []string{
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserTopRead,
	spotifyauth.ScopeUserReadRecentlyPlayed,
}

// SpotifyAuth performs the authorization code flow against Spotify's accounts service.
type SpotifyAuth struct {
	config     *oauth2.Config
	apiURL     string
	httpClient *http.Client
}

// AuthOption configures a [SpotifyAuth].
type AuthOption func(*SpotifyAuth)

// WithEndpoint overrides the accounts service endpoint.
func WithEndpoint(endpoint oauth2.Endpoint) AuthOption {
	return func(s *SpotifyAuth) { s.config.Endpoint = endpoint }
}

// WithAPIURL overrides the Web API base URL. It must end with a slash.
func WithAPIURL(url string) AuthOption {
	return func(s *SpotifyAuth) { s.apiURL = url }
}

// WithHTTPClient sets the client used for token requests and as the transport under API calls.
func WithHTTPClient(client *http.Client) AuthOption {
	return func(s *SpotifyAuth) { s.httpClient = client }
}

// NewSpotifyAuth creates a [SpotifyAuth] from credentials with keys client_id, client_secret and redirect_uri.
func NewSpotifyAuth(credentials map[string]string, opts ...AuthOption) (*SpotifyAuth, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret := credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := credentials["redirect_uri"]
	if redirectURI == "" {
		return nil, fmt.Errorf("%w: missing redirect_uri", shared.ErrMissingCredentials)
	}

	s := &SpotifyAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   spotifyauth.AuthURL,
				TokenURL:  spotifyauth.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Config exposes the underlying OAuth2 configuration.
func (s *SpotifyAuth) Config() *oauth2.Config {
	return s.config
}

func (s *SpotifyAuth) context(ctx context.Context) context.Context {
	if s.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// AuthURL returns the Spotify authorize URL carrying state.
func (s *SpotifyAuth) AuthURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for tokens.
func (s *SpotifyAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := s.config.Exchange(s.context(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %w", shared.ErrAuthFailed, err)
	}
	return tok, nil
}

// Refresh obtains a new access token using tok's refresh token.
//
// The returned token may carry an empty refresh token; callers keep the old one in that case.
func (s *SpotifyAuth) Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	if tok == nil || tok.RefreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	src := s.config.TokenSource(s.context(ctx), &oauth2.Token{RefreshToken: tok.RefreshToken})
	fresh, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}
	return fresh, nil
}

// Client returns a [StatsAPI] authorized with tok.
//
// The token is used as is. Refreshing is the [TokenManager]'s job so new tokens get persisted.
func (s *SpotifyAuth) Client(ctx context.Context, tok *oauth2.Token) StatsAPI {
	httpClient := oauth2.NewClient(s.context(ctx), oauth2.StaticTokenSource(tok))

	var opts []spotify.ClientOption
	if s.apiURL != "" {
		opts = append(opts, spotify.WithBaseURL(s.apiURL))
	}
	return NewSpotifyAPI(spotify.New(httpClient, opts...))
}

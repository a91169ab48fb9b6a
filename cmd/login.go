package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/statify/internal/models"
	"github.com/desertthunder/statify/internal/server"
	"github.com/desertthunder/statify/internal/services"
	"github.com/desertthunder/statify/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Login signs a Spotify account in through a callback server on the configured redirect URI
// and stores the user with its tokens.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}

	a, err := r.openApp(config)
	if err != nil {
		return err
	}
	defer a.Close()

	progress := r.output
	if cmd.Bool("json") {
		progress = r.errOutput
	}

	token, err := r.doOAuth(ctx, config.Credentials.Spotify.RedirectURI, a.auth, progress)
	if err != nil {
		return err
	}

	profile, err := a.auth.Client(ctx, token).Profile(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch profile: %w", err)
	}

	user := models.NewUser(profile.ID, profile.DisplayName, profile.Email)
	user.SetProfileImage(profile.ImageURL())
	user.SetToken(token)
	if err := a.users.Upsert(ctx, user); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	r.logger.Info("user signed in", "spotify_id", user.SpotifyID(), "user_id", user.ID())

	if cmd.Bool("json") {
		return r.writeJSON(user.Public(), true)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("  Signed in as: %s\n", user.DisplayName())
	r.writePlain("  Spotify ID:   %s\n", user.SpotifyID())
	if user.Email() != "" {
		r.writePlain("  Email:        %s\n", user.Email())
	}
	r.writePlain("\nYou can now use: statify stats top --spotify-id %s\n", user.SpotifyID())
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server listening on the
// host and path of redirectURI. Progress messages go to progress.
func (r *Runner) doOAuth(ctx context.Context, redirectURI string, auth *services.SpotifyAuth, progress io.Writer) (*oauth2.Token, error) {
	callback, err := url.Parse(redirectURI)
	if err != nil || callback.Host == "" {
		return nil, fmt.Errorf("%w: redirect_uri %q", shared.ErrInvalidConfig, redirectURI)
	}

	state, err := shared.GenerateToken(16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	oauthHandler := server.NewOAuthHandler(auth, state, callback.Path)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	listener, err := net.Listen("tcp", callback.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", callback.Host, err)
	}

	httpServer := server.NewHTTPServer(listener.Addr().String(), router)

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server at %v", listener.Addr())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	authURL := auth.AuthURL(state)

	fmt.Fprintln(progress, "→ Opening browser for Spotify authorization...")
	if err := r.openBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		fmt.Fprintln(progress, "⚠ Could not open browser automatically.")
		fmt.Fprintf(progress, "Please open this URL in your browser:\n%s\n\n", authURL)
	}

	fmt.Fprintf(progress, "→ Waiting for authorization (%v timeout)...\n", r.loginTimeout)

	timeout := time.NewTimer(r.loginTimeout)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after %v", shared.ErrTimeout, r.loginTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("no token received")
	}

	return result.Token, nil
}

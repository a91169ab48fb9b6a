package web

import (
	"errors"
	"net/http"

	"github.com/desertthunder/statify/internal/models"
	"github.com/desertthunder/statify/internal/server"
	"github.com/desertthunder/statify/internal/shared"
)

func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := server.IssueState(w, a.cookieSecure)
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, a.auth.AuthURL(state), http.StatusFound)
}

func (a *App) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := a.logger.With("request_id", server.RequestID(ctx))

	if err := server.VerifyState(w, r, a.cookieSecure); err != nil {
		logger.Warn("oauth callback rejected", "error", err)
		a.frontendError(w, r, "Invalid state")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		logger.Warn("oauth callback without code", "error", r.URL.Query().Get("error"))
		a.frontendError(w, r, "Authorization failed")
		return
	}

	tok, err := a.auth.Exchange(ctx, code)
	if err != nil {
		logger.Warn("code exchange failed", "error", err)
		a.frontendError(w, r, "Failed to get access token")
		return
	}

	profile, err := a.auth.Client(ctx, tok).Profile(ctx)
	if err != nil {
		logger.Error("failed to fetch profile", "error", err)
		a.frontendError(w, r, "Failed to fetch profile")
		return
	}

	user := models.NewUser(profile.ID, profile.DisplayName, profile.Email)
	user.SetProfileImage(profile.ImageURL())
	user.SetToken(tok)

	if err := a.users.Upsert(ctx, user); err != nil {
		logger.Error("failed to save user", "spotify_id", profile.ID, "error", err)
		a.frontendError(w, r, "Failed to save user")
		return
	}

	if _, err := a.sessions.Start(w, r, user.ID()); err != nil {
		logger.Error("failed to start session", "user", user.ID(), "error", err)
		a.frontendError(w, r, "Failed to start session")
		return
	}

	logger.Info("user signed in", "user", user.ID(), "spotify_id", user.SpotifyID())
	http.Redirect(w, r, a.frontendURL+"/dashboard", http.StatusFound)
}

func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.End(w, r); err != nil {
		a.serverError(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, message("Logged out successfully"))
}

func (a *App) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	user, err := a.currentUser(r)
	if errors.Is(err, shared.ErrUserNotFound) {
		server.WriteError(w, http.StatusBadRequest, "Invalid user or missing refresh token")
		return
	} else if err != nil {
		a.serverError(w, r, err)
		return
	}

	if user.RefreshToken() == "" {
		server.WriteError(w, http.StatusBadRequest, "Invalid user or missing refresh token")
		return
	}

	if _, err := a.tokens.ForceRefresh(r.Context(), user); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, message("Token refreshed successfully"))
}

func (a *App) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := a.currentUser(r)
	if errors.Is(err, shared.ErrUserNotFound) {
		server.WriteError(w, http.StatusNotFound, "User not found")
		return
	} else if err != nil {
		a.serverError(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, user.Public())
}

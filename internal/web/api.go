package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/desertthunder/statify/internal/models"
	"github.com/desertthunder/statify/internal/server"
	"github.com/desertthunder/statify/internal/shared"
	"github.com/getsentry/sentry-go"
)

const (
	invalidItemType  = "Invalid item type. Must be 'artists' or 'tracks'"
	invalidTimeRange = "Invalid time range. Must be 'short_term', 'medium_term' or 'long_term'"
	invalidLimit     = "Invalid limit. Must be an integer"
)

type messageResponse struct {
	Message string `json:"message"`
}

func message(msg string) messageResponse {
	return messageResponse{Message: msg}
}

// validItemType rejects unknown item types before the session check.
func validItemType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := models.ParseItemType(r.PathValue("item_type")); err != nil {
			server.WriteError(w, http.StatusBadRequest, invalidItemType)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// query holds the parameters shared by the stats endpoints.
type query struct {
	timeRange models.TimeRange
	limit     int
}

// parseQuery returns the query or the message describing the bad parameter.
func parseQuery(r *http.Request) (query, string) {
	var q query
	values := r.URL.Query()

	tr, err := models.ParseTimeRange(values.Get("time_range"))
	if err != nil {
		return q, invalidTimeRange
	}
	q.timeRange = tr

	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return q, invalidLimit
		}
		q.limit = limit
	}
	return q, ""
}

func (a *App) currentUser(r *http.Request) (*models.User, error) {
	id, ok := server.UserID(r.Context())
	if !ok {
		return nil, shared.ErrNotAuthenticated
	}
	return a.users.Get(r.Context(), id)
}

// apiUser loads the signed in user and the query, writing the error response on failure.
func (a *App) apiUser(w http.ResponseWriter, r *http.Request) (*models.User, query, bool) {
	q, problem := parseQuery(r)
	if problem != "" {
		server.WriteError(w, http.StatusBadRequest, problem)
		return nil, q, false
	}

	user, err := a.currentUser(r)
	if err != nil {
		a.writeServiceError(w, r, err)
		return nil, q, false
	}
	return user, q, true
}

func (a *App) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, _, ok := a.apiUser(w, r)
	if !ok {
		return
	}

	profile, err := a.stats.Profile(r.Context(), user)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, profile)
}

func (a *App) handleTop(w http.ResponseWriter, r *http.Request) {
	user, q, ok := a.apiUser(w, r)
	if !ok {
		return
	}

	itemType, err := models.ParseItemType(r.PathValue("item_type"))
	if err != nil {
		server.WriteError(w, http.StatusBadRequest, invalidItemType)
		return
	}

	result, err := a.stats.Top(r.Context(), user, itemType, q.timeRange, q.limit)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, result)
}

func (a *App) handleTopGenres(w http.ResponseWriter, r *http.Request) {
	user, q, ok := a.apiUser(w, r)
	if !ok {
		return
	}

	result, err := a.stats.TopGenres(r.Context(), user, q.timeRange)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, result)
}

func (a *App) handleTopAlbums(w http.ResponseWriter, r *http.Request) {
	user, q, ok := a.apiUser(w, r)
	if !ok {
		return
	}

	result, err := a.stats.TopAlbums(r.Context(), user, q.timeRange, q.limit)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, result)
}

func (a *App) handleRecentlyPlayed(w http.ResponseWriter, r *http.Request) {
	user, q, ok := a.apiUser(w, r)
	if !ok {
		return
	}

	result, err := a.stats.RecentlyPlayed(r.Context(), user, q.limit)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, result)
}

func (a *App) handleStats(w http.ResponseWriter, r *http.Request) {
	user, err := a.currentUser(r)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	values := r.URL.Query()
	filter := models.StatsFilter{DataType: values.Get("type")}

	if raw := values.Get("time_range"); raw != "" {
		tr, err := models.ParseTimeRange(raw)
		if err != nil {
			server.WriteError(w, http.StatusBadRequest, invalidTimeRange)
			return
		}
		filter.TimeRange = tr.String()
	}

	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			server.WriteError(w, http.StatusBadRequest, invalidLimit)
			return
		}
		filter.Limit = limit
	}

	snapshots, err := a.stats.SavedStats(r.Context(), user, filter)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, snapshots)
}

// writeServiceError maps service and store errors to a status code.
func (a *App) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrSessionExpired),
		errors.Is(err, shared.ErrUserNotFound),
		errors.Is(err, shared.ErrNoRefreshToken),
		errors.Is(err, shared.ErrRefreshFailed),
		errors.Is(err, shared.ErrTokenExpired):
		a.logger.Warn("request not authorized", "path", r.URL.Path, "error", err, "request_id", server.RequestID(r.Context()))
		server.WriteError(w, http.StatusUnauthorized, "Not authenticated")
	case errors.Is(err, shared.ErrInvalidArgument):
		server.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, shared.ErrAPIRequest):
		a.logger.Error("spotify request failed", "path", r.URL.Path, "error", err, "request_id", server.RequestID(r.Context()))
		server.WriteError(w, http.StatusBadGateway, "Spotify request failed")
	default:
		a.serverError(w, r, err)
	}
}

func (a *App) serverError(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.Error("request failed", "path", r.URL.Path, "error", err, "request_id", server.RequestID(r.Context()))
	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		hub.CaptureException(err)
	} else {
		sentry.CaptureException(err)
	}
	server.WriteError(w, http.StatusInternalServerError, "Internal server error")
}

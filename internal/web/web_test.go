package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/statify/internal/models"
	"github.com/desertthunder/statify/internal/repositories"
	"github.com/desertthunder/statify/internal/server"
	"github.com/desertthunder/statify/internal/services"
	"github.com/desertthunder/statify/internal/shared"
	tu "github.com/desertthunder/statify/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frontendURL = "http://localhost:3000"

type harness struct {
	app     *App
	spotify *tu.SpotifyServer
	db      *sql.DB
	users   *repositories.UserRepository
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := log.New(io.Discard)
	spotify := tu.NewSpotifyServer(t)

	db, err := shared.NewDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, shared.RunMigrations(db, shared.DriverSQLite))

	key, err := shared.GenerateKey()
	require.NoError(t, err)
	cipher, err := shared.NewTokenCipher(key, logger)
	require.NoError(t, err)

	auth, err := services.NewSpotifyAuth(map[string]string{
		"client_id":     "test_client_id",
		"client_secret": "test_client_secret",
		"redirect_uri":  "http://127.0.0.1:5001/auth/callback",
	},
		services.WithEndpoint(spotify.Endpoint()),
		services.WithAPIURL(spotify.APIURL()),
		services.WithHTTPClient(spotify.Client()),
	)
	require.NoError(t, err)

	users := repositories.NewUserRepository(db, cipher)
	tokens := services.NewTokenManager(auth, users, logger)
	stats := services.NewStatsService(tokens, auth.Client, repositories.NewStatsRepository(db), logger)
	sessions := server.NewSessionManager(repositories.NewSessionRepository(db), time.Hour, false, logger)

	app, err := New(Options{
		FrontendURL:    frontendURL + "/",
		AllowedOrigins: []string{frontendURL},
		Auth:           auth,
		Users:          users,
		Tokens:         tokens,
		Stats:          stats,
		Sessions:       sessions,
		DB:             db,
		Logger:         logger,
	})
	require.NoError(t, err)

	return &harness{app: app, spotify: spotify, db: db, users: users}
}

func (h *harness) do(method, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.app.ServeHTTP(rec, req)
	return rec
}

func cookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name && c.Value != "" {
			return c
		}
	}
	return nil
}

// login starts the flow and returns the state and its cookie.
func (h *harness) login(t *testing.T) (string, *http.Cookie) {
	t.Helper()

	rec := h.do(http.MethodGet, "/auth/login")
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)

	state := location.Query().Get("state")
	require.NotEmpty(t, state)

	c := cookie(rec, server.StateCookie)
	require.NotNil(t, c)
	return state, c
}

// signIn completes the OAuth flow and returns the session cookie.
func (h *harness) signIn(t *testing.T) *http.Cookie {
	t.Helper()

	state, stateCookie := h.login(t)
	rec := h.do(http.MethodGet, "/auth/callback?code="+tu.GoodCode+"&state="+state, stateCookie)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, frontendURL+"/dashboard", rec.Header().Get("Location"))

	c := cookie(rec, server.SessionCookie)
	require.NotNil(t, c)
	return c
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAuthRoutes(t *testing.T) {
	t.Run("Login Redirects To Spotify", func(t *testing.T) {
		h := newHarness(t)

		rec := h.do(http.MethodGet, "/auth/login")
		require.Equal(t, http.StatusFound, rec.Code)

		location, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, h.spotify.URL+"/authorize", location.Scheme+"://"+location.Host+location.Path)
		assert.Equal(t, "test_client_id", location.Query().Get("client_id"))
		assert.Contains(t, location.Query().Get("scope"), "user-top-read")
		assert.Contains(t, location.Query().Get("scope"), "user-read-recently-played")

		c := cookie(rec, server.StateCookie)
		require.NotNil(t, c)
		assert.Equal(t, location.Query().Get("state"), c.Value)
		assert.True(t, c.HttpOnly)
	})

	t.Run("Callback", func(t *testing.T) {
		t.Run("Signs In", func(t *testing.T) {
			h := newHarness(t)
			session := h.signIn(t)

			user, err := h.users.GetBySpotifyID(context.Background(), "spotify-user-1")
			require.NoError(t, err)
			assert.Equal(t, "Test Listener", user.DisplayName())
			assert.Equal(t, "https://i.scdn.co/image/profile", user.ProfileImage())
			assert.Equal(t, tu.AccessToken, user.AccessToken())
			assert.Equal(t, tu.RefreshToken, user.RefreshToken())

			var stored string
			require.NoError(t, h.db.QueryRow(`SELECT access_token FROM users WHERE id = ?`, user.ID()).Scan(&stored))
			assert.NotEqual(t, tu.AccessToken, stored, "access token must be encrypted at rest")

			rec := h.do(http.MethodGet, "/auth/me", session)
			require.Equal(t, http.StatusOK, rec.Code)
			me := decode[models.PublicUser](t, rec)
			assert.Equal(t, user.ID(), me.ID)
			assert.Equal(t, "spotify-user-1", me.SpotifyID)
			assert.NotContains(t, rec.Body.String(), tu.AccessToken)
		})

		t.Run("Second Sign In Updates User", func(t *testing.T) {
			h := newHarness(t)
			h.signIn(t)
			h.signIn(t)

			users, err := h.users.List(context.Background(), nil)
			require.NoError(t, err)
			assert.Len(t, users, 1)
		})

		t.Run("Missing Code", func(t *testing.T) {
			h := newHarness(t)
			state, c := h.login(t)

			rec := h.do(http.MethodGet, "/auth/callback?error=access_denied&state="+state, c)
			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, frontendURL+"/error?message=Authorization%20failed", rec.Header().Get("Location"))
		})

		t.Run("Exchange Failure", func(t *testing.T) {
			h := newHarness(t)
			state, c := h.login(t)

			rec := h.do(http.MethodGet, "/auth/callback?code=bad-code&state="+state, c)
			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, frontendURL+"/error?message=Failed%20to%20get%20access%20token", rec.Header().Get("Location"))
		})

		t.Run("Invalid State", func(t *testing.T) {
			h := newHarness(t)
			_, c := h.login(t)

			rec := h.do(http.MethodGet, "/auth/callback?code="+tu.GoodCode+"&state=forged", c)
			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, frontendURL+"/error?message=Invalid%20state", rec.Header().Get("Location"))
			assert.Equal(t, 0, h.spotify.Hits("/api/token"))
		})
	})

	t.Run("Me Requires Session", func(t *testing.T) {
		h := newHarness(t)

		rec := h.do(http.MethodGet, "/auth/me")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Not authenticated", decode[server.ErrorResponse](t, rec).Error)
	})

	t.Run("Me For Deleted User", func(t *testing.T) {
		h := newHarness(t)
		session := h.signIn(t)

		user, err := h.users.GetBySpotifyID(context.Background(), "spotify-user-1")
		require.NoError(t, err)
		_, err = h.db.Exec(`PRAGMA foreign_keys = OFF`)
		require.NoError(t, err)
		_, err = h.db.Exec(`DELETE FROM users WHERE id = ?`, user.ID())
		require.NoError(t, err)

		rec := h.do(http.MethodGet, "/auth/me", session)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "User not found", decode[server.ErrorResponse](t, rec).Error)
	})

	t.Run("Logout", func(t *testing.T) {
		for _, method := range []string{http.MethodGet, http.MethodPost} {
			t.Run(method, func(t *testing.T) {
				h := newHarness(t)
				session := h.signIn(t)

				rec := h.do(method, "/auth/logout", session)
				require.Equal(t, http.StatusOK, rec.Code)
				assert.Equal(t, "Logged out successfully", decode[messageResponse](t, rec).Message)

				rec = h.do(http.MethodGet, "/auth/me", session)
				assert.Equal(t, http.StatusUnauthorized, rec.Code)
			})
		}
	})

	t.Run("Refresh Token", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			h := newHarness(t)
			session := h.signIn(t)

			rec := h.do(http.MethodGet, "/auth/refresh-token", session)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "Token refreshed successfully", decode[messageResponse](t, rec).Message)

			user, err := h.users.GetBySpotifyID(context.Background(), "spotify-user-1")
			require.NoError(t, err)
			assert.Equal(t, tu.RefreshedAuth, user.AccessToken())
			assert.Equal(t, tu.RefreshToken, user.RefreshToken(), "refresh token is kept when none is returned")
		})

		t.Run("Missing Refresh Token", func(t *testing.T) {
			h := newHarness(t)
			session := h.signIn(t)

			_, err := h.db.Exec(`UPDATE users SET refresh_token = NULL`)
			require.NoError(t, err)

			rec := h.do(http.MethodGet, "/auth/refresh-token", session)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Invalid user or missing refresh token", decode[server.ErrorResponse](t, rec).Error)
		})

		t.Run("Revoked", func(t *testing.T) {
			h := newHarness(t)
			session := h.signIn(t)

			user, err := h.users.GetBySpotifyID(context.Background(), "spotify-user-1")
			require.NoError(t, err)
			user.SetRefreshToken(tu.RevokedToken)
			require.NoError(t, h.users.UpdateTokens(context.Background(), user))

			rec := h.do(http.MethodGet, "/auth/refresh-token", session)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	})
}

func TestAPIRoutes(t *testing.T) {
	t.Run("Profile", func(t *testing.T) {
		h := newHarness(t)
		session := h.signIn(t)

		rec := h.do(http.MethodGet, "/api/profile", session)
		require.Equal(t, http.StatusOK, rec.Code)

		profile := decode[models.Profile](t, rec)
		assert.Equal(t, "Test Listener", profile.DisplayName)
		assert.Equal(t, 42, profile.Followers.Total)
	})

	t.Run("Requires Session", func(t *testing.T) {
		h := newHarness(t)
		for _, path := range []string{"/api/profile", "/api/top/artists", "/api/top-genres", "/api/top-albums", "/api/recently-played", "/api/stats"} {
			rec := h.do(http.MethodGet, path)
			assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		}
	})

	t.Run("Top", func(t *testing.T) {
		t.Run("Artists With Defaults", func(t *testing.T) {
			h := newHarness(t)
			session := h.signIn(t)

			rec := h.do(http.MethodGet, "/api/top/artists", session)
			require.Equal(t, http.StatusOK, rec.Code)

			top := decode[models.TopArtists](t, rec)
			assert.Len(t, top.Items, 3)

			q := h.spotify.Query("/v1/me/top/artists")
			assert.Equal(t, "20", q.Get("limit"))
			assert.Equal(t, "medium_term", q.Get("time_range"))
		})

		t.Run("Tracks With Parameters", func(t *testing.T) {
			h := newHarness(t)
			session := h.signIn(t)

			rec := h.do(http.MethodGet, "/api/top/tracks?time_range=short_term&limit=2", session)
			require.Equal(t, http.StatusOK, rec.Code)

			top := decode[models.TopTracks](t, rec)
			assert.Len(t, top.Items, 2)

			q := h.spotify.Query("/v1/me/top/tracks")
			assert.Equal(t, "2", q.Get("limit"))
			assert.Equal(t, "short_term", q.Get("time_range"))
		})

		t.Run("Limit Is Capped", func(t *testing.T) {
			h := newHarness(t)
			session := h.signIn(t)

			rec := h.do(http.MethodGet, "/api/top/tracks?limit=500", session)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "50", h.spotify.Query("/v1/me/top/tracks").Get("limit"))
		})

		t.Run("Invalid Item Type", func(t *testing.T) {
			h := newHarness(t)

			rec := h.do(http.MethodGet, "/api/top/albums")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Invalid item type. Must be 'artists' or 'tracks'", decode[server.ErrorResponse](t, rec).Error)
		})

		t.Run("Invalid Parameters", func(t *testing.T) {
			h := newHarness(t)
			session := h.signIn(t)

			for _, path := range []string{"/api/top/artists?time_range=forever", "/api/top/artists?limit=ten"} {
				rec := h.do(http.MethodGet, path, session)
				assert.Equal(t, http.StatusBadRequest, rec.Code, path)
			}
			assert.Equal(t, 0, h.spotify.Hits("/v1/me/top/artists"))
		})
	})

	t.Run("Top Genres", func(t *testing.T) {
		h := newHarness(t)
		session := h.signIn(t)

		rec := h.do(http.MethodGet, "/api/top-genres?time_range=long_term", session)
		require.Equal(t, http.StatusOK, rec.Code)

		genres := decode[models.TopGenres](t, rec)
		require.NotEmpty(t, genres.Items)
		assert.Equal(t, models.GenreCount{Name: "indie rock", Count: 3}, genres.Items[0])
		assert.Equal(t, "50", h.spotify.Query("/v1/me/top/artists").Get("limit"))
	})

	t.Run("Top Albums", func(t *testing.T) {
		h := newHarness(t)
		session := h.signIn(t)

		rec := h.do(http.MethodGet, "/api/top-albums", session)
		require.Equal(t, http.StatusOK, rec.Code)

		albums := decode[models.TopAlbums](t, rec)
		require.Len(t, albums.Items, 3)
		for _, album := range albums.Items {
			if album.ID == "album-2" {
				assert.Equal(t, []string{"Song B", "Song C"}, album.Tracks)
			}
		}
		assert.Equal(t, "50", h.spotify.Query("/v1/me/top/tracks").Get("limit"))
	})

	t.Run("Recently Played", func(t *testing.T) {
		h := newHarness(t)
		session := h.signIn(t)

		rec := h.do(http.MethodGet, "/api/recently-played?limit=1", session)
		require.Equal(t, http.StatusOK, rec.Code)

		plays := decode[models.RecentlyPlayed](t, rec)
		assert.Len(t, plays.Items, 1)

		rec = h.do(http.MethodGet, "/api/stats", session)
		assert.Empty(t, decode[[]models.StatSnapshot](t, rec), "recent plays are not recorded")
	})

	t.Run("Saved Stats", func(t *testing.T) {
		h := newHarness(t)
		session := h.signIn(t)

		for _, path := range []string{"/api/top/artists?time_range=short_term", "/api/top/tracks", "/api/top-genres"} {
			require.Equal(t, http.StatusOK, h.do(http.MethodGet, path, session).Code, path)
		}

		rec := h.do(http.MethodGet, "/api/stats", session)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]models.StatSnapshot](t, rec), 3)

		rec = h.do(http.MethodGet, "/api/stats?type=genres", session)
		snapshots := decode[[]models.StatSnapshot](t, rec)
		require.Len(t, snapshots, 1)
		assert.Equal(t, "genres", snapshots[0].DataType)
		assert.Equal(t, "medium_term", snapshots[0].TimeRange)
		assert.Contains(t, string(snapshots[0].Data), "indie rock")

		rec = h.do(http.MethodGet, "/api/stats?time_range=short_term", session)
		snapshots = decode[[]models.StatSnapshot](t, rec)
		require.Len(t, snapshots, 1)
		assert.Equal(t, "artists", snapshots[0].DataType)

		rec = h.do(http.MethodGet, "/api/stats?time_range=someday", session)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Expired Token Is Refreshed", func(t *testing.T) {
		h := newHarness(t)
		session := h.signIn(t)
		h.spotify.ExpireToken(tu.AccessToken)

		rec := h.do(http.MethodGet, "/api/profile", session)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 3, h.spotify.Hits("/v1/me"), "callback, rejected call, retry")

		user, err := h.users.GetBySpotifyID(context.Background(), "spotify-user-1")
		require.NoError(t, err)
		assert.Equal(t, tu.RefreshedAuth, user.AccessToken())
	})

	t.Run("Expired Token Without Refresh", func(t *testing.T) {
		h := newHarness(t)
		session := h.signIn(t)
		h.spotify.ExpireToken(tu.AccessToken)

		_, err := h.db.Exec(`UPDATE users SET refresh_token = NULL`)
		require.NoError(t, err)

		rec := h.do(http.MethodGet, "/api/top/artists", session)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestServiceErrorStatus(t *testing.T) {
	a := &App{logger: log.New(io.Discard)}

	tests := []struct {
		name string
		err  error
		code int
		body string
	}{
		{"Not Authenticated", shared.ErrNotAuthenticated, http.StatusUnauthorized, "Not authenticated"},
		{"Session Expired", shared.ErrSessionExpired, http.StatusUnauthorized, "Not authenticated"},
		{"User Gone", shared.ErrUserNotFound, http.StatusUnauthorized, "Not authenticated"},
		{"No Refresh Token", shared.ErrNoRefreshToken, http.StatusUnauthorized, "Not authenticated"},
		{"Refresh Failed", fmt.Errorf("%w: invalid_grant", shared.ErrRefreshFailed), http.StatusUnauthorized, "Not authenticated"},
		{"Token Expired", shared.ErrTokenExpired, http.StatusUnauthorized, "Not authenticated"},
		{"Bad Argument", fmt.Errorf("%w: limit", shared.ErrInvalidArgument), http.StatusBadRequest, "invalid argument: limit"},
		{"Upstream", fmt.Errorf("%w: 503", shared.ErrAPIRequest), http.StatusBadGateway, "Spotify request failed"},
		{"Unknown", errors.New("disk full"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			a.writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/api/top/artists", nil), tt.err)

			assert.Equal(t, tt.code, rec.Code)
			var body server.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.body, body.Error)
		})
	}
}

func TestSystemRoutes(t *testing.T) {
	t.Run("Health", func(t *testing.T) {
		h := newHarness(t)

		rec := h.do(http.MethodGet, "/healthz")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])

		h.db.Close()
		rec = h.do(http.MethodGet, "/healthz")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("Metrics", func(t *testing.T) {
		h := newHarness(t)
		h.do(http.MethodGet, "/healthz")

		rec := h.do(http.MethodGet, "/metrics")
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, `statify_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
		assert.Contains(t, body, "go_goroutines")
	})

	t.Run("Request ID", func(t *testing.T) {
		h := newHarness(t)

		rec := h.do(http.MethodGet, "/healthz")
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("CORS Preflight", func(t *testing.T) {
		h := newHarness(t)

		req := httptest.NewRequest(http.MethodOptions, "/api/profile", nil)
		req.Header.Set("Origin", frontendURL)
		req.Header.Set("Access-Control-Request-Method", "GET")
		rec := httptest.NewRecorder()
		h.app.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, frontendURL, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Unknown Method", func(t *testing.T) {
		h := newHarness(t)

		rec := h.do(http.MethodDelete, "/api/profile")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.True(t, strings.Contains(rec.Body.String(), "Method not allowed"))
	})
}

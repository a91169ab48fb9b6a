package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"golang.org/x/oauth2"
)

// Codes and tokens understood by [SpotifyServer].
const (
	GoodCode      = "good-code"
	AccessToken   = "access-1"
	RefreshToken  = "refresh-1"
	RefreshedAuth = "access-2"
	RevokedToken  = "revoked"
)

// SpotifyServer fakes the Spotify accounts service and the Web API endpoints statify reads.
type SpotifyServer struct {
	*httptest.Server

	mu      sync.Mutex
	hits    map[string]int
	queries map[string]url.Values
	expired map[string]bool
}

// NewSpotifyServer starts a [SpotifyServer] that is closed when the test ends.
func NewSpotifyServer(t *testing.T) *SpotifyServer {
	t.Helper()

	s := &SpotifyServer{
		hits:    make(map[string]int),
		queries: make(map[string]url.Values),
		expired: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", s.token)
	mux.HandleFunc("GET /v1/me", s.authorized(profileFixture))
	mux.HandleFunc("GET /v1/me/top/artists", s.authorized(artistsFixture))
	mux.HandleFunc("GET /v1/me/top/tracks", s.authorized(tracksFixture))
	mux.HandleFunc("GET /v1/me/player/recently-played", s.authorized(recentFixture))

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// APIURL is the Web API base URL, with trailing slash.
func (s *SpotifyServer) APIURL() string {
	return s.URL + "/v1/"
}

// Endpoint is the OAuth2 endpoint of the fake accounts service.
func (s *SpotifyServer) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   s.URL + "/authorize",
		TokenURL:  s.URL + "/api/token",
		AuthStyle: oauth2.AuthStyleInHeader,
	}
}

// ExpireToken makes API calls with token fail with 401.
func (s *SpotifyServer) ExpireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired[token] = true
}

// Hits returns how many requests reached path.
func (s *SpotifyServer) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// Query returns the query string of the last request to path.
func (s *SpotifyServer) Query(path string) url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[path]
}

func (s *SpotifyServer) record(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[r.URL.Path]++
	s.queries[r.URL.Path] = r.URL.Query()
}

func (s *SpotifyServer) token(w http.ResponseWriter, r *http.Request) {
	s.record(r)

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		if r.PostForm.Get("code") != GoodCode {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  AccessToken,
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": RefreshToken,
			"scope":         "user-read-email user-read-private user-top-read user-read-recently-played",
		})
	case "refresh_token":
		if rt := r.PostForm.Get("refresh_token"); rt == "" || rt == RevokedToken {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": RefreshedAuth,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func (s *SpotifyServer) authorized(fixture func(limit int) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.record(r)

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		expired := s.expired[token]
		s.mu.Unlock()

		if token == "" || expired {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error": map[string]any{"status": http.StatusUnauthorized, "message": "The access token expired"},
			})
			return
		}

		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil || limit <= 0 {
			limit = 20
		}
		writeJSON(w, http.StatusOK, fixture(limit))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func profileFixture(int) any {
	return map[string]any{
		"id":           "spotify-user-1",
		"display_name": "Test Listener",
		"email":        "listener@example.com",
		"country":      "US",
		"product":      "premium",
		"uri":          "spotify:user:spotify-user-1",
		"followers":    map[string]any{"total": 42, "href": nil},
		"images":       []any{map[string]any{"url": "https://i.scdn.co/image/profile", "height": 300, "width": 300}},
	}
}

func page(items []any, limit int) map[string]any {
	total := len(items)
	if limit < len(items) {
		items = items[:limit]
	}
	return map[string]any{"items": items, "total": total, "limit": limit, "offset": 0, "next": nil, "previous": nil}
}

func artistsFixture(limit int) any {
	artist := func(id, name string, popularity int, genres ...string) map[string]any {
		return map[string]any{
			"id": id, "name": name, "uri": "spotify:artist:" + id, "genres": genres, "popularity": popularity,
			"followers": map[string]any{"total": popularity * 100, "href": nil},
			"images":    []any{map[string]any{"url": "https://i.scdn.co/image/" + id, "height": 640, "width": 640}},
		}
	}
	return page([]any{
		artist("artist-1", "Artist One", 70, "indie rock", "dream pop"),
		artist("artist-2", "Artist Two", 60, "indie rock", "shoegaze"),
		artist("artist-3", "Artist Three", 50, "dream pop", "indie rock"),
	}, limit)
}

func simpleTrack(id, name string) map[string]any {
	return map[string]any{
		"id": id, "name": name, "uri": "spotify:track:" + id, "duration_ms": 200000, "explicit": false,
		"artists": []any{map[string]any{"id": "artist-1", "name": "Artist One"}},
	}
}

func tracksFixture(limit int) any {
	track := func(id, name, albumID, albumName string) map[string]any {
		t := simpleTrack(id, name)
		t["popularity"] = 55
		t["album"] = map[string]any{
			"id": albumID, "name": albumName, "release_date": "2020-01-01",
			"artists": []any{map[string]any{"id": "artist-1", "name": "Artist One"}},
			"images":  []any{map[string]any{"url": "https://i.scdn.co/image/" + albumID, "height": 640, "width": 640}},
		}
		return t
	}
	return page([]any{
		track("track-1", "Song A", "album-1", "Album One"),
		track("track-2", "Song B", "album-2", "Album Two"),
		track("track-3", "Song C", "album-2", "Album Two"),
		track("track-4", "Song D", "album-3", "Album Three"),
	}, limit)
}

func recentFixture(limit int) any {
	items := []any{
		map[string]any{"track": simpleTrack("track-2", "Song B"), "played_at": "2025-01-02T03:04:05.000Z"},
		map[string]any{"track": simpleTrack("track-1", "Song A"), "played_at": "2025-01-02T02:58:00.000Z"},
	}
	if limit < len(items) {
		items = items[:limit]
	}
	return map[string]any{"items": items, "limit": limit}
}

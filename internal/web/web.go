// Package web serves the statify JSON API consumed by the dashboard frontend.
//
// Routes
//
//	GET      /auth/login          → redirect to the Spotify consent page
//	GET      /auth/callback       → complete sign in, start a session, redirect to the dashboard
//	GET|POST /auth/logout         → end the session
//	GET      /auth/refresh-token  → refresh the signed in user's access token
//	GET      /auth/me             → signed in user
//	GET      /api/profile         → Spotify profile
//	GET      /api/top/{item_type} → top artists or tracks
//	GET      /api/top-genres      → genre counts across top artists
//	GET      /api/top-albums      → top tracks grouped by album
//	GET      /api/recently-played → recent plays
//	GET      /api/stats           → saved snapshots
//	GET      /healthz             → database ping
//	GET      /metrics             → Prometheus metrics
//
// Every route under /auth (other than login, callback and logout) and /api requires a session.
package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/statify/internal/models"
	"github.com/desertthunder/statify/internal/server"
	"github.com/desertthunder/statify/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/oauth2"
)

// Authenticator runs the authorization code flow and builds API clients.
type Authenticator interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Client(ctx context.Context, tok *oauth2.Token) services.StatsAPI
}

// UserStore loads and saves users.
type UserStore interface {
	Get(ctx context.Context, id string) (*models.User, error)
	Upsert(ctx context.Context, user *models.User) error
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options configures [New].
type Options struct {
	FrontendURL    string
	AllowedOrigins []string
	CookieSecure   bool
	RateLimit      server.RateLimitConfig

	Auth     Authenticator
	Users    UserStore
	Tokens   *services.TokenManager
	Stats    *services.StatsService
	Sessions *server.SessionManager
	DB       Pinger

	// Registry receives the HTTP and runtime collectors. A new registry is used when nil.
	Registry *prometheus.Registry
	Logger   *log.Logger
}

// App is the statify HTTP application.
type App struct {
	frontendURL  string
	cookieSecure bool

	auth     Authenticator
	users    UserStore
	tokens   *services.TokenManager
	stats    *services.StatsService
	sessions *server.SessionManager
	db       Pinger
	logger   *log.Logger

	router *server.BasicRouter
}

// New builds the router with global middleware and registers every route.
func New(opts Options) (*App, error) {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	metrics, err := server.NewMetrics(reg)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	a := &App{
		frontendURL:  strings.TrimRight(opts.FrontendURL, "/"),
		cookieSecure: opts.CookieSecure,
		auth:         opts.Auth,
		users:        opts.Users,
		tokens:       opts.Tokens,
		stats:        opts.Stats,
		sessions:     opts.Sessions,
		db:           opts.DB,
		logger:       logger,
		router:       server.NewBasicRouter(),
	}

	a.router.Use(
		server.RequestIDMiddleware(),
		server.LoggingMiddleware(logger),
		server.RecoverMiddleware(logger),
		metrics.Middleware(),
		server.CORSMiddleware(opts.AllowedOrigins),
		server.RateLimitMiddleware(opts.RateLimit, logger),
	)

	a.routes(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return a, nil
}

func (a *App) routes(metrics http.Handler) {
	r := a.router
	session := a.sessions.RequireSession

	r.HandleFunc(http.MethodGet, "/auth/login", a.handleLogin)
	r.HandleFunc(http.MethodGet, "/auth/callback", a.handleCallback)
	r.HandleMethods([]string{http.MethodGet, http.MethodPost}, "/auth/logout", http.HandlerFunc(a.handleLogout))
	r.Handle(http.MethodGet, "/auth/refresh-token", session(http.HandlerFunc(a.handleRefreshToken)))
	r.Handle(http.MethodGet, "/auth/me", session(http.HandlerFunc(a.handleMe)))

	r.Handle(http.MethodGet, "/api/profile", session(http.HandlerFunc(a.handleProfile)))
	r.Handle(http.MethodGet, "/api/top/{item_type}", validItemType(session(http.HandlerFunc(a.handleTop))))
	r.Handle(http.MethodGet, "/api/top-genres", session(http.HandlerFunc(a.handleTopGenres)))
	r.Handle(http.MethodGet, "/api/top-albums", session(http.HandlerFunc(a.handleTopAlbums)))
	r.Handle(http.MethodGet, "/api/recently-played", session(http.HandlerFunc(a.handleRecentlyPlayed)))
	r.Handle(http.MethodGet, "/api/stats", session(http.HandlerFunc(a.handleStats)))

	r.HandleFunc(http.MethodGet, "/healthz", a.handleHealth)
	r.Handle(http.MethodGet, "/metrics", metrics)
}

// ServeHTTP implements [http.Handler].
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.db.PingContext(r.Context()); err != nil {
		a.logger.Error("health check failed", "error", err, "request_id", server.RequestID(r.Context()))
		server.WriteError(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// frontendError redirects to the frontend's error page with message.
func (a *App) frontendError(w http.ResponseWriter, r *http.Request, message string) {
	target := fmt.Sprintf("%s/error?message=%s", a.frontendURL, url.PathEscape(message))
	http.Redirect(w, r, target, http.StatusFound)
}

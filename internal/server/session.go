package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/statify/internal/models"
	"github.com/desertthunder/statify/internal/shared"
)

const (
	SessionCookie     = "statify_session"
	DefaultSessionTTL = 24 * time.Hour
	sessionIDBytes    = 32
)

// SessionStore persists sessions.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

// SessionManager issues and validates the session cookie.
//
// The cookie holds only a random session ID; the user it belongs to lives in the [SessionStore].
type SessionManager struct {
	store  SessionStore
	ttl    time.Duration
	secure bool
	logger *log.Logger
}

// NewSessionManager creates a [SessionManager]. A non-positive ttl uses [DefaultSessionTTL].
func NewSessionManager(store SessionStore, ttl time.Duration, secure bool, logger *log.Logger) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{store: store, ttl: ttl, secure: secure, logger: logger}
}

func (m *SessionManager) cookie(value string, maxAge int, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Start creates a session for userID and sets the cookie. Any session already carried by r is ended first.
func (m *SessionManager) Start(w http.ResponseWriter, r *http.Request, userID string) (*models.Session, error) {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		if err := m.store.Delete(r.Context(), c.Value); err != nil && !errors.Is(err, shared.ErrSessionNotFound) {
			m.logger.Warn("failed to end previous session", "error", err)
		}
	}

	id, err := shared.GenerateToken(sessionIDBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	session := models.NewSession(id, userID, m.ttl)
	if err := m.store.Create(r.Context(), session); err != nil {
		return nil, err
	}

	http.SetCookie(w, m.cookie(id, int(m.ttl.Seconds()), session.ExpiresAt()))
	return session, nil
}

// Load returns the session named by r's cookie.
func (m *SessionManager) Load(r *http.Request) (*models.Session, error) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return nil, shared.ErrNotAuthenticated
	}
	return m.store.Get(r.Context(), c.Value)
}

// End deletes the session named by r's cookie, if any, and clears the cookie.
func (m *SessionManager) End(w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, m.cookie("", -1, time.Unix(0, 0)))

	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return nil
	}

	if err := m.store.Delete(r.Context(), c.Value); err != nil && !errors.Is(err, shared.ErrSessionNotFound) {
		return err
	}
	return nil
}

// RequireSession rejects requests without a live session with 401 and stores the
// session's user ID in the request context otherwise.
func (m *SessionManager) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := m.Load(r)
		switch {
		case err == nil:
		case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrSessionNotFound):
			WriteError(w, http.StatusUnauthorized, "Not authenticated")
			return
		case errors.Is(err, shared.ErrSessionExpired):
			if err := m.End(w, r); err != nil {
				m.logger.Warn("failed to remove expired session", "error", err)
			}
			WriteError(w, http.StatusUnauthorized, "Not authenticated")
			return
		default:
			m.logger.Error("failed to load session", "error", err, "request_id", RequestID(r.Context()))
			WriteError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), session.UserID())))
	})
}

// WithUserID returns a copy of ctx carrying the signed in user's ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the signed in user's ID set by [SessionManager.RequireSession].
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

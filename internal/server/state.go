package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/statify/internal/shared"
)

const (
	StateCookie   = "statify_oauth_state"
	StateLifetime = 10 * time.Minute
	stateBytes    = 16
)

// IssueState generates an OAuth state value and stores it in a short-lived cookie.
func IssueState(w http.ResponseWriter, secure bool) (string, error) {
	state, err := shared.GenerateToken(stateBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int(StateLifetime.Seconds()),
		Expires:  time.Now().Add(StateLifetime),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

// VerifyState checks the callback's state parameter against the cookie set by [IssueState]
// and clears the cookie.
func VerifyState(w http.ResponseWriter, r *http.Request, secure bool) error {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookie,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})

	c, err := r.Cookie(StateCookie)
	if err != nil || c.Value == "" {
		return fmt.Errorf("%w: missing state cookie", shared.ErrInvalidState)
	}

	if !ValidState(c.Value, r.URL.Query().Get("state")) {
		return shared.ErrInvalidState
	}
	return nil
}

// ValidState compares two state values in constant time.
func ValidState(want, got string) bool {
	return want != "" && subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

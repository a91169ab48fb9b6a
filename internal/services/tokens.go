package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/statify/internal/models"
	"github.com/desertthunder/statify/internal/shared"
	"golang.org/x/oauth2"
)

// RefreshSkew is how long before expiry a token is treated as expired.
const RefreshSkew = 60 * time.Second

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error)
}

// TokenManager returns valid access tokens for users, refreshing and persisting them as needed.
type TokenManager struct {
	auth   Refresher
	users  UserStore
	logger *log.Logger
	now    func() time.Time

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	issued map[string]*oauth2.Token
}

// NewTokenManager creates a [TokenManager].
func NewTokenManager(auth Refresher, users UserStore, logger *log.Logger) *TokenManager {
	return &TokenManager{
		auth:   auth,
		users:  users,
		logger: logger,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
		issued: make(map[string]*oauth2.Token),
	}
}

// userLock returns the mutex serializing refreshes for one user.
func (m *TokenManager) userLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// latest returns the last token refreshed for a user by this manager.
func (m *TokenManager) latest(id string) *oauth2.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.issued[id]
}

func (m *TokenManager) remember(id string, tok *oauth2.Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued[id] = tok
}

// Token returns user's access token, refreshing it first when it expires within [RefreshSkew].
func (m *TokenManager) Token(ctx context.Context, user *models.User) (*oauth2.Token, error) {
	if user.AccessToken() == "" {
		return nil, shared.ErrNotAuthenticated
	}

	if !user.TokenExpired(m.now(), RefreshSkew) {
		return user.Token(), nil
	}

	lock := m.userLock(user.ID())
	lock.Lock()
	defer lock.Unlock()

	if !user.TokenExpired(m.now(), RefreshSkew) {
		return user.Token(), nil
	}

	// Callers hold their own copy of the user, so a refresh done by a
	// concurrent request is only visible through the issued tokens.
	if tok := m.latest(user.ID()); tok != nil && !tok.Expiry.IsZero() &&
		m.now().Add(RefreshSkew).Before(tok.Expiry) {
		user.SetToken(tok)
		return user.Token(), nil
	}

	return m.refresh(ctx, user)
}

// ForceRefresh refreshes user's token regardless of its expiry.
func (m *TokenManager) ForceRefresh(ctx context.Context, user *models.User) (*oauth2.Token, error) {
	lock := m.userLock(user.ID())
	lock.Lock()
	defer lock.Unlock()

	return m.refresh(ctx, user)
}

func (m *TokenManager) refresh(ctx context.Context, user *models.User) (*oauth2.Token, error) {
	if user.RefreshToken() == "" {
		return nil, shared.ErrNoRefreshToken
	}

	tok, err := m.auth.Refresh(ctx, user.Token())
	if err != nil {
		m.logger.Warn("token refresh failed", "user", user.ID(), "error", err)
		if errors.Is(err, shared.ErrRefreshFailed) || errors.Is(err, shared.ErrNoRefreshToken) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}

	user.SetToken(tok)
	if err := m.users.UpdateTokens(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to store refreshed token: %w", err)
	}

	m.remember(user.ID(), user.Token())
	m.logger.Debug("refreshed access token", "user", user.ID(), "expires", user.TokenExpiration())
	return user.Token(), nil
}

package models

import (
	"fmt"
	"time"
)

// Session binds a browser cookie to a [User].
type Session struct {
	id        string
	userID    string
	createdAt time.Time
	expiresAt time.Time
}

// NewSession creates a session for userID that lasts ttl.
func NewSession(id, userID string, ttl time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{id: id, userID: userID, createdAt: now, expiresAt: now.Add(ttl)}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) UserID() string       { return s.userID }
func (s *Session) CreatedAt() time.Time { return s.createdAt }
func (s *Session) UpdatedAt() time.Time { return s.createdAt }
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

func (s *Session) SetID(id string)          { s.id = id }
func (s *Session) SetUserID(id string)      { s.userID = id }
func (s *Session) SetCreatedAt(t time.Time) { s.createdAt = t }
func (s *Session) SetExpiresAt(t time.Time) { s.expiresAt = t }

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.expiresAt)
}

func (s *Session) Validate() error {
	switch {
	case s.id == "":
		return fmt.Errorf("session id is required")
	case s.userID == "":
		return fmt.Errorf("user_id is required")
	case !s.expiresAt.After(s.createdAt):
		return fmt.Errorf("expires_at must be after created_at")
	}
	return nil
}

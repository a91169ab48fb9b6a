package models

import (
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// User is a Spotify account that has authorized statify.
//
// Tokens are held in plaintext in memory only; repositories encrypt them on write.
type User struct {
	id              string
	spotifyID       string
	displayName     string
	email           string
	profileImage    string
	accessToken     string
	refreshToken    string
	tokenExpiration time.Time
	createdAt       time.Time
	updatedAt       time.Time
}

// NewUser creates a user for the given Spotify account ID.
func NewUser(spotifyID, displayName, email string) *User {
	now := time.Now().UTC()
	return &User{
		spotifyID:   spotifyID,
		displayName: displayName,
		email:       email,
		createdAt:   now,
		updatedAt:   now,
	}
}

func (u *User) ID() string                 { return u.id }
func (u *User) SpotifyID() string          { return u.spotifyID }
func (u *User) DisplayName() string        { return u.displayName }
func (u *User) Email() string              { return u.email }
func (u *User) ProfileImage() string       { return u.profileImage }
func (u *User) AccessToken() string        { return u.accessToken }
func (u *User) RefreshToken() string       { return u.refreshToken }
func (u *User) TokenExpiration() time.Time { return u.tokenExpiration }
func (u *User) CreatedAt() time.Time       { return u.createdAt }
func (u *User) UpdatedAt() time.Time       { return u.updatedAt }

func (u *User) SetID(id string)                { u.id = id }
func (u *User) SetDisplayName(name string)     { u.displayName = name }
func (u *User) SetEmail(email string)          { u.email = email }
func (u *User) SetProfileImage(url string)     { u.profileImage = url }
func (u *User) SetAccessToken(token string)    { u.accessToken = token }
func (u *User) SetRefreshToken(token string)   { u.refreshToken = token }
func (u *User) SetTokenExpiration(t time.Time) { u.tokenExpiration = t }
func (u *User) SetCreatedAt(t time.Time)       { u.createdAt = t }
func (u *User) SetUpdatedAt(t time.Time)       { u.updatedAt = t }

// Validate checks required fields.
func (u *User) Validate() error {
	if u.spotifyID == "" {
		return fmt.Errorf("spotify_id is required")
	}
	if len(u.spotifyID) > 64 {
		return fmt.Errorf("spotify_id exceeds 64 characters")
	}
	return nil
}

// SetToken copies an OAuth token onto the user.
//
// Spotify may omit the refresh token on refresh responses; the stored one is kept in that case.
func (u *User) SetToken(tok *oauth2.Token) {
	if tok == nil {
		return
	}
	u.accessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		u.refreshToken = tok.RefreshToken
	}
	u.tokenExpiration = tok.Expiry.UTC()
}

// Token returns the stored credentials as an [oauth2.Token].
func (u *User) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  u.accessToken,
		RefreshToken: u.refreshToken,
		TokenType:    "Bearer",
		Expiry:       u.tokenExpiration,
	}
}

// TokenExpired reports whether the access token is missing an expiry or expires within skew of now.
func (u *User) TokenExpired(now time.Time, skew time.Duration) bool {
	if u.tokenExpiration.IsZero() {
		return true
	}
	return !now.Add(skew).Before(u.tokenExpiration)
}

// PublicUser is the JSON shape of a user returned by the API. It never carries tokens.
type PublicUser struct {
	ID           string  `json:"id"`
	SpotifyID    string  `json:"spotify_id"`
	DisplayName  string  `json:"display_name"`
	Email        string  `json:"email"`
	ProfileImage string  `json:"profile_image"`
	CreatedAt    *string `json:"created_at"`
	UpdatedAt    *string `json:"updated_at"`
}

// Public returns the user without credentials.
func (u *User) Public() PublicUser {
	iso := func(t time.Time) *string {
		if t.IsZero() {
			return nil
		}
		s := t.UTC().Format(time.RFC3339)
		return &s
	}
	return PublicUser{
		ID:           u.id,
		SpotifyID:    u.spotifyID,
		DisplayName:  u.displayName,
		Email:        u.email,
		ProfileImage: u.profileImage,
		CreatedAt:    iso(u.createdAt),
		UpdatedAt:    iso(u.updatedAt),
	}
}

// package services defines the Spotify facing services used by the HTTP handlers
package services

import (
	"context"

	"github.com/desertthunder/statify/internal/models"
	"golang.org/x/oauth2"
)

const (
	DefaultLimit      = 20 // default page size for top items and recent plays
	MaxLimit          = 50 // largest page Spotify returns
	DefaultAlbumLimit = 50 // number of top tracks grouped into albums
)

// StatsAPI defines the Spotify Web API reads statify performs for a single user.
type StatsAPI interface {
	// Profile returns the current user's profile.
	Profile(ctx context.Context) (*models.Profile, error)

	// TopArtists returns up to limit artists for the time range.
	TopArtists(ctx context.Context, timeRange models.TimeRange, limit int) (*models.TopArtists, error)

	// TopTracks returns up to limit tracks for the time range.
	TopTracks(ctx context.Context, timeRange models.TimeRange, limit int) (*models.TopTracks, error)

	// RecentlyPlayed returns up to limit recently played tracks, newest first.
	RecentlyPlayed(ctx context.Context, limit int) (*models.RecentlyPlayed, error)
}

// APIFactory builds a [StatsAPI] authorized with token.
type APIFactory func(ctx context.Context, token *oauth2.Token) StatsAPI

// UserStore persists refreshed credentials.
type UserStore interface {
	UpdateTokens(ctx context.Context, user *models.User) error
}

// StatStore persists and lists snapshots.
type StatStore interface {
	Create(ctx context.Context, stat *models.UserStat) error
	List(ctx context.Context, userID string, filter models.StatsFilter) ([]*models.UserStat, error)
}

// ClampLimit returns def for non-positive n and caps n at [MaxLimit].
func ClampLimit(n, def int) int {
	switch {
	case n <= 0:
		return def
	case n > MaxLimit:
		return MaxLimit
	}
	return n
}

// Spotify Web API adapter implementing [StatsAPI]
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/statify/internal/models"
	"github.com/desertthunder/statify/internal/shared"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

// SpotifyAPI implements [StatsAPI] on top of a [spotify.Client].
type SpotifyAPI struct {
	client *spotify.Client
}

// NewSpotifyAPI wraps client.
func NewSpotifyAPI(client *spotify.Client) *SpotifyAPI {
	return &SpotifyAPI{client: client}
}

func (a *SpotifyAPI) Profile(ctx context.Context) (*models.Profile, error) {
	user, err := a.client.CurrentUser(ctx)
	if err != nil {
		return nil, apiError("current user", err)
	}

	return &models.Profile{
		ID:           string(user.ID),
		DisplayName:  user.DisplayName,
		Email:        user.Email,
		Country:      user.Country,
		Product:      user.Product,
		URI:          string(user.URI),
		ExternalURLs: user.ExternalURLs,
		Followers:    models.Followers{Total: int(user.Followers.Count)},
		Images:       images(user.Images),
	}, nil
}

func (a *SpotifyAPI) TopArtists(ctx context.Context, timeRange models.TimeRange, limit int) (*models.TopArtists, error) {
	page, err := a.client.CurrentUsersTopArtists(ctx,
		spotify.Timerange(spotify.Range(timeRange)),
		spotify.Limit(limit),
	)
	if err != nil {
		return nil, apiError("top artists", err)
	}

	result := &models.TopArtists{
		Items: make([]models.Artist, 0, len(page.Artists)),
		Total: int(page.Total),
		Limit: int(page.Limit),
	}
	for _, artist := range page.Artists {
		genres := artist.Genres
		if genres == nil {
			genres = []string{}
		}
		result.Items = append(result.Items, models.Artist{
			ID:         string(artist.ID),
			Name:       artist.Name,
			URI:        string(artist.URI),
			Genres:     genres,
			Popularity: int(artist.Popularity),
			Followers:  models.Followers{Total: int(artist.Followers.Count)},
			Images:     images(artist.Images),
		})
	}
	return result, nil
}

func (a *SpotifyAPI) TopTracks(ctx context.Context, timeRange models.TimeRange, limit int) (*models.TopTracks, error) {
	page, err := a.client.CurrentUsersTopTracks(ctx,
		spotify.Timerange(spotify.Range(timeRange)),
		spotify.Limit(limit),
	)
	if err != nil {
		return nil, apiError("top tracks", err)
	}

	result := &models.TopTracks{
		Items: make([]models.Track, 0, len(page.Tracks)),
		Total: int(page.Total),
		Limit: int(page.Limit),
	}
	for _, full := range page.Tracks {
		track := simpleTrack(full.SimpleTrack)
		track.Popularity = int(full.Popularity)
		track.Album = &models.AlbumRef{
			ID:          string(full.Album.ID),
			Name:        full.Album.Name,
			ReleaseDate: full.Album.ReleaseDate,
			Artists:     artistRefs(full.Album.Artists),
			Images:      images(full.Album.Images),
		}
		result.Items = append(result.Items, track)
	}
	return result, nil
}

func (a *SpotifyAPI) RecentlyPlayed(ctx context.Context, limit int) (*models.RecentlyPlayed, error) {
	items, err := a.client.PlayerRecentlyPlayedOpt(ctx, &spotify.RecentlyPlayedOptions{Limit: spotify.Numeric(limit)})
	if err != nil {
		return nil, apiError("recently played", err)
	}

	result := &models.RecentlyPlayed{
		Items: make([]models.RecentPlay, 0, len(items)),
		Limit: limit,
	}
	for _, item := range items {
		result.Items = append(result.Items, models.RecentPlay{
			Track:    simpleTrack(item.Track),
			PlayedAt: item.PlayedAt,
		})
	}
	return result, nil
}

func simpleTrack(t spotify.SimpleTrack) models.Track {
	return models.Track{
		ID:         string(t.ID),
		Name:       t.Name,
		URI:        string(t.URI),
		DurationMs: int(t.Duration),
		Explicit:   t.Explicit,
		Artists:    artistRefs(t.Artists),
	}
}

func artistRefs(artists []spotify.SimpleArtist) []models.ArtistRef {
	refs := make([]models.ArtistRef, 0, len(artists))
	for _, a := range artists {
		refs = append(refs, models.ArtistRef{ID: string(a.ID), Name: a.Name})
	}
	return refs
}

func images(imgs []spotify.Image) []models.Image {
	out := make([]models.Image, 0, len(imgs))
	for _, img := range imgs {
		out = append(out, models.Image{URL: img.URL, Height: int(img.Height), Width: int(img.Width)})
	}
	return out
}

// apiError classifies an upstream failure. A 401 means the access token is no longer accepted.
func apiError(op string, err error) error {
	var (
		apiErr   spotify.Error
		apiErrP  *spotify.Error
		tokenErr *oauth2.RetrieveError
	)

	switch {
	case errors.As(err, &apiErr):
		return statusError(op, apiErr.Status, apiErr.Message)
	case errors.As(err, &apiErrP):
		return statusError(op, apiErrP.Status, apiErrP.Message)
	case errors.As(err, &tokenErr):
		return fmt.Errorf("%w: %s: %w", shared.ErrTokenExpired, op, err)
	}
	return fmt.Errorf("%w: %s: %w", shared.ErrAPIRequest, op, err)
}

func statusError(op string, status int, message string) error {
	if status == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s: %s", shared.ErrTokenExpired, op, message)
	}
	return fmt.Errorf("%w: %s: status %d: %s", shared.ErrAPIRequest, op, status, message)
}

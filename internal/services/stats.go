package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/statify/internal/models"
	"github.com/desertthunder/statify/internal/shared"
)

// StatsService answers the stats endpoints for a signed in user.
type StatsService struct {
	tokens *TokenManager
	api    APIFactory
	stats  StatStore
	logger *log.Logger
}

// NewStatsService creates a [StatsService].
func NewStatsService(tokens *TokenManager, api APIFactory, stats StatStore, logger *log.Logger) *StatsService {
	return &StatsService{tokens: tokens, api: api, stats: stats, logger: logger}
}

// withAPI calls fn with an authorized client. When Spotify rejects the token the
// token is refreshed once and fn is retried.
func withAPI[T any](ctx context.Context, s *StatsService, user *models.User, fn func(StatsAPI) (T, error)) (T, error) {
	var zero T

	tok, err := s.tokens.Token(ctx, user)
	if err != nil {
		return zero, err
	}

	result, err := fn(s.api(ctx, tok))
	if !errors.Is(err, shared.ErrTokenExpired) {
		return result, err
	}

	s.logger.Info("access token rejected, refreshing", "user", user.ID())
	tok, err = s.tokens.ForceRefresh(ctx, user)
	if err != nil {
		return zero, err
	}
	return fn(s.api(ctx, tok))
}

func (s *StatsService) save(ctx context.Context, user *models.User, timeRange models.TimeRange, dataType string, v any) error {
	stat, err := models.NewUserStat(user.ID(), timeRange, dataType, v)
	if err != nil {
		return err
	}
	if err := s.stats.Create(ctx, stat); err != nil {
		return fmt.Errorf("failed to save %s snapshot: %w", dataType, err)
	}
	return nil
}

// Profile returns the user's Spotify profile.
func (s *StatsService) Profile(ctx context.Context, user *models.User) (*models.Profile, error) {
	return withAPI(ctx, s, user, func(api StatsAPI) (*models.Profile, error) {
		return api.Profile(ctx)
	})
}

// TopArtists fetches and records the user's top artists.
func (s *StatsService) TopArtists(ctx context.Context, user *models.User, timeRange models.TimeRange, limit int) (*models.TopArtists, error) {
	limit = ClampLimit(limit, DefaultLimit)
	result, err := withAPI(ctx, s, user, func(api StatsAPI) (*models.TopArtists, error) {
		return api.TopArtists(ctx, timeRange, limit)
	})
	if err != nil {
		return nil, err
	}

	if err := s.save(ctx, user, timeRange, models.DataArtists, result); err != nil {
		return nil, err
	}
	return result, nil
}

// TopTracks fetches and records the user's top tracks.
func (s *StatsService) TopTracks(ctx context.Context, user *models.User, timeRange models.TimeRange, limit int) (*models.TopTracks, error) {
	limit = ClampLimit(limit, DefaultLimit)
	result, err := withAPI(ctx, s, user, func(api StatsAPI) (*models.TopTracks, error) {
		return api.TopTracks(ctx, timeRange, limit)
	})
	if err != nil {
		return nil, err
	}

	if err := s.save(ctx, user, timeRange, models.DataTracks, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Top dispatches on itemType to [StatsService.TopArtists] or [StatsService.TopTracks].
func (s *StatsService) Top(ctx context.Context, user *models.User, itemType models.ItemType, timeRange models.TimeRange, limit int) (any, error) {
	switch itemType {
	case models.ItemArtists:
		return s.TopArtists(ctx, user, timeRange, limit)
	case models.ItemTracks:
		return s.TopTracks(ctx, user, timeRange, limit)
	}
	return nil, fmt.Errorf("%w: item type %q", shared.ErrInvalidArgument, itemType)
}

// TopGenres counts genres across the user's top 50 artists.
func (s *StatsService) TopGenres(ctx context.Context, user *models.User, timeRange models.TimeRange) (*models.TopGenres, error) {
	artists, err := withAPI(ctx, s, user, func(api StatsAPI) (*models.TopArtists, error) {
		return api.TopArtists(ctx, timeRange, MaxLimit)
	})
	if err != nil {
		return nil, err
	}

	result := &models.TopGenres{Items: CountGenres(artists.Items)}
	if err := s.save(ctx, user, timeRange, models.DataGenres, result); err != nil {
		return nil, err
	}
	return result, nil
}

// TopAlbums groups the user's top tracks by album.
func (s *StatsService) TopAlbums(ctx context.Context, user *models.User, timeRange models.TimeRange, limit int) (*models.TopAlbums, error) {
	limit = ClampLimit(limit, DefaultAlbumLimit)
	tracks, err := withAPI(ctx, s, user, func(api StatsAPI) (*models.TopTracks, error) {
		return api.TopTracks(ctx, timeRange, limit)
	})
	if err != nil {
		return nil, err
	}

	result := &models.TopAlbums{Items: GroupAlbums(tracks.Items)}
	if err := s.save(ctx, user, timeRange, models.DataAlbums, result); err != nil {
		return nil, err
	}
	return result, nil
}

// RecentlyPlayed returns the user's recent plays. Nothing is recorded.
func (s *StatsService) RecentlyPlayed(ctx context.Context, user *models.User, limit int) (*models.RecentlyPlayed, error) {
	limit = ClampLimit(limit, DefaultLimit)
	return withAPI(ctx, s, user, func(api StatsAPI) (*models.RecentlyPlayed, error) {
		return api.RecentlyPlayed(ctx, limit)
	})
}

// SavedStats lists the user's snapshots, newest first.
func (s *StatsService) SavedStats(ctx context.Context, user *models.User, filter models.StatsFilter) ([]models.StatSnapshot, error) {
	stats, err := s.stats.List(ctx, user.ID(), filter)
	if err != nil {
		return nil, err
	}

	snapshots := make([]models.StatSnapshot, 0, len(stats))
	for _, stat := range stats {
		snapshots = append(snapshots, stat.Snapshot())
	}
	return snapshots, nil
}

// CountGenres counts each genre once per artist, ordered by count then name.
func CountGenres(artists []models.Artist) []models.GenreCount {
	counts := make(map[string]int)
	for _, artist := range artists {
		seen := make(map[string]bool, len(artist.Genres))
		for _, genre := range artist.Genres {
			if genre == "" || seen[genre] {
				continue
			}
			seen[genre] = true
			counts[genre]++
		}
	}

	genres := make([]models.GenreCount, 0, len(counts))
	for name, count := range counts {
		genres = append(genres, models.GenreCount{Name: name, Count: count})
	}

	sort.Slice(genres, func(i, j int) bool {
		if genres[i].Count != genres[j].Count {
			return genres[i].Count > genres[j].Count
		}
		return genres[i].Name < genres[j].Name
	})
	return genres
}

// GroupAlbums collects tracks under their album in first-seen order, then orders albums by
// track count. Albums with equal counts keep their first-seen order.
func GroupAlbums(tracks []models.Track) []models.AlbumSummary {
	index := make(map[string]int)
	albums := []models.AlbumSummary{}

	for _, track := range tracks {
		if track.Album == nil || track.Album.ID == "" {
			continue
		}

		i, ok := index[track.Album.ID]
		if !ok {
			artists := make([]string, 0, len(track.Album.Artists))
			for _, a := range track.Album.Artists {
				artists = append(artists, a.Name)
			}
			if len(artists) == 0 {
				artists = track.ArtistNames()
			}

			imgs := track.Album.Images
			if imgs == nil {
				imgs = []models.Image{}
			}

			i = len(albums)
			index[track.Album.ID] = i
			albums = append(albums, models.AlbumSummary{
				ID:          track.Album.ID,
				Name:        track.Album.Name,
				Images:      imgs,
				Artists:     artists,
				ReleaseDate: track.Album.ReleaseDate,
				Tracks:      []string{},
			})
		}
		albums[i].Tracks = append(albums[i].Tracks, track.Name)
	}

	sort.SliceStable(albums, func(i, j int) bool {
		return len(albums[i].Tracks) > len(albums[j].Tracks)
	})
	return albums
}

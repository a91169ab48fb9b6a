package testing

import (
	"context"
	"sync"

	"github.com/desertthunder/statify/internal/models"
)

// MockStatsAPI is a test double for services.StatsAPI.
//
// Err, when set, is returned by every call. FailFirst is returned by the first call only.
type MockStatsAPI struct {
	ProfileData *models.Profile
	Artists     []models.Artist
	Tracks      []models.Track
	Plays       []models.RecentPlay

	Err       error
	FailFirst error

	mu     sync.Mutex
	calls  map[string]int
	limits map[string]int
	ranges map[string]models.TimeRange
}

func (m *MockStatsAPI) record(op string, tr models.TimeRange, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.calls == nil {
		m.calls = make(map[string]int)
		m.limits = make(map[string]int)
		m.ranges = make(map[string]models.TimeRange)
	}

	total := 0
	for _, n := range m.calls {
		total += n
	}

	m.calls[op]++
	m.limits[op] = limit
	m.ranges[op] = tr

	if m.Err != nil {
		return m.Err
	}
	if total == 0 && m.FailFirst != nil {
		return m.FailFirst
	}
	return nil
}

// Calls returns how many times op ("profile", "top_artists", "top_tracks", "recently_played") was called.
func (m *MockStatsAPI) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// LastLimit returns the limit passed to the most recent call of op.
func (m *MockStatsAPI) LastLimit(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limits[op]
}

// LastRange returns the time range passed to the most recent call of op.
func (m *MockStatsAPI) LastRange(op string) models.TimeRange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ranges[op]
}

func (m *MockStatsAPI) Profile(ctx context.Context) (*models.Profile, error) {
	if err := m.record("profile", "", 0); err != nil {
		return nil, err
	}
	if m.ProfileData == nil {
		return &models.Profile{ID: "mock-user", DisplayName: "Mock User", Images: []models.Image{}}, nil
	}
	return m.ProfileData, nil
}

func (m *MockStatsAPI) TopArtists(ctx context.Context, tr models.TimeRange, limit int) (*models.TopArtists, error) {
	if err := m.record("top_artists", tr, limit); err != nil {
		return nil, err
	}
	items := m.Artists[:min(limit, len(m.Artists))]
	return &models.TopArtists{Items: items, Total: len(m.Artists), Limit: limit}, nil
}

func (m *MockStatsAPI) TopTracks(ctx context.Context, tr models.TimeRange, limit int) (*models.TopTracks, error) {
	if err := m.record("top_tracks", tr, limit); err != nil {
		return nil, err
	}
	items := m.Tracks[:min(limit, len(m.Tracks))]
	return &models.TopTracks{Items: items, Total: len(m.Tracks), Limit: limit}, nil
}

func (m *MockStatsAPI) RecentlyPlayed(ctx context.Context, limit int) (*models.RecentlyPlayed, error) {
	if err := m.record("recently_played", "", limit); err != nil {
		return nil, err
	}
	items := m.Plays[:min(limit, len(m.Plays))]
	return &models.RecentlyPlayed{Items: items, Limit: limit}, nil
}

// SampleArtists returns three artists whose genres overlap.
func SampleArtists() []models.Artist {
	return []models.Artist{
		{ID: "artist-1", Name: "Artist One", Genres: []string{"indie rock", "dream pop"}, Popularity: 70, Images: []models.Image{}},
		{ID: "artist-2", Name: "Artist Two", Genres: []string{"indie rock", "shoegaze"}, Popularity: 60, Images: []models.Image{}},
		{ID: "artist-3", Name: "Artist Three", Genres: []string{"dream pop", "indie rock", "indie rock"}, Popularity: 50, Images: []models.Image{}},
	}
}

// SampleTracks returns four tracks spread over three albums; album-2 holds two of them.
func SampleTracks() []models.Track {
	album := func(id, name string) *models.AlbumRef {
		return &models.AlbumRef{
			ID:          id,
			Name:        name,
			ReleaseDate: "2020-01-01",
			Artists:     []models.ArtistRef{{ID: "artist-1", Name: "Artist One"}},
			Images:      []models.Image{{URL: "https://i.scdn.co/image/" + id}},
		}
	}

	artists := []models.ArtistRef{{ID: "artist-1", Name: "Artist One"}}
	return []models.Track{
		{ID: "track-1", Name: "Song A", DurationMs: 200000, Artists: artists, Album: album("album-1", "Album One")},
		{ID: "track-2", Name: "Song B", DurationMs: 180000, Artists: artists, Album: album("album-2", "Album Two")},
		{ID: "track-3", Name: "Song C", DurationMs: 210000, Artists: artists, Album: album("album-2", "Album Two")},
		{ID: "track-4", Name: "Song D", DurationMs: 190000, Artists: artists, Album: album("album-3", "Album Three")},
	}
}

package models

import "fmt"

// TimeRange is the period over which Spotify computes a user's affinities.
type TimeRange string

const (
	ShortTerm  TimeRange = "short_term"  // roughly the last 4 weeks
	MediumTerm TimeRange = "medium_term" // roughly the last 6 months
	LongTerm   TimeRange = "long_term"   // several years of history

	DefaultTimeRange = MediumTerm
)

// TimeRanges lists every accepted value, shortest first.
var TimeRanges = []TimeRange{ShortTerm, MediumTerm, LongTerm}

func (t TimeRange) String() string { return string(t) }

// ParseTimeRange returns the [TimeRange] named by s; an empty string yields [DefaultTimeRange].
func ParseTimeRange(s string) (TimeRange, error) {
	if s == "" {
		return DefaultTimeRange, nil
	}
	for _, r := range TimeRanges {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("invalid time range %q: must be one of short_term, medium_term, long_term", s)
}

// ItemType selects which top items to fetch.
type ItemType string

const (
	ItemArtists ItemType = "artists"
	ItemTracks  ItemType = "tracks"
)

func (t ItemType) String() string { return string(t) }

// ParseItemType accepts "artists" or "tracks".
func ParseItemType(s string) (ItemType, error) {
	switch ItemType(s) {
	case ItemArtists, ItemTracks:
		return ItemType(s), nil
	}
	return "", fmt.Errorf("invalid item type %q: must be 'artists' or 'tracks'", s)
}

// DataType values stored on [UserStat] snapshots.
const (
	DataArtists = "artists"
	DataTracks  = "tracks"
	DataGenres  = "genres"
	DataAlbums  = "albums"
)

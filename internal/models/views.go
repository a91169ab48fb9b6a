package models

import (
	"encoding/json"
	"time"
)

// Image is artwork attached to a profile, artist or album.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height,omitempty"`
	Width  int    `json:"width,omitempty"`
}

type Followers struct {
	Total int `json:"total"`
}

// Profile is the Spotify account of the signed in user.
type Profile struct {
	ID           string            `json:"id"`
	DisplayName  string            `json:"display_name"`
	Email        string            `json:"email,omitempty"`
	Country      string            `json:"country,omitempty"`
	Product      string            `json:"product,omitempty"`
	URI          string            `json:"uri,omitempty"`
	ExternalURLs map[string]string `json:"external_urls,omitempty"`
	Followers    Followers         `json:"followers"`
	Images       []Image           `json:"images"`
}

// ImageURL returns the first image URL, or an empty string.
func (p Profile) ImageURL() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].URL
}

// ArtistRef names an artist credited on a track or album.
type ArtistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Artist struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	URI        string    `json:"uri,omitempty"`
	Genres     []string  `json:"genres"`
	Popularity int       `json:"popularity"`
	Followers  Followers `json:"followers"`
	Images     []Image   `json:"images"`
}

// AlbumRef is the album a track appears on.
type AlbumRef struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	ReleaseDate string      `json:"release_date,omitempty"`
	Artists     []ArtistRef `json:"artists,omitempty"`
	Images      []Image     `json:"images"`
}

type Track struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	URI        string      `json:"uri,omitempty"`
	DurationMs int         `json:"duration_ms"`
	Popularity int         `json:"popularity,omitempty"`
	Explicit   bool        `json:"explicit"`
	Artists    []ArtistRef `json:"artists"`
	Album      *AlbumRef   `json:"album,omitempty"`
}

// ArtistNames returns the credited artist names in order.
func (t Track) ArtistNames() []string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return names
}

// GenreCount is the number of top artists tagged with a genre.
type GenreCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// AlbumSummary groups top tracks by the album they belong to.
type AlbumSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Images      []Image  `json:"images"`
	Artists     []string `json:"artists"`
	ReleaseDate string   `json:"release_date"`
	Tracks      []string `json:"tracks"`
}

type RecentPlay struct {
	Track    Track     `json:"track"`
	PlayedAt time.Time `json:"played_at"`
}

type TopArtists struct {
	Items []Artist `json:"items"`
	Total int      `json:"total"`
	Limit int      `json:"limit"`
}

type TopTracks struct {
	Items []Track `json:"items"`
	Total int     `json:"total"`
	Limit int     `json:"limit"`
}

type TopGenres struct {
	Items []GenreCount `json:"items"`
}

type TopAlbums struct {
	Items []AlbumSummary `json:"items"`
}

type RecentlyPlayed struct {
	Items []RecentPlay `json:"items"`
	Limit int          `json:"limit"`
}

// StatSnapshot is a saved [UserStat] as returned by the stats endpoint.
type StatSnapshot struct {
	ID        string          `json:"id"`
	DataType  string          `json:"data_type"`
	TimeRange string          `json:"time_range"`
	Data      json.RawMessage `json:"data"`
	CreatedAt string          `json:"created_at"`
}

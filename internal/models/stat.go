package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// UserStat is a point-in-time snapshot of a stats response.
type UserStat struct {
	id        string
	userID    string
	timeRange TimeRange
	dataType  string
	data      json.RawMessage
	createdAt time.Time
}

// NewUserStat marshals v as the snapshot payload.
func NewUserStat(userID string, timeRange TimeRange, dataType string, v any) (*UserStat, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s snapshot: %w", dataType, err)
	}
	return &UserStat{
		userID:    userID,
		timeRange: timeRange,
		dataType:  dataType,
		data:      data,
		createdAt: time.Now().UTC(),
	}, nil
}

func (s *UserStat) ID() string            { return s.id }
func (s *UserStat) UserID() string        { return s.userID }
func (s *UserStat) TimeRange() TimeRange  { return s.timeRange }
func (s *UserStat) DataType() string      { return s.dataType }
func (s *UserStat) Data() json.RawMessage { return s.data }
func (s *UserStat) CreatedAt() time.Time  { return s.createdAt }

// UpdatedAt equals CreatedAt; snapshots are immutable.
func (s *UserStat) UpdatedAt() time.Time { return s.createdAt }

func (s *UserStat) SetID(id string)              { s.id = id }
func (s *UserStat) SetUserID(id string)          { s.userID = id }
func (s *UserStat) SetTimeRange(t TimeRange)     { s.timeRange = t }
func (s *UserStat) SetDataType(t string)         { s.dataType = t }
func (s *UserStat) SetData(data json.RawMessage) { s.data = data }
func (s *UserStat) SetCreatedAt(t time.Time)     { s.createdAt = t }

func (s *UserStat) Validate() error {
	if s.userID == "" {
		return fmt.Errorf("user_id is required")
	}
	if _, err := ParseTimeRange(string(s.timeRange)); err != nil || s.timeRange == "" {
		return fmt.Errorf("time_range is required and must be valid")
	}
	switch s.dataType {
	case DataArtists, DataTracks, DataGenres, DataAlbums:
	default:
		return fmt.Errorf("invalid data_type %q", s.dataType)
	}
	if !json.Valid(s.data) {
		return fmt.Errorf("data must be valid JSON")
	}
	return nil
}

// Snapshot returns the API representation.
func (s *UserStat) Snapshot() StatSnapshot {
	return StatSnapshot{
		ID:        s.id,
		DataType:  s.dataType,
		TimeRange: string(s.timeRange),
		Data:      s.data,
		CreatedAt: s.createdAt.UTC().Format(time.RFC3339),
	}
}

// StatsFilter narrows saved snapshot lookups. Empty fields match everything.
type StatsFilter struct {
	DataType  string
	TimeRange string
	Limit     int
}

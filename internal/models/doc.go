// Package models defines domain entities and persistence interfaces for the statify service.
//
// The package contains two categories of types:
//
// 1. Views: JSON shapes returned by the HTTP API, built from Spotify Web API responses
//   - [Profile] : the authenticated user's Spotify profile
//   - [Artist], [Track] : top items for a [TimeRange]
//   - [GenreCount], [AlbumSummary] : aggregates computed from top artists and tracks
//   - [RecentPlay] : a recently played track with its play time
//
// 2. Persistent Entities: Database-backed models
//   - [User] : a Spotify account with its OAuth tokens
//   - [UserStat] : a snapshot of a stats response, scoped by user
//   - [Session] : a browser session tied to a user
//
// Persistent entities implement the [Model] interface providing IDs, timestamps and validation.
// The [Repository] interface defines standard CRUD operations for database access.
package models

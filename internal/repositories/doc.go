// Package repositories implements SQLite and Postgres persistence for statify's entities.
//
// Key Implementations:
//   - [UserRepository] : Spotify accounts, with OAuth tokens encrypted through [shared.TokenCipher]
//   - [StatsRepository] : saved snapshots of stats responses, newest first
//   - [SessionRepository] : browser sessions with expiry and cleanup
//
// Deleting a user cascades to its snapshots and sessions.
package repositories

// Package services talks to Spotify on behalf of signed in users and shapes the responses
// into statify's views.
//
// # Authentication
//
// [SpotifyAuth] wraps an [oauth2.Config] with Spotify's endpoints and the scopes statify needs.
// It builds authorize URLs, exchanges codes and refreshes tokens.
//
// [TokenManager] hands out valid access tokens for a [models.User], refreshing and
// persisting them when they are about to expire.
//
// # Stats
//
// [StatsAPI] is the read-only slice of the Web API statify uses. [SpotifyAPI] implements it
// with github.com/zmb3/spotify/v2.
//
// [StatsService] combines the two: each call obtains a token, queries Spotify, derives
// aggregates (genre counts, album frequency) and records a snapshot.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : the user has no access token
//   - [shared.ErrNoRefreshToken] : the token expired and cannot be refreshed
//   - [shared.ErrRefreshFailed] : Spotify rejected the refresh
//   - [shared.ErrTokenExpired] : Spotify answered 401
//   - [shared.ErrAPIRequest] : any other upstream failure
package services

// Package server provides HTTP routing, middleware, sessions and OAuth helpers for statify.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Middleware
//
//   - [RequestIDMiddleware] : X-Request-ID propagation
//   - [LoggingMiddleware] : one log line per request
//   - [RecoverMiddleware] : panic recovery with Sentry reporting
//   - [RateLimitMiddleware] : per client token buckets
//   - [CORSMiddleware] : credentialed CORS for the frontend origins
//   - [Metrics] : Prometheus request counters and latency histograms
//
// # Sessions
//
// [SessionManager] keeps a random session ID in an HttpOnly cookie and the session itself in the
// database. [SessionManager.RequireSession] gates authenticated routes and exposes the user ID via [UserID].
//
// # OAuth
//
// Browser logins carry their state in a short-lived cookie ([IssueState], [VerifyState]).
//
// Command line logins use [OAuthHandler], which serves a single loopback callback and delivers the
// token through a channel.
package server

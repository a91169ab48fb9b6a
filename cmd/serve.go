package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/statify/internal/repositories"
	"github.com/desertthunder/statify/internal/server"
	"github.com/desertthunder/statify/internal/shared"
	"github.com/desertthunder/statify/internal/web"
	"github.com/getsentry/sentry-go"
	"github.com/urfave/cli/v3"
)

const defaultCleanupInterval = time.Hour

// Serve runs the HTTP API until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}

	if config.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              config.Sentry.DSN,
			Environment:      config.Sentry.Environment,
			AttachStacktrace: true,
		}); err != nil {
			return fmt.Errorf("failed to initialize sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
		r.logger.Info("sentry enabled", "environment", config.Sentry.Environment)
	}

	a, err := r.openApp(config)
	if err != nil {
		return err
	}
	defer a.Close()

	handler, err := web.New(web.Options{
		FrontendURL:    config.Server.FrontendURL,
		AllowedOrigins: config.Server.AllowedOrigins,
		CookieSecure:   config.Server.CookieSecure,
		RateLimit: server.RateLimitConfig{
			RequestsPerMinute: config.RateLimit.RequestsPerMinute,
			Burst:             config.RateLimit.Burst,
			TrustedProxies:    config.RateLimit.TrustedProxies,
		},
		Auth:     a.auth,
		Users:    a.users,
		Tokens:   a.tokens,
		Stats:    a.stats,
		Sessions: server.NewSessionManager(a.sessions, config.Server.SessionTTL.Duration, config.Server.CookieSecure, r.logger),
		DB:       a.db,
		Logger:   shared.WithLogger(r.logger, "component", "http"),
	})
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go every(ctx, cmd.Duration("cleanup-interval"), func(ctx context.Context) {
		r.pruneSessions(ctx, a.sessions)
	})

	return server.Serve(ctx, server.NewHTTPServer(config.Server.Addr(), handler), r.logger)
}

func (r *Runner) pruneSessions(ctx context.Context, sessions *repositories.SessionRepository) {
	n, err := sessions.Cleanup(ctx, time.Now())
	if err != nil {
		r.logger.Warn("session cleanup failed", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("pruned expired sessions", "count", n)
	}
}

// every calls fn each interval until ctx is done. A non-positive interval disables it.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

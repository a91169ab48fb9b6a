package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/statify/internal/models"
	"github.com/urfave/cli/v3"
)

// UsersList prints every stored user without tokens.
func (r *Runner) UsersList(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	s, err := r.openStore(config)
	if err != nil {
		return err
	}
	defer s.Close()

	users, err := s.users.List(ctx, nil)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		public := make([]models.PublicUser, 0, len(users))
		for _, u := range users {
			public = append(public, u.Public())
		}
		return r.writeJSON(public, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Found %d users", len(users)))
	r.writePlain("\n")
	for i, u := range users {
		r.writePlain("%d. %s\n", i+1, u.DisplayName())
		r.writePlain("   Spotify ID: %s\n", u.SpotifyID())
		r.writePlain("   ID: %s\n", u.ID())
		if u.Email() != "" {
			r.writePlain("   Email: %s\n", u.Email())
		}
		switch {
		case u.AccessToken() == "":
			r.writePlain("   Token: none\n")
		case u.TokenExpiration().IsZero():
			r.writePlain("   Token: no expiry recorded\n")
		case u.TokenExpired(time.Now(), 0):
			r.writePlain("   Token: expired %s\n", u.TokenExpiration().Format(time.RFC3339))
		default:
			r.writePlain("   Token: valid until %s\n", u.TokenExpiration().Format(time.RFC3339))
		}
		r.writePlain("\n")
	}

	return nil
}

// UsersDelete removes a user together with their snapshots and sessions.
func (r *Runner) UsersDelete(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	s, err := r.openStore(config)
	if err != nil {
		return err
	}
	defer s.Close()

	user, err := s.users.GetBySpotifyID(ctx, cmd.String("spotify-id"))
	if err != nil {
		return err
	}

	stats, err := s.stats.DeleteByUser(ctx, user.ID())
	if err != nil {
		return err
	}
	sessions, err := s.sessions.DeleteByUser(ctx, user.ID())
	if err != nil {
		return err
	}
	if err := s.users.Delete(ctx, user.ID()); err != nil {
		return err
	}

	r.logger.Info("user deleted", "spotify_id", user.SpotifyID(), "stats", stats, "sessions", sessions)
	return r.writePlain("✓ Deleted %s (%d snapshots, %d sessions)\n", user.SpotifyID(), stats, sessions)
}

// SessionsPrune deletes expired sessions.
func (r *Runner) SessionsPrune(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	s, err := r.openStore(config)
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.sessions.Cleanup(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to prune sessions: %w", err)
	}
	return r.writePlain("✓ Removed %d expired sessions\n", n)
}

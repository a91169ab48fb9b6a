// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the statify HTTP API",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "cleanup-interval",
				Usage: "How often expired sessions are pruned",
				Value: defaultCleanupInterval,
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles setup operations for the database, config and encryption key.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write a config file from the template",
				Action: r.SetupConfig,
			},
			{
				Name:   "key",
				Usage:  "Generate a TOKEN_ENCRYPTION_KEY",
				Action: r.SetupKey,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// loginCommand signs a Spotify account in from the terminal.
func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in with Spotify using a local callback server",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the stored user as JSON",
			},
		},
		Action: r.Login,
	}
}

// usersCommand manages stored users.
func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Manage stored users",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List users",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.UsersList,
			},
			{
				Name:  "delete",
				Usage: "Delete a user with their stats and sessions",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "spotify-id",
						Usage:    "Spotify user ID",
						Required: true,
					},
				},
				Action: r.UsersDelete,
			},
		},
	}
}

// sessionsCommand manages browser sessions.
func sessionsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "Manage browser sessions",
		Commands: []*cli.Command{
			{
				Name:   "prune",
				Usage:  "Delete expired sessions",
				Action: r.SessionsPrune,
			},
		},
	}
}

// statsCommand reads and fetches listening stats.
func statsCommand(r *Runner) *cli.Command {
	formatFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: table, csv, markdown or json",
			Value:   "table",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write to this file instead of stdout",
		},
	}

	return &cli.Command{
		Name:  "stats",
		Usage: "Listening statistics",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show saved snapshots",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "spotify-id",
						Usage:    "Spotify user ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "type",
						Usage: "Snapshot type: artists, tracks, genres or albums",
					},
					&cli.StringFlag{
						Name:  "time-range",
						Usage: "short_term, medium_term or long_term",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of snapshots",
						Value: 10,
					},
				}, formatFlags...),
				Action: r.StatsShow,
			},
			{
				Name:  "top",
				Usage: "Fetch top items from Spotify and save a snapshot",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "spotify-id",
						Usage:    "Spotify user ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "type",
						Usage: "artists, tracks, genres or albums",
						Value: "artists",
					},
					&cli.StringFlag{
						Name:  "time-range",
						Usage: "short_term, medium_term or long_term",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of items (1-50)",
					},
				}, formatFlags...),
				Action: r.StatsTop,
			},
		},
	}
}

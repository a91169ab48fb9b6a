package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/statify/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
//
// A config file is created from the template when none exists at --config.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := r.path(cmd)
	if r.config == nil {
		if _, err := os.Stat(configPath); err != nil {
			r.logger.Info("config file not found, creating from template", "path", configPath)
			if err := shared.CreateConfigFile(configPath); err != nil {
				r.logger.Warn("failed to create config file, using defaults", "error", err)
			} else {
				r.logger.Info("config file created", "path", configPath)
			}
		}
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	r.logger.Info("initializing database", "driver", driver(config), "path", config.Database.Path)

	db, err := r.openDB(config)
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db, driver(config)); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := shared.CurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return r.writePlain("✓ Database ready at schema version %d\n", version)
}

// SetupConfig writes the template config file to --config.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := r.path(cmd)
	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}

	r.writePlain("✓ Config written to %s\n", configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.spotify client_id and client_secret\n")
	r.writePlain("2. Run 'statify setup key' and set security.token_encryption_key\n")
	r.writePlain("3. Run 'statify setup database'\n")
	return nil
}

// SetupKey prints a new token encryption key.
func (r *Runner) SetupKey(ctx context.Context, cmd *cli.Command) error {
	key, err := shared.GenerateKey()
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	return r.writePlain("TOKEN_ENCRYPTION_KEY=%s\n", key)
}

// SetupRollback rolls back the most recent migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := r.openDB(config)
	if err != nil {
		return err
	}
	defer db.Close()

	before, err := shared.CurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if err := shared.RollbackMigration(db, driver(config)); err != nil {
		return err
	}

	after, err := shared.CurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	r.logger.Info("migration rolled back", "from", before, "to", after)
	return r.writePlain("✓ Rolled back schema version %d (now %d)\n", before, after)
}

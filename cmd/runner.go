package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/statify/internal/repositories"
	"github.com/desertthunder/statify/internal/services"
	"github.com/desertthunder/statify/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultLoginTimeout = 2 * time.Minute

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config       *shared.Config
	configPath   string
	httpClient   *http.Client
	logger       *log.Logger
	output       io.Writer
	errOutput    io.Writer
	authOpts     []services.AuthOption
	openBrowser  func(string) error
	loginTimeout time.Duration
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	// Config skips loading the config file and environment when set.
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	// ErrOutput receives progress messages that must stay out of machine-readable output.
	ErrOutput io.Writer

	// AuthOptions are applied after the HTTP client when building the Spotify client.
	AuthOptions  []services.AuthOption
	OpenBrowser  func(string) error
	LoginTimeout time.Duration
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.ErrOutput == nil {
		opts.ErrOutput = os.Stderr
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = defaultLoginTimeout
	}

	return &Runner{
		config:       opts.Config,
		configPath:   opts.ConfigPath,
		httpClient:   opts.HTTPClient,
		logger:       opts.Logger,
		output:       opts.Output,
		errOutput:    opts.ErrOutput,
		authOpts:     opts.AuthOptions,
		openBrowser:  opts.OpenBrowser,
		loginTimeout: opts.LoginTimeout,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, setupCommand, loginCommand, usersCommand, sessionsCommand, statsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// path returns the config file path from the --config flag, falling back to the runner's.
func (r *Runner) path(cmd *cli.Command) string {
	if cmd != nil {
		if p := cmd.String("config"); p != "" {
			return p
		}
	}
	if r.configPath != "" {
		return r.configPath
	}
	return "config.toml"
}

// loadConfig reads .env, the config file (defaults when it does not exist) and environment overrides.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}

	if err := shared.LoadDotEnv(); err != nil {
		r.logger.Warn("failed to load .env", "error", err)
	}

	configPath := r.path(cmd)
	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			return nil, err
		}
	} else {
		r.logger.Debug("config file not found, using defaults", "path", configPath)
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := shared.SetLogLevelString(r.logger, config.Log.Level); err != nil {
		r.logger.Warn("invalid log level, keeping default", "level", config.Log.Level)
	}

	r.config = config
	r.configPath = configPath
	return config, nil
}

func driver(config *shared.Config) string {
	if config.Database.Driver == "" {
		return shared.DriverSQLite
	}
	return config.Database.Driver
}

// openDB opens the configured database without migrating it.
func (r *Runner) openDB(config *shared.Config) (*sql.DB, error) {
	db, err := shared.OpenDatabase(driver(config), config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
	return db, nil
}

// store bundles the database and its repositories.
type store struct {
	db       *sql.DB
	users    *repositories.UserRepository
	stats    *repositories.StatsRepository
	sessions *repositories.SessionRepository
}

func (s *store) Close() error {
	return s.db.Close()
}

// openStore opens and migrates the database and builds the repositories.
//
// An encryption key that is set but malformed is an error rather than a silent fallback to plaintext.
func (r *Runner) openStore(config *shared.Config) (*store, error) {
	cipher, err := shared.NewTokenCipher(config.Security.TokenEncryptionKey, r.logger)
	if err != nil {
		return nil, err
	}

	db, err := r.openDB(config)
	if err != nil {
		return nil, err
	}

	if err := shared.RunMigrations(db, driver(config)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	opt := repositories.WithDriver(driver(config))
	return &store{
		db:       db,
		users:    repositories.NewUserRepository(db, cipher, opt),
		stats:    repositories.NewStatsRepository(db, opt),
		sessions: repositories.NewSessionRepository(db, opt),
	}, nil
}

// app is a migrated store plus the Spotify services built on it.
type app struct {
	*store
	auth   *services.SpotifyAuth
	tokens *services.TokenManager
	stats  *services.StatsService
}

func (r *Runner) openApp(config *shared.Config) (*app, error) {
	opts := append([]services.AuthOption{services.WithHTTPClient(r.httpClient)}, r.authOpts...)
	auth, err := services.NewSpotifyAuth(config.Credentials.Spotify.Map(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify client: %w", err)
	}

	s, err := r.openStore(config)
	if err != nil {
		return nil, err
	}

	tokens := services.NewTokenManager(auth, s.users, r.logger)
	return &app{
		store:  s,
		auth:   auth,
		tokens: tokens,
		stats:  services.NewStatsService(tokens, auth.Client, s.stats, r.logger),
	}, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

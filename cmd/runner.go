package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/animx/internal/repositories"
	"github.com/desertthunder/animx/internal/services"
	"github.com/desertthunder/animx/internal/shared"
	"github.com/desertthunder/animx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// providerTimeout bounds a single provider HTTP call.
const providerTimeout = 30 * time.Second

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Stores and the engine are built on first use so commands that need neither never touch the database.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	db         *sql.DB
	provider   *services.DashScopeService
	engine     tasks.Generator
	auth       *services.AuthService
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	DB         *sql.DB               // optional, opened from config when nil
	Engine     tasks.Generator       // optional, built from config when nil
	Auth       *services.AuthService // optional, built from config when nil
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: providerTimeout}
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		db:         opts.DB,
		engine:     opts.Engine,
		auth:       opts.Auth,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, convertCommand, text2ImgCommand, taskCommand, batchCommand,
		userCommand, historyCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads .env files and the config file, overlays the environment and sets the log level.
//
// A missing config file is not an error; the embedded defaults apply.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if err := shared.LoadEnv(cmd.String("env-file")); err != nil {
		r.logger.Warn("failed to load env file", "error", err)
	}

	r.configPath = cmd.String("config")
	config, err := shared.LoadConfig(r.configPath)
	switch {
	case errors.Is(err, shared.ErrMissingConfig):
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		config = shared.DefaultConfig()
	case err != nil:
		return ctx, err
	}

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return ctx, err
	}
	if err := config.Validate(); err != nil {
		return ctx, err
	}
	r.config = config

	level, err := shared.ParseLevel(config.Log.Level)
	if err != nil {
		return ctx, err
	}
	if cmd.Bool("debug") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)

	if config.EnsureJWTSecret() {
		r.logger.Warn("auth.jwt_secret is empty, using a random secret; tokens end with this process")
	}
	return ctx, nil
}

// After releases stores opened by the command.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	return r.Close(ctx)
}

// SetLogger swaps the logger, e.g. to a file while a TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases the database and auth store.
func (r *Runner) Close(ctx context.Context) error {
	var errs []error
	if r.auth != nil {
		errs = append(errs, r.auth.Close(ctx))
		r.auth = nil
	}
	if r.db != nil {
		errs = append(errs, r.db.Close())
		r.db = nil
	}
	return errors.Join(errs...)
}

// database opens and migrates the configured SQLite database once.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, err
	}
	r.db = db
	return db, nil
}

// providerService builds the DashScope client once.
func (r *Runner) providerService() *services.DashScopeService {
	if r.provider == nil {
		r.provider = services.NewDashScopeService(r.config.Provider, r.httpClient, r.logger)
	}
	return r.provider
}

// generator builds the engine with history recording when the database is available.
func (r *Runner) generator() tasks.Generator {
	if r.engine != nil {
		return r.engine
	}

	opts := tasks.EngineOpts{
		Client:         r.providerService(),
		Interval:       r.config.Polling.Interval(),
		MaxAttempts:    r.config.Polling.MaxAttempts,
		RequestTimeout: r.config.Polling.RequestTimeout(),
		Logger:         r.logger,
	}
	if db, err := r.database(); err != nil {
		r.logger.Warn("history disabled", "error", err)
	} else {
		opts.Recorder = repositories.NewGenerationRepository(db)
	}

	r.engine = tasks.NewGenerationEngine(opts)
	return r.engine
}

// authService builds the auth service for the configured backend, nil for "none".
func (r *Runner) authService(ctx context.Context) (*services.AuthService, error) {
	if r.auth != nil {
		return r.auth, nil
	}

	var store services.UserStore
	switch strings.ToLower(r.config.Auth.Backend) {
	case "mongo":
		s, err := repositories.NewMongoUserStore(ctx, r.config.Auth.MongoURI, r.config.Auth.MongoDatabase, r.logger)
		if err != nil {
			return nil, err
		}
		store = s
	case "sqlite":
		db, err := r.database()
		if err != nil {
			return nil, err
		}
		store = repositories.NewUserRepository(db)
	default:
		return nil, nil
	}

	tokens := services.NewTokenService(r.config.Auth.JWTSecret, r.config.Auth.TokenTTL())
	r.auth = services.NewAuthService(store, tokens, r.logger)
	return r.auth, nil
}

// requireAuth is [Runner.authService] for commands that cannot run without accounts.
func (r *Runner) requireAuth(ctx context.Context) (*services.AuthService, error) {
	auth, err := r.authService(ctx)
	if err != nil {
		return nil, err
	}
	if auth == nil {
		return nil, fmt.Errorf("%w: auth backend is disabled (auth.backend = %q)", shared.ErrServiceUnavailable, r.config.Auth.Backend)
	}
	return auth, nil
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

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

	"github.com/charmbracelet/log"
	"github.com/desertthunder/kbx/internal/archive"
	"github.com/desertthunder/kbx/internal/feed"
	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/notify"
	"github.com/desertthunder/kbx/internal/repositories"
	"github.com/desertthunder/kbx/internal/services"
	"github.com/desertthunder/kbx/internal/session"
	"github.com/desertthunder/kbx/internal/shared"
	"github.com/desertthunder/kbx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	httpClient *http.Client
	backend    services.Backend
	objects    archive.ObjectAPI

	db    *sql.DB
	hub   *feed.Hub
	local *repositories.Backend
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Backend and Objects replace the configured board backend and S3 client.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	HTTPClient *http.Client
	Backend    services.Backend
	Objects    archive.ObjectAPI
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		httpClient: opts.HTTPClient,
		backend:    opts.Backend,
		objects:    opts.Objects,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, tokenCommand, boardCommand, listCommand, cardCommand, archiveCommand, seedCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig resolves the configuration once, before any command runs.
//
// A missing config file is not an error: defaults and KBX_* variables apply.
func (r *Runner) loadConfig(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if r.config != nil {
		return ctx, nil
	}
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	var config *shared.Config
	if _, err := os.Stat(r.configPath); err == nil {
		if config, err = shared.LoadConfig(r.configPath); err != nil {
			return ctx, err
		}
	} else {
		config = shared.DefaultConfig()
		if err := shared.ApplyEnv(config); err != nil {
			return ctx, err
		}
		if err := config.Validate(); err != nil {
			return ctx, err
		}
	}

	shared.SetLogLevel(r.logger, shared.ParseLogLevel(config.Log.Level))
	r.config = config
	return ctx, nil
}

// SetLogger replaces the logger used by the runner and everything it opens afterwards.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// openDatabase opens the configured SQLite database without touching its schema.
func (r *Runner) openDatabase() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	if r.config.Backend != shared.BackendLocal {
		return nil, fmt.Errorf("%w: command requires the local backend, got %q", shared.ErrInvalidConfig, r.config.Backend)
	}

	path := r.config.Database.Path
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if !strings.HasPrefix(path, ":memory:") {
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	}
	r.db = db
	return db, nil
}

// openLocal opens the SQLite database, applies pending migrations and wraps it
// in a backend publishing to an in-process change feed.
func (r *Runner) openLocal() (*repositories.Backend, error) {
	if r.local != nil {
		return r.local, nil
	}

	db, err := r.openDatabase()
	if err != nil {
		return nil, err
	}
	if err := shared.RunMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.hub = feed.NewHub(r.config.Realtime.Buffer, shared.WithLogger(r.logger, "component", "feed"))
	r.local = repositories.NewBackend(db, r.hub, r.config.User.ID, shared.WithLogger(r.logger, "component", "backend"))
	r.logger.Debug("opened local backend", "path", r.config.Database.Path, "user", r.config.User.ID)
	return r.local, nil
}

// openBackend returns the board backend selected by configuration.
func (r *Runner) openBackend() (services.Backend, error) {
	if r.backend != nil {
		return r.backend, nil
	}

	switch r.config.Backend {
	case shared.BackendRemote:
		base := r.httpClient
		if base == nil {
			base = &http.Client{Timeout: r.config.Remote.Timeout}
		}
		r.backend = services.NewClient(r.config.Remote.URL, r.config.Remote.Token, base, shared.WithLogger(r.logger, "component", "client"))
	default:
		local, err := r.openLocal()
		if err != nil {
			return nil, err
		}
		r.backend = local
	}
	return r.backend, nil
}

// openArchive connects to the configured snapshot bucket.
func (r *Runner) openArchive(ctx context.Context) (*archive.Archive, error) {
	objects := r.objects
	if objects == nil {
		client, err := archive.NewClient(ctx, r.config.S3)
		if err != nil {
			return nil, err
		}
		objects = client
	}
	return archive.New(objects, r.config.S3, shared.WithLogger(r.logger, "component", "archive")), nil
}

// Close releases the database and change feed opened by commands.
func (r *Runner) Close() {
	if r.hub != nil {
		r.hub.Close()
		r.hub = nil
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			r.logger.Warn("failed to close database", "error", err)
		}
		r.db = nil
	}
	r.local = nil
	r.backend = nil
}

// newSession creates a session whose notices go to the logger and to rec.
func (r *Runner) newSession(extra ...notify.Notifier) (*session.Session, *notify.Recorder, error) {
	backend, err := r.openBackend()
	if err != nil {
		return nil, nil, err
	}

	rec := &notify.Recorder{}
	notifier := notify.Multi{rec, notify.Logger{L: r.logger}}
	notifier = append(notifier, extra...)
	s := session.New(backend, notifier, session.OptionsFromConfig(r.config), r.logger)
	return s, rec, nil
}

// boardRun is a started session, optionally with a board selected.
type boardRun struct {
	*session.Session
	board models.Board
	rec   *notify.Recorder
}

// settle waits for the queued writes and reports the first failure they raised.
func (b *boardRun) settle() error {
	b.Coordinator.Wait()
	return firstFailure(b.rec)
}

// withBoard runs fn against a started session and settles the writes it queued.
//
// When ref is set the matching board is selected first.
func (r *Runner) withBoard(ctx context.Context, ref string, fn func(*boardRun) error) error {
	s, rec, err := r.newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("failed to load boards: %w", err)
	}

	run := &boardRun{Session: s, rec: rec}
	if ref != "" {
		if run.board, err = findBoard(s, ref); err != nil {
			return err
		}
		if err := s.SelectBoard(ctx, run.board.ID); err != nil {
			return fmt.Errorf("failed to open board: %w", err)
		}
	}

	if err := fn(run); err != nil {
		return err
	}
	return run.settle()
}

// progress logs task updates at debug level until stop is called.
func (r *Runner) progress() (updates chan<- tasks.ProgressUpdate, stop func()) {
	ch := make(chan tasks.ProgressUpdate, 32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range ch {
			r.logger.Debug(u.Message, "phase", u.Phase, "step", u.Step, "total", u.Total)
		}
	}()
	return ch, func() {
		close(ch)
		<-done
	}
}

func firstFailure(rec *notify.Recorder) error {
	for _, n := range rec.Notices() {
		if n.Level != notify.Failure {
			continue
		}
		if n.Err != nil {
			return fmt.Errorf("%s: %w", n.Message, n.Err)
		}
		return errors.New(n.Message)
	}
	return nil
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

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

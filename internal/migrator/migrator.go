// Package migrator applies versioned SQL migrations with goose.
//
// Migration files follow goose's naming and annotation rules: <version>_<name>.sql containing
// "-- +goose Up" and, optionally, "-- +goose Down" sections.
package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/lock"
)

// Result describes one applied migration.
type Result struct {
	Version  int64
	Path     string
	Duration time.Duration
}

// Status describes one migration source and whether the database has it.
type Status struct {
	Version   int64
	Path      string
	Applied   bool
	AppliedAt time.Time
}

// Migrator brings a database schema up to date.
type Migrator interface {
	Up(ctx context.Context, db *sql.DB) ([]Result, error)
}

// Option configures a GooseMigrator.
type Option func(*GooseMigrator)

// WithSessionLock serializes concurrent migrators against the same database with a Postgres
// advisory lock.
func WithSessionLock(enabled bool) Option {
	return func(m *GooseMigrator) { m.sessionLock = enabled }
}

// WithVerbose makes goose log every statement it runs.
func WithVerbose(verbose bool) Option {
	return func(m *GooseMigrator) { m.verbose = verbose }
}

// WithLogger sets the logger used for progress messages.
func WithLogger(logger *slog.Logger) Option {
	return func(m *GooseMigrator) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// GooseMigrator runs goose's provider against Postgres.
type GooseMigrator struct {
	fsys        fs.FS
	sessionLock bool
	verbose     bool
	logger      *slog.Logger
}

var _ Migrator = (*GooseMigrator)(nil)

// New returns a migrator reading migration files from the root of fsys.
func New(fsys fs.FS, opts ...Option) *GooseMigrator {
	m := &GooseMigrator{
		fsys:   fsys,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FromDir returns a migrator over the files in dir. The directory must exist.
func FromDir(dir string, opts ...Option) (*GooseMigrator, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("migrations directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("migrations path %s is not a directory", dir)
	}
	return New(os.DirFS(dir), opts...), nil
}

// Up applies every pending migration. A source without migrations is not an error.
func (m *GooseMigrator) Up(ctx context.Context, db *sql.DB) ([]Result, error) {
	provider, err := m.provider(db)
	if errors.Is(err, goose.ErrNoMigrations) {
		m.logger.Info("No migrations found, skipping")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	applied, err := provider.Up(ctx)
	results := make([]Result, 0, len(applied))
	for _, r := range applied {
		if r.Error != nil {
			continue
		}
		results = append(results, Result{
			Version:  r.Source.Version,
			Path:     r.Source.Path,
			Duration: r.Duration,
		})
		m.logger.Info("Migration applied", "version", r.Source.Version, "path", r.Source.Path, "duration", r.Duration)
	}
	if err != nil {
		return results, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return results, nil
}

// Status lists every migration source with its applied state.
func (m *GooseMigrator) Status(ctx context.Context, db *sql.DB) ([]Status, error) {
	provider, err := m.provider(db)
	if errors.Is(err, goose.ErrNoMigrations) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	statuses, err := provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration status: %w", err)
	}
	out := make([]Status, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, Status{
			Version:   s.Source.Version,
			Path:      s.Source.Path,
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}

// Version returns the highest applied migration version, 0 when none.
func (m *GooseMigrator) Version(ctx context.Context, db *sql.DB) (int64, error) {
	provider, err := m.provider(db)
	if errors.Is(err, goose.ErrNoMigrations) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return provider.GetDBVersion(ctx)
}

func (m *GooseMigrator) provider(db *sql.DB) (*goose.Provider, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	if m.fsys == nil {
		return nil, errors.New("migrations filesystem must not be nil")
	}

	opts := []goose.ProviderOption{goose.WithVerbose(m.verbose)}
	if m.sessionLock {
		locker, err := lock.NewPostgresSessionLocker()
		if err != nil {
			return nil, fmt.Errorf("failed to create session locker: %w", err)
		}
		opts = append(opts, goose.WithSessionLocker(locker))
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, m.fsys, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	return provider, nil
}

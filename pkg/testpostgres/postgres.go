// Package testpostgres runs a disposable, migrated Postgres database in Docker for tests.
//
//	func TestTodos(t *testing.T) {
//		pg := testpostgres.NewT(t, "./migrations")
//		pool, err := pg.Pool(t.Context())
//		...
//		// the container is removed when the test finishes
//	}
//
// Migrations are goose SQL files named <version>_<name>.sql, e.g. 00001_create_todos.sql. Each
// file needs a "-- +goose Up" annotation and may carry a "-- +goose Down" section; plain SQL
// files without the annotations fail to load.
package testpostgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	dterrors "dockertester/internal/errors"
	"dockertester/internal/migrator"
	"dockertester/internal/poll"
	dockerruntime "dockertester/internal/runtime"
	"dockertester/pkg/dockertester"
	"dockertester/pkg/runtime"
)

const (
	// DefaultImage is the default PostgreSQL image.
	DefaultImage = "postgres:14-alpine"

	// DefaultMaxConns is the default size of pools returned by Pool.
	DefaultMaxConns = 5

	// DefaultReadyAttempts is how many times the server is dialed before giving up.
	DefaultReadyAttempts = 10

	containerPort = "5432"
)

var pollStep = time.Second

// TestPostgres contains the connection information of a disposable database.
type TestPostgres struct {
	Host        string
	Port        uint16
	User        string
	Password    string
	DBName      string
	ContainerID string

	rt          runtime.ContainerRuntime
	ownsRuntime bool
	maxConns    int32
	logger      *slog.Logger

	mu    sync.Mutex
	pools []*pgxpool.Pool
	dbs   []*sql.DB

	closeOnce sync.Once
	closeErr  error
}

// New starts a Postgres container, creates a fresh database in it and applies the migrations
// found in migrationPath. An empty migrationPath skips migrations unless WithMigrationsFS is
// given. Close must be called to remove the container.
func New(ctx context.Context, migrationPath string, opts ...Option) (_ *TestPostgres, retErr error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, dterrors.NewConfigError("Invalid Postgres option", err.Error(), "", err)
		}
	}

	rt, ownsRuntime := cfg.runtime, false
	if rt == nil {
		dockerRuntime, err := dockerruntime.NewDockerRuntime()
		if err != nil {
			return nil, dterrors.NewDockerError(
				"Docker is not reachable",
				err.Error(),
				"Start Docker or point DOCKER_HOST at a running daemon",
				err,
			)
		}
		rt, ownsRuntime = dockerRuntime, true
	}

	user := "postgres_user_" + uuid.NewString()
	password := "postgres_password_" + uuid.NewString()
	dbname := "test_postgres_" + uuid.NewString()

	container, err := dockertester.StartContainer(ctx, rt, cfg.image, containerPort,
		"-e", "POSTGRES_USER="+user,
		"-e", "POSTGRES_PASSWORD="+password,
		"-l", runtime.ManagedLabelKey+"=postgres",
	)
	if err != nil {
		if ownsRuntime {
			err = multierr.Append(err, rt.Close())
		}
		return nil, err
	}

	tp := &TestPostgres{
		Host:        container.Host,
		Port:        container.Port,
		User:        user,
		Password:    password,
		DBName:      dbname,
		ContainerID: container.ID,
		rt:          rt,
		ownsRuntime: ownsRuntime,
		maxConns:    cfg.maxConns,
		logger:      cfg.logger,
	}
	defer func() {
		if retErr != nil {
			retErr = multierr.Append(retErr, tp.Close(context.WithoutCancel(ctx)))
		}
	}()

	if err := tp.waitReady(ctx, cfg.readyAttempts); err != nil {
		return nil, dterrors.NewDatabaseError(
			"Postgres did not accept connections",
			err.Error(),
			"The image may need more time to initialize; raise the ready attempts",
			err,
		)
	}

	if err := tp.createDatabase(ctx); err != nil {
		return nil, dterrors.NewDatabaseError("Failed to create database "+dbname, err.Error(), "", err)
	}

	m, err := newMigrator(migrationPath, cfg)
	if err != nil {
		return nil, dterrors.NewMigrationError("Failed to load migrations", err.Error(), "Check the migrations path", err)
	}
	if m != nil {
		if err := tp.migrate(ctx, m); err != nil {
			return nil, dterrors.NewMigrationError(
				"Failed to migrate the database",
				err.Error(),
				"Migration files must be goose SQL files: <version>_<name>.sql with a -- +goose Up section",
				err,
			)
		}
	}

	return tp, nil
}

// NewT is New for tests: setup failures fail t, and the container is removed with t.Cleanup.
func NewT(t testing.TB, migrationPath string, opts ...Option) *TestPostgres {
	t.Helper()

	tp, err := New(context.Background(), migrationPath, opts...)
	require.NoError(t, err, "failed to start test postgres")

	t.Cleanup(func() {
		if err := tp.Close(context.Background()); err != nil {
			t.Errorf("failed to stop Postgres container: %v", err)
		}
	})
	return tp
}

// ServerURL is the connection string of the server, without a database.
func (p *TestPostgres) ServerURL() string {
	if p.Password == "" {
		return fmt.Sprintf("postgres://%s@%s:%d", p.User, p.Host, p.Port)
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d", p.User, p.Password, p.Host, p.Port)
}

// URL is the connection string of the test database.
func (p *TestPostgres) URL() string {
	return fmt.Sprintf("%s/%s", p.ServerURL(), p.DBName)
}

// Pool opens a connection pool to the test database. It is closed by Close.
func (p *TestPostgres) Pool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(p.URL())
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	cfg.MaxConns = p.maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p.mu.Lock()
	p.pools = append(p.pools, pool)
	p.mu.Unlock()
	return pool, nil
}

// DB opens a database/sql handle to the test database through the pgx driver. It is closed by
// Close.
func (p *TestPostgres) DB() (*sql.DB, error) {
	db, err := p.openDB(p.URL())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(int(p.maxConns))

	p.mu.Lock()
	p.dbs = append(p.dbs, db)
	p.mu.Unlock()
	return db, nil
}

// Close closes pools handed out by this instance, then stops and removes the container.
// Calling it more than once is safe.
func (p *TestPostgres) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		pools, dbs := p.pools, p.dbs
		p.pools, p.dbs = nil, nil
		p.mu.Unlock()

		for _, pool := range pools {
			pool.Close()
		}
		var err error
		for _, db := range dbs {
			err = multierr.Append(err, db.Close())
		}

		err = multierr.Append(err, dockertester.StopContainer(ctx, p.rt, p.ContainerID))
		if p.ownsRuntime {
			err = multierr.Append(err, p.rt.Close())
		}
		if err == nil {
			p.logger.Info("Postgres container dropped", "containerID", p.ContainerID)
		}
		p.closeErr = err
	})
	return p.closeErr
}

func (p *TestPostgres) waitReady(ctx context.Context, attempts int) error {
	return poll.Do(ctx, attempts, pollStep, func(ctx context.Context, attempt int) error {
		conn, err := pgx.Connect(ctx, p.ServerURL())
		if err != nil {
			p.logger.Info("Postgres is not ready", "attempt", attempt, "error", err)
			return err
		}
		if err := conn.Close(ctx); err != nil {
			return err
		}
		p.logger.Info("Postgres is ready to go", "host", p.Host, "port", p.Port)
		return nil
	})
}

func (p *TestPostgres) createDatabase(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, p.ServerURL())
	if err != nil {
		return fmt.Errorf("cannot connect to Postgres: %w", err)
	}
	defer conn.Close(context.WithoutCancel(ctx))

	if _, err := conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{p.DBName}.Sanitize()); err != nil {
		return err
	}
	p.logger.Info("Postgres created database", "database", p.DBName)
	return nil
}

func (p *TestPostgres) migrate(ctx context.Context, m migrator.Migrator) (retErr error) {
	db, err := p.openDB(p.URL())
	if err != nil {
		return err
	}
	defer func() {
		retErr = multierr.Append(retErr, db.Close())
	}()

	results, err := m.Up(ctx, db)
	if err != nil {
		return err
	}
	p.logger.Info("Postgres database migrated", "database", p.DBName, "applied", len(results))
	return nil
}

func (p *TestPostgres) openDB(url string) (*sql.DB, error) {
	connConfig, err := pgx.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	return stdlib.OpenDB(*connConfig), nil
}

func newMigrator(migrationPath string, cfg *config) (migrator.Migrator, error) {
	opts := []migrator.Option{
		migrator.WithLogger(cfg.logger),
		migrator.WithSessionLock(cfg.sessionLock),
	}
	if cfg.migrationsFS != nil {
		return migrator.New(cfg.migrationsFS, opts...), nil
	}
	if migrationPath == "" {
		return nil, nil
	}
	return migrator.FromDir(migrationPath, opts...)
}

package testpostgres

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"dockertester/pkg/runtime"
)

// Option configures a TestPostgres.
type Option interface {
	apply(*config) error
}

type optionFunc func(*config) error

func (f optionFunc) apply(cfg *config) error {
	return f(cfg)
}

type config struct {
	image         string
	runtime       runtime.ContainerRuntime
	logger        *slog.Logger
	migrationsFS  fs.FS
	maxConns      int32
	readyAttempts int
	sessionLock   bool
}

func defaultConfig() *config {
	return &config{
		image:         DefaultImage,
		logger:        slog.Default(),
		maxConns:      DefaultMaxConns,
		readyAttempts: DefaultReadyAttempts,
	}
}

// WithImage sets the PostgreSQL image.
func WithImage(image string) Option {
	return optionFunc(func(cfg *config) error {
		image = strings.TrimSpace(image)
		if image == "" {
			return errors.New("image must not be empty")
		}
		cfg.image = image
		return nil
	})
}

// WithRuntime uses a shared container runtime. The TestPostgres does not close it.
func WithRuntime(rt runtime.ContainerRuntime) Option {
	return optionFunc(func(cfg *config) error {
		if rt == nil {
			return errors.New("runtime must not be nil")
		}
		cfg.runtime = rt
		return nil
	})
}

// WithLogger sets the logger for progress messages. A nil logger silences them.
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(cfg *config) error {
		if logger == nil {
			logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}
		cfg.logger = logger
		return nil
	})
}

// WithMigrationsFS reads migrations from fsys (e.g. an embed.FS sub tree) instead of the
// migration path.
func WithMigrationsFS(fsys fs.FS) Option {
	return optionFunc(func(cfg *config) error {
		if fsys == nil {
			return errors.New("migrations filesystem must not be nil")
		}
		cfg.migrationsFS = fsys
		return nil
	})
}

// WithMaxConns sets the pool size returned by Pool. Defaults to 5.
func WithMaxConns(n int32) Option {
	return optionFunc(func(cfg *config) error {
		if n <= 0 {
			return fmt.Errorf("max connections must be positive: %d", n)
		}
		cfg.maxConns = n
		return nil
	})
}

// WithReadyAttempts sets how many connection attempts are made before giving up. Defaults to 10.
func WithReadyAttempts(n int) Option {
	return optionFunc(func(cfg *config) error {
		if n <= 0 {
			return fmt.Errorf("ready attempts must be positive: %d", n)
		}
		cfg.readyAttempts = n
		return nil
	})
}

// WithSessionLock takes a Postgres advisory lock while migrating.
func WithSessionLock(enabled bool) Option {
	return optionFunc(func(cfg *config) error {
		cfg.sessionLock = enabled
		return nil
	})
}

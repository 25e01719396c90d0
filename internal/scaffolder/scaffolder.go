// Package scaffolder writes the files a project needs to start using dockertester: a profile,
// an example .env file and a migrations directory holding a first migration.
package scaffolder

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"dockertester/internal/migrator"
)

//go:embed templates/*.tmpl
var templates embed.FS

// outputNames maps templates to the files they produce.
var outputNames = map[string]string{
	"dockertester.yaml.tmpl": "dockertester.yaml",
	"env.example.tmpl":       ".env.example",
}

// FirstMigration is the name of the migration created by Scaffold.
const FirstMigration = "initial_schema"

// Options controls Scaffold.
type Options struct {
	// Dir is the project directory.
	Dir string
	// MigrationsDir is relative to Dir.
	MigrationsDir string
	Image         string
	DryRun        bool
	// Force overwrites existing files.
	Force bool
	Now   time.Time
	Out   io.Writer
}

type templateData struct {
	Image         string
	MigrationsDir string
}

// Scaffold renders the profile templates into opts.Dir and creates the first migration.
func Scaffold(opts Options) error {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.MigrationsDir == "" {
		opts.MigrationsDir = "migrations"
	}
	if opts.Image == "" {
		opts.Image = "postgres:14-alpine"
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	if err := validatePath(opts.MigrationsDir); err != nil {
		return fmt.Errorf("invalid migrations directory: %w", err)
	}

	data := templateData{Image: opts.Image, MigrationsDir: "./" + filepath.ToSlash(filepath.Clean(opts.MigrationsDir))}
	migrationsDir := filepath.Join(opts.Dir, opts.MigrationsDir)

	if opts.DryRun {
		return performDryRun(opts, migrationsDir)
	}

	if err := os.MkdirAll(opts.Dir, 0750); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}

	err := fs.WalkDir(templates, "templates", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		return renderFile(name, filepath.Join(opts.Dir, outputNames[path.Base(name)]), data, opts.Force)
	})
	if err != nil {
		return err
	}

	if hasMigrations(migrationsDir) {
		fmt.Fprintf(opts.Out, "Keeping existing migrations in %s\n", migrationsDir)
		return nil
	}
	created, err := migrator.CreateMigration(migrationsDir, FirstMigration, opts.Now)
	if err != nil {
		return err
	}
	fmt.Fprintf(opts.Out, "Created %s\n", created)
	return nil
}

// performDryRun prints what would be written without touching the filesystem.
func performDryRun(opts Options, migrationsDir string) error {
	for _, name := range []string{"dockertester.yaml", ".env.example"} {
		fmt.Fprintf(opts.Out, "DRY RUN: Would create file: %s\n", filepath.Join(opts.Dir, name))
	}
	if hasMigrations(migrationsDir) {
		fmt.Fprintf(opts.Out, "DRY RUN: Would keep existing migrations in %s\n", migrationsDir)
		return nil
	}
	fmt.Fprintf(opts.Out, "DRY RUN: Would create migration: %s\n",
		filepath.Join(migrationsDir, opts.Now.UTC().Format("20060102150405")+"_"+FirstMigration+".sql"))
	return nil
}

func renderFile(name, dst string, data templateData, force bool) error {
	tmpl, err := template.ParseFS(templates, name)
	if err != nil {
		return fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render template %s: %w", name, err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(dst, flags, 0644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%s already exists (use --force to overwrite)", dst)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer f.Close()

	if _, err := buf.WriteTo(f); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}

func hasMigrations(dir string) bool {
	matches, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	return err == nil && len(matches) > 0
}

// validatePath ensures the path is safe and doesn't contain directory traversal sequences
func validatePath(p string) error {
	if filepath.IsAbs(p) {
		return fmt.Errorf("path must be relative: %s", p)
	}
	cleanPath := filepath.Clean(p)
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path contains directory traversal: %s", p)
	}
	return nil
}

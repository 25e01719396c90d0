package testpostgres

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dterrors "dockertester/internal/errors"
	"dockertester/internal/migrator"
	dockerruntime "dockertester/internal/runtime"
)

//go:embed testdata/migrations/*.sql
var embeddedMigrations embed.FS

func requireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Docker test in short mode")
	}
	rt, err := dockerruntime.NewDockerRuntime()
	if err != nil {
		t.Skipf("Skipping test: Docker not available: %s", err)
	}
	require.NoError(t, rt.Close())
}

func TestTestPostgres_Docker(t *testing.T) {
	requireDocker(t)

	pg := NewT(t, "testdata/migrations")
	ctx := context.Background()

	pool, err := pg.Pool(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, DefaultMaxConns, pool.Config().MaxConns)

	_, err = pool.Exec(ctx, "INSERT INTO todos (title) VALUES ($1)", "test")
	require.NoError(t, err)

	var (
		id    int
		title string
	)
	err = pool.QueryRow(ctx, "SELECT id, title FROM todos").Scan(&id, &title)
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	assert.Equal(t, "test", title)
}

func TestTestPostgres_DockerEmbeddedMigrations(t *testing.T) {
	requireDocker(t)

	migrations, err := fs.Sub(embeddedMigrations, "testdata/migrations")
	require.NoError(t, err)

	pg := NewT(t, "", WithMigrationsFS(migrations), WithMaxConns(2))

	db, err := pg.DB()
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRowContext(context.Background(), "SELECT count(*) FROM todos").Scan(&count))
	assert.Zero(t, count)

	version, err := migrator.New(migrations).Version(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestTestPostgres_DockerClose(t *testing.T) {
	requireDocker(t)

	ctx := context.Background()
	pg, err := New(ctx, "")
	require.NoError(t, err)
	id := pg.ContainerID

	require.NoError(t, pg.Close(ctx))
	require.NoError(t, pg.Close(ctx))

	rt, err := dockerruntime.NewDockerRuntime()
	require.NoError(t, err)
	defer rt.Close()

	managed, err := rt.ListManaged(ctx)
	require.NoError(t, err)
	assert.NotContains(t, managed, id)
}

func TestTestPostgres_DockerUnannotatedMigration(t *testing.T) {
	requireDocker(t)

	dir := t.TempDir()
	plain := "CREATE TABLE todos (id serial PRIMARY KEY, title text NOT NULL);\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "00001_create_todos.sql"), []byte(plain), 0644))

	_, err := New(context.Background(), dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dterrors.ErrMigrationFailed))
}

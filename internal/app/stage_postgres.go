package app

import (
	"context"
	"log/slog"

	"dockertester/pkg/profile"
	"dockertester/pkg/runtime"
	"dockertester/pkg/testpostgres"
)

// PostgresStage starts the profile's migrated Postgres database.
type PostgresStage struct {
	spec   profile.PostgresSpec
	rt     runtime.ContainerRuntime
	logger *slog.Logger
}

// NewPostgresStage creates a new postgres stage instance
func NewPostgresStage(spec profile.PostgresSpec, rt runtime.ContainerRuntime, logger *slog.Logger) *PostgresStage {
	return &PostgresStage{spec: spec, rt: rt, logger: logger}
}

func (s *PostgresStage) Name() string {
	return KindPostgres
}

// Execute starts the database. The container is left running and recorded in state.
func (s *PostgresStage) Execute(ctx context.Context, state *SessionState) error {
	pg, err := testpostgres.New(ctx, s.spec.Migrations,
		testpostgres.WithRuntime(s.rt),
		testpostgres.WithImage(s.spec.Image),
		testpostgres.WithMaxConns(s.spec.MaxConns),
		testpostgres.WithReadyAttempts(s.spec.ReadyAttempts),
		testpostgres.WithSessionLock(s.spec.SessionLock),
		testpostgres.WithLogger(s.logger),
	)
	if err != nil {
		return err
	}

	state.Track(TrackedContainer{
		ID:    pg.ContainerID,
		Stage: s.Name(),
		Kind:  KindPostgres,
		Image: s.spec.Image,
		Host:  pg.Host,
		Port:  pg.Port,
		URL:   pg.URL(),
	})
	slog.Info("Postgres stage completed successfully", "containerID", pg.ContainerID, "database", pg.DBName)
	return nil
}

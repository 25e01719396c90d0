package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dockertester/internal/app"
	"dockertester/internal/ui"
	"dockertester/pkg/testpostgres"
)

func newPostgresCmd() *cobra.Command {
	var (
		migrations, image string
		hold              bool
	)

	cmd := &cobra.Command{
		Use:   "postgres",
		Short: "Start a disposable, migrated Postgres database",
		Long: `Postgres starts a Postgres container with random credentials, creates a fresh database
and applies the goose migrations found in --migrations. With --hold the command waits for
Ctrl-C and then removes the container; otherwise the container is recorded in the state
file for 'dockertester down'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProfile()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("migrations") {
				migrations = p.Postgres.Migrations
			}
			if !cmd.Flags().Changed("image") {
				image = p.Postgres.Image
			}

			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pg, err := testpostgres.New(ctx, migrations,
				testpostgres.WithRuntime(rt),
				testpostgres.WithImage(image),
				testpostgres.WithMaxConns(p.Postgres.MaxConns),
				testpostgres.WithReadyAttempts(p.Postgres.ReadyAttempts),
				testpostgres.WithSessionLock(p.Postgres.SessionLock),
				testpostgres.WithLogger(slog.Default()),
			)
			if err != nil {
				return err
			}

			tracked := app.TrackedContainer{
				ID:    pg.ContainerID,
				Kind:  app.KindPostgres,
				Image: image,
				Host:  pg.Host,
				Port:  pg.Port,
				URL:   pg.URL(),
			}
			console := ui.NewConsoleWithWriters(cmd.OutOrStdout(), cmd.ErrOrStderr())
			app.PrintContainer(console, tracked)

			if !hold {
				return app.Record(p.StateFile, tracked)
			}

			console.PrintInfo("Press Ctrl-C to remove the database")
			<-ctx.Done()
			fmt.Fprintln(cmd.OutOrStdout())
			return pg.Close(context.WithoutCancel(ctx))
		},
	}

	cmd.Flags().StringVar(&migrations, "migrations", "", "Directory of goose SQL migrations (default from profile)")
	cmd.Flags().StringVar(&image, "image", "", "Postgres image (default from profile)")
	cmd.Flags().BoolVar(&hold, "hold", false, "Wait for Ctrl-C, then remove the container")
	return cmd
}

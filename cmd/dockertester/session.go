package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dockertester/internal/app"
	"dockertester/internal/migrator"
	"dockertester/internal/scaffolder"
	"dockertester/internal/ui"
)

func newUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Start every container described by the profile",
		Long: `Up starts the profile's Postgres database and extra containers. Progress is recorded in
the state file after each container, so an interrupted run resumes where it stopped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := newOptions(cmd)
			if err != nil {
				return err
			}
			defer opts.Runtime.Close()

			_, err = app.Up(cmd.Context(), opts)
			return err
		},
	}
}

func newDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Remove every container recorded in the state file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := newOptions(cmd)
			if err != nil {
				return err
			}
			defer opts.Runtime.Close()

			return app.Down(cmd.Context(), opts)
		},
	}
}

func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove every container started by dockertester, tracked or not",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := newOptions(cmd)
			if err != nil {
				return err
			}
			defer opts.Runtime.Close()

			removed, err := app.Prune(cmd.Context(), opts)
			opts.Console.PrintSuccess(fmt.Sprintf("Removed %d container(s)", removed))
			return err
		},
	}
}

func newInitCmd() *cobra.Command {
	var opts scaffolder.Options

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create dockertester.yaml and a migrations directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Out = cmd.OutOrStdout()
			if err := scaffolder.Scaffold(opts); err != nil {
				return err
			}

			console := ui.NewConsoleWithWriters(cmd.OutOrStdout(), cmd.ErrOrStderr())
			if opts.DryRun {
				console.PrintSuccess("Dry run completed successfully.")
			} else {
				console.PrintSuccess("Project initialized. Add migrations and run `dockertester up`.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", ".", "Project directory")
	cmd.Flags().StringVar(&opts.MigrationsDir, "migrations", "migrations", "Migrations directory, relative to --dir")
	cmd.Flags().StringVar(&opts.Image, "image", "postgres:14-alpine", "Postgres image")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Print files that would be created without writing them")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Overwrite existing files")
	return cmd
}

func newNewMigrationCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "new-migration NAME",
		Short: "Create an empty goose SQL migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				p, err := loadProfile()
				if err != nil {
					return err
				}
				dir = p.Postgres.Migrations
			}

			path, err := migrator.CreateMigration(dir, args[0], time.Now())
			if err != nil {
				return err
			}
			ui.NewConsoleWithWriters(cmd.OutOrStdout(), cmd.ErrOrStderr()).PrintSuccess("Created " + path)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Migrations directory (default from profile)")
	return cmd
}

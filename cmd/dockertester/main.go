package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"dockertester/internal/app"
	"dockertester/internal/config"
	dterrors "dockertester/internal/errors"
	dockerruntime "dockertester/internal/runtime"
	"dockertester/internal/ui"
	"dockertester/pkg/profile"
)

// version is set at build time via ldflags
var version = "dev"

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:     "dockertester",
	Short:   "dockertester - disposable Docker containers for tests",
	Version: version,
	Long: `dockertester starts the containers a test suite depends on, prints where to reach
them, runs SQL migrations against Postgres and removes everything again afterwards.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the profile (default ./"+config.DefaultFileName+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newStartCmd(),
		newStopCmd(),
		newPostgresCmd(),
		newMigrateCmd(),
		newUpCmd(),
		newDownCmd(),
		newPruneCmd(),
		newInitCmd(),
		newNewMigrationCmd(),
	)
}

func loadProfile() (*profile.Profile, error) {
	p, err := config.Load(configPath)
	if err != nil {
		return nil, dterrors.NewConfigError(
			"Failed to load dockertester profile",
			err.Error(),
			"Run `dockertester init` to create "+config.DefaultFileName+" or pass --config",
			err,
		)
	}
	return p, nil
}

func newRuntime() (*dockerruntime.DockerRuntime, error) {
	rt, err := dockerruntime.NewDockerRuntime()
	if err != nil {
		return nil, dterrors.NewDockerError(
			"Docker is not reachable",
			err.Error(),
			"Start Docker or point DOCKER_HOST at a running daemon",
			err,
		)
	}
	return rt, nil
}

// newOptions loads the profile and connects to Docker. The caller closes the runtime.
func newOptions(cmd *cobra.Command) (app.Options, error) {
	p, err := loadProfile()
	if err != nil {
		return app.Options{}, err
	}
	rt, err := newRuntime()
	if err != nil {
		return app.Options{}, err
	}
	return app.Options{
		ProfilePath: configPath,
		Profile:     p,
		Runtime:     rt,
		Console:     ui.NewConsoleWithWriters(cmd.OutOrStdout(), cmd.ErrOrStderr()),
		Logger:      slog.Default(),
	}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		dterrors.HandleError(err)
		os.Exit(1)
	}
}

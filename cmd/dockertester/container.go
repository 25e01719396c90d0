package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"dockertester/internal/app"
	dterrors "dockertester/internal/errors"
	"dockertester/internal/ui"
	"dockertester/pkg/dockertester"
)

func newStartCmd() *cobra.Command {
	var (
		image, port, name string
		env, labels       []string
		publish           string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a container and print where to reach it",
		Long: `Start pulls the image, starts a container publishing --port on a random host port
(or --publish) and waits until Docker reports it running. The container is recorded in
the state file so that 'dockertester down' removes it.`,
		Example: "  dockertester start --image redis:7-alpine --port 6379\n" +
			"  dockertester start --image postgres:14-alpine --port 5432 -e POSTGRES_PASSWORD=secret",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProfile()
			if err != nil {
				return err
			}

			runArgs := make([]string, 0, 2*(len(env)+len(labels))+4)
			for _, e := range env {
				runArgs = append(runArgs, "-e", e)
			}
			for _, l := range labels {
				runArgs = append(runArgs, "-l", l)
			}
			if name != "" {
				runArgs = append(runArgs, "--name", name)
			}
			if publish != "" {
				runArgs = append(runArgs, "-p", publish)
			}
			opts, err := dockertester.ParseRunArgs(runArgs)
			if err != nil {
				return dterrors.NewConfigError("Invalid start flags", err.Error(), "Use --publish HOSTPORT and --port for the container port", err)
			}
			opts.Image = image
			opts.ContainerPort = port

			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			c, err := dockertester.Start(cmd.Context(), rt, opts)
			if err != nil {
				return err
			}

			tracked := app.TrackedContainer{
				ID:    c.ID,
				Kind:  app.KindContainer,
				Image: c.Image,
				Host:  c.Host,
				Port:  c.Port,
			}
			app.PrintContainer(ui.NewConsoleWithWriters(cmd.OutOrStdout(), cmd.ErrOrStderr()), tracked)
			return app.Record(p.StateFile, tracked)
		},
	}

	cmd.Flags().StringVar(&image, "image", "", "Image to run (required)")
	cmd.Flags().StringVar(&port, "port", "", "Container port to publish, e.g. 5432 or 5432/tcp (required)")
	cmd.Flags().StringArrayVarP(&env, "env", "e", nil, "Set environment variables (KEY=VALUE)")
	cmd.Flags().StringArrayVarP(&labels, "label", "l", nil, "Set container labels (KEY=VALUE)")
	cmd.Flags().StringVar(&name, "name", "", "Container name")
	cmd.Flags().StringVarP(&publish, "publish", "p", "", "Fixed host port instead of a random one")
	cobra.CheckErr(cmd.MarkFlagRequired("image"))
	cobra.CheckErr(cmd.MarkFlagRequired("port"))
	return cmd
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop ID...",
		Short: "Stop and remove containers with their volumes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProfile()
			if err != nil {
				return err
			}
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			console := ui.NewConsoleWithWriters(cmd.OutOrStdout(), cmd.ErrOrStderr())
			var (
				errs    error
				removed []string
			)
			for _, id := range args {
				if err := dockertester.StopContainer(cmd.Context(), rt, id); err != nil {
					errs = multierr.Append(errs, err)
					continue
				}
				removed = append(removed, id)
				console.PrintSuccess("Removed " + id)
			}
			return multierr.Append(errs, app.Forget(p.StateFile, removed...))
		},
	}
}

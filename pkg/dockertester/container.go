package dockertester

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dterrors "dockertester/internal/errors"
	"dockertester/internal/poll"
	"dockertester/pkg/runtime"
)

// StartAttempts is how many times the container state is checked before giving up.
const StartAttempts = 10

// pollStep is the pause unit between state checks: attempt i is followed by i*pollStep.
var pollStep = time.Second

// StartContainer starts image publishing port on the host and waits until it is running.
// args are `docker run` style flags, see ParseRunArgs.
func StartContainer(ctx context.Context, rt runtime.ContainerRuntime, image, port string, args ...string) (*runtime.Container, error) {
	opts, err := ParseRunArgs(args)
	if err != nil {
		return nil, dterrors.NewConfigError(
			fmt.Sprintf("Invalid arguments for image %s", image),
			err.Error(),
			"Use -e KEY=VALUE, -l KEY=VALUE, --name NAME or -p HOSTPORT",
			err,
		)
	}
	opts.Image = image
	opts.ContainerPort = port
	return Start(ctx, rt, opts)
}

// Start pulls opts.Image if needed, starts the container and waits for it to reach the running
// state. A container that never gets there is removed.
func Start(ctx context.Context, rt runtime.ContainerRuntime, opts runtime.RunOptions) (*runtime.Container, error) {
	if opts.Image == "" {
		return nil, dterrors.NewConfigError("No image given", "", "Pass the image to start, e.g. postgres:14-alpine", fmt.Errorf("image is required"))
	}

	if err := rt.PullImage(ctx, opts.Image); err != nil {
		return nil, dterrors.NewPullError(
			fmt.Sprintf("Failed to pull image %s", opts.Image),
			err.Error(),
			"Check the image name and your registry credentials",
			err,
		)
	}

	container, err := rt.StartContainer(ctx, opts)
	if errors.Is(err, runtime.ErrPortNotBound) {
		return nil, dterrors.NewPortError(
			fmt.Sprintf("Container from %s exposes no host port for %s", opts.Image, opts.ContainerPort),
			err.Error(),
			"Check that the image exposes the port, or pass -p HOSTPORT to bind a fixed one",
			err,
		)
	}
	if err != nil {
		return nil, dterrors.NewStartError(
			fmt.Sprintf("Failed to start container from %s", opts.Image),
			err.Error(),
			"Check that the port is exposed by the image and not already bound on the host",
			err,
		)
	}

	err = poll.Do(ctx, StartAttempts, pollStep, func(ctx context.Context, attempt int) error {
		state, err := rt.ContainerState(ctx, container.ID)
		if err != nil {
			return err
		}
		if state != runtime.StateRunning {
			slog.Info("Waiting for container to start", "containerID", container.ShortID(), "state", state, "attempt", attempt)
			return fmt.Errorf("container %s state %s", container.ShortID(), state)
		}
		return nil
	})
	if err != nil {
		if removeErr := rt.RemoveContainer(context.WithoutCancel(ctx), container.ID); removeErr != nil {
			slog.Error("Failed to remove container that did not start", "containerID", container.ID, "error", removeErr)
		}
		return nil, dterrors.NewStartError(
			fmt.Sprintf("Container from %s did not reach the running state", opts.Image),
			err.Error(),
			"Inspect the container logs; the image may exit immediately without the right environment",
			fmt.Errorf("cannot start the image[%s] container: %w", opts.Image, err),
		)
	}

	slog.Info("Docker started", "image", opts.Image, "containerID", container.ShortID(), "host", container.Address())
	return container, nil
}

// StopContainer stops and removes the container along with its volumes.
func StopContainer(ctx context.Context, rt runtime.ContainerRuntime, id string) error {
	if err := rt.StopContainer(ctx, id); err != nil {
		return dterrors.NewStopError(
			fmt.Sprintf("Failed to stop container %s", id),
			err.Error(),
			"Check the id with `docker ps -a`",
			err,
		)
	}
	if err := rt.RemoveContainer(ctx, id); err != nil {
		return dterrors.NewStopError(
			fmt.Sprintf("Failed to remove container %s", id),
			err.Error(),
			"Remove it manually with `docker rm -v`",
			err,
		)
	}
	return nil
}

// Package app orchestrates the dockertester CLI: it starts the environment described by a
// profile, records what it started in a state file and removes it again.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"go.uber.org/multierr"

	dterrors "dockertester/internal/errors"
	"dockertester/internal/ui"
	"dockertester/pkg/dockertester"
	"dockertester/pkg/profile"
	"dockertester/pkg/runtime"
)

// Options carries what every command needs.
type Options struct {
	ProfilePath string
	Profile     *profile.Profile
	Runtime     runtime.ContainerRuntime
	Console     *ui.Console
	Logger      *slog.Logger
}

func (o Options) console() *ui.Console {
	if o.Console == nil {
		return ui.NewConsole()
	}
	return o.Console
}

// Stages returns the stages of the profile in execution order: Postgres first, then the extra
// containers.
func Stages(p *profile.Profile, rt runtime.ContainerRuntime, logger *slog.Logger) []Stage {
	stages := []Stage{NewPostgresStage(p.Postgres, rt, logger)}
	for _, c := range p.Containers {
		stages = append(stages, NewContainerStage(c, rt))
	}
	return stages
}

// Up starts every stage of the profile not yet recorded in the state file. The state is saved
// after each stage, so a failed run can be resumed with Up or cleaned up with Down.
func Up(ctx context.Context, opts Options) (*SessionState, error) {
	console := opts.console()
	statePath := opts.Profile.StateFile

	state, err := LoadState(statePath)
	if err != nil {
		return nil, dterrors.NewStateError("Failed to load session state", err.Error(), "Delete "+statePath+" if it is corrupted", err)
	}
	if state == nil {
		state = NewState(opts.ProfilePath)
		slog.Info("Starting new dockertester session", "runId", state.RunID, "profile", opts.ProfilePath)
	} else {
		console.PrintWarning(fmt.Sprintf("State file found. Resuming run %s", state.RunID))
		slog.Info("Resuming dockertester session", "runId", state.RunID, "containers", len(state.Containers))
	}

	for i, stage := range Stages(opts.Profile, opts.Runtime, opts.Logger) {
		if state.hasStage(stage.Name()) {
			console.PrintInfo(fmt.Sprintf("Stage %d: %s (skipped - already running)", i+1, stage.Name()))
			continue
		}

		console.PrintInfo(fmt.Sprintf("Stage %d: starting %s", i+1, stage.Name()))
		if err := stage.Execute(ctx, state); err != nil {
			if len(state.Containers) > 0 {
				err = multierr.Append(err, SaveState(statePath, state))
			}
			return state, err
		}

		if err := SaveState(statePath, state); err != nil {
			return state, dterrors.NewStateError("Failed to save session state", err.Error(), "", err)
		}
	}

	for _, c := range state.Containers {
		PrintContainer(console, c)
	}
	console.PrintSuccess("Environment is up. Run `dockertester down` to remove it.")
	return state, nil
}

// Down removes every container recorded in the state file, newest first, and deletes the file.
// Containers that could not be removed stay recorded.
func Down(ctx context.Context, opts Options) error {
	console := opts.console()
	statePath := opts.Profile.StateFile

	state, err := LoadState(statePath)
	if err != nil {
		return dterrors.NewStateError("Failed to load session state", err.Error(), "Delete "+statePath+" if it is corrupted", err)
	}
	if state == nil {
		console.PrintInfo("Nothing to remove: no state file found")
		return nil
	}

	var errs error
	for _, c := range slices.Backward(slices.Clone(state.Containers)) {
		if err := dockertester.StopContainer(ctx, opts.Runtime, c.ID); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		state.Untrack(c.ID)
		console.PrintSuccess(fmt.Sprintf("Removed %s container %s", c.Kind, shortID(c.ID)))
	}

	if errs != nil {
		return multierr.Append(errs, SaveState(statePath, state))
	}
	slog.Info("Session removed", "runId", state.RunID)
	return RemoveStateFile(statePath)
}

// Prune removes every container carrying the managed label, whether or not a state file knows
// about it, and returns how many were removed.
func Prune(ctx context.Context, opts Options) (int, error) {
	ids, err := opts.Runtime.ListManaged(ctx)
	if err != nil {
		return 0, dterrors.NewDockerError("Failed to list dockertester containers", err.Error(), "", err)
	}

	var (
		removed int
		errs    error
	)
	for _, id := range ids {
		if err := dockertester.StopContainer(ctx, opts.Runtime, id); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		removed++
	}

	if errs == nil && opts.Profile != nil {
		errs = RemoveStateFile(opts.Profile.StateFile)
	}
	slog.Info("Pruned managed containers", "removed", removed, "found", len(ids))
	return removed, errs
}

// Record adds a container started outside of Up, e.g. by `dockertester start`, to the state
// file at statePath.
func Record(statePath string, c TrackedContainer) error {
	state, err := LoadState(statePath)
	if err != nil {
		return dterrors.NewStateError("Failed to load session state", err.Error(), "", err)
	}
	if state == nil {
		state = NewState("")
	}
	if c.Stage == "" {
		c.Stage = c.Kind + ":" + c.ID
	}
	state.Track(c)
	if err := SaveState(statePath, state); err != nil {
		return dterrors.NewStateError("Failed to save session state", err.Error(), "", err)
	}
	return nil
}

// Forget drops removed containers from the state file at statePath and deletes the file once it
// tracks nothing.
func Forget(statePath string, ids ...string) error {
	state, err := LoadState(statePath)
	if err != nil || state == nil {
		return err
	}

	for _, id := range ids {
		state.Untrack(id)
	}
	if len(state.Containers) == 0 {
		return RemoveStateFile(statePath)
	}
	return SaveState(statePath, state)
}

// PrintContainer prints the connection details of c.
func PrintContainer(console *ui.Console, c TrackedContainer) {
	fields := []ui.Field{
		{Label: "Image", Value: c.Image},
		{Label: "ContainerID", Value: shortID(c.ID)},
		{Label: "Host", Value: c.Host},
		{Label: "Port", Value: strconv.Itoa(int(c.Port))},
	}
	if c.URL != "" {
		fields = append(fields, ui.Field{Label: "URL", Value: c.URL})
	}
	console.PrintFields(c.Stage, fields...)
}

func shortID(id string) string {
	return (&runtime.Container{ID: id}).ShortID()
}

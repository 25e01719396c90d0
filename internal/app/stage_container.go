package app

import (
	"context"
	"log/slog"
	"strconv"

	"dockertester/pkg/dockertester"
	"dockertester/pkg/profile"
	"dockertester/pkg/runtime"
)

// ContainerStage starts one of the profile's extra containers.
type ContainerStage struct {
	spec profile.ContainerSpec
	rt   runtime.ContainerRuntime
}

func NewContainerStage(spec profile.ContainerSpec, rt runtime.ContainerRuntime) *ContainerStage {
	return &ContainerStage{spec: spec, rt: rt}
}

func (s *ContainerStage) Name() string {
	return KindContainer + ":" + s.spec.Name
}

func (s *ContainerStage) Execute(ctx context.Context, state *SessionState) error {
	c, err := dockertester.StartContainer(ctx, s.rt, s.spec.Image, s.spec.Port, s.runArgs()...)
	if err != nil {
		return err
	}

	state.Track(TrackedContainer{
		ID:    c.ID,
		Stage: s.Name(),
		Kind:  KindContainer,
		Image: c.Image,
		Host:  c.Host,
		Port:  c.Port,
	})
	slog.Info("Container stage completed successfully", "name", s.spec.Name, "containerID", c.ShortID())
	return nil
}

func (s *ContainerStage) runArgs() []string {
	args := make([]string, 0, 2*len(s.spec.Env)+4)
	for _, env := range s.spec.Env {
		args = append(args, "-e", env)
	}
	args = append(args, "-l", runtime.ManagedLabelKey+"="+s.spec.Name)
	if s.spec.HostPort > 0 {
		args = append(args, "-p", strconv.Itoa(s.spec.HostPort))
	}
	return args
}

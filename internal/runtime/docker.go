package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net"
	"net/url"
	"sort"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"dockertester/pkg/runtime"
)

// DockerRuntime implements the ContainerRuntime interface using Docker client.
type DockerRuntime struct {
	client *client.Client
}

// NewDockerRuntime creates a new DockerRuntime instance using client.FromEnv.
func NewDockerRuntime() (*DockerRuntime, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	// Check if Docker daemon is accessible
	ctx := context.Background()
	_, err = dockerClient.Ping(ctx)
	if err != nil {
		dockerClient.Close()
		return nil, fmt.Errorf("failed to connect to Docker daemon: %w", err)
	}

	return &DockerRuntime{
		client: dockerClient,
	}, nil
}

// PullImage pulls a Docker image unless it is already present locally.
func (d *DockerRuntime) PullImage(ctx context.Context, imageName string) error {
	if _, err := d.client.ImageInspect(ctx, imageName); err == nil {
		slog.Debug("Docker image already present", "image", imageName)
		return nil
	} else if !client.IsErrNotFound(err) {
		return fmt.Errorf("failed to inspect image %s: %w", imageName, err)
	}

	slog.Info("Pulling Docker image", "image", imageName)

	reader, err := d.client.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", imageName, err)
	}
	defer reader.Close()

	// Drain the progress stream; the pull is only complete once it hits EOF.
	_, err = io.Copy(io.Discard, reader)
	if err != nil {
		return fmt.Errorf("failed to stream image pull output: %w", err)
	}

	slog.Info("Successfully pulled Docker image", "image", imageName)
	return nil
}

// StartContainer creates and starts a container with opts.ContainerPort published on the host,
// then resolves the host port Docker bound it to.
func (d *DockerRuntime) StartContainer(ctx context.Context, opts runtime.RunOptions) (*runtime.Container, error) {
	port, err := containerPort(opts.ContainerPort)
	if err != nil {
		return nil, err
	}

	bindIP, host := publishAddress(d.client.DaemonHost(), opts.HostIP)

	binding := nat.PortBinding{HostIP: bindIP}
	if opts.HostPort > 0 {
		binding.HostPort = strconv.Itoa(opts.HostPort)
	}

	containerConfig := &container.Config{
		Image:        opts.Image,
		Cmd:          opts.Command,
		Env:          envSlice(opts.EnvVars),
		ExposedPorts: nat.PortSet{port: struct{}{}},
		Labels:       managedLabels(opts.Labels),
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{port: []nat.PortBinding{binding}},
	}

	slog.Info("Creating container", "image", opts.Image, "port", string(port))

	resp, err := d.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, opts.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}

	containerID := resp.ID

	if err := d.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		d.removeAfterFailure(containerID)
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	inspect, err := d.client.ContainerInspect(ctx, containerID)
	if err != nil {
		d.removeAfterFailure(containerID)
		return nil, fmt.Errorf("failed to inspect container: %w", err)
	}
	if inspect.NetworkSettings == nil {
		d.removeAfterFailure(containerID)
		return nil, fmt.Errorf("container %s has no network settings: %w", containerID, runtime.ErrPortNotBound)
	}

	hostPort, err := resolveBoundPort(inspect.NetworkSettings.Ports, port)
	if err != nil {
		d.removeAfterFailure(containerID)
		return nil, err
	}

	return &runtime.Container{
		ID:    containerID,
		Image: opts.Image,
		Host:  host,
		Port:  hostPort,
	}, nil
}

// ContainerState returns the Docker status of the container (created, running, exited, ...).
func (d *DockerRuntime) ContainerState(ctx context.Context, id string) (string, error) {
	inspect, err := d.client.ContainerInspect(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to inspect container %s: %w", id, err)
	}
	if inspect.State == nil {
		return "", nil
	}
	return inspect.State.Status, nil
}

// StopContainer stops a running container.
func (d *DockerRuntime) StopContainer(ctx context.Context, id string) error {
	if err := d.client.ContainerStop(ctx, id, container.StopOptions{}); err != nil {
		return fmt.Errorf("failed to stop container %s: %w", id, err)
	}
	slog.Info("Container stopped", "containerID", id)
	return nil
}

// RemoveContainer removes a container together with its anonymous volumes.
func (d *DockerRuntime) RemoveContainer(ctx context.Context, id string) error {
	if err := d.client.ContainerRemove(ctx, id, container.RemoveOptions{RemoveVolumes: true, Force: true}); err != nil {
		return fmt.Errorf("failed to remove container %s: %w", id, err)
	}
	slog.Info("Container removed", "containerID", id)
	return nil
}

// ListManaged returns the ids of all containers, running or not, carrying the managed label.
func (d *DockerRuntime) ListManaged(ctx context.Context) ([]string, error) {
	containers, err := d.client.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", runtime.ManagedLabelKey)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list managed containers: %w", err)
	}
	ids := make([]string, 0, len(containers))
	for _, c := range containers {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// Close closes the underlying Docker client.
func (d *DockerRuntime) Close() error {
	return d.client.Close()
}

func (d *DockerRuntime) removeAfterFailure(containerID string) {
	ctx := context.Background()
	if err := d.client.ContainerRemove(ctx, containerID, container.RemoveOptions{RemoveVolumes: true, Force: true}); err != nil {
		slog.Error("Failed to remove container after start failure", "containerID", containerID, "error", err)
	}
}

// publishAddress picks the host IP to bind the published port on and the host clients should
// dial. A tcp:// daemon on another machine publishes on all its interfaces and is reached by
// its own hostname; a local daemon publishes on loopback only.
func publishAddress(daemonHost, hostIP string) (bindIP, host string) {
	remote := remoteDaemonHost(daemonHost)

	if hostIP != "" {
		if ip := net.ParseIP(hostIP); ip != nil && ip.IsUnspecified() {
			if remote != "" {
				return hostIP, remote
			}
			return hostIP, runtime.DefaultHostIP
		}
		return hostIP, hostIP
	}

	if remote != "" {
		return "0.0.0.0", remote
	}
	return runtime.DefaultHostIP, runtime.DefaultHostIP
}

// remoteDaemonHost returns the hostname of a tcp:// daemon that is not on loopback, or "".
func remoteDaemonHost(daemonHost string) string {
	u, err := url.Parse(daemonHost)
	if err != nil || u.Scheme != "tcp" {
		return ""
	}
	hostname := u.Hostname()
	if hostname == "" || hostname == "localhost" {
		return ""
	}
	if ip := net.ParseIP(hostname); ip != nil && (ip.IsLoopback() || ip.IsUnspecified()) {
		return ""
	}
	return hostname
}

// containerPort turns "5432" or "5432/tcp" into a nat.Port, defaulting to tcp.
func containerPort(raw string) (nat.Port, error) {
	if raw == "" {
		return "", errors.New("container port is required")
	}
	proto, port := nat.SplitProtoPort(raw)
	if port == "" {
		return "", fmt.Errorf("invalid container port: %q", raw)
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return "", fmt.Errorf("invalid container port %q: %w", raw, err)
	}
	p, err := nat.NewPort(proto, port)
	if err != nil {
		return "", fmt.Errorf("invalid container port %q: %w", raw, err)
	}
	return p, nil
}

func resolveBoundPort(ports nat.PortMap, port nat.Port) (uint16, error) {
	bindings, ok := ports[port]
	if !ok || len(bindings) == 0 {
		return 0, fmt.Errorf("cannot find NetworkSettings.Ports for %s: %w", port, runtime.ErrPortNotBound)
	}
	for _, binding := range bindings {
		if binding.HostPort == "" {
			continue
		}
		hostPort, err := strconv.ParseUint(binding.HostPort, 10, 16)
		if err != nil {
			return 0, fmt.Errorf("failed to parse host port %q: %w", binding.HostPort, errors.Join(runtime.ErrPortNotBound, err))
		}
		return uint16(hostPort), nil
	}
	return 0, fmt.Errorf("no host port bound for %s: %w", port, runtime.ErrPortNotBound)
}

// envSlice converts env vars to KEY=VALUE form in a stable order.
func envSlice(vars map[string]string) []string {
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	envVars := make([]string, 0, len(keys))
	for _, key := range keys {
		envVars = append(envVars, fmt.Sprintf("%s=%s", key, vars[key]))
	}
	return envVars
}

func managedLabels(labels map[string]string) map[string]string {
	out := maps.Clone(labels)
	if out == nil {
		out = map[string]string{}
	}
	if _, ok := out[runtime.ManagedLabelKey]; !ok {
		out[runtime.ManagedLabelKey] = ""
	}
	return out
}

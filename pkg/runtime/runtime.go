// Located in pkg/runtime/runtime.go
package runtime

import (
	"context"
	"errors"
	"net"
	"strconv"
)

const (
	// StateRunning is the Docker status of a container whose process is up.
	StateRunning = "running"

	// ManagedLabelKey marks containers started by dockertester. The value is the container kind
	// (e.g. "postgres"); presence of the key alone means the container is managed.
	ManagedLabelKey = "dockertester.managed"

	// DefaultHostIP is the host address container ports are published on by a local daemon.
	DefaultHostIP = "127.0.0.1"
)

// ErrPortNotBound is wrapped by StartContainer when the container runs but Docker reports no
// host port for the requested container port.
var ErrPortNotBound = errors.New("container port not bound on the host")

// RunOptions defines the parameters for starting a container.
type RunOptions struct {
	Image string
	Name  string
	// ContainerPort is the port to publish, e.g. "5432" or "5432/tcp".
	ContainerPort string
	HostIP        string
	// HostPort pins the published port. Zero lets Docker pick a free one.
	HostPort int
	EnvVars  map[string]string
	Labels   map[string]string
	Command  []string
}

// Container tracks information about a docker container started for tests.
// It is only valid while the underlying container is running.
type Container struct {
	ID    string
	Image string
	Host  string
	Port  uint16
}

// Address returns host:port of the published container port.
func (c *Container) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(int(c.Port)))
}

// ShortID returns the abbreviated id printed by the docker CLI.
func (c *Container) ShortID() string {
	if len(c.ID) > 12 {
		return c.ID[:12]
	}
	return c.ID
}

// ContainerRuntime defines the contract for container operations.
type ContainerRuntime interface {
	PullImage(ctx context.Context, image string) error
	StartContainer(ctx context.Context, opts RunOptions) (*Container, error)
	ContainerState(ctx context.Context, id string) (string, error)
	StopContainer(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string) error
	ListManaged(ctx context.Context) ([]string, error)
	Close() error
}

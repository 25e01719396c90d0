package dockertester

import (
	dockerruntime "dockertester/internal/runtime"
	"dockertester/pkg/runtime"
)

// NewRuntime connects to the Docker daemon configured by the environment (DOCKER_HOST,
// DOCKER_CERT_PATH, ...). Close it when done.
func NewRuntime() (runtime.ContainerRuntime, error) {
	rt, err := dockerruntime.NewDockerRuntime()
	if err != nil {
		return nil, err
	}
	return rt, nil
}

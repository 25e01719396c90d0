package runtime

import (
	"strings"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dockertester/pkg/runtime"
)

func TestContainerPort(t *testing.T) {
	tests := []struct {
		raw     string
		want    nat.Port
		wantErr bool
	}{
		{raw: "5432", want: "5432/tcp"},
		{raw: "5432/tcp", want: "5432/tcp"},
		{raw: "53/udp", want: "53/udp"},
		{raw: "", wantErr: true},
		{raw: "http", wantErr: true},
		{raw: "70000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := containerPort(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveBoundPort(t *testing.T) {
	port := nat.Port("5432/tcp")

	t.Run("first bound port wins", func(t *testing.T) {
		ports := nat.PortMap{port: {
			{HostIP: "0.0.0.0", HostPort: ""},
			{HostIP: "127.0.0.1", HostPort: "49153"},
		}}
		got, err := resolveBoundPort(ports, port)
		require.NoError(t, err)
		assert.Equal(t, uint16(49153), got)
	})

	t.Run("missing port", func(t *testing.T) {
		_, err := resolveBoundPort(nat.PortMap{}, port)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot find NetworkSettings.Ports")
		assert.ErrorIs(t, err, runtime.ErrPortNotBound)
	})

	t.Run("no host port", func(t *testing.T) {
		_, err := resolveBoundPort(nat.PortMap{port: {{HostIP: "127.0.0.1"}}}, port)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no host port bound")
		assert.ErrorIs(t, err, runtime.ErrPortNotBound)
	})

	t.Run("garbage host port", func(t *testing.T) {
		_, err := resolveBoundPort(nat.PortMap{port: {{HostPort: "abc"}}}, port)
		assert.ErrorIs(t, err, runtime.ErrPortNotBound)
	})
}

func TestPublishAddress(t *testing.T) {
	tests := []struct {
		name       string
		daemonHost string
		hostIP     string
		wantBind   string
		wantHost   string
	}{
		{name: "unix socket", daemonHost: "unix:///var/run/docker.sock", wantBind: "127.0.0.1", wantHost: "127.0.0.1"},
		{name: "npipe", daemonHost: "npipe:////./pipe/docker_engine", wantBind: "127.0.0.1", wantHost: "127.0.0.1"},
		{name: "tcp loopback", daemonHost: "tcp://127.0.0.1:2375", wantBind: "127.0.0.1", wantHost: "127.0.0.1"},
		{name: "tcp localhost", daemonHost: "tcp://localhost:2375", wantBind: "127.0.0.1", wantHost: "127.0.0.1"},
		{name: "tcp remote name", daemonHost: "tcp://docker:2376", wantBind: "0.0.0.0", wantHost: "docker"},
		{name: "tcp remote ip", daemonHost: "tcp://10.0.0.7:2375", wantBind: "0.0.0.0", wantHost: "10.0.0.7"},
		{name: "explicit host ip", daemonHost: "tcp://docker:2376", hostIP: "192.168.1.5", wantBind: "192.168.1.5", wantHost: "192.168.1.5"},
		{name: "all interfaces local", daemonHost: "unix:///var/run/docker.sock", hostIP: "0.0.0.0", wantBind: "0.0.0.0", wantHost: "127.0.0.1"},
		{name: "all interfaces remote", daemonHost: "tcp://docker:2376", hostIP: "0.0.0.0", wantBind: "0.0.0.0", wantHost: "docker"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bind, host := publishAddress(tt.daemonHost, tt.hostIP)
			assert.Equal(t, tt.wantBind, bind)
			assert.Equal(t, tt.wantHost, host)
		})
	}
}

func TestEnvSlice(t *testing.T) {
	got := envSlice(map[string]string{
		"POSTGRES_USER":     "user",
		"POSTGRES_PASSWORD": "secret",
	})
	assert.Equal(t, []string{"POSTGRES_PASSWORD=secret", "POSTGRES_USER=user"}, got)
	assert.Empty(t, envSlice(nil))
}

func TestManagedLabels(t *testing.T) {
	labels := managedLabels(nil)
	assert.Contains(t, labels, runtime.ManagedLabelKey)

	in := map[string]string{runtime.ManagedLabelKey: "postgres", "team": "core"}
	out := managedLabels(in)
	assert.Equal(t, "postgres", out[runtime.ManagedLabelKey])
	assert.Equal(t, "core", out["team"])

	out["team"] = "changed"
	assert.Equal(t, "core", in["team"], "input labels must not be mutated")
}

func TestNewDockerRuntime_RequiresDockerDaemon(t *testing.T) {
	// Either Docker is running and we get a runtime, or the error says which step failed.
	rt, err := NewDockerRuntime()
	if err != nil {
		msg := err.Error()
		if !strings.HasPrefix(msg, "failed to create Docker client") && !strings.HasPrefix(msg, "failed to connect to Docker daemon") {
			t.Errorf("Unexpected error format: %s", msg)
		}
		return
	}
	assert.NoError(t, rt.Close())
}

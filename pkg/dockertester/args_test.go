package dockertester

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRunArgs(t *testing.T) {
	t.Setenv("DOCKERTESTER_HOST_SECRET", "from-host")

	tests := []struct {
		name        string
		args        []string
		wantEnv     map[string]string
		wantLabels  map[string]string
		wantName    string
		wantPort    int
		wantCommand []string
		wantErr     string
	}{
		{
			name:       "no args",
			args:       nil,
			wantEnv:    map[string]string{},
			wantLabels: map[string]string{},
		},
		{
			name: "postgres credentials",
			args: []string{"-e", "POSTGRES_USER=postgres", "-e", "POSTGRES_PASSWORD=password"},
			wantEnv: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
			},
			wantLabels: map[string]string{},
		},
		{
			name:       "long flags and value containing equals",
			args:       []string{"--env", "OPTS=a=b", "--label", "team=core", "--name", "db", "--publish", "15432"},
			wantEnv:    map[string]string{"OPTS": "a=b"},
			wantLabels: map[string]string{"team": "core"},
			wantName:   "db",
			wantPort:   15432,
		},
		{
			name:       "bare env key copies host value",
			args:       []string{"-e", "DOCKERTESTER_HOST_SECRET", "-e", "DOCKERTESTER_NOT_SET_ANYWHERE"},
			wantEnv:    map[string]string{"DOCKERTESTER_HOST_SECRET": "from-host"},
			wantLabels: map[string]string{},
		},
		{
			name:        "trailing command",
			args:        []string{"-e", "A=1", "redis-server", "--appendonly", "yes"},
			wantEnv:     map[string]string{"A": "1"},
			wantLabels:  map[string]string{},
			wantCommand: []string{"redis-server", "--appendonly", "yes"},
		},
		{
			name:    "unknown flag",
			args:    []string{"--privileged"},
			wantErr: "invalid container arguments",
		},
		{
			name:    "empty env key",
			args:    []string{"-e", "=value"},
			wantErr: "invalid environment variable",
		},
		{
			name:    "empty label key",
			args:    []string{"-l", "=value"},
			wantErr: "invalid label",
		},
		{
			name:    "host and container port mapping",
			args:    []string{"-p", "8080:80"},
			wantErr: "use -p HOSTPORT, the container port is given as the port argument",
		},
		{
			name:    "host port not a number",
			args:    []string{"--publish", "http"},
			wantErr: "host port must be a number",
		},
		{
			name:    "zero host port",
			args:    []string{"-p", "0"},
			wantErr: "host port must be in range",
		},
		{
			name:    "host port out of range",
			args:    []string{"-p", "70000"},
			wantErr: "host port must be in range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := ParseRunArgs(tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantEnv, opts.EnvVars)
			assert.Equal(t, tt.wantLabels, opts.Labels)
			assert.Equal(t, tt.wantName, opts.Name)
			assert.Equal(t, tt.wantPort, opts.HostPort)
			assert.Equal(t, tt.wantCommand, opts.Command)
		})
	}
}

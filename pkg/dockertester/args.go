package dockertester

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"dockertester/pkg/runtime"
)

// ParseRunArgs understands the subset of `docker run` flags that make sense for a test container:
// -e/--env KEY[=VALUE], -l/--label KEY[=VALUE], --name NAME and -p/--publish PORT. Anything after
// the flags is used as the container command.
func ParseRunArgs(args []string) (runtime.RunOptions, error) {
	var opts runtime.RunOptions

	flags := pflag.NewFlagSet("docker run", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.SetInterspersed(false)

	env := flags.StringArrayP("env", "e", nil, "set environment variables")
	labels := flags.StringArrayP("label", "l", nil, "set metadata on the container")
	flags.StringVar(&opts.Name, "name", "", "assign a name to the container")
	publish := flags.StringP("publish", "p", "", "publish on a fixed host port")

	if err := flags.Parse(args); err != nil {
		return opts, fmt.Errorf("invalid container arguments %q: %w", args, err)
	}

	var err error
	if opts.HostPort, err = parseHostPort(*publish); err != nil {
		return opts, err
	}
	if opts.EnvVars, err = parseEnv(*env); err != nil {
		return opts, err
	}
	if opts.Labels, err = parseLabels(*labels); err != nil {
		return opts, err
	}
	if flags.NArg() > 0 {
		opts.Command = flags.Args()
	}
	return opts, nil
}

// parseHostPort reads the -p value. Only the host side is accepted since the container port
// is passed separately.
func parseHostPort(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	if strings.Contains(value, ":") {
		return 0, fmt.Errorf("invalid -p %q: use -p HOSTPORT, the container port is given as the port argument", value)
	}
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid -p %q: host port must be a number", value)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("host port must be in range 1-65535: %d", port)
	}
	return port, nil
}

// parseEnv follows docker: KEY=VALUE sets a value, a bare KEY copies it from the host
// environment and is dropped when unset there.
func parseEnv(values []string) (map[string]string, error) {
	env := make(map[string]string, len(values))
	for _, v := range values {
		key, value, hasValue := strings.Cut(v, "=")
		if strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid environment variable: %q", v)
		}
		if !hasValue {
			hostValue, ok := os.LookupEnv(key)
			if !ok {
				continue
			}
			value = hostValue
		}
		env[key] = value
	}
	return env, nil
}

func parseLabels(values []string) (map[string]string, error) {
	labels := make(map[string]string, len(values))
	for _, v := range values {
		key, value, _ := strings.Cut(v, "=")
		if strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid label: %q", v)
		}
		labels[key] = value
	}
	return labels, nil
}

// Package dockertester starts throwaway Docker containers for tests and removes them afterwards.
//
// You must have Docker installed and running. A typical use:
//
//	rt, err := dockertester.NewRuntime()
//	...
//	defer rt.Close()
//	c, err := dockertester.StartContainer(ctx, rt, "postgres:14-alpine", "5432",
//		"-e", "POSTGRES_USER=postgres",
//		"-e", "POSTGRES_PASSWORD=password",
//	)
//	...
//	defer dockertester.StopContainer(ctx, rt, c.ID)
//
// The returned container carries the host and port the container port was published on. It is
// only valid while the container is running.
package dockertester

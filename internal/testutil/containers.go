package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
)

// RunContainer starts req and waits for it. testcontainers panics when it
// cannot find a Docker host; that comes back as an error so callers can
// skip instead of aborting the test binary.
func RunContainer(ctx context.Context, req testcontainers.ContainerRequest) (c testcontainers.Container, err error) {
	err = recoverPanic(func() error {
		var err error
		c, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		return err
	})
	return c, err
}

// ContainerEndpoint returns host:port for the container's port.
func ContainerEndpoint(ctx context.Context, c testcontainers.Container, port string) (hostPort string, err error) {
	err = recoverPanic(func() error {
		host, err := c.Host(ctx)
		if err != nil {
			return err
		}
		mapped, err := c.MappedPort(ctx, nat.Port(port))
		if err != nil {
			return err
		}
		hostPort = fmt.Sprintf("%s:%s", host, mapped.Port())
		return nil
	})
	return hostPort, err
}

func recoverPanic(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("container runtime unavailable: %v", r)
		}
	}()
	return fn()
}

// skipUnavailable skips t when a backing service could not be reached.
func skipUnavailable(t testing.TB, what string, err error) {
	t.Helper()
	if err != nil {
		t.Skipf("%s not available: %v", what, err)
	}
}

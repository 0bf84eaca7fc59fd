package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestRedisAddrEnv points tests at an existing Redis instead of a container.
const TestRedisAddrEnv = "CAMPUSHUB_TEST_REDIS_ADDR"

const redisImage = "redis:7"

var (
	redisOnce sync.Once
	redisAddr string
	redisErr  error
)

// SetupTestRedis returns a client for CAMPUSHUB_TEST_REDIS_ADDR or for a
// container started once per test binary. The test is skipped when neither
// is available.
func SetupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	redisOnce.Do(func() {
		redisAddr = strings.TrimSpace(os.Getenv(TestRedisAddrEnv))
		if redisAddr == "" {
			ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
			defer cancel()
			redisAddr, redisErr = startRedis(ctx)
		}
	})
	skipUnavailable(t, "redis", redisErr)

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("redis not reachable: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func startRedis(ctx context.Context) (string, error) {
	container, err := RunContainer(ctx, testcontainers.ContainerRequest{
		Image:        redisImage,
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
	})
	if err != nil {
		return "", fmt.Errorf("start redis container: %w", err)
	}
	return ContainerEndpoint(ctx, container, "6379/tcp")
}

package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// TestMongoURIEnv points tests at an existing MongoDB instead of a container.
const TestMongoURIEnv = "CAMPUSHUB_TEST_MONGO_URI"

const mongoImage = "mongo:7"

var (
	clientOnce sync.Once
	client     *mongo.Client
	clientErr  error
)

// TestContext returns a context suitable for a single database test.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// SetupTestDB returns a fresh, uniquely named database for t and drops it
// when the test ends. The MongoDB server is CAMPUSHUB_TEST_MONGO_URI when
// set; otherwise a container is started once per test binary. When neither
// is available the test is skipped.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	clientOnce.Do(func() {
		client, clientErr = connect()
	})
	skipUnavailable(t, "mongo", clientErr)

	name := "campushub_test_" + primitive.NewObjectID().Hex()
	db := client.Database(name)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
	})
	return db
}

func connect() (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	uri := strings.TrimSpace(os.Getenv(TestMongoURIEnv))
	if uri == "" {
		var err error
		uri, err = startContainer(ctx)
		if err != nil {
			return nil, err
		}
	}

	c, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := c.Ping(ctx, readpref.Primary()); err != nil {
		_ = c.Disconnect(context.Background())
		return nil, err
	}
	return c, nil
}

// startContainer runs a throwaway MongoDB. The container is reaped by
// testcontainers when the test binary exits.
func startContainer(ctx context.Context) (string, error) {
	container, err := RunContainer(ctx, testcontainers.ContainerRequest{
		Image:        mongoImage,
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
	})
	if err != nil {
		return "", fmt.Errorf("start mongo container: %w", err)
	}
	hostPort, err := ContainerEndpoint(ctx, container, "27017/tcp")
	if err != nil {
		return "", err
	}
	return "mongodb://" + hostPort, nil
}

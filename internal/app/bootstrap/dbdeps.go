// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	CampusHubMongoClient   *mongo.Client
	CampusHubMongoDatabase *mongo.Database

	// Redis is nil when redis_addr is blank.
	Redis *redis.Client

	// Runtime is allocated by ConnectDB and filled in by Startup, so the
	// later hooks (BuildHandler, Shutdown) see the same components.
	Runtime *Runtime
}

// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/fermehub/internal/app/system/workers"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds the back-end clients. Mongo fields are nil with the memory
// backend; Redis is nil when the notification stream is disabled.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database
	Redis         *redis.Client

	// Background is filled in by BuildHandler and drained by Shutdown.
	Background *Background
}

// Background tracks the goroutines started for the app.
type Background struct {
	Maintenance *workers.Maintenance
}

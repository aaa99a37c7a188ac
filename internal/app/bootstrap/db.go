// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/fermehub/internal/app/system/indexes"
	"github.com/dalemusser/fermehub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB opens the Mongo client (mongo backend only) and the Redis client
// of the notification stream (when configured).
//
// An unreachable Redis is not fatal: notification delivery failures are
// logged and the health endpoint reports the stream as disconnected.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	deps := DBDeps{Background: &Background{}}

	if appCfg.StoreBackend == BackendMongo {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(appCfg.MongoURI))
		if err != nil {
			return DBDeps{}, fmt.Errorf("connect mongo: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, timeouts.Long())
		defer cancel()
		if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
			_ = client.Disconnect(ctx)
			return DBDeps{}, fmt.Errorf("ping mongo: %w", err)
		}
		deps.MongoClient = client
		deps.MongoDatabase = client.Database(appCfg.MongoDatabase)
		logger.Info("connected to MongoDB", zap.String("database", appCfg.MongoDatabase))
	}

	if appCfg.NotifyRedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: appCfg.NotifyRedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, timeouts.Ping())
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("notification stream unreachable at startup",
				zap.String("addr", appCfg.NotifyRedisAddr), zap.Error(err))
		} else {
			logger.Info("connected to notification stream",
				zap.String("addr", appCfg.NotifyRedisAddr),
				zap.String("stream", appCfg.NotifyRedisStream))
		}
		deps.Redis = rdb
	}
	return deps, nil
}

// EnsureSchema creates the collection indexes the stores rely on, including
// the unique ones that back duplicate detection.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.MongoDatabase == nil {
		return nil
	}
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Bulk(), logger, "ensure indexes")
	defer cancel()
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("index setup failed", zap.Error(err))
		return err
	}
	return nil
}

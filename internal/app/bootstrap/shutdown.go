// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops background workers, closes live sockets, then tears down
// Redis and MongoDB connections. Workers go first so nothing writes to a
// closed client.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if rt := deps.Runtime; rt != nil {
		if rt.Scheduler != nil {
			rt.Scheduler.Stop()
		}
		if rt.Dispatcher != nil {
			rt.Dispatcher.Stop()
		}
		if rt.Relay != nil {
			rt.Relay.Stop()
		}
		if rt.Hub != nil {
			rt.Hub.Close()
		}
	}

	if deps.Redis != nil {
		if err := deps.Redis.Close(); err != nil {
			logger.Warn("Redis close failed", zap.Error(err))
		}
	}

	if deps.CampusHubMongoClient != nil {
		logger.Info("disconnecting CampusHub MongoDB client")
		if err := deps.CampusHubMongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}

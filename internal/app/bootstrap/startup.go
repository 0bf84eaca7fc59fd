// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/campushub/internal/app/services/content"
	forumsvc "github.com/dalemusser/campushub/internal/app/services/forums"
	"github.com/dalemusser/campushub/internal/app/services/membership"
	"github.com/dalemusser/campushub/internal/app/services/notify"
	"github.com/dalemusser/campushub/internal/app/store/audit"
	outboxstore "github.com/dalemusser/campushub/internal/app/store/outbox"
	userstore "github.com/dalemusser/campushub/internal/app/store/users"
	"github.com/dalemusser/campushub/internal/app/system/auditlog"
	"github.com/dalemusser/campushub/internal/app/system/auth"
	"github.com/dalemusser/campushub/internal/app/system/blobstore"
	"github.com/dalemusser/campushub/internal/app/system/firebaseauth"
	"github.com/dalemusser/campushub/internal/app/system/metrics"
	"github.com/dalemusser/campushub/internal/app/system/ratelimit"
	"github.com/dalemusser/campushub/internal/app/system/realtime"
	"github.com/dalemusser/campushub/internal/app/system/tasks"
	"github.com/dalemusser/campushub/internal/app/system/timeouts"
	"github.com/dalemusser/campushub/internal/app/system/timezones"
	"github.com/dalemusser/campushub/internal/app/system/workers"
	"github.com/dalemusser/campushub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Runtime holds the long-lived components built in Startup and shared with
// BuildHandler and Shutdown.
type Runtime struct {
	Metrics  *metrics.Metrics
	Location *time.Location
	Blobs    blobstore.Store
	Audit    *auditlog.Logger
	Limiter  *ratelimit.LoginLimiter
	Verifier auth.TokenVerifier // nil when Firebase is not configured

	Hub   *realtime.Hub
	Relay *realtime.RedisRelay // nil without Redis

	Notifier   *notify.Notifier
	Content    *content.Service
	Forums     *forumsvc.Service
	Membership *membership.Service

	Dispatcher *workers.Dispatcher
	Scheduler  *tasks.Scheduler
}

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.Runtime == nil {
		return errors.New("startup: runtime not allocated")
	}
	rt := deps.Runtime
	db := deps.CampusHubMongoDatabase

	loc, err := timezones.Load(appCfg.TimeZone)
	if err != nil {
		return err
	}
	rt.Location = loc
	rt.Metrics = metrics.New()

	// Data fixes must come before anything below starts a goroutine.
	if appCfg.SuperAdminEmail != "" {
		if err := ensureSuperAdmin(ctx, db, appCfg.SuperAdminEmail, logger); err != nil {
			return fmt.Errorf("superadmin bootstrap: %w", err)
		}
	}
	if err := backfillContentStatus(ctx, db, logger); err != nil {
		return fmt.Errorf("content status backfill: %w", err)
	}

	blobs, err := openBlobStore(ctx, appCfg, logger)
	if err != nil {
		return err
	}
	rt.Blobs = blobs

	rt.Audit = auditlog.New(audit.New(db), logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
		Forum: appCfg.AuditLogForum,
	})
	rt.Limiter = ratelimit.NewLoginLimiter(ratelimit.Config{
		IPLimit:     appCfg.LoginIPLimit,
		IPWindow:    appCfg.LoginIPWindow,
		EmailLimit:  appCfg.LoginEmailLimit,
		EmailWindow: appCfg.LoginEmailWindow,
	})

	if appCfg.FirebaseProjectID != "" {
		client, err := firebaseauth.NewClient(ctx, appCfg.FirebaseProjectID, appCfg.FirebaseCredentialsFile)
		if err != nil {
			return err
		}
		rt.Verifier = firebaseauth.NewVerifier(client, userstore.New(db), logger)
		logger.Info("firebase bearer tokens enabled", zap.String("project_id", appCfg.FirebaseProjectID))
	}

	// Realtime push. With Redis every process publishes to the channel and
	// the relay feeds the local hub; without it the hub is published to directly.
	rt.Hub = realtime.NewHub(logger, rt.Metrics, appCfg.WSAllowedOrigins)
	var pub realtime.Publisher = rt.Hub
	if deps.Redis != nil {
		relay := realtime.NewRedisRelay(deps.Redis, appCfg.RedisChannel, rt.Hub, logger)
		if err := relay.Start(context.Background()); err != nil {
			return fmt.Errorf("redis relay: %w", err)
		}
		rt.Relay = relay
		pub = relay
	}

	rt.Notifier = notify.New(db, rt.Metrics, logger)
	rt.Content = content.New(db, rt.Notifier, loc, logger)
	rt.Forums = forumsvc.New(db, rt.Content, rt.Metrics, logger)
	rt.Membership = membership.New(db, rt.Notifier, rt.Metrics, logger)

	rt.Dispatcher = workers.NewDispatcher(db, pub, rt.Metrics, logger, workers.DispatcherConfig{
		PollInterval: appCfg.DispatchPollInterval,
		Lease:        appCfg.DispatchLease,
		MaxAttempts:  appCfg.DispatchMaxAttempts,
		BaseBackoff:  appCfg.DispatchBaseBackoff,
		MaxBackoff:   appCfg.DispatchMaxBackoff,
		BatchSize:    appCfg.DispatchBatchSize,
	})
	rt.Notifier.SetKicker(rt.Dispatcher)
	rt.Dispatcher.Start()

	outbox := outboxstore.New(db)
	rt.Scheduler = tasks.NewScheduler(logger, timeouts.Batch())
	rt.Scheduler.Add(tasks.OutboxReclaimJob(outbox, logger, reclaimInterval(appCfg.DispatchLease)))
	rt.Scheduler.Add(tasks.OutboxPurgeJob(outbox, logger, appCfg.OutboxRetention))
	rt.Scheduler.Start()

	return nil
}

func reclaimInterval(lease time.Duration) time.Duration {
	if lease <= 0 {
		return 30 * time.Second
	}
	return lease
}

func openBlobStore(ctx context.Context, appCfg AppConfig, logger *zap.Logger) (blobstore.Store, error) {
	if appCfg.StorageType == "memory" {
		logger.Warn("using in-memory blob storage; uploads are lost on restart")
		return blobstore.NewMemory(), nil
	}
	store, err := blobstore.NewMinio(blobstore.MinioConfig{
		Endpoint:  appCfg.MinioEndpoint,
		AccessKey: appCfg.MinioAccessKey,
		SecretKey: appCfg.MinioSecretKey,
		Bucket:    appCfg.MinioBucket,
		UseSSL:    appCfg.MinioUseSSL,
		Region:    appCfg.MinioRegion,
	})
	if err != nil {
		return nil, err
	}
	bctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	defer cancel()
	created, err := store.EnsureBucket(bctx)
	if err != nil {
		return nil, err
	}
	logger.Info("object storage ready",
		zap.String("endpoint", appCfg.MinioEndpoint),
		zap.String("bucket", appCfg.MinioBucket),
		zap.Bool("created", created))
	return store, nil
}

// ensureSuperAdmin makes the configured account a superadmin, creating it
// when missing. A created account has no password; it signs in through
// Firebase, which links it by verified email.
func ensureSuperAdmin(ctx context.Context, db *mongo.Database, email string, logger *zap.Logger) error {
	users := userstore.New(db)

	u, err := users.GetByEmail(ctx, email)
	if errors.Is(err, userstore.ErrNotFound) {
		created, err := users.Create(ctx, models.User{
			FullName: "Super Admin",
			Email:    email,
			Role:     models.RoleSuperAdmin,
		})
		if err != nil {
			return err
		}
		logger.Info("created superadmin", zap.String("user_id", created.ID.Hex()), zap.String("email", created.Email))
		return nil
	}
	if err != nil {
		return err
	}

	if u.Role != models.RoleSuperAdmin {
		if _, err := users.SetRole(ctx, u.ID, models.RoleSuperAdmin); err != nil {
			return err
		}
		logger.Info("promoted user to superadmin", zap.String("user_id", u.ID.Hex()), zap.String("previous_role", u.Role))
	}
	if u.Status != userstore.StatusActive {
		if _, err := users.SetStatus(ctx, u.ID, userstore.StatusActive); err != nil {
			return err
		}
		logger.Info("re-enabled superadmin", zap.String("user_id", u.ID.Hex()))
	}
	return nil
}

// backfillContentStatus marks posts and events written before moderation
// existed as approved, so queries can match on status alone.
func backfillContentStatus(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	filter := bson.M{"status": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{"status": models.ContentApproved}}
	for _, coll := range []string{"posts", "events"} {
		res, err := db.Collection(coll).UpdateMany(ctx, filter, update)
		if err != nil {
			return fmt.Errorf("%s: %w", coll, err)
		}
		if res.ModifiedCount > 0 {
			logger.Info("backfilled moderation status",
				zap.String("collection", coll),
				zap.Int64("count", res.ModifiedCount))
		}
	}
	return nil
}

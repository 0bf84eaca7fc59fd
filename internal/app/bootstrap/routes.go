// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	accountsfeature "github.com/dalemusser/campushub/internal/app/features/accounts"
	auditfeature "github.com/dalemusser/campushub/internal/app/features/auditlog"
	dashboardfeature "github.com/dalemusser/campushub/internal/app/features/dashboard"
	errorsfeature "github.com/dalemusser/campushub/internal/app/features/errors"
	eventsfeature "github.com/dalemusser/campushub/internal/app/features/events"
	favoritesfeature "github.com/dalemusser/campushub/internal/app/features/favorites"
	forumsfeature "github.com/dalemusser/campushub/internal/app/features/forums"
	healthfeature "github.com/dalemusser/campushub/internal/app/features/health"
	notificationsfeature "github.com/dalemusser/campushub/internal/app/features/notifications"
	postsfeature "github.com/dalemusser/campushub/internal/app/features/posts"
	uploadsfeature "github.com/dalemusser/campushub/internal/app/features/uploads"
	usersfeature "github.com/dalemusser/campushub/internal/app/features/users"
	userstore "github.com/dalemusser/campushub/internal/app/store/users"
	"github.com/dalemusser/campushub/internal/app/system/auth"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed. The services and workers built in Startup
// are read from deps.Runtime.
//
// Everything is JSON. Reads of forums, posts and events are open to
// anonymous callers (the visibility filter decides what they see); every
// write requires a session cookie or, when Firebase is configured, a bearer
// token.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	rt := deps.Runtime
	if rt == nil || rt.Content == nil {
		return nil, errors.New("build handler: startup did not complete")
	}
	db := deps.CampusHubMongoDatabase

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// LoadSessionUser fetches fresh user data on each request, so role
	// changes and disabled accounts take effect immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(db))
	if rt.Verifier != nil {
		sessionMgr.SetTokenVerifier(rt.Verifier)
	}

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if signed in.
	r.Use(sessionMgr.LoadSessionUser)

	// JSON 404/405; set before mounting so sub-routers inherit them.
	r.NotFound(errorsfeature.NotFound)
	r.MethodNotAllowed(errorsfeature.MethodNotAllowed)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.CampusHubMongoClient, deps.Redis, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/metrics", rt.Metrics.Handler())

	// Accounts and profiles
	accountsHandler := accountsfeature.NewHandler(db, sessionMgr, rt.Audit, rt.Limiter, logger)
	r.Mount("/auth", accountsfeature.Routes(accountsHandler, sessionMgr))

	usersHandler := usersfeature.NewHandler(db, rt.Content, rt.Audit, logger)
	r.Mount("/users", usersfeature.Routes(usersHandler, sessionMgr))

	// Forums and membership
	forumsHandler := forumsfeature.NewHandler(db, rt.Forums, rt.Membership, rt.Content, rt.Audit, logger)
	r.Mount("/forums", forumsfeature.Routes(forumsHandler, sessionMgr))

	// Content
	postsHandler := postsfeature.NewHandler(rt.Content, rt.Audit, logger)
	r.Mount("/posts", postsfeature.Routes(postsHandler, sessionMgr))
	r.Mount("/comments", postsfeature.CommentRoutes(postsHandler, sessionMgr))

	eventsHandler := eventsfeature.NewHandler(rt.Content, rt.Audit, logger)
	r.Mount("/events", eventsfeature.Routes(eventsHandler, sessionMgr))

	favoritesHandler := favoritesfeature.NewHandler(rt.Content, logger)
	r.Mount("/favorites", favoritesfeature.Routes(favoritesHandler, sessionMgr))

	uploadsHandler := uploadsfeature.NewHandler(rt.Blobs, appCfg.UploadMaxBytes, appCfg.UploadTypes, logger)
	r.Mount("/uploads", uploadsfeature.Routes(uploadsHandler, sessionMgr))

	// Notifications (inbox and websocket stream)
	notificationsHandler := notificationsfeature.NewHandler(db, rt.Hub, logger)
	r.Mount("/notifications", notificationsfeature.Routes(notificationsHandler, sessionMgr))

	dashboardHandler := dashboardfeature.NewHandler(db, logger)
	r.Mount("/dashboard", dashboardfeature.Routes(dashboardHandler, sessionMgr))

	// Audit log
	auditHandler := auditfeature.NewHandler(db, rt.Location, logger)
	r.Mount("/audit", auditfeature.Routes(auditHandler, sessionMgr))

	logger.Info("routes mounted",
		zap.Bool("firebase", rt.Verifier != nil),
		zap.Bool("redis_relay", rt.Relay != nil),
		zap.String("storage", appCfg.StorageType))

	return r, nil
}

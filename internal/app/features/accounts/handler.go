// internal/app/features/accounts/handler.go
package accounts

import (
	uierrors "github.com/dalemusser/campushub/internal/app/features/errors"
	userstore "github.com/dalemusser/campushub/internal/app/store/users"
	"github.com/dalemusser/campushub/internal/app/system/auditlog"
	"github.com/dalemusser/campushub/internal/app/system/auth"
	"github.com/dalemusser/campushub/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves registration, password login and the current account.
type Handler struct {
	DB         *mongo.Database
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	ErrLog     *uierrors.ErrorLogger
	AuditLog   *auditlog.Logger
	Limiter    *ratelimit.LoginLimiter

	users *userstore.Store
}

func NewHandler(db *mongo.Database, sm *auth.SessionManager, audit *auditlog.Logger, limiter *ratelimit.LoginLimiter, logger *zap.Logger) *Handler {
	return &Handler{
		DB:         db,
		Log:        logger,
		SessionMgr: sm,
		ErrLog:     uierrors.NewErrorLogger(logger),
		AuditLog:   audit,
		Limiter:    limiter,
		users:      userstore.New(db),
	}
}

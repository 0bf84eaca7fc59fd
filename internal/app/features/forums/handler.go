// internal/app/features/forums/handler.go
package forums

import (
	uierrors "github.com/dalemusser/campushub/internal/app/features/errors"
	"github.com/dalemusser/campushub/internal/app/services/content"
	forumsvc "github.com/dalemusser/campushub/internal/app/services/forums"
	"github.com/dalemusser/campushub/internal/app/services/membership"
	userstore "github.com/dalemusser/campushub/internal/app/store/users"
	"github.com/dalemusser/campushub/internal/app/system/auditlog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	DB         *mongo.Database
	Log        *zap.Logger
	ErrLog     *uierrors.ErrorLogger
	AuditLog   *auditlog.Logger
	Forums     *forumsvc.Service
	Membership *membership.Service
	Content    *content.Service

	users *userstore.Store
}

func NewHandler(db *mongo.Database, f *forumsvc.Service, m *membership.Service, c *content.Service, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:         db,
		Log:        logger,
		ErrLog:     uierrors.NewErrorLogger(logger),
		AuditLog:   audit,
		Forums:     f,
		Membership: m,
		Content:    c,
		users:      userstore.New(db),
	}
}

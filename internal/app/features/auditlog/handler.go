// internal/app/features/auditlog/handler.go
package auditlog

import (
	"time"

	uierrors "github.com/dalemusser/campushub/internal/app/features/errors"
	"github.com/dalemusser/campushub/internal/app/store/audit"
	forumstore "github.com/dalemusser/campushub/internal/app/store/forums"
	userstore "github.com/dalemusser/campushub/internal/app/store/users"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger

	Audit  *audit.Store
	Users  *userstore.Store
	Forums *forumstore.Store

	// Loc interprets start_date and end_date filters.
	Loc *time.Location
}

// NewHandler constructs an audit log handler bound to db. Dates in
// filters are read in loc (UTC when nil).
func NewHandler(db *mongo.Database, loc *time.Location, logger *zap.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		Log:    logger,
		ErrLog: uierrors.NewErrorLogger(logger),
		Audit:  audit.New(db),
		Users:  userstore.New(db),
		Forums: forumstore.New(db),
		Loc:    loc,
	}
}

// internal/app/features/notifications/handler.go
package notifications

import (
	uierrors "github.com/dalemusser/campushub/internal/app/features/errors"
	notificationstore "github.com/dalemusser/campushub/internal/app/store/notifications"
	outboxstore "github.com/dalemusser/campushub/internal/app/store/outbox"
	"github.com/dalemusser/campushub/internal/app/system/realtime"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the caller's inbox. Hub may be nil, in which case the
// websocket endpoint answers 404.
type Handler struct {
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
	Store  *notificationstore.Store
	Outbox *outboxstore.Store
	Hub    *realtime.Hub
}

func NewHandler(db *mongo.Database, hub *realtime.Hub, logger *zap.Logger) *Handler {
	return &Handler{
		Log:    logger,
		ErrLog: uierrors.NewErrorLogger(logger),
		Store:  notificationstore.New(db),
		Outbox: outboxstore.New(db),
		Hub:    hub,
	}
}

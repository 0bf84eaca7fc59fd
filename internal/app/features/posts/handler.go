// internal/app/features/posts/handler.go
package posts

import (
	uierrors "github.com/dalemusser/campushub/internal/app/features/errors"
	"github.com/dalemusser/campushub/internal/app/services/content"
	"github.com/dalemusser/campushub/internal/app/system/auditlog"
	"go.uber.org/zap"
)

type Handler struct {
	Log      *zap.Logger
	ErrLog   *uierrors.ErrorLogger
	AuditLog *auditlog.Logger
	Content  *content.Service
}

func NewHandler(c *content.Service, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:      logger,
		ErrLog:   uierrors.NewErrorLogger(logger),
		AuditLog: audit,
		Content:  c,
	}
}

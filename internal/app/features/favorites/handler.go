// internal/app/features/favorites/handler.go
package favorites

import (
	uierrors "github.com/dalemusser/campushub/internal/app/features/errors"
	"github.com/dalemusser/campushub/internal/app/services/content"
	"go.uber.org/zap"
)

type Handler struct {
	Log     *zap.Logger
	ErrLog  *uierrors.ErrorLogger
	Content *content.Service
}

func NewHandler(c *content.Service, logger *zap.Logger) *Handler {
	return &Handler{
		Log:     logger,
		ErrLog:  uierrors.NewErrorLogger(logger),
		Content: c,
	}
}

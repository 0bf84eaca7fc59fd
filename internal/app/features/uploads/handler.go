// internal/app/features/uploads/handler.go
package uploads

import (
	"strings"

	uierrors "github.com/dalemusser/campushub/internal/app/features/errors"
	"github.com/dalemusser/campushub/internal/app/system/blobstore"
	"github.com/dalemusser/campushub/internal/app/system/limits"
	"go.uber.org/zap"
)

type Handler struct {
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
	Blobs  blobstore.Store

	maxBytes int64
	types    map[string]bool
}

// NewHandler accepts files up to maxBytes whose detected content type is in
// types. Zero values fall back to the limits defaults.
func NewHandler(blobs blobstore.Store, maxBytes int64, types []string, logger *zap.Logger) *Handler {
	if maxBytes <= 0 {
		maxBytes = limits.DefaultMaxUploadSize
	}
	if len(types) == 0 {
		types = limits.DefaultUploadTypes
	}
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return &Handler{
		Log:      logger,
		ErrLog:   uierrors.NewErrorLogger(logger),
		Blobs:    blobs,
		maxBytes: maxBytes,
		types:    allowed,
	}
}

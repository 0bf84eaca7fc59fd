// internal/app/features/uploads/serve.go
package uploads

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/dalemusser/campushub/internal/app/system/blobstore"
	"github.com/dalemusser/campushub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Serve handles GET /uploads/{key...}. Keys are content-addressed by a
// random uuid and never rewritten, so responses are cacheable forever.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	key := "uploads/" + chi.URLParam(r, "*")
	if !blobstore.ValidKey(key) {
		http.NotFound(w, r)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "serve blob")
	defer cancel()

	rc, obj, err := h.Blobs.Open(ctx, key)
	if errors.Is(err, blobstore.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "uploads: open", err, "")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.Log.Debug("uploads: copy interrupted", zap.String("key", key), zap.Error(err))
	}
}

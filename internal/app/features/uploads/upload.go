// internal/app/features/uploads/upload.go
package uploads

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/campushub/internal/app/features/errors"
	"github.com/dalemusser/campushub/internal/app/features/shared/jsonio"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/blobstore"
	"github.com/dalemusser/campushub/internal/app/system/limits"
	"github.com/dalemusser/campushub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type uploadResponse struct {
	Ref         string `json:"ref"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Upload handles POST /uploads with a multipart "file" field and returns
// the storage reference to use as image_ref, cover_ref or avatar_ref.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+limits.MultipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			uierrors.Invalid(w, h.tooLargeMessage())
			return
		}
		uierrors.Invalid(w, "Le fichier est obligatoire.")
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		uierrors.Invalid(w, h.tooLargeMessage())
		return
	}
	if header.Size == 0 {
		uierrors.Invalid(w, "Le fichier est vide.")
		return
	}

	// The client's Content-Type header is not trusted.
	head := make([]byte, limits.SniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		h.ErrLog.LogBadRequest(w, r, "uploads: read", err, "Lecture du fichier impossible.")
		return
	}
	head = head[:n]
	contentType := http.DetectContentType(head)
	if !h.types[contentType] {
		uierrors.Invalid(w, "Type de fichier non autorisé.")
		return
	}

	key := blobstore.NewKey(time.Now(), header.Filename)
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "upload blob")
	defer cancel()

	body := io.MultiReader(bytes.NewReader(head), file)
	if err := h.Blobs.Put(ctx, key, body, header.Size, contentType); err != nil {
		h.ErrLog.LogServerError(w, r, "uploads: put", err, "")
		return
	}

	h.Log.Info("file uploaded",
		zap.String("key", key),
		zap.String("content_type", contentType),
		zap.Int64("size", header.Size),
		zap.String("user_id", authz.ViewerFrom(r).ID.Hex()))
	jsonio.Created(w, uploadResponse{Ref: key, ContentType: contentType, Size: header.Size})
}

func (h *Handler) tooLargeMessage() string {
	return fmt.Sprintf("Le fichier dépasse la taille maximale (%d Mo).", h.maxBytes>>20)
}

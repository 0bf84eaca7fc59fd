// internal/app/features/posts/comments.go
package posts

import (
	"context"
	"net/http"

	"github.com/dalemusser/campushub/internal/app/features/shared/jsonio"
	"github.com/dalemusser/campushub/internal/app/features/shared/reqparams"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/timeouts"
)

// Comments handles GET /posts/{id}/comments, oldest first.
func (h *Handler) Comments(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	page, err := h.Content.Comments(ctx, authz.ViewerFrom(r), id, reqparams.Keyset(r))
	if err != nil {
		h.ErrLog.Write(w, r, "comments: list", err)
		return
	}
	jsonio.OK(w, page)
}

type commentRequest struct {
	Content string `json:"content"`
}

// AddComment handles POST /posts/{id}/comments.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	var in commentRequest
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "comments: decode", err, "")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	c, err := h.Content.AddComment(ctx, authz.ViewerFrom(r), id, in.Content)
	if err != nil {
		h.ErrLog.Write(w, r, "comments: add", err)
		return
	}
	jsonio.Created(w, c)
}

// DeleteComment handles DELETE /comments/{id}. The comment author, the
// post author and admins may delete.
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Content.DeleteComment(ctx, authz.ViewerFrom(r), id); err != nil {
		h.ErrLog.Write(w, r, "comments: delete", err)
		return
	}
	jsonio.NoContent(w)
}

// internal/app/features/posts/likes.go
package posts

import (
	"context"
	"net/http"

	"github.com/dalemusser/campushub/internal/app/features/shared/jsonio"
	"github.com/dalemusser/campushub/internal/app/features/shared/reqparams"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/timeouts"
)

type likedResponse struct {
	Liked bool `json:"liked"`
}

// IsLiked handles GET /posts/{id}/like.
func (h *Handler) IsLiked(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	liked, err := h.Content.IsLiked(ctx, authz.ViewerFrom(r), id)
	if err != nil {
		h.ErrLog.Write(w, r, "posts: is liked", err)
		return
	}
	jsonio.OK(w, likedResponse{Liked: liked})
}

// Like handles POST /posts/{id}/like. Liking twice is a conflict.
func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Content.Like(ctx, authz.ViewerFrom(r), id); err != nil {
		h.ErrLog.Write(w, r, "posts: like", err)
		return
	}
	jsonio.OK(w, likedResponse{Liked: true})
}

// Unlike handles DELETE /posts/{id}/like. It succeeds when not liked.
func (h *Handler) Unlike(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Content.Unlike(ctx, authz.ViewerFrom(r), id); err != nil {
		h.ErrLog.Write(w, r, "posts: unlike", err)
		return
	}
	jsonio.OK(w, likedResponse{Liked: false})
}

// internal/app/features/forums/content.go
package forums

import (
	"context"
	"net/http"

	"github.com/dalemusser/campushub/internal/app/features/shared/jsonio"
	"github.com/dalemusser/campushub/internal/app/features/shared/reqparams"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/timeouts"
)

// Posts handles GET /forums/{id}/posts.
func (h *Handler) Posts(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	page, err := h.Content.ForumPosts(ctx, authz.ViewerFrom(r), id, reqparams.Keyset(r))
	if err != nil {
		h.ErrLog.Write(w, r, "forums: posts", err)
		return
	}
	jsonio.OK(w, page)
}

// Events handles GET /forums/{id}/events.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	page, err := h.Content.ForumEvents(ctx, authz.ViewerFrom(r), id, reqparams.Keyset(r))
	if err != nil {
		h.ErrLog.Write(w, r, "forums: events", err)
		return
	}
	jsonio.OK(w, page)
}

// PendingPosts handles GET /forums/{id}/moderation/posts.
func (h *Handler) PendingPosts(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	page, err := h.Content.PendingPosts(ctx, authz.ViewerFrom(r), id, reqparams.Keyset(r))
	if err != nil {
		h.ErrLog.Write(w, r, "forums: pending posts", err)
		return
	}
	jsonio.OK(w, page)
}

// PendingEvents handles GET /forums/{id}/moderation/events.
func (h *Handler) PendingEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	page, err := h.Content.PendingEvents(ctx, authz.ViewerFrom(r), id, reqparams.Keyset(r))
	if err != nil {
		h.ErrLog.Write(w, r, "forums: pending events", err)
		return
	}
	jsonio.OK(w, page)
}

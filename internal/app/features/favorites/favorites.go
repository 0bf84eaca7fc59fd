// internal/app/features/favorites/favorites.go
package favorites

import (
	"context"
	"net/http"

	"github.com/dalemusser/campushub/internal/app/features/shared/jsonio"
	"github.com/dalemusser/campushub/internal/app/features/shared/reqparams"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/normalize"
	"github.com/dalemusser/campushub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// List handles GET /favorites?type=post|event. Bookmarks of content the
// caller can no longer see are left out.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	kind := normalize.QueryParam(r.URL.Query().Get("type"))
	page, err := h.Content.Favorites(ctx, authz.ViewerFrom(r), kind, reqparams.Keyset(r))
	if err != nil {
		h.ErrLog.Write(w, r, "favorites: list", err)
		return
	}
	jsonio.OK(w, page)
}

type addRequest struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Add handles POST /favorites.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	var in addRequest
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "favorites: decode", err, "")
		return
	}
	id, err := primitive.ObjectIDFromHex(in.ID)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "favorites: bad id", err, "Identifiant invalide.")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	f, err := h.Content.AddFavorite(ctx, authz.ViewerFrom(r), in.Type, id)
	if err != nil {
		h.ErrLog.Write(w, r, "favorites: add", err)
		return
	}
	jsonio.Created(w, f)
}

type statusResponse struct {
	Favorite bool `json:"favorite"`
}

// Status handles GET /favorites/{type}/{id}.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	yes, err := h.Content.IsFavorite(ctx, authz.ViewerFrom(r), chi.URLParam(r, "type"), id)
	if err != nil {
		h.ErrLog.Write(w, r, "favorites: status", err)
		return
	}
	jsonio.OK(w, statusResponse{Favorite: yes})
}

// Remove handles DELETE /favorites/{type}/{id}.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Content.RemoveFavorite(ctx, authz.ViewerFrom(r), chi.URLParam(r, "type"), id); err != nil {
		h.ErrLog.Write(w, r, "favorites: remove", err)
		return
	}
	jsonio.NoContent(w)
}

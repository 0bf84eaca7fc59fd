// internal/app/features/forums/forums.go
package forums

import (
	"context"
	"net/http"
	"strings"

	"github.com/dalemusser/campushub/internal/app/features/shared/jsonio"
	"github.com/dalemusser/campushub/internal/app/features/shared/reqparams"
	forumsvc "github.com/dalemusser/campushub/internal/app/services/forums"
	forumstore "github.com/dalemusser/campushub/internal/app/store/forums"
	"github.com/dalemusser/campushub/internal/app/system/apperr"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/blobstore"
	"github.com/dalemusser/campushub/internal/app/system/normalize"
	"github.com/dalemusser/campushub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

var errBadCover = apperr.New(apperr.Invalid, "Référence d'image invalide.")

// List handles GET /forums?q=&after=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	q := normalize.QueryParam(r.URL.Query().Get("q"))
	page, err := h.Forums.List(ctx, authz.ViewerFrom(r), q, reqparams.Keyset(r))
	if err != nil {
		h.ErrLog.Write(w, r, "forums: list", err)
		return
	}
	jsonio.OK(w, page)
}

// Mine handles GET /forums/mine: every forum the caller belongs to.
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	views, err := h.Forums.Mine(ctx, authz.ViewerFrom(r))
	if err != nil {
		h.ErrLog.Write(w, r, "forums: mine", err)
		return
	}
	jsonio.OK(w, map[string]any{"items": views})
}

// Get handles GET /forums/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	view, err := h.Forums.Get(ctx, authz.ViewerFrom(r), id)
	if err != nil {
		h.ErrLog.Write(w, r, "forums: get", err)
		return
	}
	jsonio.OK(w, view)
}

type createRequest struct {
	Name                 string `json:"name"`
	Description          string `json:"description"`
	Confidentiality      string `json:"confidentiality"`
	Visibility           string `json:"visibility"`
	RequiresPostApproval bool   `json:"requires_post_approval"`
	CoverRef             string `json:"cover_ref"`
}

// Create handles POST /forums. The caller becomes the forum author.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in createRequest
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "forums: decode", err, "")
		return
	}
	if in.CoverRef != "" && !blobstore.ValidKey(in.CoverRef) {
		h.ErrLog.Write(w, r, "forums: cover", errBadCover)
		return
	}
	v := authz.ViewerFrom(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	f, err := h.Forums.Create(ctx, v, forumsvc.Input{
		Name:                 in.Name,
		Description:          in.Description,
		Confidentiality:      in.Confidentiality,
		Visibility:           in.Visibility,
		RequiresPostApproval: in.RequiresPostApproval,
		CoverRef:             in.CoverRef,
	})
	if err != nil {
		h.ErrLog.Write(w, r, "forums: create", err)
		return
	}
	h.AuditLog.ForumCreated(ctx, r, v.ID, f.ID, f.Name, f.Confidentiality)
	h.Log.Info("forum created", zap.String("forum_id", f.ID.Hex()), zap.String("author_id", v.ID.Hex()))
	jsonio.Created(w, f)
}

type updateRequest struct {
	Name                 *string `json:"name"`
	Description          *string `json:"description"`
	Confidentiality      *string `json:"confidentiality"`
	Visibility           *string `json:"visibility"`
	RequiresPostApproval *bool   `json:"requires_post_approval"`
	CoverRef             *string `json:"cover_ref"`
}

func (u updateRequest) changed() string {
	var fields []string
	if u.Name != nil {
		fields = append(fields, "name")
	}
	if u.Description != nil {
		fields = append(fields, "description")
	}
	if u.Confidentiality != nil {
		fields = append(fields, "confidentiality")
	}
	if u.Visibility != nil {
		fields = append(fields, "visibility")
	}
	if u.RequiresPostApproval != nil {
		fields = append(fields, "requires_post_approval")
	}
	if u.CoverRef != nil {
		fields = append(fields, "cover_ref")
	}
	return strings.Join(fields, ",")
}

// Update handles PATCH /forums/{id}. Only forum managers may change settings.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	var in updateRequest
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "forums: decode", err, "")
		return
	}
	if in.CoverRef != nil && *in.CoverRef != "" && !blobstore.ValidKey(*in.CoverRef) {
		h.ErrLog.Write(w, r, "forums: cover", errBadCover)
		return
	}
	v := authz.ViewerFrom(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	f, err := h.Forums.Update(ctx, v, id, forumstore.Settings{
		Name:                 in.Name,
		Description:          in.Description,
		Confidentiality:      in.Confidentiality,
		Visibility:           in.Visibility,
		RequiresPostApproval: in.RequiresPostApproval,
		CoverRef:             in.CoverRef,
	})
	if err != nil {
		h.ErrLog.Write(w, r, "forums: update", err)
		return
	}
	h.AuditLog.ForumUpdated(ctx, r, v.ID, f.ID, in.changed())
	jsonio.OK(w, f)
}

// Delete handles DELETE /forums/{id}, removing memberships, posts and events.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	v := authz.ViewerFrom(r)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "forum delete")
	defer cancel()

	f, err := h.Forums.Delete(ctx, v, id)
	if err != nil {
		h.ErrLog.Write(w, r, "forums: delete", err)
		return
	}
	h.AuditLog.ForumDeleted(ctx, r, v.ID, f.ID, f.Name)
	h.Log.Info("forum deleted", zap.String("forum_id", f.ID.Hex()), zap.String("actor_id", v.ID.Hex()))
	jsonio.NoContent(w)
}

// internal/app/features/posts/posts.go
package posts

import (
	"context"
	"net/http"

	"github.com/dalemusser/campushub/internal/app/features/shared/jsonio"
	"github.com/dalemusser/campushub/internal/app/features/shared/reqparams"
	"github.com/dalemusser/campushub/internal/app/services/content"
	"github.com/dalemusser/campushub/internal/app/system/apperr"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/blobstore"
	"github.com/dalemusser/campushub/internal/app/system/timeouts"
	"github.com/dalemusser/campushub/internal/domain/models"
)

var errBadImage = apperr.New(apperr.Invalid, "Référence d'image invalide.")

func validImage(ref string) bool {
	return ref == "" || blobstore.ValidKey(ref)
}

// Feed handles GET /posts: every post the caller may see, newest first.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	page, err := h.Content.Feed(ctx, authz.ViewerFrom(r), reqparams.Keyset(r))
	if err != nil {
		h.ErrLog.Write(w, r, "posts: feed", err)
		return
	}
	jsonio.OK(w, page)
}

// MyPending handles GET /posts/pending: the caller's posts awaiting moderation.
func (h *Handler) MyPending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	page, err := h.Content.MyPendingPosts(ctx, authz.ViewerFrom(r), reqparams.Keyset(r))
	if err != nil {
		h.ErrLog.Write(w, r, "posts: pending", err)
		return
	}
	jsonio.OK(w, page)
}

// Get handles GET /posts/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, err := h.Content.GetPost(ctx, authz.ViewerFrom(r), id)
	if err != nil {
		h.ErrLog.Write(w, r, "posts: get", err)
		return
	}
	jsonio.OK(w, p)
}

type createRequest struct {
	ForumID  string `json:"forum_id"`
	Content  string `json:"content"`
	ImageRef string `json:"image_ref"`
}

// Create handles POST /posts. Without forum_id the post is public.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in createRequest
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "posts: decode", err, "")
		return
	}
	forumID, ok := reqparams.OptionalObjectID(w, in.ForumID)
	if !ok {
		return
	}
	if !validImage(in.ImageRef) {
		h.ErrLog.Write(w, r, "posts: image", errBadImage)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	p, err := h.Content.CreatePost(ctx, authz.ViewerFrom(r), content.PostInput{
		ForumID:  forumID,
		Content:  in.Content,
		ImageRef: in.ImageRef,
	})
	if err != nil {
		h.ErrLog.Write(w, r, "posts: create", err)
		return
	}
	jsonio.Created(w, p)
}

type updateRequest struct {
	Content  string  `json:"content"`
	ImageRef *string `json:"image_ref"`
}

// Update handles PATCH /posts/{id}. Authors only.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	var in updateRequest
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "posts: decode", err, "")
		return
	}
	if in.ImageRef != nil && !validImage(*in.ImageRef) {
		h.ErrLog.Write(w, r, "posts: image", errBadImage)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, err := h.Content.UpdatePost(ctx, authz.ViewerFrom(r), id, in.Content, in.ImageRef)
	if err != nil {
		h.ErrLog.Write(w, r, "posts: update", err)
		return
	}
	jsonio.OK(w, p)
}

// Delete handles DELETE /posts/{id}, removing its comments and favorites.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Content.DeletePost(ctx, authz.ViewerFrom(r), id); err != nil {
		h.ErrLog.Write(w, r, "posts: delete", err)
		return
	}
	jsonio.NoContent(w)
}

// Approve handles POST /posts/{id}/approve.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, "approved")
}

// Reject handles POST /posts/{id}/reject.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, "rejected")
}

func (h *Handler) moderate(w http.ResponseWriter, r *http.Request, decision string) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	v := authz.ViewerFrom(r)
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var (
		p   models.Post
		err error
	)
	if decision == "approved" {
		p, err = h.Content.ApprovePost(ctx, v, id)
	} else {
		p, err = h.Content.RejectPost(ctx, v, id)
	}
	if err != nil {
		h.ErrLog.Write(w, r, "posts: moderate", err)
		return
	}
	h.AuditLog.ContentModerated(ctx, r, v.ID, p.AuthorID, p.ForumID, "post", p.ID, decision)
	jsonio.OK(w, p)
}

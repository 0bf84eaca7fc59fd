// internal/app/features/users/profile.go
package users

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/campushub/internal/app/features/shared/jsonio"
	"github.com/dalemusser/campushub/internal/app/features/shared/reqparams"
	userstore "github.com/dalemusser/campushub/internal/app/store/users"
	"github.com/dalemusser/campushub/internal/app/system/apperr"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/blobstore"
	"github.com/dalemusser/campushub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/campushub/internal/app/system/normalize"
	"github.com/dalemusser/campushub/internal/app/system/timeouts"
	"github.com/dalemusser/campushub/internal/domain/models"
)

const maxBioLength = 1000

var (
	errNameRequired = apperr.New(apperr.Invalid, "Le nom est obligatoire.")
	errBioTooLong   = apperr.New(apperr.Invalid, "La biographie est trop longue.")
	errBadAvatar    = apperr.New(apperr.Invalid, "Référence d'image invalide.")
)

// publicProfile is what other users see. Email and account state stay private.
type publicProfile struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Bio       string    `json:"bio,omitempty"`
	Faculty   string    `json:"faculty,omitempty"`
	AvatarRef string    `json:"avatar_ref,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toPublic(u *models.User) publicProfile {
	return publicProfile{
		ID:        u.ID.Hex(),
		FullName:  u.FullName,
		Bio:       u.Bio,
		Faculty:   u.Faculty,
		AvatarRef: u.AvatarRef,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// Profile handles GET /users/{id}. Owners and admins get the full record.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	v := authz.ViewerFrom(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.users.GetByID(ctx, id)
	if errors.Is(err, userstore.ErrNotFound) {
		h.ErrLog.Write(w, r, "profile: not found", apperr.ErrUserNotFound)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "profile: load", err, "")
		return
	}
	if v.ID == u.ID || canManageUsers(v) {
		jsonio.OK(w, u)
		return
	}
	jsonio.OK(w, toPublic(u))
}

type profileRequest struct {
	FullName  *string `json:"full_name"`
	Bio       *string `json:"bio"`
	Faculty   *string `json:"faculty"`
	AvatarRef *string `json:"avatar_ref"`
}

// UpdateProfile handles PATCH /users/me. Absent fields are left unchanged.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in profileRequest
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "profile: decode", err, "")
		return
	}

	upd := userstore.ProfileUpdate{Faculty: in.Faculty, AvatarRef: in.AvatarRef}
	if in.FullName != nil {
		if normalize.Name(*in.FullName) == "" {
			h.ErrLog.Write(w, r, "profile: validation", errNameRequired)
			return
		}
		upd.FullName = in.FullName
	}
	if in.Bio != nil {
		bio := htmlsanitize.Text(*in.Bio)
		if len([]rune(bio)) > maxBioLength {
			h.ErrLog.Write(w, r, "profile: validation", errBioTooLong)
			return
		}
		upd.Bio = &bio
	}
	if in.AvatarRef != nil && *in.AvatarRef != "" && !blobstore.ValidKey(*in.AvatarRef) {
		h.ErrLog.Write(w, r, "profile: validation", errBadAvatar)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.users.UpdateProfile(ctx, authz.ViewerFrom(r).ID, upd)
	if errors.Is(err, userstore.ErrNotFound) {
		h.ErrLog.Write(w, r, "profile: missing user", apperr.ErrUserNotFound)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "profile: update", err, "")
		return
	}
	jsonio.OK(w, u)
}

// Posts handles GET /users/{id}/posts: the author's approved posts the
// caller is allowed to see.
func (h *Handler) Posts(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	page, err := h.Content.AuthorPosts(ctx, authz.ViewerFrom(r), id, reqparams.Keyset(r))
	if err != nil {
		h.ErrLog.Write(w, r, "profile: posts", err)
		return
	}
	jsonio.OK(w, page)
}

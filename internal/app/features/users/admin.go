// internal/app/features/users/admin.go
package users

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/dalemusser/campushub/internal/app/features/shared/jsonio"
	"github.com/dalemusser/campushub/internal/app/features/shared/reqparams"
	userstore "github.com/dalemusser/campushub/internal/app/store/users"
	"github.com/dalemusser/campushub/internal/app/system/apperr"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/normalize"
	"github.com/dalemusser/campushub/internal/app/system/paging"
	"github.com/dalemusser/campushub/internal/app/system/search"
	"github.com/dalemusser/campushub/internal/app/system/timeouts"
	"github.com/dalemusser/campushub/internal/domain/models"
)

var (
	errBadRole       = apperr.New(apperr.Invalid, "Rôle inconnu.")
	errBadPermission = apperr.New(apperr.Invalid, "Permission inconnue.")
	errBadStatus     = apperr.New(apperr.Invalid, "Statut inconnu.")
	errSelf          = apperr.New(apperr.Conflict, "Vous ne pouvez pas modifier votre propre compte ainsi.")
	errSuperAdmin    = apperr.New(apperr.Forbidden, "Seul un super-administrateur peut faire cela.")
)

// canManageUsers covers admins and holders of the users:manage permission.
func canManageUsers(v authz.Viewer) bool {
	return v.IsAdmin() || v.Has(models.PermManageUsers)
}

// List handles GET /users?q=&role=&status=&after=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	v := authz.ViewerFrom(r)
	if !canManageUsers(v) {
		h.ErrLog.Write(w, r, "users: list", apperr.ErrForbidden)
		return
	}
	q := r.URL.Query()
	f := userstore.ListFilter{
		Search: normalize.QueryParam(q.Get("q")),
		Role:   normalize.Role(q.Get("role")),
		Status: normalize.Status(q.Get("status")),
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	rows, hasNext, err := h.users.List(ctx, f, reqparams.Keyset(r))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "users: list", err, "")
		return
	}
	page := paging.Page[models.User]{Items: rows}
	if n := len(rows); n > 0 {
		last := rows[n-1]
		key := last.FullNameCI
		if search.EmailPivotOK(f.Search, f.Status) {
			key = last.EmailCI
		}
		page.NextCursor = paging.NextCursor(hasNext, key, last.ID)
	}
	if page.Items == nil {
		page.Items = []models.User{}
	}
	jsonio.OK(w, page)
}

// target loads the user named by {id} and applies the rules shared by every
// admin action: the caller manages users, does not act on themselves, and
// only a superadmin touches a superadmin.
func (h *Handler) target(ctx context.Context, w http.ResponseWriter, r *http.Request) (authz.Viewer, *models.User, bool) {
	v := authz.ViewerFrom(r)
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return v, nil, false
	}
	if !canManageUsers(v) {
		h.ErrLog.Write(w, r, "users: admin", apperr.ErrForbidden)
		return v, nil, false
	}
	if id == v.ID {
		h.ErrLog.Write(w, r, "users: admin self", errSelf)
		return v, nil, false
	}
	u, err := h.users.GetByID(ctx, id)
	if errors.Is(err, userstore.ErrNotFound) {
		h.ErrLog.Write(w, r, "users: admin target", apperr.ErrUserNotFound)
		return v, nil, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "users: admin target", err, "")
		return v, nil, false
	}
	if u.Role == models.RoleSuperAdmin && !v.IsSuperAdmin() {
		h.ErrLog.Write(w, r, "users: admin superadmin", errSuperAdmin)
		return v, nil, false
	}
	return v, u, true
}

type roleRequest struct {
	Role string `json:"role"`
}

// SetRole handles PUT /users/{id}/role. Roles are an admin decision; only a
// superadmin may grant superadmin.
func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request) {
	var in roleRequest
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "users: role decode", err, "")
		return
	}
	role := normalize.Role(in.Role)
	if !authz.ValidRole(role) {
		h.ErrLog.Write(w, r, "users: role", errBadRole)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	v, u, ok := h.target(ctx, w, r)
	if !ok {
		return
	}
	if !v.IsAdmin() {
		h.ErrLog.Write(w, r, "users: role", apperr.ErrForbidden)
		return
	}
	if role == models.RoleSuperAdmin && !v.IsSuperAdmin() {
		h.ErrLog.Write(w, r, "users: role", errSuperAdmin)
		return
	}

	updated, err := h.users.SetRole(ctx, u.ID, role)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "users: set role", err, "")
		return
	}
	h.AuditLog.UserRoleChanged(ctx, r, v.ID, u.ID, v.Role, u.Role, role)
	jsonio.OK(w, updated)
}

type permissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// SetPermissions handles PUT /users/{id}/permissions, replacing the set.
func (h *Handler) SetPermissions(w http.ResponseWriter, r *http.Request) {
	var in permissionsRequest
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "users: permissions decode", err, "")
		return
	}
	perms, err := cleanPermissions(in.Permissions)
	if err != nil {
		h.ErrLog.Write(w, r, "users: permissions", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	v, u, ok := h.target(ctx, w, r)
	if !ok {
		return
	}
	// users:manage holders cannot hand out users:manage.
	if !v.IsAdmin() && containsString(perms, models.PermManageUsers) != u.HasPermission(models.PermManageUsers) {
		h.ErrLog.Write(w, r, "users: permissions", apperr.ErrForbidden)
		return
	}

	updated, err := h.users.SetPermissions(ctx, u.ID, perms)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "users: set permissions", err, "")
		return
	}
	h.AuditLog.UserPermissionsChanged(ctx, r, v.ID, u.ID, v.Role, perms)
	jsonio.OK(w, updated)
}

func cleanPermissions(in []string) ([]string, error) {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.ToLower(strings.TrimSpace(p))
		if !authz.ValidPermission(p) {
			return nil, errBadPermission
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

type statusRequest struct {
	Status string `json:"status"`
}

// SetStatus handles PUT /users/{id}/status (active | disabled). A disabled
// user is signed out on their next request because the session loader
// refuses disabled accounts.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var in statusRequest
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "users: status decode", err, "")
		return
	}
	status := normalize.Status(in.Status)
	if status != userstore.StatusActive && status != userstore.StatusDisabled {
		h.ErrLog.Write(w, r, "users: status", errBadStatus)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	v, u, ok := h.target(ctx, w, r)
	if !ok {
		return
	}
	updated, err := h.users.SetStatus(ctx, u.ID, status)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "users: set status", err, "")
		return
	}
	if status == userstore.StatusDisabled {
		h.AuditLog.UserDisabled(ctx, r, v.ID, u.ID, v.Role)
	} else {
		h.AuditLog.UserEnabled(ctx, r, v.ID, u.ID, v.Role)
	}
	jsonio.OK(w, updated)
}


// internal/app/features/accounts/login.go
package accounts

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/campushub/internal/app/features/shared/jsonio"
	userstore "github.com/dalemusser/campushub/internal/app/store/users"
	"github.com/dalemusser/campushub/internal/app/system/apperr"
	"github.com/dalemusser/campushub/internal/app/system/auth"
	"github.com/dalemusser/campushub/internal/app/system/authutil"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/normalize"
	"github.com/dalemusser/campushub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /auth/login.
//
// Unknown email and wrong password return the same 401 so the endpoint does
// not reveal which addresses have accounts.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "login: decode", err, "")
		return
	}
	if wait, err := h.Limiter.Check(r, in.Email); err != nil {
		h.tooMany(w, r, wait, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.users.GetByEmail(ctx, in.Email)
	if errors.Is(err, userstore.ErrNotFound) {
		h.AuditLog.LoginFailedUserNotFound(ctx, r, normalize.Email(in.Email))
		h.ErrLog.Write(w, r, "login: unknown email", apperr.ErrBadCredentials)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "login: load user", err, "")
		return
	}
	if !authutil.CheckPassword(in.Password, u.PasswordHash) {
		h.AuditLog.LoginFailedWrongPassword(ctx, r, u.ID)
		h.ErrLog.Write(w, r, "login: wrong password", apperr.ErrBadCredentials)
		return
	}
	if normalize.Status(u.Status) == userstore.StatusDisabled {
		h.AuditLog.LoginFailedUserDisabled(ctx, r, u.ID)
		h.ErrLog.Write(w, r, "login: disabled", apperr.ErrAccountDisabled)
		return
	}

	if err := h.SessionMgr.Login(w, r, u.ID.Hex()); err != nil {
		h.ErrLog.LogServerError(w, r, "login: save session", err, "")
		return
	}
	h.Limiter.Succeeded(in.Email)
	h.AuditLog.LoginSuccess(ctx, r, u.ID, "password")
	jsonio.OK(w, u)
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	if err := h.SessionMgr.Logout(w, r); err != nil {
		h.Log.Error("logout: save session", zap.Error(err))
	}
	if u != nil {
		h.AuditLog.Logout(r.Context(), r, u.ID)
	}
	jsonio.NoContent(w)
}

// Me handles GET /auth/me with the full account record.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	v := authz.ViewerFrom(r)
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.users.GetByID(ctx, v.ID)
	if errors.Is(err, userstore.ErrNotFound) {
		h.ErrLog.Write(w, r, "me: missing user", apperr.ErrUserNotFound)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "me: load user", err, "")
		return
	}
	jsonio.OK(w, u)
}

type passwordRequest struct {
	Current string `json:"current"`
	New     string `json:"new"`
}

// ChangePassword handles PUT /auth/password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var in passwordRequest
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "password: decode", err, "")
		return
	}
	v := authz.ViewerFrom(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.users.GetByID(ctx, v.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "password: load user", err, "")
		return
	}
	if !authutil.CheckPassword(in.Current, u.PasswordHash) {
		h.ErrLog.Write(w, r, "password: wrong current", apperr.ErrBadCredentials)
		return
	}
	if err := authutil.ValidatePassword(in.New); err != nil {
		h.ErrLog.Write(w, r, "password: validation", err)
		return
	}
	hash, err := authutil.HashPassword(in.New)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "password: hash", err, "")
		return
	}
	if err := h.users.SetPasswordHash(ctx, u.ID, hash); err != nil {
		h.ErrLog.LogServerError(w, r, "password: save", err, "")
		return
	}
	h.AuditLog.PasswordChanged(ctx, r, u.ID)
	jsonio.NoContent(w)
}

// internal/app/features/accounts/register.go
package accounts

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dalemusser/campushub/internal/app/features/shared/jsonio"
	userstore "github.com/dalemusser/campushub/internal/app/store/users"
	"github.com/dalemusser/campushub/internal/app/system/apperr"
	"github.com/dalemusser/campushub/internal/app/system/authutil"
	"github.com/dalemusser/campushub/internal/app/system/normalize"
	"github.com/dalemusser/campushub/internal/app/system/timeouts"
	"github.com/dalemusser/campushub/internal/domain/models"
	"go.uber.org/zap"
)

var errNameRequired = apperr.New(apperr.Invalid, "Le nom est obligatoire.")

type registerRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Faculty  string `json:"faculty"`
}

// Register handles POST /auth/register. The new account is signed in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "register: decode", err, "")
		return
	}
	if wait, err := h.Limiter.Check(r, ""); err != nil {
		h.tooMany(w, r, wait, err)
		return
	}
	if normalize.Name(in.FullName) == "" {
		h.ErrLog.Write(w, r, "register: validation", errNameRequired)
		return
	}
	if err := authutil.ValidateEmail(in.Email); err != nil {
		h.ErrLog.Write(w, r, "register: validation", err)
		return
	}
	if err := authutil.ValidatePassword(in.Password); err != nil {
		h.ErrLog.Write(w, r, "register: validation", err)
		return
	}

	hash, err := authutil.HashPassword(in.Password)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "register: hash password", err, "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.users.Create(ctx, models.User{
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: hash,
		Faculty:      normalize.Name(in.Faculty),
		Role:         models.RoleUser,
	})
	if errors.Is(err, userstore.ErrDuplicateEmail) {
		h.ErrLog.Write(w, r, "register: duplicate", apperr.ErrEmailTaken)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "register: create user", err, "")
		return
	}

	if err := h.SessionMgr.Login(w, r, u.ID.Hex()); err != nil {
		h.ErrLog.LogServerError(w, r, "register: save session", err, "")
		return
	}
	h.AuditLog.UserRegistered(ctx, r, u.ID, "password")
	h.Log.Info("user registered", zap.String("user_id", u.ID.Hex()))
	jsonio.Created(w, u)
}

func (h *Handler) tooMany(w http.ResponseWriter, r *http.Request, wait time.Duration, err error) {
	secs := int(wait.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	h.ErrLog.Write(w, r, "rate limited", err)
}

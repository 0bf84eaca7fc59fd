// internal/app/features/notifications/inbox.go
package notifications

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/dalemusser/campushub/internal/app/features/shared/jsonio"
	"github.com/dalemusser/campushub/internal/app/features/shared/reqparams"
	notificationstore "github.com/dalemusser/campushub/internal/app/store/notifications"
	"github.com/dalemusser/campushub/internal/app/system/apperr"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/paging"
	"github.com/dalemusser/campushub/internal/app/system/timeouts"
	"github.com/dalemusser/campushub/internal/domain/models"
)

// List handles GET /notifications?unread=true, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	v := authz.ViewerFrom(r)
	unread, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	ks := reqparams.Keyset(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	rows, hasNext, err := h.Store.ListForRecipient(ctx, v.ID, unread, ks)
	if err != nil {
		h.ErrLog.Write(w, r, "notifications: list", err)
		return
	}
	page := paging.Page[models.Notification]{Items: rows}
	if len(rows) > 0 {
		page.NextCursor = paging.NextCursor(hasNext, "", rows[len(rows)-1].ID)
	}
	jsonio.OK(w, page)
}

type countResponse struct {
	Count int64 `json:"count"`
}

// UnreadCount handles GET /notifications/unread-count.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	n, err := h.Store.UnreadCount(ctx, authz.ViewerFrom(r).ID)
	if err != nil {
		h.ErrLog.Write(w, r, "notifications: unread count", err)
		return
	}
	jsonio.OK(w, countResponse{Count: n})
}

// MarkRead handles POST /notifications/{id}/read. Someone else's
// notification is reported as not found.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Store.MarkRead(ctx, id, authz.ViewerFrom(r).ID); err != nil {
		h.ErrLog.Write(w, r, "notifications: mark read", storeErr(err))
		return
	}
	jsonio.NoContent(w)
}

// MarkAllRead handles POST /notifications/read-all and reports how many
// notifications changed.
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	n, err := h.Store.MarkAllRead(ctx, authz.ViewerFrom(r).ID)
	if err != nil {
		h.ErrLog.Write(w, r, "notifications: mark all read", err)
		return
	}
	jsonio.OK(w, countResponse{Count: n})
}

// Delete handles DELETE /notifications/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Store.Delete(ctx, id, authz.ViewerFrom(r).ID); err != nil {
		h.ErrLog.Write(w, r, "notifications: delete", storeErr(err))
		return
	}
	jsonio.NoContent(w)
}

func storeErr(err error) error {
	if errors.Is(err, notificationstore.ErrNotFound) {
		return apperr.ErrNotificationNotFound
	}
	return err
}

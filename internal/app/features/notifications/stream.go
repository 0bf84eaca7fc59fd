// internal/app/features/notifications/stream.go
package notifications

import (
	"context"
	"net/http"

	"github.com/dalemusser/campushub/internal/app/features/shared/jsonio"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/timeouts"
)

// Stream handles GET /notifications/ws: a websocket that receives each
// notification as it is delivered to the caller.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.Hub == nil {
		http.NotFound(w, r)
		return
	}
	h.Hub.ServeWS(w, r, authz.ViewerFrom(r).ID)
}

type outboxStats struct {
	ByStatus map[string]int64 `json:"by_status"`
}

// OutboxStats handles GET /notifications/outbox (admins): intent counts by
// status, for spotting a stuck dispatcher.
func (h *Handler) OutboxStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	counts, err := h.Outbox.CountByStatus(ctx)
	if err != nil {
		h.ErrLog.Write(w, r, "notifications: outbox stats", err)
		return
	}
	jsonio.OK(w, outboxStats{ByStatus: counts})
}

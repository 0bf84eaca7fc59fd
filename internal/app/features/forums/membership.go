// internal/app/features/forums/membership.go
package forums

import (
	"context"
	"net/http"

	"github.com/dalemusser/campushub/internal/app/features/shared/jsonio"
	"github.com/dalemusser/campushub/internal/app/features/shared/reqparams"
	"github.com/dalemusser/campushub/internal/app/store/audit"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/timeouts"
	"github.com/dalemusser/campushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memberView adds the member's display name to a membership row.
type memberView struct {
	models.ForumMembership
	FullName string `json:"full_name"`
}

func (h *Handler) withNames(ctx context.Context, rows []models.ForumMembership) ([]memberView, error) {
	ids := make([]primitive.ObjectID, len(rows))
	for i, m := range rows {
		ids[i] = m.UserID
	}
	names, err := h.users.NamesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]memberView, len(rows))
	for i, m := range rows {
		out[i] = memberView{ForumMembership: m, FullName: names[m.UserID]}
	}
	return out, nil
}

// Status handles GET /forums/{id}/membership. A caller with no row gets
// {"status":""}.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	m, found, err := h.Membership.Status(ctx, authz.ViewerFrom(r), id)
	if err != nil {
		h.ErrLog.Write(w, r, "membership: status", err)
		return
	}
	if !found {
		jsonio.OK(w, map[string]string{"status": ""})
		return
	}
	jsonio.OK(w, m)
}

// Join handles POST /forums/{id}/join: public forums accept at once,
// private forums record a pending request.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	v := authz.ViewerFrom(r)
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	m, err := h.Membership.Join(ctx, v, id)
	if err != nil {
		h.ErrLog.Write(w, r, "membership: join", err)
		return
	}
	event := audit.EventMemberJoined
	if m.Status == models.MembershipPending {
		event = audit.EventJoinRequested
	}
	h.AuditLog.Membership(ctx, r, event, v.ID, v.ID, id)
	jsonio.OK(w, m)
}

// RequestJoin handles POST /forums/{id}/request on a private forum.
func (h *Handler) RequestJoin(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	v := authz.ViewerFrom(r)
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	m, err := h.Membership.RequestJoin(ctx, v, id)
	if err != nil {
		h.ErrLog.Write(w, r, "membership: request", err)
		return
	}
	h.AuditLog.Membership(ctx, r, audit.EventJoinRequested, v.ID, v.ID, id)
	jsonio.OK(w, m)
}

// CancelRequest handles DELETE /forums/{id}/request.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	v := authz.ViewerFrom(r)
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Membership.CancelRequest(ctx, v, id); err != nil {
		h.ErrLog.Write(w, r, "membership: cancel", err)
		return
	}
	h.AuditLog.Membership(ctx, r, audit.EventJoinRequestCancelled, v.ID, v.ID, id)
	jsonio.NoContent(w)
}

// Leave handles POST /forums/{id}/leave. The forum author cannot leave.
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	v := authz.ViewerFrom(r)
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Membership.Leave(ctx, v, id); err != nil {
		h.ErrLog.Write(w, r, "membership: leave", err)
		return
	}
	h.AuditLog.Membership(ctx, r, audit.EventMemberLeft, v.ID, v.ID, id)
	jsonio.NoContent(w)
}

// RemoveMember handles DELETE /forums/{id}/members/{userID}.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := reqparams.ObjectID(w, r, "userID")
	if !ok {
		return
	}
	v := authz.ViewerFrom(r)
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Membership.RemoveMember(ctx, v, id, userID); err != nil {
		h.ErrLog.Write(w, r, "membership: remove", err)
		return
	}
	h.AuditLog.Membership(ctx, r, audit.EventMemberRemoved, v.ID, userID, id)
	jsonio.NoContent(w)
}

// Members handles GET /forums/{id}/members.
func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	rows, err := h.Membership.Members(ctx, authz.ViewerFrom(r), id)
	if err != nil {
		h.ErrLog.Write(w, r, "membership: members", err)
		return
	}
	views, err := h.withNames(ctx, rows)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "membership: member names", err, "")
		return
	}
	jsonio.OK(w, map[string]any{"items": views})
}

// PendingRequests handles GET /forums/{id}/requests for forum managers.
func (h *Handler) PendingRequests(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	rows, err := h.Membership.PendingRequests(ctx, authz.ViewerFrom(r), id)
	if err != nil {
		h.ErrLog.Write(w, r, "membership: requests", err)
		return
	}
	views, err := h.withNames(ctx, rows)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "membership: requester names", err, "")
		return
	}
	jsonio.OK(w, map[string]any{"items": views})
}

// Accept handles POST /forums/{id}/requests/{userID}/accept.
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

// Reject handles POST /forums/{id}/requests/{userID}/reject.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, accept bool) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := reqparams.ObjectID(w, r, "userID")
	if !ok {
		return
	}
	v := authz.ViewerFrom(r)
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var (
		m     models.ForumMembership
		err   error
		event string
	)
	if accept {
		m, err = h.Membership.Accept(ctx, v, id, userID)
		event = audit.EventJoinRequestAccepted
	} else {
		m, err = h.Membership.Reject(ctx, v, id, userID)
		event = audit.EventJoinRequestRejected
	}
	if err != nil {
		h.ErrLog.Write(w, r, "membership: decide", err)
		return
	}
	h.AuditLog.Membership(ctx, r, event, v.ID, userID, id)
	jsonio.OK(w, m)
}

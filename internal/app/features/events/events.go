// internal/app/features/events/events.go
package events

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

// eventRequest carries dates as YYYY-MM-DD and times as HH:MM, local to
// the campus time zone.
type eventRequest struct {
	ForumID         string `json:"forum_id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Location        string `json:"location"`
	ImageRef        string `json:"image_ref"`
	StartDate       string `json:"start_date"`
	StartTime       string `json:"start_time"`
	EndDate         string `json:"end_date"`
	EndTime         string `json:"end_time"`
	MaxParticipants int    `json:"max_participants"`
}

func (in eventRequest) input() content.EventInput {
	return content.EventInput{
		Title:           in.Title,
		Description:     in.Description,
		Location:        in.Location,
		ImageRef:        in.ImageRef,
		StartDate:       in.StartDate,
		StartTime:       in.StartTime,
		EndDate:         in.EndDate,
		EndTime:         in.EndTime,
		MaxParticipants: in.MaxParticipants,
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (eventRequest, bool) {
	var in eventRequest
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "events: decode", err, "")
		return in, false
	}
	if in.ImageRef != "" && !blobstore.ValidKey(in.ImageRef) {
		h.ErrLog.Write(w, r, "events: image", errBadImage)
		return in, false
	}
	return in, true
}

// Upcoming handles GET /events: visible events that have not started,
// soonest first.
func (h *Handler) Upcoming(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	page, err := h.Content.UpcomingEvents(ctx, authz.ViewerFrom(r), reqparams.Keyset(r))
	if err != nil {
		h.ErrLog.Write(w, r, "events: upcoming", err)
		return
	}
	jsonio.OK(w, page)
}

// Get handles GET /events/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	e, err := h.Content.GetEvent(ctx, authz.ViewerFrom(r), id)
	if err != nil {
		h.ErrLog.Write(w, r, "events: get", err)
		return
	}
	jsonio.OK(w, e)
}

// Create handles POST /events.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	forumID, ok := reqparams.OptionalObjectID(w, in.ForumID)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	input := in.input()
	input.ForumID = forumID
	e, err := h.Content.CreateEvent(ctx, authz.ViewerFrom(r), input)
	if err != nil {
		h.ErrLog.Write(w, r, "events: create", err)
		return
	}
	jsonio.Created(w, e)
}

// Update handles PUT /events/{id}. Every editable field is replaced; the
// forum cannot change.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	e, err := h.Content.UpdateEvent(ctx, authz.ViewerFrom(r), id, in.input())
	if err != nil {
		h.ErrLog.Write(w, r, "events: update", err)
		return
	}
	jsonio.OK(w, e)
}

// Delete handles DELETE /events/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Content.DeleteEvent(ctx, authz.ViewerFrom(r), id); err != nil {
		h.ErrLog.Write(w, r, "events: delete", err)
		return
	}
	jsonio.NoContent(w)
}

// Cancel handles POST /events/{id}/cancel. Participants are notified.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	e, err := h.Content.CancelEvent(ctx, authz.ViewerFrom(r), id)
	if err != nil {
		h.ErrLog.Write(w, r, "events: cancel", err)
		return
	}
	jsonio.OK(w, e)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, "approved")
}

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
		e   models.Event
		err error
	)
	if decision == "approved" {
		e, err = h.Content.ApproveEvent(ctx, v, id)
	} else {
		e, err = h.Content.RejectEvent(ctx, v, id)
	}
	if err != nil {
		h.ErrLog.Write(w, r, "events: moderate", err)
		return
	}
	h.AuditLog.ContentModerated(ctx, r, v.ID, e.AuthorID, e.ForumID, "event", e.ID, decision)
	jsonio.OK(w, e)
}

// internal/app/features/events/participation.go
package events

import (
	"context"
	"net/http"

	"github.com/dalemusser/campushub/internal/app/features/shared/jsonio"
	"github.com/dalemusser/campushub/internal/app/features/shared/reqparams"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/timeouts"
)

type participationResponse struct {
	Participating bool `json:"participating"`
	Count         int  `json:"count"`
}

func (h *Handler) IsParticipating(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	v := authz.ViewerFrom(r)
	e, err := h.Content.GetEvent(ctx, v, id)
	if err != nil {
		h.ErrLog.Write(w, r, "events: participation", err)
		return
	}
	yes, err := h.Content.IsParticipating(ctx, v, id)
	if err != nil {
		h.ErrLog.Write(w, r, "events: participation", err)
		return
	}
	jsonio.OK(w, participationResponse{Participating: yes, Count: len(e.Participants)})
}

// Participate handles POST /events/{id}/participation. A full or
// cancelled event is a conflict.
func (h *Handler) Participate(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	e, err := h.Content.Participate(ctx, authz.ViewerFrom(r), id)
	if err != nil {
		h.ErrLog.Write(w, r, "events: participate", err)
		return
	}
	jsonio.OK(w, participationResponse{Participating: true, Count: len(e.Participants)})
}

// Unparticipate handles DELETE /events/{id}/participation.
func (h *Handler) Unparticipate(w http.ResponseWriter, r *http.Request) {
	id, ok := reqparams.ObjectID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	e, err := h.Content.Unparticipate(ctx, authz.ViewerFrom(r), id)
	if err != nil {
		h.ErrLog.Write(w, r, "events: unparticipate", err)
		return
	}
	jsonio.OK(w, participationResponse{Participating: false, Count: len(e.Participants)})
}

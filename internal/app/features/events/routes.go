// internal/app/features/events/routes.go
package events

import (
	"github.com/dalemusser/campushub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted under /events.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Upcoming)
	r.Get("/{id}", h.Get)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Post("/", h.Create)
		pr.Put("/{id}", h.Update)
		pr.Delete("/{id}", h.Delete)
		pr.Post("/{id}/cancel", h.Cancel)

		pr.Get("/{id}/participation", h.IsParticipating)
		pr.Post("/{id}/participation", h.Participate)
		pr.Delete("/{id}/participation", h.Unparticipate)

		pr.Post("/{id}/approve", h.Approve)
		pr.Post("/{id}/reject", h.Reject)
	})
	return r
}

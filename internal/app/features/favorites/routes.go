// internal/app/features/favorites/routes.go
package favorites

import (
	"github.com/dalemusser/campushub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted under /favorites. {type} is "post" or "event".
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.List)
	r.Post("/", h.Add)
	r.Get("/{type}/{id}", h.Status)
	r.Delete("/{type}/{id}", h.Remove)
	return r
}

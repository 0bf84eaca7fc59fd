// internal/app/features/users/routes.go
package users

import (
	"github.com/dalemusser/campushub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted under /users. Account administration checks its own
// rules per action (see admin.go), so it only requires a signed-in user here.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Patch("/me", h.UpdateProfile)
		pr.Get("/{id}", h.Profile)
		pr.Get("/{id}/posts", h.Posts)

		pr.Get("/", h.List)
		pr.Put("/{id}/role", h.SetRole)
		pr.Put("/{id}/permissions", h.SetPermissions)
		pr.Put("/{id}/status", h.SetStatus)
	})
	return r
}

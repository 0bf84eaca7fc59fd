// internal/app/features/forums/routes.go
package forums

import (
	"github.com/dalemusser/campushub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted under /forums. Listing and reading are open to
// anonymous callers, who only see visible forums and public content.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/members", h.Members)
	r.Get("/{id}/posts", h.Posts)
	r.Get("/{id}/events", h.Events)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Post("/", h.Create)
		pr.Get("/mine", h.Mine)
		pr.Patch("/{id}", h.Update)
		pr.Delete("/{id}", h.Delete)

		pr.Get("/{id}/membership", h.Status)
		pr.Post("/{id}/join", h.Join)
		pr.Post("/{id}/request", h.RequestJoin)
		pr.Delete("/{id}/request", h.CancelRequest)
		pr.Post("/{id}/leave", h.Leave)
		pr.Delete("/{id}/members/{userID}", h.RemoveMember)

		pr.Get("/{id}/requests", h.PendingRequests)
		pr.Post("/{id}/requests/{userID}/accept", h.Accept)
		pr.Post("/{id}/requests/{userID}/reject", h.Reject)

		pr.Get("/{id}/moderation/posts", h.PendingPosts)
		pr.Get("/{id}/moderation/events", h.PendingEvents)
	})
	return r
}

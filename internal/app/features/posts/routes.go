// internal/app/features/posts/routes.go
package posts

import (
	"github.com/dalemusser/campushub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted under /posts.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Feed)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/comments", h.Comments)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Post("/", h.Create)
		pr.Get("/pending", h.MyPending)
		pr.Patch("/{id}", h.Update)
		pr.Delete("/{id}", h.Delete)

		pr.Get("/{id}/like", h.IsLiked)
		pr.Post("/{id}/like", h.Like)
		pr.Delete("/{id}/like", h.Unlike)

		pr.Post("/{id}/comments", h.AddComment)

		pr.Post("/{id}/approve", h.Approve)
		pr.Post("/{id}/reject", h.Reject)
	})
	return r
}

// CommentRoutes is mounted under /comments.
func CommentRoutes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.With(sm.RequireSignedIn).Delete("/{id}", h.DeleteComment)
	return r
}

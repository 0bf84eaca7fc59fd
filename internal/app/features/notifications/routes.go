// internal/app/features/notifications/routes.go
package notifications

import (
	"github.com/dalemusser/campushub/internal/app/system/auth"
	"github.com/dalemusser/campushub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted under /notifications.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.List)
	r.Get("/unread-count", h.UnreadCount)
	r.Post("/read-all", h.MarkAllRead)
	r.Post("/{id}/read", h.MarkRead)
	r.Delete("/{id}", h.Delete)
	r.Get("/ws", h.Stream)

	r.With(sm.RequireRole(models.RoleAdmin, models.RoleSuperAdmin)).Get("/outbox", h.OutboxStats)
	return r
}

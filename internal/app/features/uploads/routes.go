// internal/app/features/uploads/routes.go
package uploads

import (
	"github.com/dalemusser/campushub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted under /uploads. Stored files are public to anyone
// holding the reference, like the content that embeds them.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Get("/*", h.Serve)
	r.With(sm.RequireSignedIn).Post("/", h.Upload)
	return r
}

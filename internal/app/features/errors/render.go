// internal/app/features/errors/render.go
package errors

import (
	"net/http"

	"github.com/dalemusser/campushub/internal/app/system/apperr"
)

// Unauthorized responds 401 for routes reached without a signed-in user.
func Unauthorized(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusUnauthorized, body{
		Error:   string(apperr.Unauthenticated),
		Message: apperr.ErrUnauthenticated.Message,
	})
}

// Forbidden responds 403 with msg, or the generic message when msg is empty.
func Forbidden(w http.ResponseWriter, r *http.Request, msg string) {
	if msg == "" {
		msg = apperr.ErrForbidden.Message
	}
	writeJSON(w, http.StatusForbidden, body{Error: string(apperr.Forbidden), Message: msg})
}

// MethodNotAllowed is installed as the router's 405 handler.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, body{Error: "method_not_allowed", Message: "Méthode non autorisée."})
}

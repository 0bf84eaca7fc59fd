// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/dalemusser/campushub/internal/app/system/auth"
	"github.com/dalemusser/campushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Viewer is the authorization view of a caller, independent of HTTP.
// Services take a Viewer so they can be driven from handlers, workers
// and tests alike. The zero Viewer is anonymous.
type Viewer struct {
	ID          primitive.ObjectID
	Role        string
	Permissions []string
}

// Anonymous reports whether no user is attached.
func (v Viewer) Anonymous() bool { return v.ID.IsZero() }

// IsAdmin reports admin or superadmin.
func (v Viewer) IsAdmin() bool {
	return v.Role == models.RoleAdmin || v.Role == models.RoleSuperAdmin
}

// IsSuperAdmin reports superadmin.
func (v Viewer) IsSuperAdmin() bool { return v.Role == models.RoleSuperAdmin }

// Has reports whether perm was granted.
func (v Viewer) Has(perm string) bool {
	for _, p := range v.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// UserCtx returns the user's role (lowercased), name, Mongo ObjectID, and a found flag.
// If no user is present in context or the user ID is malformed, it returns
// "visitor", "", NilObjectID, false. ok=true means a valid, authenticated
// user with a valid ObjectID.
func UserCtx(r *http.Request) (role string, name string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "visitor", "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		// Malformed user ID in session - fail closed.
		return "visitor", "", primitive.NilObjectID, false
	}
	return strings.ToLower(user.Role), user.Name, userID, true
}

// ViewerFrom builds a Viewer for the request. Anonymous callers get the zero Viewer.
func ViewerFrom(r *http.Request) Viewer {
	role, _, uid, ok := UserCtx(r)
	if !ok {
		return Viewer{}
	}
	u, _ := auth.CurrentUser(r)
	return Viewer{ID: uid, Role: role, Permissions: u.Permissions}
}

// IsAdmin reports whether the current request's user is an admin.
// Superadmins are also considered admins.
func IsAdmin(r *http.Request) bool {
	return ViewerFrom(r).IsAdmin()
}

// IsSuperAdmin reports whether the current request's user is a superadmin.
func IsSuperAdmin(r *http.Request) bool {
	return ViewerFrom(r).IsSuperAdmin()
}

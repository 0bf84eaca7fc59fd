// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles. Role checks elsewhere compare lowercased strings against these.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// Permissions that can be granted to a user regardless of role.
const (
	PermModerateForums = "forums:moderate"
	PermManageUsers    = "users:manage"
)

// User is a campus account.
//
// NOTE:
//   - Forum membership is not embedded on User.
//     Use the forum_memberships collection to discover a user's forums.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName     string             `bson:"full_name" json:"full_name"`
	FullNameCI   string             `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	Email        string             `bson:"email" json:"email"`
	EmailCI      string             `bson:"email_ci" json:"-"`
	PasswordHash string             `bson:"password_hash,omitempty" json:"-"`
	FirebaseUID  *string            `bson:"firebase_uid,omitempty" json:"-"`
	Role         string             `bson:"role" json:"role"` // user | admin | superadmin
	Permissions  []string           `bson:"permissions,omitempty" json:"permissions,omitempty"`
	Status       string             `bson:"status" json:"status"` // active | disabled

	Bio       string `bson:"bio,omitempty" json:"bio,omitempty"`
	Faculty   string `bson:"faculty,omitempty" json:"faculty,omitempty"`
	AvatarRef string `bson:"avatar_ref,omitempty" json:"avatar_ref,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// HasPermission reports whether perm is in the user's permission set.
func (u User) HasPermission(perm string) bool {
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

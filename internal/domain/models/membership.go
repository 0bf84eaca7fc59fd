// internal/domain/models/membership.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MembershipPending  = "pending"
	MembershipAccepted = "accepted"
	MembershipRejected = "rejected"

	MemberRoleAuthor = "author"
	MemberRoleMember = "member"

	// GroupTypeForum is the only group type today.
	GroupTypeForum = "forum"
)

// ForumMembership is the authoritative join between users and forums.
// Exactly one document per (user_id, forum_id, group_type).
type ForumMembership struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ForumID   primitive.ObjectID `bson:"forum_id" json:"forum_id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	GroupType string             `bson:"group_type" json:"group_type"`
	Status    string             `bson:"status" json:"status"` // pending | accepted | rejected
	Role      string             `bson:"role" json:"role"`     // author | member

	RequestedAt *time.Time          `bson:"requested_at,omitempty" json:"requested_at,omitempty"`
	JoinedAt    *time.Time          `bson:"joined_at,omitempty" json:"joined_at,omitempty"`
	DecidedAt   *time.Time          `bson:"decided_at,omitempty" json:"decided_at,omitempty"`
	DecidedBy   *primitive.ObjectID `bson:"decided_by,omitempty" json:"decided_by,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

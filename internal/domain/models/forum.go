// internal/domain/models/forum.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ConfidentialityPublic  = "public"
	ConfidentialityPrivate = "private"

	VisibilityVisible = "visible"
	VisibilityMasked  = "masked"
)

// Forum is a campus group.
//
// NOTE:
//   - There is no members array on Forum. The forum_memberships
//     collection is the only record of who belongs to a forum; counts
//     and lists are computed from it.
type Forum struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"-"`
	Description string             `bson:"description" json:"description"`
	AuthorID    primitive.ObjectID `bson:"author_id" json:"author_id"`

	Confidentiality      string `bson:"confidentiality" json:"confidentiality"` // public | private
	Visibility           string `bson:"visibility" json:"visibility"`           // visible | masked
	RequiresPostApproval bool   `bson:"requires_post_approval" json:"requires_post_approval"`
	CoverRef             string `bson:"cover_ref,omitempty" json:"cover_ref,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsPublic reports whether anyone may join without approval.
func (f Forum) IsPublic() bool { return f.Confidentiality == ConfidentialityPublic }

// IsMasked reports whether the forum is hidden from non-member listings.
func (f Forum) IsMasked() bool { return f.Visibility == VisibilityMasked }

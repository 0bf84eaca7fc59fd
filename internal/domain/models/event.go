// internal/domain/models/event.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event is a scheduled activity. Date and time fields are kept as entered
// (YYYY-MM-DD, HH:MM); StartsAt is derived for sorting and "upcoming" queries.
type Event struct {
	ID          primitive.ObjectID  `bson:"_id" json:"id"`
	AuthorID    primitive.ObjectID  `bson:"author_id" json:"author_id"`
	ForumID     *primitive.ObjectID `bson:"forum_id,omitempty" json:"forum_id,omitempty"`
	Title       string              `bson:"title" json:"title"`
	Description string              `bson:"description" json:"description"`
	Location    string              `bson:"location,omitempty" json:"location,omitempty"`
	ImageRef    string              `bson:"image_ref,omitempty" json:"image_ref,omitempty"`

	StartDate string    `bson:"start_date" json:"start_date"`
	StartTime string    `bson:"start_time" json:"start_time"`
	EndDate   string    `bson:"end_date" json:"end_date"`
	EndTime   string    `bson:"end_time" json:"end_time"`
	StartsAt  time.Time `bson:"starts_at" json:"starts_at"`

	Participants    []primitive.ObjectID `bson:"participants" json:"participants"`
	MaxParticipants int                  `bson:"max_participants" json:"max_participants"` // 0 = unlimited
	Cancelled       bool                 `bson:"cancelled" json:"cancelled"`

	Status      string              `bson:"status,omitempty" json:"status,omitempty"`
	ModeratedBy *primitive.ObjectID `bson:"moderated_by,omitempty" json:"moderated_by,omitempty"`
	ModeratedAt *time.Time          `bson:"moderated_at,omitempty" json:"moderated_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

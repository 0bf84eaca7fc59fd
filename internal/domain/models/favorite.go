// internal/domain/models/favorite.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	TargetPost  = "post"
	TargetEvent = "event"
)

// Favorite bookmarks a post or an event for one user.
type Favorite struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"user_id" json:"user_id"`
	TargetType string             `bson:"target_type" json:"target_type"` // post | event
	TargetID   primitive.ObjectID `bson:"target_id" json:"target_id"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

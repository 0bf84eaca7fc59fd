// internal/domain/models/post.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Moderation statuses shared by posts and events.
// An empty status means the row predates moderation and counts as approved.
const (
	ContentPending  = "pending"
	ContentApproved = "approved"
	ContentRejected = "rejected"
)

// Post is a user post, optionally inside a forum.
type Post struct {
	ID         primitive.ObjectID   `bson:"_id" json:"id"`
	AuthorID   primitive.ObjectID   `bson:"author_id" json:"author_id"`
	ForumID    *primitive.ObjectID  `bson:"forum_id,omitempty" json:"forum_id,omitempty"`
	Content    string               `bson:"content" json:"content"`
	ImageRef   string               `bson:"image_ref,omitempty" json:"image_ref,omitempty"`
	Likes      []primitive.ObjectID `bson:"likes" json:"likes"`
	CommentIDs []primitive.ObjectID `bson:"comment_ids" json:"comment_ids"`

	Status      string              `bson:"status,omitempty" json:"status,omitempty"`
	ModeratedBy *primitive.ObjectID `bson:"moderated_by,omitempty" json:"moderated_by,omitempty"`
	ModeratedAt *time.Time          `bson:"moderated_at,omitempty" json:"moderated_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Comment belongs to exactly one post.
type Comment struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	PostID    primitive.ObjectID `bson:"post_id" json:"post_id"`
	AuthorID  primitive.ObjectID `bson:"author_id" json:"author_id"`
	Content   string             `bson:"content" json:"content"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

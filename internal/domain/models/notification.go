// internal/domain/models/notification.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification kinds.
const (
	NotifyForumJoinRequest     = "forum_join_request"
	NotifyForumJoined          = "forum_joined"
	NotifyForumRequestAccepted = "forum_request_accepted"
	NotifyForumRequestRejected = "forum_request_rejected"

	NotifyPostLiked           = "post_liked"
	NotifyPostCommented       = "post_commented"
	NotifyPostPendingApproval = "post_pending_approval"
	NotifyPostApproved        = "post_approved"
	NotifyPostRejected        = "post_rejected"

	NotifyEventParticipation   = "event_participation"
	NotifyEventCancelled       = "event_cancelled"
	NotifyEventPendingApproval = "event_pending_approval"
	NotifyEventApproved        = "event_approved"
	NotifyEventRejected        = "event_rejected"
)

// Target references a notification's subject. Every field is optional;
// which ones are set depends on the notification type.
type Target struct {
	PostID    *primitive.ObjectID `bson:"post_id,omitempty" json:"post_id,omitempty"`
	EventID   *primitive.ObjectID `bson:"event_id,omitempty" json:"event_id,omitempty"`
	ForumID   *primitive.ObjectID `bson:"forum_id,omitempty" json:"forum_id,omitempty"`
	CommentID *primitive.ObjectID `bson:"comment_id,omitempty" json:"comment_id,omitempty"`
}

// Keys returns the set target fields as a filter fragment.
func (t Target) Keys() bson.M {
	m := bson.M{}
	if t.PostID != nil {
		m["post_id"] = *t.PostID
	}
	if t.EventID != nil {
		m["event_id"] = *t.EventID
	}
	if t.ForumID != nil {
		m["forum_id"] = *t.ForumID
	}
	if t.CommentID != nil {
		m["comment_id"] = *t.CommentID
	}
	return m
}

// Notification is addressed to exactly one recipient.
type Notification struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RecipientID primitive.ObjectID `bson:"recipient_id" json:"recipient_id"`
	SenderID    primitive.ObjectID `bson:"sender_id" json:"sender_id"`
	Type        string             `bson:"type" json:"type"`
	Target      `bson:",inline"`
	Message     string              `bson:"message,omitempty" json:"message,omitempty"`
	IsRead      bool                `bson:"is_read" json:"is_read"`
	IntentID    *primitive.ObjectID `bson:"intent_id,omitempty" json:"-"`
	CreatedAt   time.Time           `bson:"created_at" json:"created_at"`
}

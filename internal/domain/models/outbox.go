// internal/domain/models/outbox.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	IntentPending    = "pending"
	IntentProcessing = "processing"
	IntentDone       = "done"
	IntentFailed     = "failed"
	IntentCancelled  = "cancelled"
)

// NotificationIntent is an outbox row. It is written in the same unit of
// work as the state change that caused it, and the dispatcher turns it
// into one Notification per recipient.
type NotificationIntent struct {
	ID         primitive.ObjectID   `bson:"_id" json:"id"`
	Kind       string               `bson:"kind" json:"kind"`
	SenderID   primitive.ObjectID   `bson:"sender_id" json:"sender_id"`
	Recipients []primitive.ObjectID `bson:"recipients" json:"recipients"`
	Target     `bson:",inline"`
	Message    string `bson:"message,omitempty" json:"message,omitempty"`

	Status     string     `bson:"status" json:"status"`
	RunAt      time.Time  `bson:"run_at" json:"run_at"`
	Attempts   int        `bson:"attempts" json:"attempts"`
	LastError  string     `bson:"last_error,omitempty" json:"last_error,omitempty"`
	LeaseUntil *time.Time `bson:"lease_until,omitempty" json:"-"`
	DedupeKey  string     `bson:"dedupe_key,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// internal/app/store/notifications/notificationstore.go
package notificationstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/campushub/internal/app/system/paging"
	"github.com/dalemusser/campushub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	c *mongo.Collection
}

var ErrNotFound = errors.New("notification not found")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("notifications")}
}

// Deliver creates recipient's notification for intent. The unique
// (intent_id, recipient_id) index makes this idempotent: a retried intent
// reports created=false for recipients already delivered.
func (s *Store) Deliver(ctx context.Context, intent models.NotificationIntent, recipient primitive.ObjectID) (n models.Notification, created bool, err error) {
	intentID := intent.ID
	n = models.Notification{
		ID:          primitive.NewObjectID(),
		RecipientID: recipient,
		SenderID:    intent.SenderID,
		Type:        intent.Kind,
		Target:      intent.Target,
		Message:     intent.Message,
		IntentID:    &intentID,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, n); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Notification{}, false, nil
		}
		return models.Notification{}, false, err
	}
	return n, true, nil
}

// ListForRecipient returns the recipient's notifications newest first.
func (s *Store) ListForRecipient(ctx context.Context, recipient primitive.ObjectID, unreadOnly bool, ks paging.Keyset) ([]models.Notification, bool, error) {
	filter := bson.M{"recipient_id": recipient}
	if unreadOnly {
		filter["is_read"] = false
	}
	cur, err := s.c.Find(ctx, paging.Merge(filter, ks.NewestFirstWindow()), ks.NewestFirstFind())
	if err != nil {
		return nil, false, err
	}
	defer cur.Close(ctx)

	out := []models.Notification{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, false, err
	}
	hasNext := paging.TrimPage(&out, ks.Limit)
	return out, hasNext, nil
}

func (s *Store) UnreadCount(ctx context.Context, recipient primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"recipient_id": recipient, "is_read": false})
}

// MarkRead marks one notification read. Only the recipient may do so; any
// other caller gets ErrNotFound.
func (s *Store) MarkRead(ctx context.Context, id, recipient primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id, "recipient_id": recipient}, bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of recipient read.
func (s *Store) MarkAllRead(ctx context.Context, recipient primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx, bson.M{"recipient_id": recipient, "is_read": false}, bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Delete removes one of the recipient's notifications.
func (s *Store) Delete(ctx context.Context, id, recipient primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "recipient_id": recipient})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Withdraw deletes delivered notifications of kind sent by sender about
// target. It backs unlike, unparticipate and cancelled join requests.
func (s *Store) Withdraw(ctx context.Context, kind string, sender primitive.ObjectID, target models.Target) (int64, error) {
	filter := target.Keys()
	filter["type"] = kind
	filter["sender_id"] = sender
	res, err := s.c.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByIntent removes every notification delivered for intentID.
func (s *Store) DeleteByIntent(ctx context.Context, intentID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"intent_id": intentID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteReferencing removes notifications whose field ("post_id",
// "event_id", "forum_id") is one of ids. Used when content is deleted.
func (s *Store) DeleteReferencing(ctx context.Context, field string, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.c.DeleteMany(ctx, bson.M{field: bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

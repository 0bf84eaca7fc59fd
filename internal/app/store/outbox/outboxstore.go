// internal/app/store/outbox/outboxstore.go
package outboxstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/campushub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store holds notification intents in the notification_outbox collection.
//
// Lifecycle:
//
//	pending -> processing (LeaseNext) -> done (MarkDone)
//	                                  -> pending (Retry, run_at pushed back)
//	                                  -> failed (MarkFailed)
//	pending -> cancelled (CancelMatching)
//	processing with an expired lease -> pending (ReclaimExpired)
type Store struct {
	c *mongo.Collection
}

var (
	ErrNotFound  = errors.New("intent not found")
	ErrDuplicate = errors.New("intent with this dedupe key already exists")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("notification_outbox")}
}

// Enqueue inserts a pending intent due at runAt.
//
// An intent with a DedupeKey is only inserted when no pending intent holds
// the same key; otherwise ErrDuplicate is returned and nothing is written.
// The key is released when the intent is leased or cancelled.
func (s *Store) Enqueue(ctx context.Context, in models.NotificationIntent, runAt time.Time) (models.NotificationIntent, error) {
	now := time.Now().UTC()
	in.ID = primitive.NewObjectID()
	in.Status = models.IntentPending
	in.RunAt = runAt.UTC()
	in.Attempts = 0
	in.LeaseUntil = nil
	if in.Recipients == nil {
		in.Recipients = []primitive.ObjectID{}
	}
	in.CreatedAt = now
	in.UpdatedAt = now

	if in.DedupeKey != "" {
		// An upsert, so a repeat inside a transaction does not abort it.
		res, err := s.c.UpdateOne(ctx,
			bson.M{"dedupe_key": in.DedupeKey},
			bson.M{"$setOnInsert": in},
			options.Update().SetUpsert(true))
		if err != nil {
			if wafflemongo.IsDup(err) {
				return models.NotificationIntent{}, ErrDuplicate
			}
			return models.NotificationIntent{}, err
		}
		if res.UpsertedCount == 0 {
			return models.NotificationIntent{}, ErrDuplicate
		}
		return in, nil
	}

	if _, err := s.c.InsertOne(ctx, in); err != nil {
		if wafflemongo.IsDup(err) {
			return models.NotificationIntent{}, ErrDuplicate
		}
		return models.NotificationIntent{}, err
	}
	return in, nil
}

func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (models.NotificationIntent, error) {
	var in models.NotificationIntent
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&in); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.NotificationIntent{}, ErrNotFound
		}
		return models.NotificationIntent{}, err
	}
	return in, nil
}

// LeaseNext claims the oldest due pending intent until now+lease and counts
// the attempt. It returns ErrNotFound when nothing is due.
func (s *Store) LeaseNext(ctx context.Context, now time.Time, lease time.Duration) (models.NotificationIntent, error) {
	until := now.Add(lease).UTC()
	var in models.NotificationIntent
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"status": models.IntentPending, "run_at": bson.M{"$lte": now.UTC()}},
		bson.M{
			"$set":   bson.M{"status": models.IntentProcessing, "lease_until": until, "updated_at": now.UTC()},
			"$inc":   bson.M{"attempts": 1},
			"$unset": bson.M{"dedupe_key": ""},
		},
		options.FindOneAndUpdate().
			SetSort(bson.D{{Key: "run_at", Value: 1}, {Key: "_id", Value: 1}}).
			SetReturnDocument(options.After),
	).Decode(&in)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.NotificationIntent{}, ErrNotFound
		}
		return models.NotificationIntent{}, err
	}
	return in, nil
}

// MarkDone completes a leased intent.
func (s *Store) MarkDone(ctx context.Context, id primitive.ObjectID) error {
	return s.settle(ctx, id, bson.M{"status": models.IntentDone, "last_error": ""})
}

// Retry returns a leased intent to pending, due at runAt.
func (s *Store) Retry(ctx context.Context, id primitive.ObjectID, runAt time.Time, lastErr string) error {
	return s.settle(ctx, id, bson.M{"status": models.IntentPending, "run_at": runAt.UTC(), "last_error": lastErr})
}

// MarkFailed gives up on a leased intent.
func (s *Store) MarkFailed(ctx context.Context, id primitive.ObjectID, lastErr string) error {
	return s.settle(ctx, id, bson.M{"status": models.IntentFailed, "last_error": lastErr})
}

// settle only touches intents still processing, so a worker whose lease was
// reclaimed cannot overwrite the new owner's outcome.
func (s *Store) settle(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	set["updated_at"] = time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.IntentProcessing},
		bson.M{"$set": set, "$unset": bson.M{"lease_until": ""}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ReclaimExpired returns intents whose lease ended before now to pending.
func (s *Store) ReclaimExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"status": models.IntentProcessing, "lease_until": bson.M{"$lt": now.UTC()}},
		bson.M{"$set": bson.M{"status": models.IntentPending, "updated_at": now.UTC()}, "$unset": bson.M{"lease_until": ""}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// CancelMatching cancels pending and leased intents of kind from sender
// about target. A dispatcher holding a cancelled lease finds out when it
// settles and removes what it delivered.
func (s *Store) CancelMatching(ctx context.Context, kind string, sender primitive.ObjectID, target models.Target) (int64, error) {
	filter := target.Keys()
	filter["kind"] = kind
	filter["sender_id"] = sender
	filter["status"] = bson.M{"$in": bson.A{models.IntentPending, models.IntentProcessing}}
	res, err := s.c.UpdateMany(ctx, filter, bson.M{
		"$set":   bson.M{"status": models.IntentCancelled, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"lease_until": "", "dedupe_key": ""},
	})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// CancelReferencing cancels pending and leased intents whose field
// ("post_id", "event_id", "forum_id", "comment_id") is one of ids.
func (s *Store) CancelReferencing(ctx context.Context, field string, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.c.UpdateMany(ctx, bson.M{
		field:    bson.M{"$in": ids},
		"status": bson.M{"$in": bson.A{models.IntentPending, models.IntentProcessing}},
	}, bson.M{
		"$set":   bson.M{"status": models.IntentCancelled, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"lease_until": "", "dedupe_key": ""},
	})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// CountByStatus reports the number of intents per status.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int64, error) {
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "n": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := map[string]int64{}
	for cur.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			N      int64  `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.Status] = row.N
	}
	return out, cur.Err()
}

// PurgeSettled deletes done and cancelled intents last updated before cutoff.
func (s *Store) PurgeSettled(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{
		"status":     bson.M{"$in": []string{models.IntentDone, models.IntentCancelled}},
		"updated_at": bson.M{"$lt": cutoff.UTC()},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

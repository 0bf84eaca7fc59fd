// internal/app/store/events/eventstore.go
package eventstore

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
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var (
	ErrNotFound            = errors.New("event not found")
	ErrStatusChanged       = errors.New("event status changed")
	ErrCancelled           = errors.New("event is cancelled")
	ErrFull                = errors.New("event is full")
	ErrAlreadyParticipates = errors.New("already participating")
	ErrNotParticipating    = errors.New("not participating")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("events")}
}

func (s *Store) Create(ctx context.Context, e models.Event) (models.Event, error) {
	now := time.Now().UTC()
	e.ID = primitive.NewObjectID()
	if e.Participants == nil {
		e.Participants = []primitive.ObjectID{}
	}
	e.StartsAt = e.StartsAt.UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, e); err != nil {
		return models.Event{}, err
	}
	return e, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Event, error) {
	var e models.Event
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Event{}, ErrNotFound
		}
		return models.Event{}, err
	}
	return e, nil
}

// Cursor encodes the position after e for List.
func Cursor(e models.Event) string {
	return wafflemongo.EncodeCursor(e.StartsAt.UTC().Format(time.RFC3339Nano), e.ID)
}

// List returns events matching filter ordered by start time then id.
// Pass bson.M{"starts_at": bson.M{"$gte": now}} in filter for upcoming events.
func (s *Store) List(ctx context.Context, filter bson.M, ks paging.Keyset) ([]models.Event, bool, error) {
	if ks.Cursor != nil {
		if at, err := time.Parse(time.RFC3339Nano, ks.Cursor.CI); err == nil {
			filter = paging.Merge(filter, bson.M{"$or": []bson.M{
				{"starts_at": bson.M{"$gt": at}},
				{"starts_at": at, "_id": bson.M{"$gt": ks.Cursor.ID}},
			}})
		}
	}
	cur, err := s.c.Find(ctx, filter, ks.AscFind("starts_at"))
	if err != nil {
		return nil, false, err
	}
	defer cur.Close(ctx)

	out := []models.Event{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, false, err
	}
	hasNext := paging.TrimPage(&out, ks.Limit)
	return out, hasNext, nil
}

// GetByIDs returns the events with the given ids that also match filter.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID, filter bson.M) ([]models.Event, error) {
	out := []models.Event{}
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, paging.Merge(bson.M{"_id": bson.M{"$in": ids}}, filter),
		options.Find().SetSort(bson.D{{Key: "starts_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Details holds the editable event fields. Nil fields are left unchanged.
type Details struct {
	Title           *string
	Description     *string
	Location        *string
	ImageRef        *string
	StartDate       *string
	StartTime       *string
	EndDate         *string
	EndTime         *string
	StartsAt        *time.Time
	MaxParticipants *int
}

// Update applies d and returns the updated event.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, d Details) (models.Event, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	put := func(k string, v *string) {
		if v != nil {
			set[k] = *v
		}
	}
	put("title", d.Title)
	put("description", d.Description)
	put("location", d.Location)
	put("image_ref", d.ImageRef)
	put("start_date", d.StartDate)
	put("start_time", d.StartTime)
	put("end_date", d.EndDate)
	put("end_time", d.EndTime)
	if d.StartsAt != nil {
		set["starts_at"] = d.StartsAt.UTC()
	}
	if d.MaxParticipants != nil {
		set["max_participants"] = *d.MaxParticipants
	}
	return s.findAndSet(ctx, bson.M{"_id": id}, bson.M{"$set": set}, ErrNotFound)
}

// Participate adds userID to the participants. The capacity and
// cancellation checks are part of the update filter, so concurrent
// participants can never overfill the event.
func (s *Store) Participate(ctx context.Context, eventID, userID primitive.ObjectID) (models.Event, error) {
	filter := bson.M{
		"_id":          eventID,
		"cancelled":    false,
		"participants": bson.M{"$ne": userID},
		"$or": []bson.M{
			{"max_participants": bson.M{"$lte": 0}},
			{"$expr": bson.M{"$lt": bson.A{bson.M{"$size": "$participants"}, "$max_participants"}}},
		},
	}
	update := bson.M{
		"$addToSet": bson.M{"participants": userID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}
	e, err := s.findAndSet(ctx, filter, update, nil)
	if err == nil || !errors.Is(err, mongo.ErrNoDocuments) {
		return e, err
	}

	// Explain why the filter missed.
	cur, err := s.GetByID(ctx, eventID)
	if err != nil {
		return models.Event{}, err
	}
	switch {
	case cur.Cancelled:
		return models.Event{}, ErrCancelled
	case containsID(cur.Participants, userID):
		return models.Event{}, ErrAlreadyParticipates
	default:
		return models.Event{}, ErrFull
	}
}

// Unparticipate removes userID from the participants.
func (s *Store) Unparticipate(ctx context.Context, eventID, userID primitive.ObjectID) (models.Event, error) {
	e, err := s.findAndSet(ctx,
		bson.M{"_id": eventID, "participants": userID},
		bson.M{"$pull": bson.M{"participants": userID}, "$set": bson.M{"updated_at": time.Now().UTC()}},
		nil)
	if err == nil || !errors.Is(err, mongo.ErrNoDocuments) {
		return e, err
	}
	if _, err := s.GetByID(ctx, eventID); err != nil {
		return models.Event{}, err
	}
	return models.Event{}, ErrNotParticipating
}

// IsParticipating reports whether userID is in the participants.
func (s *Store) IsParticipating(ctx context.Context, eventID, userID primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"_id": eventID, "participants": userID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Cancel marks the event cancelled and returns it with its participants.
// It returns ErrCancelled when the event was already cancelled.
func (s *Store) Cancel(ctx context.Context, id primitive.ObjectID) (models.Event, error) {
	e, err := s.findAndSet(ctx,
		bson.M{"_id": id, "cancelled": false},
		bson.M{"$set": bson.M{"cancelled": true, "updated_at": time.Now().UTC()}},
		nil)
	if err == nil || !errors.Is(err, mongo.ErrNoDocuments) {
		return e, err
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return models.Event{}, err
	}
	return models.Event{}, ErrCancelled
}

// SetStatus moves an event from one moderation status to another. It returns
// ErrStatusChanged when the event is not in from.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, from, to string, actor primitive.ObjectID) (models.Event, error) {
	now := time.Now().UTC()
	return s.findAndSet(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "moderated_by": actor, "moderated_at": now, "updated_at": now}},
		ErrStatusChanged)
}

func (s *Store) findAndSet(ctx context.Context, filter, update bson.M, notFound error) (models.Event, error) {
	var e models.Event
	err := s.c.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&e)
	if err != nil {
		if notFound != nil && errors.Is(err, mongo.ErrNoDocuments) {
			return models.Event{}, notFound
		}
		return models.Event{}, err
	}
	return e, nil
}

func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByForum removes every event in the forum and returns their ids.
func (s *Store) DeleteByForum(ctx context.Context, forumID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cur, err := s.c.Find(ctx, bson.M{"forum_id": forumID}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	if len(ids) == 0 {
		return ids, nil
	}
	if _, err := s.c.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return nil, err
	}
	return ids, nil
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// internal/app/store/memberships/membershipstore.go
package membershipstore

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

// Store is the only source of truth for forum membership. Every row is
// unique on (user_id, forum_id, group_type); the index is created by
// indexes.EnsureAll.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("forum_memberships")}
}

var (
	ErrNotFound  = errors.New("membership not found")
	ErrDuplicate = errors.New("membership already exists")
	errBadRole   = errors.New(`role must be "author" or "member"`)
)

func key(forumID, userID primitive.ObjectID) bson.M {
	return bson.M{"forum_id": forumID, "user_id": userID, "group_type": models.GroupTypeForum}
}

// Get returns the membership for (forumID, userID) or ErrNotFound.
func (s *Store) Get(ctx context.Context, forumID, userID primitive.ObjectID) (models.ForumMembership, error) {
	var m models.ForumMembership
	if err := s.c.FindOne(ctx, key(forumID, userID)).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.ForumMembership{}, ErrNotFound
		}
		return models.ForumMembership{}, err
	}
	return m, nil
}

// CreatePending records a join request on a private forum.
func (s *Store) CreatePending(ctx context.Context, forumID, userID primitive.ObjectID) (models.ForumMembership, error) {
	now := time.Now().UTC()
	m := models.ForumMembership{
		ID:          primitive.NewObjectID(),
		ForumID:     forumID,
		UserID:      userID,
		GroupType:   models.GroupTypeForum,
		Status:      models.MembershipPending,
		Role:        models.MemberRoleMember,
		RequestedAt: &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return s.insert(ctx, m)
}

// CreateAccepted records a public join or the author's own seat.
func (s *Store) CreateAccepted(ctx context.Context, forumID, userID primitive.ObjectID, role string) (models.ForumMembership, error) {
	if role != models.MemberRoleAuthor && role != models.MemberRoleMember {
		return models.ForumMembership{}, errBadRole
	}
	now := time.Now().UTC()
	m := models.ForumMembership{
		ID:        primitive.NewObjectID(),
		ForumID:   forumID,
		UserID:    userID,
		GroupType: models.GroupTypeForum,
		Status:    models.MembershipAccepted,
		Role:      role,
		JoinedAt:  &now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.insert(ctx, m)
}

func (s *Store) insert(ctx context.Context, m models.ForumMembership) (models.ForumMembership, error) {
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.ForumMembership{}, ErrDuplicate
		}
		return models.ForumMembership{}, err
	}
	return m, nil
}

// SetStatus moves the row from one status to another. The update is
// conditional on the current status so two concurrent decisions cannot
// both apply; the loser gets ErrNotFound. actor is recorded as decided_by
// when non-zero.
func (s *Store) SetStatus(ctx context.Context, forumID, userID primitive.ObjectID, from, to string, actor primitive.ObjectID) (models.ForumMembership, error) {
	now := time.Now().UTC()
	set := bson.M{"status": to, "updated_at": now}
	switch to {
	case models.MembershipAccepted:
		set["joined_at"] = now
		set["decided_at"] = now
	case models.MembershipRejected:
		set["decided_at"] = now
	case models.MembershipPending:
		set["requested_at"] = now
	}
	if !actor.IsZero() && to != models.MembershipPending {
		set["decided_by"] = actor
	}

	filter := key(forumID, userID)
	filter["status"] = from

	var m models.ForumMembership
	err := s.c.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.ForumMembership{}, ErrNotFound
		}
		return models.ForumMembership{}, err
	}
	return m, nil
}

// Delete removes the membership for (forumID, userID). When status is not
// empty the row must currently be in that status.
func (s *Store) Delete(ctx context.Context, forumID, userID primitive.ObjectID, status string) error {
	filter := key(forumID, userID)
	if status != "" {
		filter["status"] = status
	}
	res, err := s.c.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Exists reports whether a membership with the given status exists.
// An empty status matches any.
func (s *Store) Exists(ctx context.Context, forumID, userID primitive.ObjectID, status string) (bool, error) {
	filter := key(forumID, userID)
	if status != "" {
		filter["status"] = status
	}
	err := s.c.FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListByForum returns memberships for a forum, oldest first, optionally
// filtered by status.
func (s *Store) ListByForum(ctx context.Context, forumID primitive.ObjectID, status string) ([]models.ForumMembership, error) {
	filter := bson.M{"forum_id": forumID, "group_type": models.GroupTypeForum}
	if status != "" {
		filter["status"] = status
	}
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.ForumMembership{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountByForum counts memberships for a forum, optionally filtered by status.
func (s *Store) CountByForum(ctx context.Context, forumID primitive.ObjectID, status string) (int64, error) {
	filter := bson.M{"forum_id": forumID, "group_type": models.GroupTypeForum}
	if status != "" {
		filter["status"] = status
	}
	return s.c.CountDocuments(ctx, filter)
}

// CountByForums returns counts per forum for the given status in one query.
func (s *Store) CountByForums(ctx context.Context, forumIDs []primitive.ObjectID, status string) (map[primitive.ObjectID]int64, error) {
	result := make(map[primitive.ObjectID]int64, len(forumIDs))
	if len(forumIDs) == 0 {
		return result, nil
	}
	cur, err := s.c.Aggregate(ctx, []bson.M{
		{"$match": bson.M{"forum_id": bson.M{"$in": forumIDs}, "group_type": models.GroupTypeForum, "status": status}},
		{"$group": bson.M{"_id": "$forum_id", "n": bson.M{"$sum": 1}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
			N  int64              `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		result[row.ID] = row.N
	}
	return result, cur.Err()
}

// ForumIDsForUser returns the ids of forums where userID has the given status.
func (s *Store) ForumIDsForUser(ctx context.Context, userID primitive.ObjectID, status string) ([]primitive.ObjectID, error) {
	filter := bson.M{"user_id": userID, "group_type": models.GroupTypeForum}
	if status != "" {
		filter["status"] = status
	}
	cur, err := s.c.Find(ctx, filter, options.Find().SetProjection(bson.M{"forum_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	ids := []primitive.ObjectID{}
	for cur.Next(ctx) {
		var row struct {
			ForumID primitive.ObjectID `bson:"forum_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ForumID)
	}
	return ids, cur.Err()
}

// DeleteByForum removes all memberships of a forum.
// Returns the number of documents deleted.
func (s *Store) DeleteByForum(ctx context.Context, forumID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"forum_id": forumID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

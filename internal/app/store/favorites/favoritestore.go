// internal/app/store/favorites/favoritestore.go
package favoritestore

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

var (
	ErrNotFound  = errors.New("favorite not found")
	ErrDuplicate = errors.New("already a favorite")
	errBadTarget = errors.New(`target type must be "post" or "event"`)
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("favorites")}
}

// ValidTarget reports whether t is a favoritable target type.
func ValidTarget(t string) bool {
	return t == models.TargetPost || t == models.TargetEvent
}

// Add bookmarks the target for userID. ErrDuplicate means it already was.
func (s *Store) Add(ctx context.Context, userID primitive.ObjectID, targetType string, targetID primitive.ObjectID) (models.Favorite, error) {
	if !ValidTarget(targetType) {
		return models.Favorite{}, errBadTarget
	}
	f := models.Favorite{
		ID:         primitive.NewObjectID(),
		UserID:     userID,
		TargetType: targetType,
		TargetID:   targetID,
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, f); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Favorite{}, ErrDuplicate
		}
		return models.Favorite{}, err
	}
	return f, nil
}

// Remove deletes the bookmark. ErrNotFound means there was none.
func (s *Store) Remove(ctx context.Context, userID primitive.ObjectID, targetType string, targetID primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"user_id": userID, "target_type": targetType, "target_id": targetID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) IsFavorite(ctx context.Context, userID primitive.ObjectID, targetType string, targetID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"user_id": userID, "target_type": targetType, "target_id": targetID}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return err == nil, err
}

// ListByUser returns the user's favorites newest first. An empty
// targetType lists both kinds.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID, targetType string, ks paging.Keyset) ([]models.Favorite, bool, error) {
	filter := bson.M{"user_id": userID}
	if targetType != "" {
		filter["target_type"] = targetType
	}
	cur, err := s.c.Find(ctx, paging.Merge(filter, ks.NewestFirstWindow()), ks.NewestFirstFind())
	if err != nil {
		return nil, false, err
	}
	defer cur.Close(ctx)

	out := []models.Favorite{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, false, err
	}
	hasNext := paging.TrimPage(&out, ks.Limit)
	return out, hasNext, nil
}

// DeleteByTargets removes every bookmark pointing at the given targets.
func (s *Store) DeleteByTargets(ctx context.Context, targetType string, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.c.DeleteMany(ctx, bson.M{"target_type": targetType, "target_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

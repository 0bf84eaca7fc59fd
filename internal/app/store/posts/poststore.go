// internal/app/store/posts/poststore.go
package poststore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/campushub/internal/app/system/paging"
	"github.com/dalemusser/campushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var (
	ErrNotFound = errors.New("post not found")
	// ErrStatusChanged is returned by SetStatus when the post is no longer
	// in the expected status.
	ErrStatusChanged = errors.New("post status changed")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("posts")}
}

// Create inserts p. The caller decides p.Status.
func (s *Store) Create(ctx context.Context, p models.Post) (models.Post, error) {
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	if p.Likes == nil {
		p.Likes = []primitive.ObjectID{}
	}
	if p.CommentIDs == nil {
		p.CommentIDs = []primitive.ObjectID{}
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return models.Post{}, err
	}
	return p, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Post, error) {
	var p models.Post
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Post{}, ErrNotFound
		}
		return models.Post{}, err
	}
	return p, nil
}

// List returns posts matching filter, newest first.
func (s *Store) List(ctx context.Context, filter bson.M, ks paging.Keyset) ([]models.Post, bool, error) {
	cur, err := s.c.Find(ctx, paging.Merge(filter, ks.NewestFirstWindow()), ks.NewestFirstFind())
	if err != nil {
		return nil, false, err
	}
	defer cur.Close(ctx)

	out := []models.Post{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, false, err
	}
	hasNext := paging.TrimPage(&out, ks.Limit)
	return out, hasNext, nil
}

// GetByIDs returns the posts with the given ids that also match filter.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID, filter bson.M) ([]models.Post, error) {
	out := []models.Post{}
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, paging.Merge(bson.M{"_id": bson.M{"$in": ids}}, filter),
		options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateContent replaces the body and, when imageRef is non-nil, the image.
func (s *Store) UpdateContent(ctx context.Context, id primitive.ObjectID, content string, imageRef *string) (models.Post, error) {
	set := bson.M{"content": content, "updated_at": time.Now().UTC()}
	if imageRef != nil {
		set["image_ref"] = *imageRef
	}
	var p models.Post
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Post{}, ErrNotFound
		}
		return models.Post{}, err
	}
	return p, nil
}

// Like adds userID to the post's likes. changed is false when the user had
// already liked it.
func (s *Store) Like(ctx context.Context, postID, userID primitive.ObjectID) (changed bool, err error) {
	return s.arrayOp(ctx, postID, "$addToSet", "likes", userID)
}

// Unlike removes userID from the post's likes. changed is false when the
// user had not liked it.
func (s *Store) Unlike(ctx context.Context, postID, userID primitive.ObjectID) (changed bool, err error) {
	return s.arrayOp(ctx, postID, "$pull", "likes", userID)
}

// IsLiked reports whether userID is in the post's likes.
func (s *Store) IsLiked(ctx context.Context, postID, userID primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"_id": postID, "likes": userID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AddComment appends commentID to comment_ids.
func (s *Store) AddComment(ctx context.Context, postID, commentID primitive.ObjectID) error {
	_, err := s.arrayOp(ctx, postID, "$addToSet", "comment_ids", commentID)
	return err
}

// RemoveComment pulls commentID from comment_ids.
func (s *Store) RemoveComment(ctx context.Context, postID, commentID primitive.ObjectID) error {
	_, err := s.arrayOp(ctx, postID, "$pull", "comment_ids", commentID)
	return err
}

// arrayOp applies $addToSet or $pull only when it changes the array, so the
// returned flag is exact under concurrent calls.
func (s *Store) arrayOp(ctx context.Context, postID primitive.ObjectID, op, field string, v primitive.ObjectID) (bool, error) {
	filter := bson.M{"_id": postID, field: v}
	if op == "$addToSet" {
		filter[field] = bson.M{"$ne": v}
	}
	res, err := s.c.UpdateOne(ctx, filter, bson.M{
		op:     bson.M{field: v},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return false, err
	}
	if res.MatchedCount > 0 {
		return true, nil
	}
	n, err := s.c.CountDocuments(ctx, bson.M{"_id": postID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

// SetStatus moves a post from one moderation status to another. It returns
// ErrStatusChanged when the post is not in from.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, from, to string, actor primitive.ObjectID) (models.Post, error) {
	now := time.Now().UTC()
	var p models.Post
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "moderated_by": actor, "moderated_at": now, "updated_at": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Post{}, ErrStatusChanged
		}
		return models.Post{}, err
	}
	return p, nil
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

// DeleteByForum removes every post in the forum and returns their ids so the
// caller can cascade to comments and favorites.
func (s *Store) DeleteByForum(ctx context.Context, forumID primitive.ObjectID) ([]primitive.ObjectID, error) {
	ids, err := s.idsWhere(ctx, bson.M{"forum_id": forumID})
	if err != nil || len(ids) == 0 {
		return ids, err
	}
	if _, err := s.c.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) idsWhere(ctx context.Context, filter bson.M) ([]primitive.ObjectID, error) {
	cur, err := s.c.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []primitive.ObjectID
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	return ids, cur.Err()
}

// internal/app/store/forums/forumstore.go
package forumstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/campushub/internal/app/system/normalize"
	"github.com/dalemusser/campushub/internal/app/system/paging"
	"github.com/dalemusser/campushub/internal/app/system/search"
	"github.com/dalemusser/campushub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var (
	ErrNotFound           = errors.New("forum not found")
	ErrNameRequired       = errors.New("forum name is required")
	ErrBadConfidentiality = errors.New(`confidentiality must be "public" or "private"`)
	ErrBadVisibility      = errors.New(`visibility must be "visible" or "masked"`)
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("forums")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Forum, error) {
	var f models.Forum
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&f); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Forum{}, ErrNotFound
		}
		return models.Forum{}, err
	}
	return f, nil
}

// Create inserts f. Confidentiality and visibility default to public and
// visible. The author's membership row is the caller's job.
func (s *Store) Create(ctx context.Context, f models.Forum) (models.Forum, error) {
	f.Name = normalize.Name(f.Name)
	if f.Name == "" {
		return models.Forum{}, ErrNameRequired
	}
	f.Confidentiality = normalize.Confidentiality(f.Confidentiality)
	if f.Confidentiality == "" {
		f.Confidentiality = models.ConfidentialityPublic
	}
	f.Visibility = normalize.Status(f.Visibility)
	if f.Visibility == "" {
		f.Visibility = models.VisibilityVisible
	}
	if err := validate(f.Confidentiality, f.Visibility); err != nil {
		return models.Forum{}, err
	}

	now := time.Now().UTC()
	f.ID = primitive.NewObjectID()
	f.NameCI = text.Fold(f.Name)
	f.Description = strings.TrimSpace(f.Description)
	f.CreatedAt = now
	f.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, f); err != nil {
		return models.Forum{}, err
	}
	return f, nil
}

func validate(confidentiality, visibility string) error {
	switch confidentiality {
	case models.ConfidentialityPublic, models.ConfidentialityPrivate:
	default:
		return ErrBadConfidentiality
	}
	switch visibility {
	case models.VisibilityVisible, models.VisibilityMasked:
	default:
		return ErrBadVisibility
	}
	return nil
}

// Settings holds the editable forum fields. Nil fields are left unchanged.
type Settings struct {
	Name                 *string
	Description          *string
	Confidentiality      *string
	Visibility           *string
	RequiresPostApproval *bool
	CoverRef             *string
}

// Update applies the settings and returns the updated forum.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, in Settings) (models.Forum, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if in.Name != nil {
		name := normalize.Name(*in.Name)
		if name == "" {
			return models.Forum{}, ErrNameRequired
		}
		set["name"] = name
		set["name_ci"] = text.Fold(name)
	}
	// Description can be cleared (set to empty)
	if in.Description != nil {
		set["description"] = strings.TrimSpace(*in.Description)
	}
	conf, vis := models.ConfidentialityPublic, models.VisibilityVisible
	if in.Confidentiality != nil {
		conf = normalize.Confidentiality(*in.Confidentiality)
		set["confidentiality"] = conf
	}
	if in.Visibility != nil {
		vis = normalize.Status(*in.Visibility)
		set["visibility"] = vis
	}
	if err := validate(conf, vis); err != nil {
		return models.Forum{}, err
	}
	if in.RequiresPostApproval != nil {
		set["requires_post_approval"] = *in.RequiresPostApproval
	}
	if in.CoverRef != nil {
		set["cover_ref"] = *in.CoverRef
	}

	var f models.Forum
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&f)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Forum{}, ErrNotFound
		}
		return models.Forum{}, err
	}
	return f, nil
}

// Delete removes the forum document. Memberships and content are removed
// by the caller.
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

// List returns forums in name order. scope restricts which forums the
// caller may see (nil for all); q is matched as a folded name prefix.
func (s *Store) List(ctx context.Context, scope bson.M, q string, ks paging.Keyset) ([]models.Forum, bool, error) {
	filter := bson.M{}
	for k, v := range scope {
		filter[k] = v
	}
	if cond := search.Prefix(q); cond != nil {
		filter["name_ci"] = cond
	}
	filter = paging.Merge(filter, ks.AscWindow("name_ci"))

	cur, err := s.c.Find(ctx, filter, ks.AscFind("name_ci"))
	if err != nil {
		return nil, false, err
	}
	defer cur.Close(ctx)

	out := []models.Forum{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, false, err
	}
	hasNext := paging.TrimPage(&out, ks.Limit)
	return out, hasNext, nil
}

// GetByIDs returns the forums with the given ids in name order.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Forum, error) {
	if len(ids) == 0 {
		return []models.Forum{}, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Forum{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/campushub/internal/app/system/normalize"
	"github.com/dalemusser/campushub/internal/app/system/paging"
	"github.com/dalemusser/campushub/internal/app/system/search"
	"github.com/dalemusser/campushub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

var (
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	ErrNotFound       = errors.New("user not found")
	errBadRole        = errors.New(`role must be "user"|"admin"|"superadmin"`)
	errBadStatus      = errors.New(`status must be "active"|"disabled"`)
)

const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByEmail looks up a user by folded email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email_ci": text.Fold(normalize.Email(email))})
}

// GetByFirebaseUID looks up the user linked to a Firebase account.
func (s *Store) GetByFirebaseUID(ctx context.Context, uid string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"firebase_uid": uid})
}

// Create inserts a new user after normalizing & validating fields.
// PasswordHash must already be hashed by the caller.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.FullName = normalize.Name(u.FullName)
	u.FullNameCI = text.Fold(u.FullName)
	u.Email = normalize.Email(u.Email)
	u.EmailCI = text.Fold(u.Email)
	u.Role = normalize.Role(u.Role)
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.Status == "" {
		u.Status = StatusActive
	}

	switch u.Role {
	case models.RoleUser, models.RoleAdmin, models.RoleSuperAdmin:
	default:
		return models.User{}, errBadRole
	}
	if u.Status != StatusActive && u.Status != StatusDisabled {
		return models.User{}, errBadStatus
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// ProfileUpdate holds the self-editable profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	FullName  *string
	Bio       *string
	Faculty   *string
	AvatarRef *string
}

// UpdateProfile applies upd to the user.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) (*models.User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.FullName != nil {
		name := normalize.Name(*upd.FullName)
		set["full_name"] = name
		set["full_name_ci"] = text.Fold(name)
	}
	if upd.Bio != nil {
		set["bio"] = *upd.Bio
	}
	if upd.Faculty != nil {
		set["faculty"] = *upd.Faculty
	}
	if upd.AvatarRef != nil {
		set["avatar_ref"] = *upd.AvatarRef
	}
	return s.update(ctx, id, set)
}

// SetRole changes the user's role.
func (s *Store) SetRole(ctx context.Context, id primitive.ObjectID, role string) (*models.User, error) {
	role = normalize.Role(role)
	switch role {
	case models.RoleUser, models.RoleAdmin, models.RoleSuperAdmin:
	default:
		return nil, errBadRole
	}
	return s.update(ctx, id, bson.M{"role": role, "updated_at": time.Now().UTC()})
}

// SetPermissions replaces the user's permission set.
func (s *Store) SetPermissions(ctx context.Context, id primitive.ObjectID, perms []string) (*models.User, error) {
	if perms == nil {
		perms = []string{}
	}
	return s.update(ctx, id, bson.M{"permissions": perms, "updated_at": time.Now().UTC()})
}

// SetStatus enables or disables the account.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status string) (*models.User, error) {
	status = normalize.Status(status)
	if status != StatusActive && status != StatusDisabled {
		return nil, errBadStatus
	}
	return s.update(ctx, id, bson.M{"status": status, "updated_at": time.Now().UTC()})
}

// SetPasswordHash replaces the stored bcrypt hash.
func (s *Store) SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	_, err := s.update(ctx, id, bson.M{"password_hash": hash, "updated_at": time.Now().UTC()})
	return err
}

// LinkFirebaseUID attaches a Firebase account to the user.
func (s *Store) LinkFirebaseUID(ctx context.Context, id primitive.ObjectID, uid string) error {
	_, err := s.update(ctx, id, bson.M{"firebase_uid": uid, "updated_at": time.Now().UTC()})
	return err
}

func (s *Store) update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.User, error) {
	var u models.User
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		if wafflemongo.IsDup(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return &u, nil
}

// ListFilter narrows admin user lists.
type ListFilter struct {
	Search string
	Role   string
	Status string
}

// List returns users ordered by folded name with keyset paging. Email-like
// searches constrained by status are ordered by folded email instead.
func (s *Store) List(ctx context.Context, f ListFilter, ks paging.Keyset) ([]models.User, bool, error) {
	filter := bson.M{}
	if f.Role != "" {
		filter["role"] = f.Role
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	sortField := "full_name_ci"
	if search.EmailPivotOK(f.Search, f.Status) {
		sortField = "email_ci"
	}
	if cond := search.Prefix(f.Search); cond != nil {
		filter[sortField] = cond
	}
	filter = paging.Merge(filter, ks.AscWindow(sortField))

	cur, err := s.c.Find(ctx, filter, ks.AscFind(sortField))
	if err != nil {
		return nil, false, err
	}
	defer cur.Close(ctx)

	out := []models.User{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, false, err
	}
	hasNext := paging.TrimPage(&out, ks.Limit)
	return out, hasNext, nil
}

// NamesByIDs returns full names keyed by id for display joins.
func (s *Store) NamesByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
	out := make(map[primitive.ObjectID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"full_name": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var row struct {
			ID       primitive.ObjectID `bson:"_id"`
			FullName string             `bson:"full_name"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.ID] = row.FullName
	}
	return out, cur.Err()
}

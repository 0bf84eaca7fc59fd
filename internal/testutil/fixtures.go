package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
// Calling it repeatedly on the same request accumulates parameters.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates an active user with role "user".
func (f *Fixtures) CreateUser(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.createUser(ctx, name, email, models.RoleUser)
}

// CreateAdmin creates an active admin.
func (f *Fixtures) CreateAdmin(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.createUser(ctx, name, email, models.RoleAdmin)
}

// CreateSuperAdmin creates an active superadmin.
func (f *Fixtures) CreateSuperAdmin(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.createUser(ctx, name, email, models.RoleSuperAdmin)
}

func (f *Fixtures) createUser(ctx context.Context, name, email, role string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:         primitive.NewObjectID(),
		FullName:   name,
		FullNameCI: text.Fold(name),
		Email:      email,
		EmailCI:    text.Fold(email),
		Role:       role,
		Status:     "active",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// ViewerOf returns the authorization view of u.
func ViewerOf(u models.User) authz.Viewer {
	return authz.Viewer{ID: u.ID, Role: u.Role, Permissions: u.Permissions}
}

// ForumOpts tweaks CreateForum. Zero values give a public, visible forum
// without post approval.
type ForumOpts struct {
	Private          bool
	Masked           bool
	RequiresApproval bool
}

// CreateForum creates a forum and the author's accepted membership.
func (f *Fixtures) CreateForum(ctx context.Context, name string, authorID primitive.ObjectID, opts ForumOpts) models.Forum {
	f.t.Helper()

	now := time.Now().UTC()
	forum := models.Forum{
		ID:                   primitive.NewObjectID(),
		Name:                 name,
		NameCI:               text.Fold(name),
		Description:          "Test forum",
		AuthorID:             authorID,
		Confidentiality:      models.ConfidentialityPublic,
		Visibility:           models.VisibilityVisible,
		RequiresPostApproval: opts.RequiresApproval,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if opts.Private {
		forum.Confidentiality = models.ConfidentialityPrivate
	}
	if opts.Masked {
		forum.Visibility = models.VisibilityMasked
	}
	if _, err := f.db.Collection("forums").InsertOne(ctx, forum); err != nil {
		f.t.Fatalf("failed to create test forum: %v", err)
	}
	f.AddMembership(ctx, forum.ID, authorID, models.MembershipAccepted, models.MemberRoleAuthor)
	return forum
}

// AddMembership inserts a membership row directly.
func (f *Fixtures) AddMembership(ctx context.Context, forumID, userID primitive.ObjectID, status, role string) models.ForumMembership {
	f.t.Helper()

	now := time.Now().UTC()
	m := models.ForumMembership{
		ID:        primitive.NewObjectID(),
		ForumID:   forumID,
		UserID:    userID,
		GroupType: models.GroupTypeForum,
		Status:    status,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if status == models.MembershipAccepted {
		m.JoinedAt = &now
	} else {
		m.RequestedAt = &now
	}
	if _, err := f.db.Collection("forum_memberships").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create test membership: %v", err)
	}
	return m
}

// CreatePost inserts a post. forumID may be nil; status may be "" to
// simulate rows that predate moderation.
func (f *Fixtures) CreatePost(ctx context.Context, authorID primitive.ObjectID, forumID *primitive.ObjectID, content, status string) models.Post {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Post{
		ID:         primitive.NewObjectID(),
		AuthorID:   authorID,
		ForumID:    forumID,
		Content:    content,
		Likes:      []primitive.ObjectID{},
		CommentIDs: []primitive.ObjectID{},
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := f.db.Collection("posts").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test post: %v", err)
	}
	return p
}

// CreateEvent inserts an event starting startsAt.
func (f *Fixtures) CreateEvent(ctx context.Context, authorID primitive.ObjectID, forumID *primitive.ObjectID, title string, startsAt time.Time, maxParticipants int, status string) models.Event {
	f.t.Helper()

	now := time.Now().UTC()
	end := startsAt.Add(2 * time.Hour)
	e := models.Event{
		ID:              primitive.NewObjectID(),
		AuthorID:        authorID,
		ForumID:         forumID,
		Title:           title,
		Description:     "Test event",
		StartDate:       startsAt.Format("2006-01-02"),
		StartTime:       startsAt.Format("15:04"),
		EndDate:         end.Format("2006-01-02"),
		EndTime:         end.Format("15:04"),
		StartsAt:        startsAt.UTC(),
		Participants:    []primitive.ObjectID{},
		MaxParticipants: maxParticipants,
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := f.db.Collection("events").InsertOne(ctx, e); err != nil {
		f.t.Fatalf("failed to create test event: %v", err)
	}
	return e
}

package forumstore_test

import (
	"errors"
	"testing"

	forumstore "github.com/dalemusser/campushub/internal/app/store/forums"
	"github.com/dalemusser/campushub/internal/app/system/paging"
	"github.com/dalemusser/campushub/internal/domain/models"
	"github.com/dalemusser/campushub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_CreateDefaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := forumstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f, err := store.Create(ctx, models.Forum{Name: "  Club   Échecs ", AuthorID: primitive.NewObjectID()})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if f.Name != "Club Échecs" || f.NameCI != "club echecs" {
		t.Errorf("name: got (%q, %q)", f.Name, f.NameCI)
	}
	if !f.IsPublic() || f.IsMasked() {
		t.Errorf("expected public visible forum, got %q/%q", f.Confidentiality, f.Visibility)
	}

	got, err := store.GetByID(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.ID != f.ID {
		t.Errorf("ID: got %v, want %v", got.ID, f.ID)
	}
}

func TestStore_Create_Invalid(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := forumstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.Forum{Name: "   "}); !errors.Is(err, forumstore.ErrNameRequired) {
		t.Errorf("blank name: got %v, want ErrNameRequired", err)
	}
	if _, err := store.Create(ctx, models.Forum{Name: "X", Confidentiality: "secret"}); err == nil {
		t.Error("expected error for bad confidentiality")
	}
	if _, err := store.Create(ctx, models.Forum{Name: "X", Visibility: "hidden"}); err == nil {
		t.Error("expected error for bad visibility")
	}
}

func TestStore_Update(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := forumstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := fixtures.CreateUser(ctx, "Author", "author@campus.edu")
	f := fixtures.CreateForum(ctx, "Robotique", author.ID, testutil.ForumOpts{})

	priv, approval := models.ConfidentialityPrivate, true
	got, err := store.Update(ctx, f.ID, forumstore.Settings{Confidentiality: &priv, RequiresPostApproval: &approval})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got.IsPublic() || !got.RequiresPostApproval {
		t.Errorf("got %+v", got)
	}
	if got.Name != "Robotique" {
		t.Errorf("Name changed unexpectedly: %q", got.Name)
	}

	if _, err := store.Update(ctx, primitive.NewObjectID(), forumstore.Settings{Confidentiality: &priv}); !errors.Is(err, forumstore.ErrNotFound) {
		t.Errorf("missing forum: got %v, want ErrNotFound", err)
	}
}

func TestStore_Delete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := forumstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := fixtures.CreateForum(ctx, "Temp", primitive.NewObjectID(), testutil.ForumOpts{})
	if err := store.Delete(ctx, f.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, f.ID); !errors.Is(err, forumstore.ErrNotFound) {
		t.Errorf("second Delete: got %v, want ErrNotFound", err)
	}
}

func TestStore_List_ScopeAndSearch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := forumstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := primitive.NewObjectID()
	fixtures.CreateForum(ctx, "Chimie", author, testutil.ForumOpts{})
	fixtures.CreateForum(ctx, "Chorale", author, testutil.ForumOpts{})
	fixtures.CreateForum(ctx, "Cercle secret", author, testutil.ForumOpts{Masked: true})

	all, _, err := store.List(ctx, nil, "", paging.NewKeyset("", 10))
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all: got %d, want 3", len(all))
	}

	visible, _, err := store.List(ctx, bson.M{"visibility": models.VisibilityVisible}, "", paging.NewKeyset("", 10))
	if err != nil {
		t.Fatalf("List visible failed: %v", err)
	}
	if len(visible) != 2 {
		t.Errorf("visible: got %d, want 2", len(visible))
	}

	page, hasNext, err := store.List(ctx, nil, "ch", paging.NewKeyset("", 1))
	if err != nil {
		t.Fatalf("List search failed: %v", err)
	}
	if len(page) != 1 || page[0].Name != "Chimie" || !hasNext {
		t.Errorf("search page: got %v hasNext=%v", page, hasNext)
	}
}

func TestStore_GetByIDs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := forumstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := fixtures.CreateForum(ctx, "Zoologie", primitive.NewObjectID(), testutil.ForumOpts{})
	b := fixtures.CreateForum(ctx, "Astronomie", primitive.NewObjectID(), testutil.ForumOpts{})

	got, err := store.GetByIDs(ctx, []primitive.ObjectID{a.ID, b.ID})
	if err != nil {
		t.Fatalf("GetByIDs failed: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Astronomie" {
		t.Errorf("got %v", got)
	}

	empty, err := store.GetByIDs(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("empty ids: got %v, %v", empty, err)
	}
}

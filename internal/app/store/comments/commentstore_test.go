package commentstore_test

import (
	"errors"
	"testing"

	commentstore "github.com/dalemusser/campushub/internal/app/store/comments"
	"github.com/dalemusser/campushub/internal/app/system/paging"
	"github.com/dalemusser/campushub/internal/domain/models"
	"github.com/dalemusser/campushub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_CreateListDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := commentstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	postID := primitive.NewObjectID()
	author := primitive.NewObjectID()
	var first models.Comment
	for i, body := range []string{"premier", "deuxième", "troisième"} {
		c, err := store.Create(ctx, models.Comment{PostID: postID, AuthorID: author, Content: body})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if i == 0 {
			first = c
		}
	}
	if _, err := store.Create(ctx, models.Comment{PostID: primitive.NewObjectID(), AuthorID: author, Content: "ailleurs"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	page, hasNext, err := store.ListByPost(ctx, postID, paging.NewKeyset("", 2))
	if err != nil {
		t.Fatalf("ListByPost failed: %v", err)
	}
	if len(page) != 2 || !hasNext || page[0].ID != first.ID {
		t.Fatalf("page1: got %v hasNext=%v", page, hasNext)
	}
	page2, hasNext, err := store.ListByPost(ctx, postID, paging.NewKeyset(paging.NextCursor(true, "", page[1].ID), 2))
	if err != nil {
		t.Fatalf("ListByPost page2 failed: %v", err)
	}
	if len(page2) != 1 || hasNext {
		t.Errorf("page2: got %d rows hasNext=%v", len(page2), hasNext)
	}

	if err := store.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.GetByID(ctx, first.ID); !errors.Is(err, commentstore.ErrNotFound) {
		t.Errorf("GetByID after delete: got %v, want ErrNotFound", err)
	}

	n, err := store.DeleteByPosts(ctx, []primitive.ObjectID{postID})
	if err != nil {
		t.Fatalf("DeleteByPosts failed: %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteByPosts: got %d, want 2", n)
	}
}

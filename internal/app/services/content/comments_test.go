package content

import (
	"testing"

	"github.com/dalemusser/campushub/internal/app/system/apperr"
	"github.com/dalemusser/campushub/internal/app/system/paging"
	"github.com/dalemusser/campushub/internal/domain/models"
	"github.com/dalemusser/campushub/internal/testutil"
)

func TestComments(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := e.fx.CreateUser(ctx, "Author", "author@example.edu")
	a := e.fx.CreateUser(ctx, "Ali", "ali@example.edu")
	b := e.fx.CreateUser(ctx, "Bea", "bea@example.edu")
	p := e.fx.CreatePost(ctx, author.ID, nil, "hello", models.ContentApproved)

	_, err := e.svc.AddComment(ctx, testutil.ViewerOf(a), p.ID, "   ")
	wantErr(t, err, errEmptyComment)

	c1, err := e.svc.AddComment(ctx, testutil.ViewerOf(a), p.ID, "first")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	c2, err := e.svc.AddComment(ctx, testutil.ViewerOf(b), p.ID, "second")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}

	got, _ := e.svc.GetPost(ctx, testutil.ViewerOf(a), p.ID)
	if len(got.CommentIDs) != 2 {
		t.Errorf("comment_ids: got %d, want 2", len(got.CommentIDs))
	}
	page, err := e.svc.Comments(ctx, testutil.ViewerOf(b), p.ID, paging.NewKeyset("", 10))
	if err != nil || len(page.Items) != 2 || page.Items[0].ID != c1.ID {
		t.Fatalf("Comments: %+v, %v", page.Items, err)
	}
	if inbox := e.inbox(t, author.ID); len(inbox) != 2 {
		t.Errorf("author inbox: %v", inbox)
	}

	// b may not delete a's comment; the post author may.
	wantErr(t, e.svc.DeleteComment(ctx, testutil.ViewerOf(b), c1.ID), apperr.ErrForbidden)
	if err := e.svc.DeleteComment(ctx, testutil.ViewerOf(author), c1.ID); err != nil {
		t.Fatalf("post author DeleteComment: %v", err)
	}
	if err := e.svc.DeleteComment(ctx, testutil.ViewerOf(b), c2.ID); err != nil {
		t.Fatalf("own DeleteComment: %v", err)
	}
	wantErr(t, e.svc.DeleteComment(ctx, testutil.ViewerOf(b), c2.ID), apperr.ErrCommentNotFound)

	got, _ = e.svc.GetPost(ctx, testutil.ViewerOf(a), p.ID)
	if len(got.CommentIDs) != 0 {
		t.Errorf("comment_ids after delete: %v", got.CommentIDs)
	}
	if inbox := e.inbox(t, author.ID); len(inbox) != 0 {
		t.Errorf("comment notifications left: %v", inbox)
	}
}

func TestAddComment_HiddenPost(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := e.fx.CreateUser(ctx, "Author", "author@example.edu")
	outsider := e.fx.CreateUser(ctx, "Out", "out@example.edu")
	forum := e.fx.CreateForum(ctx, "Closed", author.ID, testutil.ForumOpts{Private: true})
	p := e.fx.CreatePost(ctx, author.ID, &forum.ID, "members only", models.ContentApproved)

	_, err := e.svc.AddComment(ctx, testutil.ViewerOf(outsider), p.ID, "hi")
	wantErr(t, err, apperr.ErrPostNotFound)
	_, err = e.svc.Comments(ctx, testutil.ViewerOf(outsider), p.ID, paging.NewKeyset("", 10))
	wantErr(t, err, apperr.ErrPostNotFound)
}

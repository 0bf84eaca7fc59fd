package content

import (
	"strings"
	"testing"

	"github.com/dalemusser/campushub/internal/app/system/apperr"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/paging"
	"github.com/dalemusser/campushub/internal/domain/models"
	"github.com/dalemusser/campushub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestCreatePost_ForumRequiresMembership(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := e.fx.CreateUser(ctx, "Author", "author@example.edu")
	outsider := e.fx.CreateUser(ctx, "Out", "out@example.edu")
	admin := e.fx.CreateAdmin(ctx, "Admin", "admin@example.edu")
	forum := e.fx.CreateForum(ctx, "Open", author.ID, testutil.ForumOpts{})

	_, err := e.svc.CreatePost(ctx, testutil.ViewerOf(outsider), PostInput{ForumID: &forum.ID, Content: "hello"})
	wantErr(t, err, apperr.ErrMembersOnly)
	_, err = e.svc.CreatePost(ctx, testutil.ViewerOf(admin), PostInput{ForumID: &forum.ID, Content: "hello"})
	wantErr(t, err, apperr.ErrMembersOnly)

	_, err = e.svc.CreatePost(ctx, authz.Viewer{}, PostInput{Content: "hello"})
	wantErr(t, err, apperr.ErrUnauthenticated)
	_, err = e.svc.CreatePost(ctx, testutil.ViewerOf(outsider), PostInput{Content: "  <p></p> "})
	wantErr(t, err, errEmptyPost)

	p, err := e.svc.CreatePost(ctx, testutil.ViewerOf(outsider), PostInput{Content: "hello\n<script>x</script>"})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if p.Status != models.ContentApproved {
		t.Errorf("status: got %q, want approved", p.Status)
	}
	if p.Content == "" || strings.Contains(p.Content, "<script") {
		t.Errorf("content not sanitized: %q", p.Content)
	}
}

func TestCreatePost_ApprovalFlow(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := e.fx.CreateUser(ctx, "Author", "author@example.edu")
	member := e.fx.CreateUser(ctx, "Member", "member@example.edu")
	other := e.fx.CreateUser(ctx, "Other", "other@example.edu")
	forum := e.fx.CreateForum(ctx, "Moderated", author.ID, testutil.ForumOpts{RequiresApproval: true})
	e.fx.AddMembership(ctx, forum.ID, member.ID, models.MembershipAccepted, models.MemberRoleMember)
	e.fx.AddMembership(ctx, forum.ID, other.ID, models.MembershipAccepted, models.MemberRoleMember)

	p, err := e.svc.CreatePost(ctx, testutil.ViewerOf(member), PostInput{ForumID: &forum.ID, Content: "draft"})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if p.Status != models.ContentPending {
		t.Fatalf("status: got %q, want pending", p.Status)
	}
	if got := e.inbox(t, author.ID); len(got) != 1 || got[0] != models.NotifyPostPendingApproval {
		t.Errorf("forum author inbox: %v", got)
	}

	// Pending posts stay out of every listing and single read.
	_, err = e.svc.GetPost(ctx, testutil.ViewerOf(other), p.ID)
	wantErr(t, err, apperr.ErrPostNotFound)
	page, _ := e.svc.ForumPosts(ctx, testutil.ViewerOf(other), forum.ID, paging.NewKeyset("", 10))
	if len(page.Items) != 0 {
		t.Errorf("pending post listed: %+v", page.Items)
	}
	mine, _ := e.svc.MyPendingPosts(ctx, testutil.ViewerOf(member), paging.NewKeyset("", 10))
	if len(mine.Items) != 1 {
		t.Errorf("MyPendingPosts: got %d", len(mine.Items))
	}

	_, err = e.svc.PendingPosts(ctx, testutil.ViewerOf(other), forum.ID, paging.NewKeyset("", 10))
	wantErr(t, err, apperr.ErrNotManager)
	queue, err := e.svc.PendingPosts(ctx, testutil.ViewerOf(author), forum.ID, paging.NewKeyset("", 10))
	if err != nil || len(queue.Items) != 1 {
		t.Fatalf("PendingPosts: %d, %v", len(queue.Items), err)
	}

	_, err = e.svc.ApprovePost(ctx, testutil.ViewerOf(other), p.ID)
	wantErr(t, err, apperr.ErrNotManager)
	approved, err := e.svc.ApprovePost(ctx, testutil.ViewerOf(author), p.ID)
	if err != nil || approved.Status != models.ContentApproved {
		t.Fatalf("ApprovePost: %+v, %v", approved, err)
	}
	_, err = e.svc.RejectPost(ctx, testutil.ViewerOf(author), p.ID)
	wantErr(t, err, apperr.ErrNotPending)

	if _, err := e.svc.GetPost(ctx, testutil.ViewerOf(other), p.ID); err != nil {
		t.Errorf("approved post hidden: %v", err)
	}
	if got := e.inbox(t, member.ID); len(got) != 1 || got[0] != models.NotifyPostApproved {
		t.Errorf("member inbox: %v", got)
	}
	// The request for approval is withdrawn once decided.
	if got := e.inbox(t, author.ID); len(got) != 0 {
		t.Errorf("author inbox after approval: %v", got)
	}

	// Managers skip the queue.
	own, err := e.svc.CreatePost(ctx, testutil.ViewerOf(author), PostInput{ForumID: &forum.ID, Content: "rules"})
	if err != nil || own.Status != models.ContentApproved {
		t.Errorf("manager post: %+v, %v", own, err)
	}
}

func TestFeed_AppliesVisibility(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := e.fx.CreateUser(ctx, "Author", "author@example.edu")
	viewer := e.fx.CreateUser(ctx, "Viewer", "viewer@example.edu")
	joined := e.fx.CreateForum(ctx, "Joined", author.ID, testutil.ForumOpts{})
	closed := e.fx.CreateForum(ctx, "Closed", author.ID, testutil.ForumOpts{Private: true})
	e.fx.AddMembership(ctx, joined.ID, viewer.ID, models.MembershipAccepted, models.MemberRoleMember)
	e.fx.AddMembership(ctx, closed.ID, viewer.ID, models.MembershipPending, models.MemberRoleMember)

	public := e.fx.CreatePost(ctx, author.ID, nil, "public", models.ContentApproved)
	legacy := e.fx.CreatePost(ctx, author.ID, nil, "legacy", "")
	inJoined := e.fx.CreatePost(ctx, author.ID, &joined.ID, "joined", models.ContentApproved)
	inClosed := e.fx.CreatePost(ctx, author.ID, &closed.ID, "closed", models.ContentApproved)
	rejected := e.fx.CreatePost(ctx, author.ID, nil, "rejected", models.ContentRejected)

	page, err := e.svc.Feed(ctx, testutil.ViewerOf(viewer), paging.NewKeyset("", 50))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	got := ids(page.Items, postID)
	for _, want := range []models.Post{public, legacy, inJoined} {
		if !got[want.ID] {
			t.Errorf("feed missing %q", want.Content)
		}
	}
	for _, hidden := range []models.Post{inClosed, rejected} {
		if got[hidden.ID] {
			t.Errorf("feed leaked %q", hidden.Content)
		}
	}

	anon, _ := e.svc.Feed(ctx, authz.Viewer{}, paging.NewKeyset("", 50))
	if len(anon.Items) != 2 {
		t.Errorf("anonymous feed: got %d posts, want 2", len(anon.Items))
	}

	_, err = e.svc.GetPost(ctx, testutil.ViewerOf(viewer), inClosed.ID)
	wantErr(t, err, apperr.ErrPostNotFound)

	byAuthor, _ := e.svc.AuthorPosts(ctx, testutil.ViewerOf(viewer), author.ID, paging.NewKeyset("", 50))
	if len(byAuthor.Items) != 3 {
		t.Errorf("AuthorPosts: got %d, want 3", len(byAuthor.Items))
	}
}

func TestFeed_Paging(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := e.fx.CreateUser(ctx, "Author", "author@example.edu")
	for i := 0; i < 5; i++ {
		e.fx.CreatePost(ctx, author.ID, nil, "p", models.ContentApproved)
	}
	v := testutil.ViewerOf(author)
	first, _ := e.svc.Feed(ctx, v, paging.NewKeyset("", 3))
	if len(first.Items) != 3 || first.NextCursor == "" {
		t.Fatalf("first page: %d items, cursor %q", len(first.Items), first.NextCursor)
	}
	second, _ := e.svc.Feed(ctx, v, paging.NewKeyset(first.NextCursor, 3))
	if len(second.Items) != 2 || second.NextCursor != "" {
		t.Fatalf("second page: %d items, cursor %q", len(second.Items), second.NextCursor)
	}
	seen := ids(first.Items, postID)
	for _, p := range second.Items {
		if seen[p.ID] {
			t.Errorf("post %s repeated across pages", p.ID.Hex())
		}
	}
}

func TestLikeUnlike(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := e.fx.CreateUser(ctx, "Author", "author@example.edu")
	fan := e.fx.CreateUser(ctx, "Fan", "fan@example.edu")
	p := e.fx.CreatePost(ctx, author.ID, nil, "hello", models.ContentApproved)

	if err := e.svc.Like(ctx, testutil.ViewerOf(fan), p.ID); err != nil {
		t.Fatalf("Like: %v", err)
	}
	wantErr(t, e.svc.Like(ctx, testutil.ViewerOf(fan), p.ID), apperr.ErrAlreadyLiked)
	if ok, _ := e.svc.IsLiked(ctx, testutil.ViewerOf(fan), p.ID); !ok {
		t.Error("IsLiked: want true")
	}
	if got := e.inbox(t, author.ID); len(got) != 1 || got[0] != models.NotifyPostLiked {
		t.Errorf("author inbox: %v", got)
	}

	// Liking your own post notifies nobody.
	if err := e.svc.Like(ctx, testutil.ViewerOf(author), p.ID); err != nil {
		t.Fatalf("self Like: %v", err)
	}
	if got := e.inbox(t, author.ID); len(got) != 1 {
		t.Errorf("self like produced a notification: %v", got)
	}

	if err := e.svc.Unlike(ctx, testutil.ViewerOf(fan), p.ID); err != nil {
		t.Fatalf("Unlike: %v", err)
	}
	if ok, _ := e.svc.IsLiked(ctx, testutil.ViewerOf(fan), p.ID); ok {
		t.Error("IsLiked after unlike: want false")
	}
	if got := e.inbox(t, author.ID); len(got) != 0 {
		t.Errorf("like notification not withdrawn: %v", got)
	}
	if err := e.svc.Unlike(ctx, testutil.ViewerOf(fan), p.ID); err != nil {
		t.Errorf("second Unlike: %v", err)
	}
}

func TestLike_LikeThenUnlikeBeforeDispatch(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := e.fx.CreateUser(ctx, "Author", "author@example.edu")
	fan := e.fx.CreateUser(ctx, "Fan", "fan@example.edu")
	p := e.fx.CreatePost(ctx, author.ID, nil, "hello", models.ContentApproved)

	if err := e.svc.Like(ctx, testutil.ViewerOf(fan), p.ID); err != nil {
		t.Fatalf("Like: %v", err)
	}
	if err := e.svc.Unlike(ctx, testutil.ViewerOf(fan), p.ID); err != nil {
		t.Fatalf("Unlike: %v", err)
	}
	if got := e.inbox(t, author.ID); len(got) != 0 {
		t.Errorf("cancelled like delivered: %v", got)
	}
}

func TestDeletePost_Cascades(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := e.fx.CreateUser(ctx, "Author", "author@example.edu")
	reader := e.fx.CreateUser(ctx, "Reader", "reader@example.edu")
	p := e.fx.CreatePost(ctx, author.ID, nil, "hello", models.ContentApproved)

	if _, err := e.svc.AddComment(ctx, testutil.ViewerOf(reader), p.ID, "nice"); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if _, err := e.svc.AddFavorite(ctx, testutil.ViewerOf(reader), models.TargetPost, p.ID); err != nil {
		t.Fatalf("AddFavorite: %v", err)
	}
	if got := e.inbox(t, author.ID); len(got) != 1 {
		t.Fatalf("author inbox: %v", got)
	}

	wantErr(t, e.svc.DeletePost(ctx, testutil.ViewerOf(reader), p.ID), apperr.ErrForbidden)
	if err := e.svc.DeletePost(ctx, testutil.ViewerOf(author), p.ID); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}

	if n := count(t, e.db, "comments", bson.M{"post_id": p.ID}); n != 0 {
		t.Errorf("comments left: %d", n)
	}
	if n := count(t, e.db, "favorites", bson.M{"target_id": p.ID}); n != 0 {
		t.Errorf("favorites left: %d", n)
	}
	if n := count(t, e.db, "notifications", bson.M{"post_id": p.ID}); n != 0 {
		t.Errorf("notifications left: %d", n)
	}
	wantErr(t, e.svc.DeletePost(ctx, testutil.ViewerOf(author), p.ID), apperr.ErrPostNotFound)
}

func TestDeletePost_ForumManager(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := e.fx.CreateUser(ctx, "Owner", "owner@example.edu")
	writer := e.fx.CreateUser(ctx, "Writer", "writer@example.edu")
	forum := e.fx.CreateForum(ctx, "Club", owner.ID, testutil.ForumOpts{})
	p := e.fx.CreatePost(ctx, writer.ID, &forum.ID, "spam", models.ContentApproved)

	if err := e.svc.DeletePost(ctx, testutil.ViewerOf(owner), p.ID); err != nil {
		t.Fatalf("manager DeletePost: %v", err)
	}
}

func TestUpdatePost_AuthorOnly(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := e.fx.CreateUser(ctx, "Author", "author@example.edu")
	admin := e.fx.CreateAdmin(ctx, "Admin", "admin@example.edu")
	p := e.fx.CreatePost(ctx, author.ID, nil, "v1", models.ContentApproved)

	_, err := e.svc.UpdatePost(ctx, testutil.ViewerOf(admin), p.ID, "v2", nil)
	wantErr(t, err, apperr.ErrForbidden)
	out, err := e.svc.UpdatePost(ctx, testutil.ViewerOf(author), p.ID, "v2", nil)
	if err != nil {
		t.Fatalf("UpdatePost: %v", err)
	}
	if out.Content != "<p>v2</p>" {
		t.Errorf("content: got %q", out.Content)
	}
}

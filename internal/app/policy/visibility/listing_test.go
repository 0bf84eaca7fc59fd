package visibility_test

import (
	"testing"

	"github.com/dalemusser/campushub/internal/app/policy/visibility"
	membershipstore "github.com/dalemusser/campushub/internal/app/store/memberships"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/domain/models"
	"github.com/dalemusser/campushub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// The filter and CanView must agree on every combination of forum and status.
func TestListingFilter_MatchesCanView(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	viewer := fixtures.CreateUser(ctx, "Viewer", "viewer@campus.edu")
	owner := primitive.NewObjectID()
	joined := fixtures.CreateForum(ctx, "Joined", owner, testutil.ForumOpts{})
	other := fixtures.CreateForum(ctx, "Other", owner, testutil.ForumOpts{})
	fixtures.AddMembership(ctx, joined.ID, viewer.ID, models.MembershipAccepted, models.MemberRoleMember)
	pendingForum := fixtures.CreateForum(ctx, "Pending", owner, testutil.ForumOpts{Private: true})
	fixtures.AddMembership(ctx, pendingForum.ID, viewer.ID, models.MembershipPending, models.MemberRoleMember)

	var all []models.Post
	for _, forum := range []*primitive.ObjectID{nil, &joined.ID, &other.ID, &pendingForum.ID} {
		for _, status := range []string{"", models.ContentApproved, models.ContentPending, models.ContentRejected} {
			all = append(all, fixtures.CreatePost(ctx, owner, forum, "x", status))
		}
	}

	scope, err := visibility.Load(ctx, membershipstore.New(db), authz.Viewer{ID: viewer.ID, Role: viewer.Role})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cur, err := db.Collection("posts").Find(ctx, scope.ListingFilter())
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	var listed []models.Post
	if err := cur.All(ctx, &listed); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	got := map[primitive.ObjectID]bool{}
	for _, p := range listed {
		got[p.ID] = true
	}

	want := 0
	for _, p := range all {
		if scope.CanView(visibility.PostItem(p)) {
			want++
			if !got[p.ID] {
				t.Errorf("post forum=%v status=%q visible but not listed", p.ForumID, p.Status)
			}
		} else if got[p.ID] {
			t.Errorf("post forum=%v status=%q listed but not visible", p.ForumID, p.Status)
		}
	}
	// 2 without forum + 2 in the joined forum.
	if want != 4 || len(listed) != 4 {
		t.Errorf("visible=%d listed=%d, want 4", want, len(listed))
	}
}

func TestForumListingFilter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	viewer := primitive.NewObjectID()
	owner := primitive.NewObjectID()
	fixtures.CreateForum(ctx, "Open", owner, testutil.ForumOpts{})
	hidden := fixtures.CreateForum(ctx, "Hidden", owner, testutil.ForumOpts{Masked: true})
	fixtures.CreateForum(ctx, "Mine", viewer, testutil.ForumOpts{Masked: true})
	fixtures.CreateForum(ctx, "Secret", owner, testutil.ForumOpts{Masked: true})
	fixtures.AddMembership(ctx, hidden.ID, viewer, models.MembershipAccepted, models.MemberRoleMember)

	scope, err := visibility.Load(ctx, membershipstore.New(db), authz.Viewer{ID: viewer, Role: models.RoleUser})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	n, err := db.Collection("forums").CountDocuments(ctx, scope.ForumListingFilter())
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if n != 3 {
		t.Errorf("listable forums: got %d, want 3", n)
	}

	anon := visibility.NewScope(authz.Viewer{}, nil)
	n, _ = db.Collection("forums").CountDocuments(ctx, anon.ForumListingFilter())
	if n != 1 {
		t.Errorf("anonymous listable forums: got %d, want 1", n)
	}
}

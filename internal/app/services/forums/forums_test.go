package forums

import (
	"testing"
	"time"

	"github.com/dalemusser/campushub/internal/app/services/content"
	"github.com/dalemusser/campushub/internal/app/services/notify"
	forumstore "github.com/dalemusser/campushub/internal/app/store/forums"
	"github.com/dalemusser/campushub/internal/app/system/apperr"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/indexes"
	"github.com/dalemusser/campushub/internal/app/system/paging"
	"github.com/dalemusser/campushub/internal/domain/models"
	"github.com/dalemusser/campushub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func setup(t *testing.T) (*mongo.Database, *Service, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	n := notify.New(db, nil, zap.NewNop())
	c := content.New(db, n, time.UTC, zap.NewNop())
	return db, New(db, c, nil, zap.NewNop()), testutil.NewFixtures(t, db)
}

func wantErr(t *testing.T, got error, want *apperr.Error) {
	t.Helper()
	if apperr.KindOf(got) != want.Kind || apperr.MessageOf(got) != want.Message {
		t.Fatalf("got error %v, want %v", got, want)
	}
}

func TestCreate_SeatsAuthor(t *testing.T) {
	db, svc, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Author", "author@example.edu")
	v := testutil.ViewerOf(u)

	_, err := svc.Create(ctx, v, Input{Name: "   "})
	wantErr(t, err, errNameRequired)
	_, err = svc.Create(ctx, v, Input{Name: "Club", Confidentiality: "secret"})
	wantErr(t, err, errBadConfidentiality)
	_, err = svc.Create(ctx, authz.Viewer{}, Input{Name: "Club"})
	wantErr(t, err, apperr.ErrUnauthenticated)

	f, err := svc.Create(ctx, v, Input{Name: "  Club   Échecs ", Confidentiality: "Private"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if f.Name != "Club Échecs" || f.Confidentiality != models.ConfidentialityPrivate || f.Visibility != models.VisibilityVisible {
		t.Errorf("forum: %+v", f)
	}

	var m models.ForumMembership
	if err := db.Collection("forum_memberships").FindOne(ctx, bson.M{"forum_id": f.ID, "user_id": u.ID}).Decode(&m); err != nil {
		t.Fatalf("author membership: %v", err)
	}
	if m.Status != models.MembershipAccepted || m.Role != models.MemberRoleAuthor {
		t.Errorf("author membership: %+v", m)
	}

	view, err := svc.Get(ctx, v, f.ID)
	if err != nil || view.MemberCount != 1 || view.ViewerStatus != models.MembershipAccepted {
		t.Errorf("Get: %+v, %v", view, err)
	}
}

func TestList_MaskedAndSearch(t *testing.T) {
	_, svc, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := fx.CreateUser(ctx, "Author", "author@example.edu")
	member := fx.CreateUser(ctx, "Member", "member@example.edu")
	outsider := fx.CreateUser(ctx, "Out", "out@example.edu")
	admin := fx.CreateAdmin(ctx, "Admin", "admin@example.edu")

	fx.CreateForum(ctx, "Astronomie", author.ID, testutil.ForumOpts{})
	masked := fx.CreateForum(ctx, "Atelier secret", author.ID, testutil.ForumOpts{Private: true, Masked: true})
	fx.CreateForum(ctx, "Basket", author.ID, testutil.ForumOpts{})
	fx.AddMembership(ctx, masked.ID, member.ID, models.MembershipAccepted, models.MemberRoleMember)

	count := func(v authz.Viewer, q string) int {
		page, err := svc.List(ctx, v, q, paging.NewKeyset("", 50))
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		return len(page.Items)
	}
	if got := count(testutil.ViewerOf(outsider), ""); got != 2 {
		t.Errorf("outsider sees %d forums, want 2", got)
	}
	if got := count(authz.Viewer{}, ""); got != 2 {
		t.Errorf("anonymous sees %d forums, want 2", got)
	}
	for name, v := range map[string]authz.Viewer{
		"member": testutil.ViewerOf(member),
		"author": testutil.ViewerOf(author),
		"admin":  testutil.ViewerOf(admin),
	} {
		if got := count(v, ""); got != 3 {
			t.Errorf("%s sees %d forums, want 3", name, got)
		}
	}
	if got := count(testutil.ViewerOf(member), "at"); got != 1 {
		t.Errorf("prefix search: got %d, want 1", got)
	}

	_, err := svc.Get(ctx, testutil.ViewerOf(outsider), masked.ID)
	wantErr(t, err, apperr.ErrForumNotFound)

	mine, err := svc.Mine(ctx, testutil.ViewerOf(member))
	if err != nil || len(mine) != 1 || mine[0].MemberCount != 2 {
		t.Errorf("Mine: %+v, %v", mine, err)
	}
}

func TestList_Paging(t *testing.T) {
	_, svc, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := fx.CreateUser(ctx, "Author", "author@example.edu")
	for _, name := range []string{"Alpha", "Bravo", "Charlie"} {
		fx.CreateForum(ctx, name, author.ID, testutil.ForumOpts{})
	}
	v := testutil.ViewerOf(author)
	first, _ := svc.List(ctx, v, "", paging.NewKeyset("", 2))
	if len(first.Items) != 2 || first.NextCursor == "" {
		t.Fatalf("first page: %d items, cursor %q", len(first.Items), first.NextCursor)
	}
	second, _ := svc.List(ctx, v, "", paging.NewKeyset(first.NextCursor, 2))
	if len(second.Items) != 1 || second.Items[0].Name != "Charlie" {
		t.Errorf("second page: %+v", second.Items)
	}
}

func TestUpdate_ManagerOnly(t *testing.T) {
	_, svc, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := fx.CreateUser(ctx, "Author", "author@example.edu")
	other := fx.CreateUser(ctx, "Other", "other@example.edu")
	f := fx.CreateForum(ctx, "Club", author.ID, testutil.ForumOpts{})

	masked := models.VisibilityMasked
	_, err := svc.Update(ctx, testutil.ViewerOf(other), f.ID, forumstore.Settings{Visibility: &masked})
	wantErr(t, err, apperr.ErrNotManager)

	moderator := authz.Viewer{ID: other.ID, Role: models.RoleUser, Permissions: []string{models.PermModerateForums}}
	out, err := svc.Update(ctx, moderator, f.ID, forumstore.Settings{Visibility: &masked})
	if err != nil || !out.IsMasked() {
		t.Fatalf("moderator Update: %+v, %v", out, err)
	}
	bad := "hidden"
	_, err = svc.Update(ctx, testutil.ViewerOf(author), f.ID, forumstore.Settings{Visibility: &bad})
	wantErr(t, err, errBadVisibility)
}

func TestDelete_RemovesEverything(t *testing.T) {
	db, svc, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := fx.CreateUser(ctx, "Author", "author@example.edu")
	member := fx.CreateUser(ctx, "Member", "member@example.edu")
	f := fx.CreateForum(ctx, "Club", author.ID, testutil.ForumOpts{})
	fx.AddMembership(ctx, f.ID, member.ID, models.MembershipAccepted, models.MemberRoleMember)
	fx.CreatePost(ctx, member.ID, &f.ID, "hello", models.ContentApproved)
	fx.CreateEvent(ctx, member.ID, &f.ID, "Meetup", time.Now().Add(24*time.Hour), 0, models.ContentApproved)

	_, err := svc.Delete(ctx, testutil.ViewerOf(member), f.ID)
	wantErr(t, err, apperr.ErrNotManager)
	if _, err := svc.Delete(ctx, testutil.ViewerOf(author), f.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	for coll, filter := range map[string]bson.M{
		"forums":            {"_id": f.ID},
		"forum_memberships": {"forum_id": f.ID},
		"posts":             {"forum_id": f.ID},
		"events":            {"forum_id": f.ID},
	} {
		n, err := db.Collection(coll).CountDocuments(ctx, filter)
		if err != nil || n != 0 {
			t.Errorf("%s: %d left, %v", coll, n, err)
		}
	}
	_, err = svc.Get(ctx, testutil.ViewerOf(author), f.ID)
	wantErr(t, err, apperr.ErrForumNotFound)
}

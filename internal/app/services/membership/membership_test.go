package membership

import (
	"context"
	"sync"
	"testing"

	"github.com/dalemusser/campushub/internal/app/services/notify"
	membershipstore "github.com/dalemusser/campushub/internal/app/store/memberships"
	notificationstore "github.com/dalemusser/campushub/internal/app/store/notifications"
	"github.com/dalemusser/campushub/internal/app/system/apperr"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/indexes"
	"github.com/dalemusser/campushub/internal/app/system/metrics"
	"github.com/dalemusser/campushub/internal/app/system/paging"
	"github.com/dalemusser/campushub/internal/app/system/workers"
	"github.com/dalemusser/campushub/internal/domain/models"
	"github.com/dalemusser/campushub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type env struct {
	db      *mongo.Database
	svc     *Service
	fx      *testutil.Fixtures
	members *membershipstore.Store
	disp    *workers.Dispatcher
}

func setup(t *testing.T) env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	m := metrics.New()
	return env{
		db:      db,
		svc:     New(db, notify.New(db, m, zap.NewNop()), m, zap.NewNop()),
		fx:      testutil.NewFixtures(t, db),
		members: membershipstore.New(db),
		disp:    workers.NewDispatcher(db, nil, m, zap.NewNop(), workers.DispatcherConfig{}),
	}
}

func wantErr(t *testing.T, got error, want *apperr.Error) {
	t.Helper()
	if apperr.KindOf(got) != want.Kind || apperr.MessageOf(got) != want.Message {
		t.Fatalf("got error %v, want %v", got, want)
	}
}

// dispatched runs the dispatcher and returns recipient's notifications.
func (e env) dispatched(t *testing.T, recipient primitive.ObjectID) []models.Notification {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if _, err := e.disp.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	rows, _, err := notificationstore.New(e.db).ListForRecipient(ctx, recipient, false, paging.NewKeyset("", paging.MaxPageSize))
	if err != nil {
		t.Fatalf("ListForRecipient: %v", err)
	}
	return rows
}

func TestJoin_PublicForumAcceptsImmediately(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := e.fx.CreateUser(ctx, "Author", "author@example.edu")
	b := e.fx.CreateUser(ctx, "Bea", "bea@example.edu")
	a := e.fx.CreateUser(ctx, "Ali", "ali@example.edu")
	forum := e.fx.CreateForum(ctx, "Chess Club", author.ID, testutil.ForumOpts{})
	e.fx.AddMembership(ctx, forum.ID, b.ID, models.MembershipAccepted, models.MemberRoleMember)

	m, err := e.svc.Join(ctx, testutil.ViewerOf(a), forum.ID)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if m.Status != models.MembershipAccepted || m.Role != models.MemberRoleMember {
		t.Errorf("membership: %+v", m)
	}

	accepted, _ := e.members.ListByForum(ctx, forum.ID, models.MembershipAccepted)
	if len(accepted) != 3 {
		t.Errorf("accepted members: got %d, want 3", len(accepted))
	}
	if n, _ := e.members.CountByForum(ctx, forum.ID, models.MembershipPending); n != 0 {
		t.Errorf("public join created %d pending rows", n)
	}

	notes := e.dispatched(t, author.ID)
	if len(notes) != 1 || notes[0].Type != models.NotifyForumJoined || notes[0].SenderID != a.ID {
		t.Errorf("author notifications: %+v", notes)
	}

	_, err = e.svc.Join(ctx, testutil.ViewerOf(a), forum.ID)
	wantErr(t, err, apperr.ErrAlreadyMember)
}

func TestJoinPublic_RejectsPrivateForum(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := e.fx.CreateUser(ctx, "Author", "author@example.edu")
	a := e.fx.CreateUser(ctx, "Ali", "ali@example.edu")
	forum := e.fx.CreateForum(ctx, "Secret", author.ID, testutil.ForumOpts{Private: true})

	_, err := e.svc.JoinPublic(ctx, testutil.ViewerOf(a), forum.ID)
	wantErr(t, err, apperr.ErrNotPublic)

	_, err = e.svc.RequestJoin(ctx, testutil.ViewerOf(a), e.fx.CreateForum(ctx, "Open", author.ID, testutil.ForumOpts{}).ID)
	wantErr(t, err, apperr.ErrNotPrivate)
}

func TestJoin_PrivateForumStaysPendingUntilDecided(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := e.fx.CreateUser(ctx, "Author", "author@example.edu")
	a := e.fx.CreateUser(ctx, "Ali", "ali@example.edu")
	forum := e.fx.CreateForum(ctx, "Secret", author.ID, testutil.ForumOpts{Private: true})

	m, err := e.svc.Join(ctx, testutil.ViewerOf(a), forum.ID)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if m.Status != models.MembershipPending {
		t.Fatalf("status: got %q, want pending", m.Status)
	}

	_, err = e.svc.RequestJoin(ctx, testutil.ViewerOf(a), forum.ID)
	wantErr(t, err, apperr.ErrAlreadyRequested)

	// Still pending: only accept/reject changes it.
	got, _ := e.members.Get(ctx, forum.ID, a.ID)
	if got.Status != models.MembershipPending {
		t.Errorf("status drifted to %q", got.Status)
	}

	notes := e.dispatched(t, author.ID)
	if len(notes) != 1 || notes[0].Type != models.NotifyForumJoinRequest {
		t.Errorf("author notifications: %+v", notes)
	}

	m, err = e.svc.Accept(ctx, testutil.ViewerOf(author), forum.ID, a.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if m.Status != models.MembershipAccepted || m.DecidedBy == nil || *m.DecidedBy != author.ID {
		t.Errorf("accepted membership: %+v", m)
	}
	notes = e.dispatched(t, a.ID)
	if len(notes) != 1 || notes[0].Type != models.NotifyForumRequestAccepted {
		t.Errorf("requester notifications: %+v", notes)
	}

	_, err = e.svc.Accept(ctx, testutil.ViewerOf(author), forum.ID, a.ID)
	wantErr(t, err, apperr.ErrRequestNotFound)
}

func TestReject_ThenRequestAgain(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := e.fx.CreateUser(ctx, "Author", "author@example.edu")
	a := e.fx.CreateUser(ctx, "Ali", "ali@example.edu")
	forum := e.fx.CreateForum(ctx, "Secret", author.ID, testutil.ForumOpts{Private: true})

	if _, err := e.svc.RequestJoin(ctx, testutil.ViewerOf(a), forum.ID); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	m, err := e.svc.Reject(ctx, testutil.ViewerOf(author), forum.ID, a.ID)
	if err != nil || m.Status != models.MembershipRejected {
		t.Fatalf("Reject: %+v, %v", m, err)
	}
	m, err = e.svc.RequestJoin(ctx, testutil.ViewerOf(a), forum.ID)
	if err != nil || m.Status != models.MembershipPending {
		t.Fatalf("RequestJoin again: %+v, %v", m, err)
	}
	if n, _ := e.members.CountByForum(ctx, forum.ID, ""); n != 2 {
		t.Errorf("rows: got %d, want 2 (author + requester)", n)
	}
}

func TestDecide_RequiresManager(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := e.fx.CreateUser(ctx, "Author", "author@example.edu")
	a := e.fx.CreateUser(ctx, "Ali", "ali@example.edu")
	other := e.fx.CreateUser(ctx, "Other", "other@example.edu")
	admin := e.fx.CreateAdmin(ctx, "Admin", "admin@example.edu")
	forum := e.fx.CreateForum(ctx, "Secret", author.ID, testutil.ForumOpts{Private: true})

	if _, err := e.svc.RequestJoin(ctx, testutil.ViewerOf(a), forum.ID); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	_, err := e.svc.Accept(ctx, testutil.ViewerOf(other), forum.ID, a.ID)
	wantErr(t, err, apperr.ErrNotManager)

	moderator := authz.Viewer{ID: other.ID, Role: models.RoleUser, Permissions: []string{models.PermModerateForums}}
	if _, err := e.svc.PendingRequests(ctx, moderator, forum.ID); err != nil {
		t.Errorf("moderator PendingRequests: %v", err)
	}

	if _, err := e.svc.Accept(ctx, testutil.ViewerOf(admin), forum.ID, a.ID); err != nil {
		t.Errorf("admin Accept: %v", err)
	}
}

func TestLeave_AuthorAlwaysConflicts(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := e.fx.CreateUser(ctx, "Author", "author@example.edu")
	for _, opts := range []testutil.ForumOpts{{}, {Private: true}, {Private: true, Masked: true}} {
		forum := e.fx.CreateForum(ctx, "Forum", author.ID, opts)
		err := e.svc.Leave(ctx, testutil.ViewerOf(author), forum.ID)
		wantErr(t, err, apperr.ErrAuthorCannotLeave)
		if ok, _ := e.members.Exists(ctx, forum.ID, author.ID, models.MembershipAccepted); !ok {
			t.Error("author membership removed")
		}
	}
}

func TestLeave(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := e.fx.CreateUser(ctx, "Author", "author@example.edu")
	a := e.fx.CreateUser(ctx, "Ali", "ali@example.edu")
	forum := e.fx.CreateForum(ctx, "Open", author.ID, testutil.ForumOpts{})

	err := e.svc.Leave(ctx, testutil.ViewerOf(a), forum.ID)
	wantErr(t, err, apperr.ErrNotMember)

	if _, err := e.svc.Join(ctx, testutil.ViewerOf(a), forum.ID); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := e.svc.Leave(ctx, testutil.ViewerOf(a), forum.ID); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if ok, _ := e.members.Exists(ctx, forum.ID, a.ID, ""); ok {
		t.Error("membership row still present after leave")
	}
}

func TestCancelRequest_DeletesRowAndNotification(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := e.fx.CreateUser(ctx, "Author", "author@example.edu")
	a := e.fx.CreateUser(ctx, "Ali", "ali@example.edu")
	forum := e.fx.CreateForum(ctx, "Secret", author.ID, testutil.ForumOpts{Private: true})

	// Cancelling a request that never existed is a not-found error.
	err := e.svc.CancelRequest(ctx, testutil.ViewerOf(a), forum.ID)
	wantErr(t, err, apperr.ErrRequestNotFound)

	if _, err := e.svc.RequestJoin(ctx, testutil.ViewerOf(a), forum.ID); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	if got := e.dispatched(t, author.ID); len(got) != 1 {
		t.Fatalf("request notification not delivered: %+v", got)
	}

	if err := e.svc.CancelRequest(ctx, testutil.ViewerOf(a), forum.ID); err != nil {
		t.Fatalf("CancelRequest: %v", err)
	}
	if ok, _ := e.members.Exists(ctx, forum.ID, a.ID, ""); ok {
		t.Error("pending row still present")
	}
	if got := e.dispatched(t, author.ID); len(got) != 0 {
		t.Errorf("request notification not withdrawn: %+v", got)
	}
}

func TestCancelRequest_BeforeDispatch(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := e.fx.CreateUser(ctx, "Author", "author@example.edu")
	a := e.fx.CreateUser(ctx, "Ali", "ali@example.edu")
	forum := e.fx.CreateForum(ctx, "Secret", author.ID, testutil.ForumOpts{Private: true})

	if _, err := e.svc.RequestJoin(ctx, testutil.ViewerOf(a), forum.ID); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	if err := e.svc.CancelRequest(ctx, testutil.ViewerOf(a), forum.ID); err != nil {
		t.Fatalf("CancelRequest: %v", err)
	}
	if got := e.dispatched(t, author.ID); len(got) != 0 {
		t.Errorf("cancelled intent was delivered: %+v", got)
	}
}

func TestRemoveMember(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := e.fx.CreateUser(ctx, "Author", "author@example.edu")
	a := e.fx.CreateUser(ctx, "Ali", "ali@example.edu")
	forum := e.fx.CreateForum(ctx, "Open", author.ID, testutil.ForumOpts{})
	e.fx.AddMembership(ctx, forum.ID, a.ID, models.MembershipAccepted, models.MemberRoleMember)

	wantErr(t, e.svc.RemoveMember(ctx, testutil.ViewerOf(a), forum.ID, author.ID), apperr.ErrNotManager)
	wantErr(t, e.svc.RemoveMember(ctx, testutil.ViewerOf(author), forum.ID, author.ID), apperr.ErrCannotRemoveAuthor)
	if err := e.svc.RemoveMember(ctx, testutil.ViewerOf(author), forum.ID, a.ID); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	wantErr(t, e.svc.RemoveMember(ctx, testutil.ViewerOf(author), forum.ID, a.ID), apperr.ErrMemberNotFound)
}

func TestAnonymousAndMissingForum(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := e.fx.CreateUser(ctx, "Ali", "ali@example.edu")
	_, err := e.svc.Join(ctx, authz.Viewer{}, primitive.NewObjectID())
	wantErr(t, err, apperr.ErrUnauthenticated)
	_, err = e.svc.Join(ctx, testutil.ViewerOf(u), primitive.NewObjectID())
	wantErr(t, err, apperr.ErrForumNotFound)
	wantErr(t, e.svc.Leave(ctx, authz.Viewer{}, primitive.NewObjectID()), apperr.ErrUnauthenticated)
}

func TestMembers_MaskedForumHiddenFromOutsiders(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := e.fx.CreateUser(ctx, "Author", "author@example.edu")
	outsider := e.fx.CreateUser(ctx, "Out", "out@example.edu")
	forum := e.fx.CreateForum(ctx, "Hidden", author.ID, testutil.ForumOpts{Private: true, Masked: true})

	_, err := e.svc.Members(ctx, testutil.ViewerOf(outsider), forum.ID)
	wantErr(t, err, apperr.ErrForumNotFound)

	rows, err := e.svc.Members(ctx, testutil.ViewerOf(author), forum.ID)
	if err != nil || len(rows) != 1 {
		t.Errorf("author Members: %d rows, %v", len(rows), err)
	}
}

func TestJoin_ConcurrentSingleRow(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := e.fx.CreateUser(ctx, "Author", "author@example.edu")
	a := e.fx.CreateUser(ctx, "Ali", "ali@example.edu")
	forum := e.fx.CreateForum(ctx, "Open", author.ID, testutil.ForumOpts{})

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.svc.Join(ctx, testutil.ViewerOf(a), forum.ID); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if ok != 1 {
		t.Errorf("successful joins: got %d, want 1", ok)
	}
	if n, _ := e.members.CountByForum(ctx, forum.ID, ""); n != 2 {
		t.Errorf("membership rows: got %d, want 2", n)
	}
	if got := e.dispatched(t, author.ID); len(got) != 1 {
		t.Errorf("author notified %d times, want 1", len(got))
	}
}

// outboxWatcher records how many intents were readable each time the
// dispatcher was woken.
type outboxWatcher struct {
	db   *mongo.Database
	seen []int64
}

func (k *outboxWatcher) Kick() {
	n, _ := k.db.Collection("notification_outbox").CountDocuments(context.Background(), bson.M{})
	k.seen = append(k.seen, n)
}

func TestJoin_WakesDispatcherAfterCommit(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	k := &outboxWatcher{db: e.db}
	n := notify.New(e.db, nil, zap.NewNop())
	n.SetKicker(k)
	svc := New(e.db, n, nil, zap.NewNop())

	author := e.fx.CreateUser(ctx, "Author", "author@example.edu")
	a := e.fx.CreateUser(ctx, "Ali", "ali@example.edu")
	forum := e.fx.CreateForum(ctx, "Open", author.ID, testutil.ForumOpts{})

	if _, err := svc.Join(ctx, testutil.ViewerOf(a), forum.ID); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if len(k.seen) != 1 || k.seen[0] != 1 {
		t.Errorf("dispatcher woken with %v intents visible, want one wake-up seeing 1", k.seen)
	}
}

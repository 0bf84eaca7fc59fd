package auditlog_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/campushub/internal/app/features/auditlog"
	"github.com/dalemusser/campushub/internal/app/store/audit"
	"github.com/dalemusser/campushub/internal/domain/models"
	"github.com/dalemusser/campushub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type listResponse struct {
	Items []struct {
		EventType string `json:"event_type"`
		ActorName string `json:"actor_name"`
		ForumName string `json:"forum_name"`
	} `json:"items"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

type env struct {
	fx     *testutil.Fixtures
	store  *audit.Store
	router http.Handler
}

func setup(t *testing.T) env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	r := chi.NewRouter()
	r.Mount("/audit", auditlog.Routes(auditlog.NewHandler(db, time.UTC, zap.NewNop()), testutil.NewSessionManager(t)))
	return env{fx: testutil.NewFixtures(t, db), store: audit.New(db), router: r}
}

func (e env) get(t *testing.T, as models.User, target string) *testutil.ResponseRecorder {
	t.Helper()
	return testutil.Serve(e.router, testutil.WithUser(httptest.NewRequest("GET", target, nil), as))
}

func (e env) log(t *testing.T, ev audit.Event) {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := e.store.Log(ctx, ev); err != nil {
		t.Fatalf("Log: %v", err)
	}
}

func ptr(id primitive.ObjectID) *primitive.ObjectID { return &id }

func TestServeList_AdminSeesEverything(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	admin := e.fx.CreateAdmin(ctx, "Root", "root@campus.fr")
	ana := e.fx.CreateUser(ctx, "Ana", "ana@campus.fr")
	f := e.fx.CreateForum(ctx, "Théâtre", ana.ID, testutil.ForumOpts{})

	now := time.Now().UTC()
	e.log(t, audit.Event{Timestamp: now.Add(-time.Minute), Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, UserID: ptr(ana.ID), Success: true})
	e.log(t, audit.Event{Timestamp: now, Category: audit.CategoryForum, EventType: audit.EventForumCreated, ActorID: ptr(ana.ID), ForumID: &f.ID, Success: true})

	var out listResponse
	rec := e.get(t, admin, "/audit")
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &out)
	if out.Total != 2 || len(out.Items) != 2 || out.TotalPages != 1 {
		t.Fatalf("list: %+v", out)
	}
	// Most recent first, names resolved.
	if out.Items[0].EventType != audit.EventForumCreated || out.Items[0].ActorName != "Ana" || out.Items[0].ForumName != "Théâtre" {
		t.Errorf("first item: %+v", out.Items[0])
	}

	e.get(t, admin, "/audit?category=auth").DecodeJSON(t, &out)
	if out.Total != 1 {
		t.Errorf("auth category: got %d, want 1", out.Total)
	}
}

func TestServeList_ForumManagerScope(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ana := e.fx.CreateUser(ctx, "Ana", "ana@campus.fr")
	bob := e.fx.CreateUser(ctx, "Bob", "bob@campus.fr")
	f := e.fx.CreateForum(ctx, "Robotique", ana.ID, testutil.ForumOpts{})
	other := e.fx.CreateForum(ctx, "Cuisine", bob.ID, testutil.ForumOpts{})

	e.log(t, audit.Event{Category: audit.CategoryForum, EventType: audit.EventMemberJoined, UserID: ptr(bob.ID), ForumID: &f.ID, Success: true})
	e.log(t, audit.Event{Category: audit.CategoryForum, EventType: audit.EventMemberJoined, UserID: ptr(ana.ID), ForumID: &other.ID, Success: true})

	e.get(t, ana, "/audit").AssertStatus(t, http.StatusForbidden)
	e.get(t, ana, "/audit?forum_id="+other.ID.Hex()).AssertStatus(t, http.StatusForbidden)
	e.get(t, ana, "/audit?forum_id="+primitive.NewObjectID().Hex()).AssertStatus(t, http.StatusNotFound)

	var out listResponse
	rec := e.get(t, ana, "/audit?forum_id="+f.ID.Hex())
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &out)
	if out.Total != 1 || out.Items[0].ForumName != "Robotique" {
		t.Errorf("forum scope: %+v", out)
	}
}

func TestServeList_BadFilters(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	admin := e.fx.CreateAdmin(ctx, "Root", "root@campus.fr")

	for _, target := range []string{
		"/audit?category=security",
		"/audit?category=auth&event_type=forum_created",
		"/audit?forum_id=xyz",
		"/audit?start_date=yesterday",
		"/audit?end_date=2030-13-40",
	} {
		e.get(t, admin, target).AssertStatus(t, http.StatusBadRequest)
	}
	testutil.Serve(e.router, httptest.NewRequest("GET", "/audit", nil)).AssertStatus(t, http.StatusUnauthorized)
}

func TestServeList_DateRange(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	admin := e.fx.CreateAdmin(ctx, "Root", "root@campus.fr")

	old := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	e.log(t, audit.Event{Timestamp: old, Category: audit.CategoryAuth, EventType: audit.EventLogout, Success: true})
	e.log(t, audit.Event{Category: audit.CategoryAuth, EventType: audit.EventLogout, Success: true})

	var out listResponse
	e.get(t, admin, "/audit?start_date=2024-03-10&end_date=2024-03-10").DecodeJSON(t, &out)
	if out.Total != 1 {
		t.Errorf("range: got %d, want 1", out.Total)
	}
}

package events_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/campushub/internal/app/features/events"
	"github.com/dalemusser/campushub/internal/app/services/content"
	"github.com/dalemusser/campushub/internal/app/services/notify"
	"github.com/dalemusser/campushub/internal/app/store/audit"
	"github.com/dalemusser/campushub/internal/app/system/auditlog"
	"github.com/dalemusser/campushub/internal/app/system/indexes"
	"github.com/dalemusser/campushub/internal/app/system/paging"
	"github.com/dalemusser/campushub/internal/domain/models"
	"github.com/dalemusser/campushub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type env struct {
	fx     *testutil.Fixtures
	router http.Handler
	audit  *audit.Store
}

func setup(t *testing.T) env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	log := zap.NewNop()
	c := content.New(db, notify.New(db, nil, log), time.UTC, log)
	store := audit.New(db)
	h := events.NewHandler(c, auditlog.New(store, log, auditlog.Config{Admin: "db"}), log)

	r := chi.NewRouter()
	r.Mount("/events", events.Routes(h, testutil.NewSessionManager(t)))
	return env{fx: testutil.NewFixtures(t, db), router: r, audit: store}
}

func (e env) do(t *testing.T, as models.User, method, target string, body any) *testutil.ResponseRecorder {
	t.Helper()
	return testutil.Serve(e.router, testutil.WithUser(testutil.NewJSONRequest(t, method, target, body), as))
}

func (e env) anon(method, target string) *testutil.ResponseRecorder {
	return testutil.Serve(e.router, httptest.NewRequest(method, target, nil))
}

func eventBody(title string, start time.Time, max int) map[string]any {
	end := start.Add(2 * time.Hour)
	return map[string]any{
		"title":            title,
		"description":      "Rendez-vous devant la BU",
		"start_date":       start.Format("2006-01-02"),
		"start_time":       start.Format("15:04"),
		"end_date":         end.Format("2006-01-02"),
		"end_time":         end.Format("15:04"),
		"max_participants": max,
	}
}

func TestCreateAndUpcoming(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ana := e.fx.CreateUser(ctx, "Ana", "ana@campus.fr")
	start := time.Now().UTC().Add(48 * time.Hour)

	rec := e.do(t, ana, "POST", "/events", eventBody("Tournoi d'échecs", start, 0))
	rec.AssertStatus(t, http.StatusCreated)
	var ev models.Event
	rec.DecodeJSON(t, &ev)
	if ev.Status != models.ContentApproved {
		t.Errorf("status: got %q, want approved", ev.Status)
	}

	var page paging.Page[models.Event]
	e.anon("GET", "/events").DecodeJSON(t, &page)
	if len(page.Items) != 1 || page.Items[0].ID != ev.ID {
		t.Fatalf("upcoming: %+v", page.Items)
	}
	e.anon("GET", "/events/"+ev.ID.Hex()).AssertStatus(t, http.StatusOK)
}

func TestCreate_Validation(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ana := e.fx.CreateUser(ctx, "Ana", "ana@campus.fr")
	future := time.Now().UTC().Add(72 * time.Hour)

	past := eventBody("Hier", time.Now().UTC().Add(-48*time.Hour), 0)
	noTitle := eventBody("  ", future, 0)
	badDate := eventBody("X", future, 0)
	badDate["start_date"] = "31/12/2030"
	reversed := eventBody("X", future, 0)
	reversed["end_date"] = future.Add(-24 * time.Hour).Format("2006-01-02")
	negative := eventBody("X", future, -1)
	badImage := eventBody("X", future, 0)
	badImage["image_ref"] = "../../x"

	for name, body := range map[string]map[string]any{
		"past":      past,
		"no title":  noTitle,
		"bad date":  badDate,
		"reversed":  reversed,
		"negative":  negative,
		"bad image": badImage,
	} {
		t.Run(name, func(t *testing.T) {
			e.do(t, ana, "POST", "/events", body).AssertStatus(t, http.StatusBadRequest)
		})
	}
}

func TestParticipation_Capacity(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ana := e.fx.CreateUser(ctx, "Ana", "ana@campus.fr")
	bob := e.fx.CreateUser(ctx, "Bob", "bob@campus.fr")
	cleo := e.fx.CreateUser(ctx, "Cleo", "cleo@campus.fr")
	ev := e.fx.CreateEvent(ctx, ana.ID, nil, "Atelier", time.Now().Add(24*time.Hour), 1, models.ContentApproved)
	target := "/events/" + ev.ID.Hex() + "/participation"

	rec := e.do(t, bob, "POST", target, nil)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"count":1`)
	e.do(t, bob, "POST", target, nil).AssertStatus(t, http.StatusConflict)
	e.do(t, cleo, "POST", target, nil).AssertStatus(t, http.StatusConflict)
	e.do(t, bob, "GET", target, nil).AssertContains(t, `"participating":true`)

	e.do(t, bob, "DELETE", target, nil).AssertContains(t, `"participating":false`)
	rec = e.do(t, bob, "DELETE", target, nil)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"count":0`)
	e.do(t, cleo, "POST", target, nil).AssertStatus(t, http.StatusOK)
}

func TestCancel(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ana := e.fx.CreateUser(ctx, "Ana", "ana@campus.fr")
	bob := e.fx.CreateUser(ctx, "Bob", "bob@campus.fr")
	cleo := e.fx.CreateUser(ctx, "Cleo", "cleo@campus.fr")
	ev := e.fx.CreateEvent(ctx, ana.ID, nil, "Concert", time.Now().Add(24*time.Hour), 0, models.ContentApproved)
	base := "/events/" + ev.ID.Hex()

	e.do(t, bob, "POST", base+"/participation", nil).AssertStatus(t, http.StatusOK)
	e.do(t, bob, "POST", base+"/cancel", nil).AssertStatus(t, http.StatusForbidden)
	rec := e.do(t, ana, "POST", base+"/cancel", nil)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"cancelled":true`)

	e.do(t, cleo, "POST", base+"/participation", nil).AssertStatus(t, http.StatusConflict)
	e.do(t, ana, "POST", base+"/cancel", nil).AssertStatus(t, http.StatusConflict)
	e.do(t, ana, "PUT", base, eventBody("Concert", time.Now().UTC().Add(48*time.Hour), 0)).AssertStatus(t, http.StatusConflict)
}

func TestUpdateAndDelete(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ana := e.fx.CreateUser(ctx, "Ana", "ana@campus.fr")
	bob := e.fx.CreateUser(ctx, "Bob", "bob@campus.fr")
	ev := e.fx.CreateEvent(ctx, ana.ID, nil, "Brunch", time.Now().Add(24*time.Hour), 0, models.ContentApproved)
	base := "/events/" + ev.ID.Hex()
	body := eventBody("Brunch géant", time.Now().UTC().Add(36*time.Hour), 30)

	e.do(t, bob, "PUT", base, body).AssertStatus(t, http.StatusForbidden)
	rec := e.do(t, ana, "PUT", base, body)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Brunch géant")

	e.do(t, bob, "DELETE", base, nil).AssertStatus(t, http.StatusForbidden)
	e.do(t, ana, "DELETE", base, nil).AssertStatus(t, http.StatusNoContent)
	e.anon("GET", base).AssertStatus(t, http.StatusNotFound)
}

func TestModeration(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ana := e.fx.CreateUser(ctx, "Ana", "ana@campus.fr")
	bob := e.fx.CreateUser(ctx, "Bob", "bob@campus.fr")
	f := e.fx.CreateForum(ctx, "Ciné-club", ana.ID, testutil.ForumOpts{RequiresApproval: true})
	e.fx.AddMembership(ctx, f.ID, bob.ID, models.MembershipAccepted, models.MemberRoleMember)

	body := eventBody("Projection", time.Now().UTC().Add(48*time.Hour), 0)
	body["forum_id"] = f.ID.Hex()
	rec := e.do(t, bob, "POST", "/events", body)
	rec.AssertStatus(t, http.StatusCreated)
	var ev models.Event
	rec.DecodeJSON(t, &ev)
	if ev.Status != models.ContentPending {
		t.Fatalf("status: got %q, want pending", ev.Status)
	}

	e.do(t, bob, "POST", "/events/"+ev.ID.Hex()+"/reject", nil).AssertStatus(t, http.StatusForbidden)
	e.do(t, ana, "POST", "/events/"+ev.ID.Hex()+"/reject", nil).AssertContains(t, `"status":"rejected"`)
	e.do(t, ana, "POST", "/events/"+ev.ID.Hex()+"/approve", nil).AssertStatus(t, http.StatusConflict)

	n, _ := e.audit.CountByFilter(ctx, audit.QueryFilter{EventType: audit.EventContentModerated, ForumID: &f.ID})
	if n != 1 {
		t.Errorf("moderation audit: got %d, want 1", n)
	}
}

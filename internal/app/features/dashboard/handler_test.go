package dashboard_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/campushub/internal/app/features/dashboard"
	"github.com/dalemusser/campushub/internal/domain/models"
	"github.com/dalemusser/campushub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func setup(t *testing.T) (http.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	r := chi.NewRouter()
	r.Mount("/dashboard", dashboard.Routes(dashboard.NewHandler(db, zap.NewNop()), testutil.NewSessionManager(t)))
	return r, testutil.NewFixtures(t, db)
}

func TestServeDashboard_Unauthenticated(t *testing.T) {
	router, _ := setup(t)

	rec := testutil.Serve(router, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	rec.AssertStatus(t, http.StatusUnauthorized)
}

func TestServeDashboard_User(t *testing.T) {
	router, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fx.CreateUser(ctx, "Alice", "alice@campus.example")
	forum := fx.CreateForum(ctx, "Chess Club", alice.ID, testutil.ForumOpts{})
	fx.CreatePost(ctx, alice.ID, &forum.ID, "opening", models.ContentApproved)

	rec := testutil.Serve(router, testutil.WithUser(httptest.NewRequest(http.MethodGet, "/dashboard", nil), alice))
	rec.AssertStatus(t, http.StatusOK)

	var resp dashboard.Response
	rec.DecodeJSON(t, &resp)
	if resp.Role != models.RoleUser {
		t.Errorf("role: got %q", resp.Role)
	}
	if resp.Site != nil {
		t.Error("site counts must not be shown to regular users")
	}
	if resp.Mine.Forums != 1 || resp.Mine.ManagedForums != 1 || resp.Mine.Posts != 1 {
		t.Errorf("mine: got %+v", resp.Mine)
	}
}

func TestServeDashboard_AdminSeesSite(t *testing.T) {
	router, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, mk := range []func() models.User{
		func() models.User { return fx.CreateAdmin(ctx, "Admin", "admin@campus.example") },
		func() models.User { return fx.CreateSuperAdmin(ctx, "Root", "root@campus.example") },
	} {
		u := mk()
		rec := testutil.Serve(router, testutil.WithUser(httptest.NewRequest(http.MethodGet, "/dashboard", nil), u))
		rec.AssertStatus(t, http.StatusOK)

		var resp dashboard.Response
		rec.DecodeJSON(t, &resp)
		if resp.Site == nil {
			t.Fatalf("%s: expected site counts", u.Role)
		}
		if resp.Site.Users == 0 {
			t.Errorf("%s: users count should include the admin", u.Role)
		}
	}
}

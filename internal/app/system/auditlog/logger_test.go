package auditlog_test

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/campushub/internal/app/store/audit"
	"github.com/dalemusser/campushub/internal/app/system/auditlog"
	"github.com/dalemusser/campushub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestLogger_NilLogger(t *testing.T) {
	// nil logger should be a no-op (not panic)
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()
	req := httptest.NewRequest("GET", "/", nil)

	logger.Log(ctx, audit.Event{EventType: "test"})
	logger.LoginSuccess(ctx, req, primitive.NewObjectID(), "password")
	logger.Logout(ctx, req, primitive.NewObjectID().Hex())
	logger.Membership(ctx, req, audit.EventMemberJoined, primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID())
}

func TestLogger_Log_ConfigOff(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "off", Admin: "off", Forum: "off"})

	userID := primitive.NewObjectID()
	logger.LoginSuccess(ctx, httptest.NewRequest("GET", "/", nil), userID, "password")

	events, err := store.GetByUser(ctx, userID, 10)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(events) != 0 {
		t.Error("expected no events when config is 'off'")
	}
}

func TestLogger_CategoryRouting(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// Auth events only go to zap; forum events go to the database.
	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "log", Admin: "db", Forum: "all"})
	req := httptest.NewRequest("POST", "/forums/x/join", nil)

	userID, forumID := primitive.NewObjectID(), primitive.NewObjectID()
	logger.LoginSuccess(ctx, req, userID, "password")
	logger.Membership(ctx, req, audit.EventMemberJoined, userID, userID, forumID)

	events, err := store.GetByUser(ctx, userID, 10)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(events))
	}
	got := events[0]
	if got.Category != audit.CategoryForum || got.EventType != audit.EventMemberJoined {
		t.Errorf("got %s/%s", got.Category, got.EventType)
	}
	if got.ForumID == nil || *got.ForumID != forumID {
		t.Errorf("ForumID: got %v, want %v", got.ForumID, forumID)
	}
}

func TestLogger_ForumLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Forum: "db"})
	req := httptest.NewRequest("POST", "/forums", nil)

	actor, forumID := primitive.NewObjectID(), primitive.NewObjectID()
	logger.ForumCreated(ctx, req, actor, forumID, "Club Photo", "private")
	logger.ForumUpdated(ctx, req, actor, forumID, "visibility")
	logger.ForumDeleted(ctx, req, actor, forumID, "Club Photo")

	events, err := store.GetByForum(ctx, forumID, 10)
	if err != nil {
		t.Fatalf("GetByForum failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for _, e := range events {
		if e.ActorID == nil || *e.ActorID != actor {
			t.Errorf("%s: ActorID got %v, want %v", e.EventType, e.ActorID, actor)
		}
	}
}

func TestLogger_AdminEvents(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Admin: "db"})
	req := httptest.NewRequest("PUT", "/", nil)

	actor, target := primitive.NewObjectID(), primitive.NewObjectID()
	logger.UserRoleChanged(ctx, req, actor, target, "superadmin", "user", "admin")
	logger.UserPermissionsChanged(ctx, req, actor, target, "superadmin", []string{"forums:moderate", "users:manage"})

	events, err := store.GetByUser(ctx, target, 10)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for _, e := range events {
		switch e.EventType {
		case audit.EventUserRoleChanged:
			if e.Details["new_role"] != "admin" {
				t.Errorf("new_role: got %q", e.Details["new_role"])
			}
		case audit.EventUserPermissionsChanged:
			if e.Details["permissions"] != "forums:moderate,users:manage" {
				t.Errorf("permissions: got %q", e.Details["permissions"])
			}
		default:
			t.Errorf("unexpected event %q", e.EventType)
		}
	}
}

func TestLogger_Logout_InvalidID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "db"})
	logger.Logout(ctx, httptest.NewRequest("POST", "/logout", nil), "not-an-id")

	events, err := store.Query(ctx, audit.QueryFilter{EventType: audit.EventLogout})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].UserID != nil {
		t.Errorf("expected nil UserID, got %v", events[0].UserID)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		realIP     string
		remoteAddr string
		want       string
	}{
		{"x-forwarded-for wins", "203.0.113.195, 10.0.0.1", "192.168.1.1", "127.0.0.1:12345", "203.0.113.195"},
		{"x-real-ip", "", "192.168.1.100", "127.0.0.1:12345", "192.168.1.100"},
		{"remote addr port stripped", "", "", "10.0.0.5:12345", "10.0.0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			store := audit.New(db)
			ctx, cancel := testutil.TestContext()
			defer cancel()

			logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "db"})
			req := httptest.NewRequest("GET", "/", nil)
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			req.RemoteAddr = tt.remoteAddr

			userID := primitive.NewObjectID()
			logger.LoginSuccess(ctx, req, userID, "password")

			events, _ := store.GetByUser(ctx, userID, 10)
			if len(events) != 1 {
				t.Fatalf("expected 1 event, got %d", len(events))
			}
			if events[0].IP != tt.want {
				t.Errorf("IP: got %q, want %q", events[0].IP, tt.want)
			}
		})
	}
}

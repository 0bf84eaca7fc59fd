package content

import (
	"testing"
	"time"

	"github.com/dalemusser/campushub/internal/app/services/notify"
	notificationstore "github.com/dalemusser/campushub/internal/app/store/notifications"
	"github.com/dalemusser/campushub/internal/app/system/apperr"
	"github.com/dalemusser/campushub/internal/app/system/indexes"
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
	db   *mongo.Database
	svc  *Service
	fx   *testutil.Fixtures
	disp *workers.Dispatcher
}

func setup(t *testing.T) env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	return env{
		db:   db,
		svc:  New(db, notify.New(db, nil, zap.NewNop()), time.UTC, zap.NewNop()),
		fx:   testutil.NewFixtures(t, db),
		disp: workers.NewDispatcher(db, nil, nil, zap.NewNop(), workers.DispatcherConfig{}),
	}
}

func wantErr(t *testing.T, got error, want *apperr.Error) {
	t.Helper()
	if apperr.KindOf(got) != want.Kind || apperr.MessageOf(got) != want.Message {
		t.Fatalf("got error %v, want %v", got, want)
	}
}

// inbox runs the dispatcher and returns recipient's notification types.
func (e env) inbox(t *testing.T, recipient primitive.ObjectID) []string {
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
	out := make([]string, 0, len(rows))
	for _, n := range rows {
		out = append(out, n.Type)
	}
	return out
}

func count(t *testing.T, db *mongo.Database, coll string, filter bson.M) int64 {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	n, err := db.Collection(coll).CountDocuments(ctx, filter)
	if err != nil {
		t.Fatalf("count %s: %v", coll, err)
	}
	return n
}

func ids[T any](rows []T, id func(T) primitive.ObjectID) map[primitive.ObjectID]bool {
	out := make(map[primitive.ObjectID]bool, len(rows))
	for _, r := range rows {
		out[id(r)] = true
	}
	return out
}

func postID(p models.Post) primitive.ObjectID { return p.ID }

package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	notificationstore "github.com/dalemusser/campushub/internal/app/store/notifications"
	outboxstore "github.com/dalemusser/campushub/internal/app/store/outbox"
	"github.com/dalemusser/campushub/internal/app/system/indexes"
	"github.com/dalemusser/campushub/internal/app/system/metrics"
	"github.com/dalemusser/campushub/internal/app/system/paging"
	"github.com/dalemusser/campushub/internal/domain/models"
	"github.com/dalemusser/campushub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (p *recordingPublisher) Publish(_ context.Context, n models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, n)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func TestBackoff(t *testing.T) {
	base, max := 2*time.Second, 30*time.Second
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 2 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{50, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := Backoff(tt.attempt, base, max); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRecipients_DropsSenderDuplicatesAndZero(t *testing.T) {
	sender := primitive.NewObjectID()
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	got := Recipients(sender, []primitive.ObjectID{sender, a, primitive.NilObjectID, b, a})
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("got %v, want [%s %s]", got, a.Hex(), b.Hex())
	}
	if got := Recipients(sender, []primitive.ObjectID{sender}); len(got) != 0 {
		t.Errorf("self-notification not removed: %v", got)
	}
}

func setupDispatcher(t *testing.T) (*mongo.Database, *Dispatcher, *recordingPublisher) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	pub := &recordingPublisher{}
	d := NewDispatcher(db, pub, metrics.New(), zap.NewNop(), DispatcherConfig{
		MaxAttempts: 2,
		BaseBackoff: time.Minute,
	})
	return db, d, pub
}

func notificationsFor(t *testing.T, db *mongo.Database, recipient primitive.ObjectID) []models.Notification {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	rows, _, err := notificationstore.New(db).ListForRecipient(ctx, recipient, false, paging.NewKeyset("", paging.MaxPageSize))
	if err != nil {
		t.Fatalf("ListForRecipient: %v", err)
	}
	return rows
}

func TestDispatcher_DeliversOncePerRecipient(t *testing.T) {
	db, d, pub := setupDispatcher(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	sender, a, b := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	postID := primitive.NewObjectID()
	in, err := outboxstore.New(db).Enqueue(ctx, models.NotificationIntent{
		Kind:       models.NotifyPostCommented,
		SenderID:   sender,
		Recipients: []primitive.ObjectID{a, sender, b},
		Target:     models.Target{PostID: &postID},
	}, time.Now().Add(-time.Second))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	n, err := d.RunOnce(ctx)
	if err != nil || n != 1 {
		t.Fatalf("RunOnce: n=%d err=%v", n, err)
	}
	if got := len(notificationsFor(t, db, a)); got != 1 {
		t.Errorf("a: got %d notifications, want 1", got)
	}
	if got := len(notificationsFor(t, db, b)); got != 1 {
		t.Errorf("b: got %d notifications, want 1", got)
	}
	if got := len(notificationsFor(t, db, sender)); got != 0 {
		t.Errorf("sender notified %d times", got)
	}
	if pub.count() != 2 {
		t.Errorf("published %d, want 2", pub.count())
	}

	stored, _ := outboxstore.New(db).Get(ctx, in.ID)
	if stored.Status != models.IntentDone {
		t.Errorf("intent status: got %q, want done", stored.Status)
	}

	// Replaying the intent (as after a crash between delivery and MarkDone)
	// must not duplicate anything.
	_, err = db.Collection("notification_outbox").UpdateOne(ctx,
		bson.M{"_id": in.ID},
		bson.M{"$set": bson.M{"status": models.IntentPending}})
	if err != nil {
		t.Fatalf("reset intent: %v", err)
	}
	if _, err := d.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce replay: %v", err)
	}
	if got := len(notificationsFor(t, db, a)); got != 1 {
		t.Errorf("replay duplicated: a has %d notifications", got)
	}
	if pub.count() != 2 {
		t.Errorf("replay republished: %d", pub.count())
	}
}

func TestDispatcher_NotDueIsLeftAlone(t *testing.T) {
	db, d, _ := setupDispatcher(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	in, _ := outboxstore.New(db).Enqueue(ctx, models.NotificationIntent{
		Kind:       models.NotifyForumJoined,
		SenderID:   primitive.NewObjectID(),
		Recipients: []primitive.ObjectID{primitive.NewObjectID()},
	}, time.Now().Add(time.Hour))

	if n, _ := d.RunOnce(ctx); n != 0 {
		t.Errorf("handled %d, want 0", n)
	}
	stored, _ := outboxstore.New(db).Get(ctx, in.ID)
	if stored.Status != models.IntentPending {
		t.Errorf("status: got %q", stored.Status)
	}
}

func TestDispatcher_RetryThenFail(t *testing.T) {
	db, d, _ := setupDispatcher(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	d.resolve = func(context.Context, models.NotificationIntent) ([]primitive.ObjectID, error) {
		return nil, errors.New("boom")
	}
	clock := time.Now()
	d.now = func() time.Time { return clock }

	store := outboxstore.New(db)
	in, _ := store.Enqueue(ctx, models.NotificationIntent{
		Kind:     models.NotifyEventCancelled,
		SenderID: primitive.NewObjectID(),
	}, clock.Add(-time.Second))

	if _, err := d.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	stored, _ := store.Get(ctx, in.ID)
	if stored.Status != models.IntentPending || stored.Attempts != 1 {
		t.Fatalf("after first attempt: status=%q attempts=%d", stored.Status, stored.Attempts)
	}
	if !stored.RunAt.After(clock.Add(59 * time.Second)) {
		t.Errorf("run_at not backed off: %v", stored.RunAt)
	}
	if stored.LastError != "resolve recipients: boom" {
		t.Errorf("last_error: got %q", stored.LastError)
	}

	clock = clock.Add(2 * time.Minute)
	if _, err := d.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	stored, _ = store.Get(ctx, in.ID)
	if stored.Status != models.IntentFailed || stored.Attempts != 2 {
		t.Errorf("after max attempts: status=%q attempts=%d", stored.Status, stored.Attempts)
	}
}

func TestDispatcher_EventCancelledFansOutToParticipants(t *testing.T) {
	db, d, _ := setupDispatcher(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)

	author := fx.CreateUser(ctx, "Author", "author@example.edu")
	p1 := fx.CreateUser(ctx, "P One", "p1@example.edu")
	p2 := fx.CreateUser(ctx, "P Two", "p2@example.edu")
	ev := fx.CreateEvent(ctx, author.ID, nil, "Hackathon", time.Now().Add(48*time.Hour), 0, models.ContentApproved)
	_, err := db.Collection("events").UpdateOne(ctx, bson.M{"_id": ev.ID},
		bson.M{"$set": bson.M{"participants": []primitive.ObjectID{p1.ID, p2.ID, author.ID}}})
	if err != nil {
		t.Fatalf("seed participants: %v", err)
	}

	evID := ev.ID
	if _, err := outboxstore.New(db).Enqueue(ctx, models.NotificationIntent{
		Kind:     models.NotifyEventCancelled,
		SenderID: author.ID,
		Target:   models.Target{EventID: &evID},
	}, time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := d.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	for _, u := range []primitive.ObjectID{p1.ID, p2.ID} {
		rows := notificationsFor(t, db, u)
		if len(rows) != 1 || rows[0].Type != models.NotifyEventCancelled {
			t.Errorf("participant %s: got %+v", u.Hex(), rows)
		}
	}
	if got := len(notificationsFor(t, db, author.ID)); got != 0 {
		t.Errorf("author notified about own cancellation: %d", got)
	}
}

func TestDispatcher_StartStopAndKick(t *testing.T) {
	db, d, pub := setupDispatcher(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	d.cfg.PollInterval = time.Hour
	d.Start()
	defer d.Stop()

	if _, err := outboxstore.New(db).Enqueue(ctx, models.NotificationIntent{
		Kind:       models.NotifyForumJoined,
		SenderID:   primitive.NewObjectID(),
		Recipients: []primitive.ObjectID{primitive.NewObjectID()},
	}, time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	d.Kick()

	deadline := time.Now().Add(5 * time.Second)
	for pub.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if pub.count() != 1 {
		t.Errorf("kick did not trigger a pass: published %d", pub.count())
	}
}

func TestDispatcher_WithdrawnWhileLeasedLeavesNothing(t *testing.T) {
	db, d, _ := setupDispatcher(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := outboxstore.New(db)
	liker, author := primitive.NewObjectID(), primitive.NewObjectID()
	postID := primitive.NewObjectID()
	target := models.Target{PostID: &postID}
	if _, err := store.Enqueue(ctx, models.NotificationIntent{
		Kind:       models.NotifyPostLiked,
		SenderID:   liker,
		Recipients: []primitive.ObjectID{author},
		Target:     target,
	}, time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// The unlike lands after the intent was leased but before it settles.
	d.resolve = func(ctx context.Context, in models.NotificationIntent) ([]primitive.ObjectID, error) {
		if _, err := store.CancelMatching(ctx, models.NotifyPostLiked, liker, target); err != nil {
			return nil, err
		}
		return in.Recipients, nil
	}
	if _, err := d.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if got := len(notificationsFor(t, db, author)); got != 0 {
		t.Errorf("withdrawn like still delivered: %d notifications", got)
	}
}

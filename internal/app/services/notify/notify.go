// internal/app/services/notify/notify.go
// Package notify records notification intents in the outbox and withdraws
// them. The dispatcher worker turns intents into notifications.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	notificationstore "github.com/dalemusser/campushub/internal/app/store/notifications"
	outboxstore "github.com/dalemusser/campushub/internal/app/store/outbox"
	"github.com/dalemusser/campushub/internal/app/system/metrics"
	"github.com/dalemusser/campushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Intent describes notifications to create. Recipients may be empty for
// kinds the dispatcher resolves itself (event_cancelled).
type Intent struct {
	Kind       string
	Sender     primitive.ObjectID
	Recipients []primitive.ObjectID
	Target     models.Target
	Message    string
}

// Kicker wakes the dispatcher; *workers.Dispatcher implements it.
type Kicker interface {
	Kick()
}

type Notifier struct {
	outbox  *outboxstore.Store
	notes   *notificationstore.Store
	metrics *metrics.Metrics
	log     *zap.Logger
	kicker  Kicker
}

func New(db *mongo.Database, m *metrics.Metrics, logger *zap.Logger) *Notifier {
	return &Notifier{
		outbox:  outboxstore.New(db),
		notes:   notificationstore.New(db),
		metrics: m,
		log:     logger,
	}
}

// SetKicker registers the dispatcher to wake on immediate intents.
func (n *Notifier) SetKicker(k Kicker) { n.kicker = k }

// resolvedLater lists kinds whose recipients are computed at dispatch time.
var resolvedLater = map[string]bool{
	models.NotifyEventCancelled: true,
}

// Enqueue writes an intent due after delay. Intents whose only recipient
// is the sender are dropped, and so are repeats of an intent still pending
// for a kind that carries a dedupe key. ctx may carry a transaction so the
// intent commits with the state change that caused it.
func (n *Notifier) Enqueue(ctx context.Context, in Intent, delay time.Duration) error {
	if !hasAudience(in) {
		return nil
	}
	if delay < 0 {
		delay = 0
	}
	row := models.NotificationIntent{
		Kind:       in.Kind,
		SenderID:   in.Sender,
		Recipients: in.Recipients,
		Target:     in.Target,
		Message:    in.Message,
		DedupeKey:  dedupeKey(in),
	}
	if _, err := n.outbox.Enqueue(ctx, row, time.Now().Add(delay)); err != nil {
		if errors.Is(err, outboxstore.ErrDuplicate) {
			n.log.Debug("intent already pending", zap.String("kind", in.Kind), zap.String("dedupe_key", row.DedupeKey))
			return nil
		}
		return fmt.Errorf("enqueue %s: %w", in.Kind, err)
	}
	n.metrics.IntentEnqueued(in.Kind)
	if delay == 0 {
		n.kick(ctx)
	}
	return nil
}

// dedupeKey names intents that must not be queued twice: one per
// (kind, target, sender) for actions a user repeats, one per target for
// moderation requests.
func dedupeKey(in Intent) string {
	var target *primitive.ObjectID
	switch in.Kind {
	case models.NotifyForumJoinRequest, models.NotifyForumJoined:
		target = in.Target.ForumID
	case models.NotifyPostLiked:
		target = in.Target.PostID
	case models.NotifyEventParticipation:
		target = in.Target.EventID
	case models.NotifyPostPendingApproval:
		if in.Target.PostID != nil {
			return in.Kind + ":" + in.Target.PostID.Hex()
		}
		return ""
	case models.NotifyEventPendingApproval:
		if in.Target.EventID != nil {
			return in.Kind + ":" + in.Target.EventID.Hex()
		}
		return ""
	}
	if target == nil {
		return ""
	}
	return in.Kind + ":" + target.Hex() + ":" + in.Sender.Hex()
}

type kickKey struct{}

type deferredKick struct{ due bool }

// DeferKick returns a context under which Enqueue holds back the dispatcher
// wake-up. Call the returned func once the transaction carrying the
// intents has committed.
func (n *Notifier) DeferKick(ctx context.Context) (context.Context, func()) {
	d := &deferredKick{}
	return context.WithValue(ctx, kickKey{}, d), func() {
		if d.due && n.kicker != nil {
			n.kicker.Kick()
		}
	}
}

func (n *Notifier) kick(ctx context.Context) {
	if d, ok := ctx.Value(kickKey{}).(*deferredKick); ok {
		d.due = true
		return
	}
	if n.kicker != nil {
		n.kicker.Kick()
	}
}

func hasAudience(in Intent) bool {
	if len(in.Recipients) == 0 {
		return resolvedLater[in.Kind]
	}
	for _, r := range in.Recipients {
		if !r.IsZero() && r != in.Sender {
			return true
		}
	}
	return false
}

// Withdraw undoes a notification: pending intents of (kind, sender, target)
// are cancelled and notifications already delivered are deleted.
func (n *Notifier) Withdraw(ctx context.Context, kind string, sender primitive.ObjectID, target models.Target) error {
	cancelled, err := n.outbox.CancelMatching(ctx, kind, sender, target)
	if err != nil {
		return fmt.Errorf("cancel %s intents: %w", kind, err)
	}
	deleted, err := n.notes.Withdraw(ctx, kind, sender, target)
	if err != nil {
		return fmt.Errorf("withdraw %s notifications: %w", kind, err)
	}
	if cancelled+deleted > 0 {
		n.log.Debug("notification withdrawn",
			zap.String("kind", kind),
			zap.String("sender_id", sender.Hex()),
			zap.Int64("intents_cancelled", cancelled),
			zap.Int64("notifications_deleted", deleted))
	}
	return nil
}

// Forget cancels intents and deletes notifications that point at removed
// content. field is the target key, e.g. "post_id".
func (n *Notifier) Forget(ctx context.Context, field string, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := n.outbox.CancelReferencing(ctx, field, ids); err != nil {
		return fmt.Errorf("cancel intents by %s: %w", field, err)
	}
	if _, err := n.notes.DeleteReferencing(ctx, field, ids); err != nil {
		return fmt.Errorf("delete notifications by %s: %w", field, err)
	}
	return nil
}

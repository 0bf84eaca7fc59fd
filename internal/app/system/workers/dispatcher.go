// internal/app/system/workers/dispatcher.go
package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	eventstore "github.com/dalemusser/campushub/internal/app/store/events"
	notificationstore "github.com/dalemusser/campushub/internal/app/store/notifications"
	outboxstore "github.com/dalemusser/campushub/internal/app/store/outbox"
	"github.com/dalemusser/campushub/internal/app/system/metrics"
	"github.com/dalemusser/campushub/internal/app/system/realtime"
	"github.com/dalemusser/campushub/internal/app/system/timeouts"
	"github.com/dalemusser/campushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// DispatcherConfig tunes the outbox dispatcher.
type DispatcherConfig struct {
	PollInterval time.Duration // how often to look for due intents
	Lease        time.Duration // how long a claimed intent is ours
	MaxAttempts  int           // attempts before an intent is marked failed
	BaseBackoff  time.Duration // delay after the first failed attempt
	MaxBackoff   time.Duration
	BatchSize    int // intents handled per pass
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.Lease <= 0 {
		c.Lease = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 2 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	return c
}

// Dispatcher turns notification intents into per-recipient notifications.
// Intents are claimed with a lease, so any number of processes can run a
// dispatcher against the same database; delivery is at-least-once and the
// (intent_id, recipient_id) index collapses repeats.
type Dispatcher struct {
	outbox  *outboxstore.Store
	notes   *notificationstore.Store
	events  *eventstore.Store
	pub     realtime.Publisher
	metrics *metrics.Metrics
	log     *zap.Logger
	cfg     DispatcherConfig

	now     func() time.Time
	resolve func(ctx context.Context, in models.NotificationIntent) ([]primitive.ObjectID, error)
	kick    chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewDispatcher creates the outbox worker. pub may be nil when realtime
// push is disabled.
func NewDispatcher(db *mongo.Database, pub realtime.Publisher, m *metrics.Metrics, logger *zap.Logger, cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		outbox:  outboxstore.New(db),
		notes:   notificationstore.New(db),
		events:  eventstore.New(db),
		pub:     pub,
		metrics: m,
		log:     logger,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		kick:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
	d.resolve = d.resolveRecipients
	return d
}

// Start begins the polling loop.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.run()
	d.log.Info("notification dispatcher started",
		zap.Duration("poll_interval", d.cfg.PollInterval),
		zap.Duration("lease", d.cfg.Lease),
		zap.Int("max_attempts", d.cfg.MaxAttempts))
}

// Stop signals the worker to stop and waits for the current pass.
func (d *Dispatcher) Stop() {
	close(d.stopCh)
	d.wg.Wait()
	d.log.Info("notification dispatcher stopped")
}

// Kick asks for a pass now instead of at the next tick. It never blocks.
func (d *Dispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
		case <-d.kick:
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.Batch())
		if _, err := d.RunOnce(ctx); err != nil {
			d.log.Error("dispatcher pass failed", zap.Error(err))
		}
		cancel()
	}
}

// RunOnce drains up to BatchSize due intents and reports how many it
// handled. Per-intent failures are rescheduled, not returned.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	handled := 0
	for handled < d.cfg.BatchSize {
		select {
		case <-d.stopCh:
			return handled, nil
		default:
		}
		in, err := d.outbox.LeaseNext(ctx, d.now(), d.cfg.Lease)
		if errors.Is(err, outboxstore.ErrNotFound) {
			return handled, nil
		}
		if err != nil {
			return handled, fmt.Errorf("lease intent: %w", err)
		}
		handled++
		d.process(ctx, in)
	}
	return handled, nil
}

func (d *Dispatcher) process(ctx context.Context, in models.NotificationIntent) {
	log := d.log.With(
		zap.String("intent_id", in.ID.Hex()),
		zap.String("kind", in.Kind),
		zap.Int("attempt", in.Attempts))

	err := d.deliver(ctx, in)
	if err == nil {
		err := d.outbox.MarkDone(ctx, in.ID)
		switch {
		case errors.Is(err, outboxstore.ErrNotFound):
			d.lostLease(ctx, in, log)
		case err != nil:
			log.Error("failed to mark intent done", zap.Error(err))
		default:
			d.metrics.IntentDispatched(in.Kind)
		}
		return
	}

	if in.Attempts >= d.cfg.MaxAttempts {
		log.Error("notification intent failed permanently", zap.Error(err))
		if e := d.outbox.MarkFailed(ctx, in.ID, err.Error()); e != nil && !errors.Is(e, outboxstore.ErrNotFound) {
			log.Error("failed to mark intent failed", zap.Error(e))
		}
		d.metrics.IntentFailed(in.Kind)
		return
	}

	delay := Backoff(in.Attempts, d.cfg.BaseBackoff, d.cfg.MaxBackoff)
	log.Warn("notification intent will be retried", zap.Error(err), zap.Duration("delay", delay))
	if e := d.outbox.Retry(ctx, in.ID, d.now().Add(delay), err.Error()); e != nil && !errors.Is(e, outboxstore.ErrNotFound) {
		log.Error("failed to reschedule intent", zap.Error(e))
	}
	d.metrics.IntentRetried(in.Kind)
}

// lostLease handles an intent that stopped being ours while we delivered
// it. If it was withdrawn in the meantime, what we delivered is removed.
func (d *Dispatcher) lostLease(ctx context.Context, in models.NotificationIntent, log *zap.Logger) {
	cur, err := d.outbox.Get(ctx, in.ID)
	if err != nil {
		log.Warn("intent vanished during dispatch", zap.Error(err))
		return
	}
	if cur.Status != models.IntentCancelled {
		log.Warn("intent lease lost during dispatch", zap.String("status", cur.Status))
		return
	}
	n, err := d.notes.DeleteByIntent(ctx, in.ID)
	if err != nil {
		log.Error("failed to remove notifications of cancelled intent", zap.Error(err))
		return
	}
	log.Debug("removed notifications of cancelled intent", zap.Int64("count", n))
}

func (d *Dispatcher) deliver(ctx context.Context, in models.NotificationIntent) error {
	recipients, err := d.resolve(ctx, in)
	if err != nil {
		return fmt.Errorf("resolve recipients: %w", err)
	}
	for _, rid := range Recipients(in.SenderID, recipients) {
		n, created, err := d.notes.Deliver(ctx, in, rid)
		if err != nil {
			return fmt.Errorf("deliver to %s: %w", rid.Hex(), err)
		}
		if !created {
			continue
		}
		d.metrics.Delivered(in.Kind)
		if d.pub != nil {
			if err := d.pub.Publish(ctx, n); err != nil {
				// The notification is stored; push is best effort.
				d.log.Warn("realtime publish failed", zap.String("recipient_id", rid.Hex()), zap.Error(err))
			}
		}
	}
	return nil
}

// resolveRecipients fills in recipients for intents written without them. An
// event_cancelled intent with no explicit list goes to the event's current
// participants.
func (d *Dispatcher) resolveRecipients(ctx context.Context, in models.NotificationIntent) ([]primitive.ObjectID, error) {
	if len(in.Recipients) > 0 {
		return in.Recipients, nil
	}
	switch in.Kind {
	case models.NotifyEventCancelled:
		if in.EventID == nil {
			return nil, nil
		}
		ev, err := d.events.GetByID(ctx, *in.EventID)
		if errors.Is(err, eventstore.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return ev.Participants, nil
	}
	return nil, nil
}

// Recipients de-duplicates ids and removes the zero id and the sender.
func Recipients(sender primitive.ObjectID, ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() || id == sender || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Backoff returns base*2^(attempt-1), capped at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

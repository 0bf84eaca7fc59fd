// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	outboxstore "github.com/dalemusser/campushub/internal/app/store/outbox"
	"go.uber.org/zap"
)

// OutboxReclaimJob returns intents whose dispatcher lease expired to the
// pending queue so another worker can pick them up.
func OutboxReclaimJob(store *outboxstore.Store, logger *zap.Logger, interval time.Duration) Job {
	return Job{
		Name:     "outbox-reclaim",
		Interval: interval,
		Run: func(ctx context.Context) error {
			count, err := store.ReclaimExpired(ctx, time.Now())
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Warn("reclaimed expired outbox leases", zap.Int64("count", count))
			}
			return nil
		},
	}
}

// OutboxPurgeJob deletes settled intents (done, failed, cancelled) older
// than retention.
func OutboxPurgeJob(store *outboxstore.Store, logger *zap.Logger, retention time.Duration) Job {
	return Job{
		Name:     "outbox-purge",
		Interval: 1 * time.Hour,
		Run: func(ctx context.Context) error {
			count, err := store.PurgeSettled(ctx, time.Now().Add(-retention))
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Debug("purged settled outbox intents",
					zap.Int64("count", count),
					zap.Duration("retention", retention))
			}
			return nil
		},
	}
}

// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called from EnsureSchema at startup. Each ensure* function is
idempotent. Errors are aggregated so every problem is visible and startup
fails fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	steps := []struct {
		name string
		fn   func(context.Context, *mongo.Database) error
	}{
		{"users", ensureUsers},
		{"forums", ensureForums},
		{"forum_memberships", ensureForumMemberships},
		{"posts", ensurePosts},
		{"comments", ensureComments},
		{"events", ensureEvents},
		{"favorites", ensureFavorites},
		{"notifications", ensureNotifications},
		{"notification_outbox", ensureOutbox},
		{"audit_events", ensureAuditEvents},
	}
	for _, s := range steps {
		if err := s.fn(ctx, db); err != nil {
			problems = append(problems, s.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func boolVal(p *bool) bool { return p != nil && *p }

// Mongo/DocDB sometimes returns IndexOptionsConflict when an index with the
// same keys already exists under a different name (or options differ).
func isOptionsConflictErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "IndexOptionsConflict")
}

func listIndexes(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	existing := map[string]existingIndex{} // key signature -> index
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

// ensureIndexSet makes coll carry every index in desired. An index with the
// same keys is reused when its uniqueness matches and renamed when only the
// name differs; otherwise it is dropped and recreated.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, desired []mongo.IndexModel) error {
	var errs []string
	existing := listIndexes(ctx, coll)

	for _, m := range desired {
		var name string
		var unique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				name = *m.Options.Name
			}
			unique = m.Options.Unique
		}
		sig := keySig(m.Keys.(bson.D))
		start := time.Now()
		log := zap.L().With(
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig),
			zap.Bool("unique", boolVal(unique)))

		fail := func(stage string, err error) {
			log.Warn("index ensure failed", zap.String("stage", stage), zap.Error(err))
			if wafflemongo.IsDup(err) && boolVal(unique) {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present on %s)", coll.Name(), name, sig))
				return
			}
			errs = append(errs, fmt.Sprintf("%s(%s): %s: %v", coll.Name(), name, stage, err))
		}

		recreate := func(old string) bool {
			if _, err := coll.Indexes().DropOne(ctx, old); err != nil {
				fail("drop "+old, err)
				return false
			}
			if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
				fail("create", err)
				return false
			}
			return true
		}

		if ex, ok := existing[sig]; ok {
			switch {
			case boolVal(unique) != boolVal(ex.Unique):
				if recreate(ex.Name) {
					log.Info("index dropped and recreated", zap.Duration("took", time.Since(start)))
				}
			case name != "" && ex.Name != name:
				if recreate(ex.Name) {
					log.Info("index renamed", zap.String("from", ex.Name), zap.Duration("took", time.Since(start)))
				}
			default:
				log.Debug("reusing existing index", zap.Duration("took", time.Since(start)))
			}
			continue
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if !isOptionsConflictErr(err) {
				fail("create", err)
				continue
			}
			// Lost a race with another process or the listing was stale.
			if ex, ok := listIndexes(ctx, coll)[sig]; ok {
				if boolVal(unique) == boolVal(ex.Unique) {
					log.Info("reusing existing index (post-conflict)", zap.String("existing", ex.Name))
					continue
				}
				if recreate(ex.Name) {
					log.Info("index dropped and recreated (post-conflict)", zap.Duration("took", time.Since(start)))
				}
				continue
			}
			fail("create", err)
			continue
		}
		log.Info("index ensured", zap.Duration("took", time.Since(start)))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("users"), []mongo.IndexModel{
		// Login lookup; email is stored folded in email_ci.
		{
			Keys:    bson.D{{Key: "email_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_emailci"),
		},
		// Firebase sign-in; most users have no uid.
		{
			Keys: bson.D{{Key: "firebase_uid", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_firebaseuid").
				SetPartialFilterExpression(bson.M{"firebase_uid": bson.M{"$exists": true}}),
		},
		// Admin user lists (role/status filters, keyset by name).
		{
			Keys: bson.D{
				{Key: "role", Value: 1},
				{Key: "status", Value: 1},
				{Key: "full_name_ci", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("idx_users_role_status_fullnameci_id"),
		},
		{
			Keys:    bson.D{{Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_users_fullnameci_id"),
		},
	})
}

func ensureForums(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("forums"), []mongo.IndexModel{
		// Directory listing: keyset by folded name.
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_forums_nameci_id"),
		},
		// Visible-only listing for non-members.
		{
			Keys:    bson.D{{Key: "visibility", Value: 1}, {Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_forums_visibility_nameci_id"),
		},
		{
			Keys:    bson.D{{Key: "author_id", Value: 1}},
			Options: options.Index().SetName("idx_forums_author"),
		},
	})
}

func ensureForumMemberships(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("forum_memberships"), []mongo.IndexModel{
		// Exactly one membership per (user, forum, group type). Concurrent
		// joins race on this index; the loser gets a duplicate-key error.
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "forum_id", Value: 1},
				{Key: "group_type", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_fm_user_forum_type"),
		},
		// Member lists, pending queues and counts per forum.
		{
			Keys:    bson.D{{Key: "forum_id", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_fm_forum_status_created"),
		},
		// A user's forums by status (visibility filter input).
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}, {Key: "forum_id", Value: 1}},
			Options: options.Index().SetName("idx_fm_user_status_forum"),
		},
	})
}

func ensurePosts(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("posts"), []mongo.IndexModel{
		// Feed: newest first with status filter.
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_posts_status_id"),
		},
		// Forum timeline and moderation queue.
		{
			Keys:    bson.D{{Key: "forum_id", Value: 1}, {Key: "status", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_posts_forum_status_id"),
		},
		{
			Keys:    bson.D{{Key: "author_id", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_posts_author_id"),
		},
	})
}

func ensureComments(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("comments"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "post_id", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_comments_post_id"),
		},
	})
}

func ensureEvents(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("events"), []mongo.IndexModel{
		// Upcoming events.
		{
			Keys:    bson.D{{Key: "starts_at", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_events_startsat_id"),
		},
		{
			Keys:    bson.D{{Key: "forum_id", Value: 1}, {Key: "status", Value: 1}, {Key: "starts_at", Value: 1}},
			Options: options.Index().SetName("idx_events_forum_status_startsat"),
		},
		{
			Keys:    bson.D{{Key: "author_id", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_events_author_id"),
		},
		{
			Keys:    bson.D{{Key: "participants", Value: 1}},
			Options: options.Index().SetName("idx_events_participants"),
		},
	})
}

func ensureFavorites(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("favorites"), []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "target_type", Value: 1},
				{Key: "target_id", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_fav_user_type_target"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_fav_user_id"),
		},
		// Cleanup when a post or event is deleted.
		{
			Keys:    bson.D{{Key: "target_type", Value: 1}, {Key: "target_id", Value: 1}},
			Options: options.Index().SetName("idx_fav_type_target"),
		},
	})
}

func ensureNotifications(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("notifications"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "recipient_id", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_notif_recipient_id"),
		},
		{
			Keys:    bson.D{{Key: "recipient_id", Value: 1}, {Key: "is_read", Value: 1}},
			Options: options.Index().SetName("idx_notif_recipient_read"),
		},
		// One notification per (intent, recipient): a retried dispatch is a no-op.
		{
			Keys: bson.D{{Key: "intent_id", Value: 1}, {Key: "recipient_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_notif_intent_recipient").
				SetPartialFilterExpression(bson.M{"intent_id": bson.M{"$exists": true}}),
		},
		// Withdrawal (unlike, cancelled request, unparticipate).
		{
			Keys: bson.D{
				{Key: "type", Value: 1},
				{Key: "sender_id", Value: 1},
				{Key: "post_id", Value: 1},
				{Key: "event_id", Value: 1},
				{Key: "forum_id", Value: 1},
			},
			Options: options.Index().SetName("idx_notif_type_sender_targets"),
		},
	})
}

func ensureOutbox(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("notification_outbox"), []mongo.IndexModel{
		// Dispatcher: oldest due pending intent first.
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "run_at", Value: 1}},
			Options: options.Index().SetName("idx_outbox_status_runat"),
		},
		// Reclaiming expired leases.
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "lease_until", Value: 1}},
			Options: options.Index().SetName("idx_outbox_status_lease"),
		},
		{
			Keys:    bson.D{{Key: "kind", Value: 1}, {Key: "sender_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_outbox_kind_sender_status"),
		},
		{
			Keys: bson.D{{Key: "dedupe_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_outbox_dedupe").
				SetPartialFilterExpression(bson.M{"dedupe_key": bson.M{"$exists": true}}),
		},
	})
}

func ensureAuditEvents(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("audit_events"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_user_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "forum_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_forum_timestamp"),
		},
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "event_type", Value: 1},
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().SetName("idx_audit_category_type_timestamp"),
		},
	})
}

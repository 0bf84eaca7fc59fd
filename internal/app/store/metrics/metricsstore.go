// internal/app/store/metrics/metricsstore.go
package metricsstore

import (
	"context"
	"time"

	"github.com/dalemusser/campushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// SiteCounts is the set of totals shown on the admin dashboard.
type SiteCounts struct {
	Users         int64 `json:"users"`
	DisabledUsers int64 `json:"disabled_users"`
	Forums        int64 `json:"forums"`
	PrivateForums int64 `json:"private_forums"`
	Posts         int64 `json:"posts"`
	Events        int64 `json:"events"`
	PendingPosts  int64 `json:"pending_posts"`
	PendingEvents int64 `json:"pending_events"`
	FailedIntents int64 `json:"failed_intents"`
}

// UserCounts is what a signed-in user sees about their own activity.
type UserCounts struct {
	Forums              int64 `json:"forums"`
	ManagedForums       int64 `json:"managed_forums"`
	PendingRequests     int64 `json:"pending_requests"`   // the user's own join requests
	RequestsToReview    int64 `json:"requests_to_review"` // join requests on forums the user manages
	Posts               int64 `json:"posts"`
	UpcomingEvents      int64 `json:"upcoming_events"` // events the user takes part in
	UnreadNotifications int64 `json:"unread_notifications"`
}

// count is tolerant: on error it returns 0 for that counter.
func count(ctx context.Context, db *mongo.Database, coll string, filter bson.M) int64 {
	n, err := db.Collection(coll).CountDocuments(ctx, filter)
	if err != nil {
		return 0
	}
	return n
}

// FetchSiteCounts returns the high-level counts used by the admin dashboard.
func FetchSiteCounts(ctx context.Context, db *mongo.Database) SiteCounts {
	return SiteCounts{
		Users:         count(ctx, db, "users", bson.M{}),
		DisabledUsers: count(ctx, db, "users", bson.M{"status": "disabled"}),
		Forums:        count(ctx, db, "forums", bson.M{}),
		PrivateForums: count(ctx, db, "forums", bson.M{"confidentiality": models.ConfidentialityPrivate}),
		Posts:         count(ctx, db, "posts", bson.M{}),
		Events:        count(ctx, db, "events", bson.M{}),
		PendingPosts:  count(ctx, db, "posts", bson.M{"status": models.ContentPending}),
		PendingEvents: count(ctx, db, "events", bson.M{"status": models.ContentPending}),
		FailedIntents: count(ctx, db, "notification_outbox", bson.M{"status": models.IntentFailed}),
	}
}

// FetchUserCounts returns userID's own counters. now bounds "upcoming".
func FetchUserCounts(ctx context.Context, db *mongo.Database, userID primitive.ObjectID, now time.Time) UserCounts {
	accepted := bson.M{"user_id": userID, "group_type": models.GroupTypeForum, "status": models.MembershipAccepted}
	managed := bson.M{"user_id": userID, "group_type": models.GroupTypeForum, "status": models.MembershipAccepted, "role": models.MemberRoleAuthor}

	out := UserCounts{
		Forums:              count(ctx, db, "forum_memberships", accepted),
		ManagedForums:       count(ctx, db, "forum_memberships", managed),
		PendingRequests:     count(ctx, db, "forum_memberships", bson.M{"user_id": userID, "group_type": models.GroupTypeForum, "status": models.MembershipPending}),
		Posts:               count(ctx, db, "posts", bson.M{"author_id": userID}),
		UpcomingEvents:      count(ctx, db, "events", bson.M{"participants": userID, "cancelled": false, "starts_at": bson.M{"$gte": now}}),
		UnreadNotifications: count(ctx, db, "notifications", bson.M{"recipient_id": userID, "is_read": false}),
	}

	if out.ManagedForums > 0 {
		ids, err := db.Collection("forum_memberships").Distinct(ctx, "forum_id", managed)
		if err == nil && len(ids) > 0 {
			out.RequestsToReview = count(ctx, db, "forum_memberships", bson.M{
				"forum_id":   bson.M{"$in": ids},
				"group_type": models.GroupTypeForum,
				"status":     models.MembershipPending,
			})
		}
	}
	return out
}

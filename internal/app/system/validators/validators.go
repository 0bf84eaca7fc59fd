// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/campushub/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	// helper: ensure collection exists (with truthful logging) and then validator (if provided)
	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			// DocumentDB or other deployments may not support collMod/validators.
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("users", usersSchema())
	ensure("forums", forumsSchema())
	ensure("forum_memberships", forumMembershipsSchema())

	// Content
	ensure("posts", postsSchema())
	ensure("comments", commentsSchema())
	ensure("events", eventsSchema())
	ensure("favorites", favoritesSchema())

	ensure("notifications", notificationsSchema())
	ensure("notification_outbox", outboxSchema())

	// Written only by the audit store; no validator.
	ensure("audit_events", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"full_name", "email", "email_ci", "role", "status"},
			"properties": bson.M{
				"full_name":    nonBlank,
				"full_name_ci": nonBlank,
				"email":        nonBlank,
				"email_ci":     nonBlank,
				"firebase_uid": bson.M{"bsonType": bson.A{"string", "null"}},
				"role":         bson.M{"enum": bson.A{models.RoleUser, models.RoleAdmin, models.RoleSuperAdmin}},
				"permissions":  bson.M{"bsonType": "array", "items": bson.M{"bsonType": "string"}},
				"status":       bson.M{"enum": bson.A{"active", "disabled"}},
			},
		},
	}
}

func forumsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci", "author_id", "confidentiality", "visibility"},
			"properties": bson.M{
				"name":                   nonBlank,
				"name_ci":                nonBlank,
				"author_id":              bson.M{"bsonType": "objectId"},
				"confidentiality":        bson.M{"enum": bson.A{models.ConfidentialityPublic, models.ConfidentialityPrivate}},
				"visibility":             bson.M{"enum": bson.A{models.VisibilityVisible, models.VisibilityMasked}},
				"requires_post_approval": bson.M{"bsonType": "bool"},
			},
		},
	}
}

func forumMembershipsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"forum_id", "user_id", "group_type", "status", "role"},
			"properties": bson.M{
				"forum_id":   bson.M{"bsonType": "objectId"},
				"user_id":    bson.M{"bsonType": "objectId"},
				"group_type": bson.M{"enum": bson.A{models.GroupTypeForum}},
				"status":     bson.M{"enum": bson.A{models.MembershipPending, models.MembershipAccepted, models.MembershipRejected}},
				"role":       bson.M{"enum": bson.A{models.MemberRoleAuthor, models.MemberRoleMember}},
				"created_at": bson.M{"bsonType": "date"},
			},
		},
	}
}

// Rows written before moderation existed carry no status, so it is not required.
var contentStatus = bson.M{"enum": bson.A{models.ContentPending, models.ContentApproved, models.ContentRejected}}

func postsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"author_id", "content", "likes", "comment_ids"},
			"properties": bson.M{
				"author_id":   bson.M{"bsonType": "objectId"},
				"forum_id":    bson.M{"bsonType": bson.A{"objectId", "null"}},
				"content":     nonBlank,
				"likes":       bson.M{"bsonType": "array", "items": bson.M{"bsonType": "objectId"}},
				"comment_ids": bson.M{"bsonType": "array", "items": bson.M{"bsonType": "objectId"}},
				"status":      contentStatus,
			},
		},
	}
}

func commentsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"post_id", "author_id", "content"},
			"properties": bson.M{
				"post_id":   bson.M{"bsonType": "objectId"},
				"author_id": bson.M{"bsonType": "objectId"},
				"content":   nonBlank,
			},
		},
	}
}

func eventsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"author_id", "title", "start_date", "start_time", "starts_at", "participants", "max_participants"},
			"properties": bson.M{
				"author_id":        bson.M{"bsonType": "objectId"},
				"forum_id":         bson.M{"bsonType": bson.A{"objectId", "null"}},
				"title":            nonBlank,
				"start_date":       bson.M{"bsonType": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
				"start_time":       bson.M{"bsonType": "string", "pattern": "^\\d{2}:\\d{2}$"},
				"starts_at":        bson.M{"bsonType": "date"},
				"participants":     bson.M{"bsonType": "array", "items": bson.M{"bsonType": "objectId"}},
				"max_participants": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
				"cancelled":        bson.M{"bsonType": "bool"},
				"status":           contentStatus,
			},
		},
	}
}

func favoritesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "target_type", "target_id"},
			"properties": bson.M{
				"user_id":     bson.M{"bsonType": "objectId"},
				"target_type": bson.M{"enum": bson.A{models.TargetPost, models.TargetEvent}},
				"target_id":   bson.M{"bsonType": "objectId"},
			},
		},
	}
}

func notificationsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"recipient_id", "sender_id", "type", "is_read", "created_at"},
			"properties": bson.M{
				"recipient_id": bson.M{"bsonType": "objectId"},
				"sender_id":    bson.M{"bsonType": "objectId"},
				"type":         nonBlank,
				"is_read":      bson.M{"bsonType": "bool"},
				"created_at":   bson.M{"bsonType": "date"},
			},
		},
	}
}

func outboxSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"kind", "sender_id", "status", "run_at", "attempts"},
			"properties": bson.M{
				"kind":      nonBlank,
				"sender_id": bson.M{"bsonType": "objectId"},
				"status": bson.M{"enum": bson.A{
					models.IntentPending, models.IntentProcessing, models.IntentDone,
					models.IntentFailed, models.IntentCancelled,
				}},
				"run_at":   bson.M{"bsonType": "date"},
				"attempts": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
			},
		},
	}
}

// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/dalemusser/campushub/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
// Each value is "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only) or "off".
type Config struct {
	// Auth covers login, logout and registration.
	Auth string
	// Admin covers role, permission, status and moderation changes.
	Admin string
	// Forum covers forum lifecycle and membership transitions.
	Forum string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	// X-Forwarded-For may hold a chain; the first entry is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func userAgent(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.UserAgent()
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.ForumID != nil {
		fields = append(fields, zap.String("forum_id", event.ForumID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// A nil Logger is a no-op so tests and optional wiring can pass nil.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	case audit.CategoryForum:
		setting = l.config.Forum
	default:
		setting = "all"
	}

	if setting == "off" {
		return
	}
	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}
	if setting == "all" || setting == "db" {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Authentication Events ---

// LoginSuccess logs a successful login. method is "password" or "firebase".
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, method string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		IP:        getClientIP(r),
		UserAgent: userAgent(r),
		Success:   true,
		Details:   map[string]string{"auth_method": method},
	})
}

// LoginFailedUserNotFound logs a failed login for an unknown email.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, attemptedEmail string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedUserNotFound,
		IP:            getClientIP(r),
		UserAgent:     userAgent(r),
		FailureReason: "user not found",
		Details:       map[string]string{"attempted_email": attemptedEmail},
	})
}

// LoginFailedWrongPassword logs a failed login due to wrong password.
func (l *Logger) LoginFailedWrongPassword(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedWrongPassword,
		UserID:        &userID,
		IP:            getClientIP(r),
		UserAgent:     userAgent(r),
		FailureReason: "wrong password",
	})
}

// LoginFailedUserDisabled logs a login attempt on a disabled account.
func (l *Logger) LoginFailedUserDisabled(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedUserDisabled,
		UserID:        &userID,
		IP:            getClientIP(r),
		UserAgent:     userAgent(r),
		FailureReason: "user disabled",
	})
}

// Logout logs a user logout. userIDStr may be empty for anonymous sessions.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userIDStr string) {
	var userID *primitive.ObjectID
	if oid, err := primitive.ObjectIDFromHex(userIDStr); err == nil {
		userID = &oid
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		UserID:    userID,
		IP:        getClientIP(r),
		UserAgent: userAgent(r),
		Success:   true,
	})
}

// UserRegistered logs a self-registration.
func (l *Logger) UserRegistered(ctx context.Context, r *http.Request, userID primitive.ObjectID, method string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventUserRegistered,
		UserID:    &userID,
		IP:        getClientIP(r),
		UserAgent: userAgent(r),
		Success:   true,
		Details:   map[string]string{"auth_method": method},
	})
}

// PasswordChanged logs a password change by the account owner.
func (l *Logger) PasswordChanged(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventPasswordChanged,
		UserID:    &userID,
		IP:        getClientIP(r),
		UserAgent: userAgent(r),
		Success:   true,
	})
}

// --- Admin Events ---

func (l *Logger) admin(ctx context.Context, r *http.Request, eventType string, actorID, targetID primitive.ObjectID, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: eventType,
		UserID:    &targetID,
		ActorID:   &actorID,
		IP:        getClientIP(r),
		UserAgent: userAgent(r),
		Success:   true,
		Details:   details,
	})
}

// UserRoleChanged logs a role change.
func (l *Logger) UserRoleChanged(ctx context.Context, r *http.Request, actorID, targetID primitive.ObjectID, actorRole, oldRole, newRole string) {
	l.admin(ctx, r, audit.EventUserRoleChanged, actorID, targetID, map[string]string{
		"actor_role": actorRole,
		"old_role":   oldRole,
		"new_role":   newRole,
	})
}

// UserPermissionsChanged logs a permission set replacement.
func (l *Logger) UserPermissionsChanged(ctx context.Context, r *http.Request, actorID, targetID primitive.ObjectID, actorRole string, perms []string) {
	l.admin(ctx, r, audit.EventUserPermissionsChanged, actorID, targetID, map[string]string{
		"actor_role":  actorRole,
		"permissions": strings.Join(perms, ","),
	})
}

// UserDisabled logs an account being disabled.
func (l *Logger) UserDisabled(ctx context.Context, r *http.Request, actorID, targetID primitive.ObjectID, actorRole string) {
	l.admin(ctx, r, audit.EventUserDisabled, actorID, targetID, map[string]string{"actor_role": actorRole})
}

// UserEnabled logs an account being re-enabled.
func (l *Logger) UserEnabled(ctx context.Context, r *http.Request, actorID, targetID primitive.ObjectID, actorRole string) {
	l.admin(ctx, r, audit.EventUserEnabled, actorID, targetID, map[string]string{"actor_role": actorRole})
}

// ContentModerated logs an approve/reject decision on a post or event.
// authorID is the content author; forumID is the forum the content lives in.
func (l *Logger) ContentModerated(ctx context.Context, r *http.Request, actorID, authorID primitive.ObjectID, forumID *primitive.ObjectID, contentType string, contentID primitive.ObjectID, decision string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventContentModerated,
		UserID:    &authorID,
		ActorID:   &actorID,
		ForumID:   forumID,
		IP:        getClientIP(r),
		UserAgent: userAgent(r),
		Success:   true,
		Details: map[string]string{
			"content_type": contentType,
			"content_id":   contentID.Hex(),
			"decision":     decision,
		},
	})
}

// --- Forum Events ---

func (l *Logger) forum(ctx context.Context, r *http.Request, eventType string, actorID primitive.ObjectID, userID *primitive.ObjectID, forumID primitive.ObjectID, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryForum,
		EventType: eventType,
		ForumID:   &forumID,
		UserID:    userID,
		ActorID:   &actorID,
		IP:        getClientIP(r),
		UserAgent: userAgent(r),
		Success:   true,
		Details:   details,
	})
}

// ForumCreated logs a new forum.
func (l *Logger) ForumCreated(ctx context.Context, r *http.Request, actorID, forumID primitive.ObjectID, name, confidentiality string) {
	l.forum(ctx, r, audit.EventForumCreated, actorID, nil, forumID, map[string]string{
		"forum_name":      name,
		"confidentiality": confidentiality,
	})
}

// ForumUpdated logs a settings change.
func (l *Logger) ForumUpdated(ctx context.Context, r *http.Request, actorID, forumID primitive.ObjectID, fieldsChanged string) {
	l.forum(ctx, r, audit.EventForumUpdated, actorID, nil, forumID, map[string]string{"fields_changed": fieldsChanged})
}

// ForumDeleted logs a forum deletion.
func (l *Logger) ForumDeleted(ctx context.Context, r *http.Request, actorID, forumID primitive.ObjectID, name string) {
	l.forum(ctx, r, audit.EventForumDeleted, actorID, nil, forumID, map[string]string{"forum_name": name})
}

// Membership logs a membership transition. eventType is one of the
// audit.EventMember* / audit.EventJoin* constants; userID is the member
// concerned and actorID who acted (the same user for self-service moves).
func (l *Logger) Membership(ctx context.Context, r *http.Request, eventType string, actorID, userID, forumID primitive.ObjectID) {
	l.forum(ctx, r, eventType, actorID, &userID, forumID, nil)
}

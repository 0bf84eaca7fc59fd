// internal/app/features/auditlog/types.go
package auditlog

import (
	"time"

	"github.com/dalemusser/campushub/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// listItem is one audit event with names resolved for display.
type listItem struct {
	ID            string              `json:"id"`
	Timestamp     time.Time           `json:"timestamp"`
	Category      string              `json:"category"`
	EventType     string              `json:"event_type"`
	ActorID       *primitive.ObjectID `json:"actor_id,omitempty"`
	ActorName     string              `json:"actor_name,omitempty"`
	UserID        *primitive.ObjectID `json:"user_id,omitempty"`
	UserName      string              `json:"user_name,omitempty"`
	ForumID       *primitive.ObjectID `json:"forum_id,omitempty"`
	ForumName     string              `json:"forum_name,omitempty"`
	IP            string              `json:"ip,omitempty"`
	Success       bool                `json:"success"`
	FailureReason string              `json:"failure_reason,omitempty"`
	Details       map[string]string   `json:"details,omitempty"`
}

type listResponse struct {
	Items      []listItem `json:"items"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	TotalPages int        `json:"total_pages"`
}

// eventTypesForCategory returns the event types for a given category.
// If category is empty, returns all event types; unknown categories
// return nil.
func eventTypesForCategory(category string) []string {
	authEvents := []string{
		audit.EventLoginSuccess,
		audit.EventLoginFailedUserNotFound,
		audit.EventLoginFailedWrongPassword,
		audit.EventLoginFailedUserDisabled,
		audit.EventLogout,
		audit.EventUserRegistered,
		audit.EventPasswordChanged,
	}

	adminEvents := []string{
		audit.EventUserRoleChanged,
		audit.EventUserPermissionsChanged,
		audit.EventUserDisabled,
		audit.EventUserEnabled,
		audit.EventContentModerated,
	}

	forumEvents := []string{
		audit.EventForumCreated,
		audit.EventForumUpdated,
		audit.EventForumDeleted,
		audit.EventMemberJoined,
		audit.EventJoinRequested,
		audit.EventJoinRequestCancelled,
		audit.EventJoinRequestAccepted,
		audit.EventJoinRequestRejected,
		audit.EventMemberLeft,
		audit.EventMemberRemoved,
	}

	switch category {
	case audit.CategoryAuth:
		return authEvents
	case audit.CategoryAdmin:
		return adminEvents
	case audit.CategoryForum:
		return forumEvents
	case "":
		all := make([]string, 0, len(authEvents)+len(adminEvents)+len(forumEvents))
		all = append(all, authEvents...)
		all = append(all, adminEvents...)
		all = append(all, forumEvents...)
		return all
	default:
		return nil
	}
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

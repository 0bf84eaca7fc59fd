// Package forumpolicy decides who may manage forums and the content in them.
//
// A forum manager is the forum's author, any admin or superadmin, or a
// user holding the forums:moderate permission. Managers decide join
// requests, moderate pending content, edit settings and remove members.
package forumpolicy

import (
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IsAuthor reports whether userID created the forum.
func IsAuthor(f models.Forum, userID primitive.ObjectID) bool {
	return !userID.IsZero() && f.AuthorID == userID
}

// CanManage reports whether v manages forum f.
func CanManage(v authz.Viewer, f models.Forum) bool {
	if v.Anonymous() {
		return false
	}
	return IsAuthor(f, v.ID) || v.IsAdmin() || v.Has(models.PermModerateForums)
}

// CanModerate reports whether v may approve or reject content in forum f.
// Content outside any forum (f == nil) is only moderated by admins and
// moderators.
func CanModerate(v authz.Viewer, f *models.Forum) bool {
	if f == nil {
		return !v.Anonymous() && (v.IsAdmin() || v.Has(models.PermModerateForums))
	}
	return CanManage(v, *f)
}

// CanEditContent reports whether v may edit a post or event: only its author.
func CanEditContent(v authz.Viewer, authorID primitive.ObjectID) bool {
	return !v.Anonymous() && v.ID == authorID
}

// CanDeleteContent reports whether v may delete a post or event written by
// authorID in forum f (nil for content outside forums): the author, a
// manager of the forum, or an admin.
func CanDeleteContent(v authz.Viewer, authorID primitive.ObjectID, f *models.Forum) bool {
	if v.Anonymous() {
		return false
	}
	if v.ID == authorID || v.IsAdmin() {
		return true
	}
	return f != nil && CanManage(v, *f)
}

// CanDeleteComment reports whether v may delete comment c on post p: the
// comment author, the post author, or an admin.
func CanDeleteComment(v authz.Viewer, c models.Comment, p models.Post) bool {
	if v.Anonymous() {
		return false
	}
	return v.ID == c.AuthorID || v.ID == p.AuthorID || v.IsAdmin()
}

// NeedsApproval reports whether content created by v in forum f starts as
// pending. Managers bypass approval.
func NeedsApproval(v authz.Viewer, f *models.Forum) bool {
	return f != nil && f.RequiresPostApproval && !CanManage(v, *f)
}

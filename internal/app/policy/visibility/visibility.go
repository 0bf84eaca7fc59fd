// Package visibility is the one place that decides whether a post or an
// event may be shown to a viewer.
//
// The rule:
//   - the item's moderation status is approved, or absent (rows written
//     before moderation existed count as approved);
//   - and, when the item belongs to a forum, the viewer holds an accepted
//     membership in that forum.
//
// CanView applies the rule to a loaded item; ListingFilter expresses the
// same rule as a MongoDB filter for listings. Moderation queues do not go
// through this package.
package visibility

import (
	"context"

	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IsApproved reports whether a moderation status counts as approved.
func IsApproved(status string) bool {
	return status == "" || status == models.ContentApproved
}

// ApprovedFilter matches documents whose status is approved or absent.
func ApprovedFilter() bson.M {
	return bson.M{"status": bson.M{"$in": bson.A{nil, models.ContentApproved}}}
}

// Item is the part of a post or event the rule looks at.
type Item struct {
	ForumID *primitive.ObjectID
	Status  string
}

// PostItem returns the visibility view of p.
func PostItem(p models.Post) Item { return Item{ForumID: p.ForumID, Status: p.Status} }

// EventItem returns the visibility view of e.
func EventItem(e models.Event) Item { return Item{ForumID: e.ForumID, Status: e.Status} }

// MembershipLister is satisfied by membershipstore.Store.
type MembershipLister interface {
	ForumIDsForUser(ctx context.Context, userID primitive.ObjectID, status string) ([]primitive.ObjectID, error)
}

// Scope is a viewer together with the forums they are an accepted member of.
type Scope struct {
	Viewer authz.Viewer
	forums map[primitive.ObjectID]struct{}
	ids    []primitive.ObjectID
}

// NewScope builds a Scope from an explicit list of accepted forum ids.
func NewScope(v authz.Viewer, memberOf []primitive.ObjectID) Scope {
	s := Scope{Viewer: v, forums: make(map[primitive.ObjectID]struct{}, len(memberOf)), ids: []primitive.ObjectID{}}
	for _, id := range memberOf {
		if _, dup := s.forums[id]; dup {
			continue
		}
		s.forums[id] = struct{}{}
		s.ids = append(s.ids, id)
	}
	return s
}

// Load resolves the viewer's accepted forums. Anonymous viewers belong to none.
func Load(ctx context.Context, ml MembershipLister, v authz.Viewer) (Scope, error) {
	if v.Anonymous() {
		return NewScope(v, nil), nil
	}
	ids, err := ml.ForumIDsForUser(ctx, v.ID, models.MembershipAccepted)
	if err != nil {
		return Scope{}, err
	}
	return NewScope(v, ids), nil
}

// IsMember reports whether the viewer is an accepted member of forumID.
func (s Scope) IsMember(forumID primitive.ObjectID) bool {
	_, ok := s.forums[forumID]
	return ok
}

// MemberForumIDs returns the accepted forum ids.
func (s Scope) MemberForumIDs() []primitive.ObjectID { return s.ids }

// CanView applies the rule to a single item.
func (s Scope) CanView(it Item) bool {
	if !IsApproved(it.Status) {
		return false
	}
	if it.ForumID == nil {
		return true
	}
	return s.IsMember(*it.ForumID)
}

// ListingFilter is CanView as a MongoDB filter over posts or events.
func (s Scope) ListingFilter() bson.M {
	return bson.M{"$and": bson.A{
		ApprovedFilter(),
		bson.M{"$or": bson.A{
			bson.M{"forum_id": nil},
			bson.M{"forum_id": bson.M{"$in": s.ids}},
		}},
	}}
}

// ForumListable reports whether forum f appears in the viewer's forum
// listings. Masked forums are listed only to members, the author and admins.
func (s Scope) ForumListable(f models.Forum) bool {
	if !f.IsMasked() {
		return true
	}
	if s.Viewer.Anonymous() {
		return false
	}
	return s.Viewer.IsAdmin() || f.AuthorID == s.Viewer.ID || s.IsMember(f.ID)
}

// ForumListingFilter is ForumListable as a MongoDB filter over forums.
// It returns nil when every forum is listable.
func (s Scope) ForumListingFilter() bson.M {
	if s.Viewer.IsAdmin() {
		return nil
	}
	or := bson.A{
		bson.M{"visibility": bson.M{"$ne": models.VisibilityMasked}},
		bson.M{"_id": bson.M{"$in": s.ids}},
	}
	if !s.Viewer.Anonymous() {
		or = append(or, bson.M{"author_id": s.Viewer.ID})
	}
	return bson.M{"$or": or}
}

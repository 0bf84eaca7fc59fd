// internal/app/services/membership/membership.go
// Package membership moves users in and out of forums.
//
// States: (none) -> accepted on a public forum, (none) -> pending on a
// private one, pending -> accepted | rejected by a forum manager,
// rejected -> pending when the user asks again, pending -> (none) when the
// request is cancelled and accepted -> (none) on leave or removal. The
// forum author holds an accepted "author" row for the forum's lifetime and
// can never leave.
//
// Every transition writes the membership row and its notification intent
// in one transaction when the deployment supports it.
package membership

import (
	"context"
	"errors"

	"github.com/dalemusser/campushub/internal/app/policy/forumpolicy"
	"github.com/dalemusser/campushub/internal/app/policy/visibility"
	"github.com/dalemusser/campushub/internal/app/services/notify"
	forumstore "github.com/dalemusser/campushub/internal/app/store/forums"
	membershipstore "github.com/dalemusser/campushub/internal/app/store/memberships"
	"github.com/dalemusser/campushub/internal/app/system/apperr"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/metrics"
	"github.com/dalemusser/campushub/internal/app/system/txn"
	"github.com/dalemusser/campushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Service struct {
	db      *mongo.Database
	forums  *forumstore.Store
	members *membershipstore.Store
	notify  *notify.Notifier
	metrics *metrics.Metrics
	log     *zap.Logger
}

func New(db *mongo.Database, n *notify.Notifier, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		db:      db,
		forums:  forumstore.New(db),
		members: membershipstore.New(db),
		notify:  n,
		metrics: m,
		log:     logger,
	}
}

func (s *Service) forum(ctx context.Context, id primitive.ObjectID) (models.Forum, error) {
	f, err := s.forums.GetByID(ctx, id)
	if errors.Is(err, forumstore.ErrNotFound) {
		return models.Forum{}, apperr.ErrForumNotFound
	}
	return f, err
}

// inTxn runs fn in a transaction and wakes the dispatcher only after the
// intents fn enqueued have committed.
func (s *Service) inTxn(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, kick := s.notify.DeferKick(ctx)
	if err := txn.Run(ctx, s.db, s.log, fn); err != nil {
		return err
	}
	kick()
	return nil
}

func forumTarget(f models.Forum) models.Target {
	id := f.ID
	return models.Target{ForumID: &id}
}

// Join joins a public forum or asks to join a private one.
func (s *Service) Join(ctx context.Context, v authz.Viewer, forumID primitive.ObjectID) (models.ForumMembership, error) {
	if v.Anonymous() {
		return models.ForumMembership{}, apperr.ErrUnauthenticated
	}
	f, err := s.forum(ctx, forumID)
	if err != nil {
		return models.ForumMembership{}, err
	}
	if f.IsPublic() {
		return s.joinPublic(ctx, v, f)
	}
	return s.requestJoin(ctx, v, f)
}

// JoinPublic makes v an accepted member of a public forum and tells the
// forum author.
func (s *Service) JoinPublic(ctx context.Context, v authz.Viewer, forumID primitive.ObjectID) (models.ForumMembership, error) {
	if v.Anonymous() {
		return models.ForumMembership{}, apperr.ErrUnauthenticated
	}
	f, err := s.forum(ctx, forumID)
	if err != nil {
		return models.ForumMembership{}, err
	}
	if !f.IsPublic() {
		return models.ForumMembership{}, apperr.ErrNotPublic
	}
	return s.joinPublic(ctx, v, f)
}

func (s *Service) joinPublic(ctx context.Context, v authz.Viewer, f models.Forum) (models.ForumMembership, error) {
	var out models.ForumMembership
	err := s.inTxn(ctx, func(ctx context.Context) error {
		cur, err := s.members.Get(ctx, f.ID, v.ID)
		switch {
		case err == nil && cur.Status == models.MembershipAccepted:
			return apperr.ErrAlreadyMember
		case err == nil:
			// A request left over from when the forum was private.
			out, err = s.members.SetStatus(ctx, f.ID, v.ID, cur.Status, models.MembershipAccepted, primitive.NilObjectID)
			if errors.Is(err, membershipstore.ErrNotFound) {
				return apperr.ErrConflict
			}
		case errors.Is(err, membershipstore.ErrNotFound):
			out, err = s.members.CreateAccepted(ctx, f.ID, v.ID, models.MemberRoleMember)
			if errors.Is(err, membershipstore.ErrDuplicate) {
				return apperr.ErrAlreadyMember
			}
		}
		if err != nil {
			return err
		}
		return s.notify.Enqueue(ctx, notify.Intent{
			Kind:       models.NotifyForumJoined,
			Sender:     v.ID,
			Recipients: []primitive.ObjectID{f.AuthorID},
			Target:     forumTarget(f),
		}, 0)
	})
	if err != nil {
		return models.ForumMembership{}, err
	}
	s.metrics.Transition("joined")
	return out, nil
}

// RequestJoin records a pending request on a private forum and tells the
// author. A previously rejected user may ask again.
func (s *Service) RequestJoin(ctx context.Context, v authz.Viewer, forumID primitive.ObjectID) (models.ForumMembership, error) {
	if v.Anonymous() {
		return models.ForumMembership{}, apperr.ErrUnauthenticated
	}
	f, err := s.forum(ctx, forumID)
	if err != nil {
		return models.ForumMembership{}, err
	}
	if f.IsPublic() {
		return models.ForumMembership{}, apperr.ErrNotPrivate
	}
	return s.requestJoin(ctx, v, f)
}

func (s *Service) requestJoin(ctx context.Context, v authz.Viewer, f models.Forum) (models.ForumMembership, error) {
	var out models.ForumMembership
	err := s.inTxn(ctx, func(ctx context.Context) error {
		cur, err := s.members.Get(ctx, f.ID, v.ID)
		switch {
		case err == nil && cur.Status == models.MembershipAccepted:
			return apperr.ErrAlreadyMember
		case err == nil && cur.Status == models.MembershipPending:
			return apperr.ErrAlreadyRequested
		case err == nil:
			out, err = s.members.SetStatus(ctx, f.ID, v.ID, models.MembershipRejected, models.MembershipPending, primitive.NilObjectID)
			if errors.Is(err, membershipstore.ErrNotFound) {
				return apperr.ErrAlreadyRequested
			}
		case errors.Is(err, membershipstore.ErrNotFound):
			out, err = s.members.CreatePending(ctx, f.ID, v.ID)
			if errors.Is(err, membershipstore.ErrDuplicate) {
				return apperr.ErrAlreadyRequested
			}
		}
		if err != nil {
			return err
		}
		return s.notify.Enqueue(ctx, notify.Intent{
			Kind:       models.NotifyForumJoinRequest,
			Sender:     v.ID,
			Recipients: []primitive.ObjectID{f.AuthorID},
			Target:     forumTarget(f),
		}, 0)
	})
	if err != nil {
		return models.ForumMembership{}, err
	}
	s.metrics.Transition("requested")
	return out, nil
}

// CancelRequest deletes v's pending request and withdraws the request
// notification, whether or not it was delivered yet.
func (s *Service) CancelRequest(ctx context.Context, v authz.Viewer, forumID primitive.ObjectID) error {
	if v.Anonymous() {
		return apperr.ErrUnauthenticated
	}
	f, err := s.forum(ctx, forumID)
	if err != nil {
		return err
	}
	err = s.inTxn(ctx, func(ctx context.Context) error {
		if err := s.members.Delete(ctx, f.ID, v.ID, models.MembershipPending); err != nil {
			if errors.Is(err, membershipstore.ErrNotFound) {
				return apperr.ErrRequestNotFound
			}
			return err
		}
		return s.notify.Withdraw(ctx, models.NotifyForumJoinRequest, v.ID, forumTarget(f))
	})
	if err != nil {
		return err
	}
	s.metrics.Transition("cancelled")
	return nil
}

// Accept admits userID's pending request. Only forum managers may decide.
func (s *Service) Accept(ctx context.Context, v authz.Viewer, forumID, userID primitive.ObjectID) (models.ForumMembership, error) {
	return s.decide(ctx, v, forumID, userID, models.MembershipAccepted, models.NotifyForumRequestAccepted)
}

// Reject declines userID's pending request.
func (s *Service) Reject(ctx context.Context, v authz.Viewer, forumID, userID primitive.ObjectID) (models.ForumMembership, error) {
	return s.decide(ctx, v, forumID, userID, models.MembershipRejected, models.NotifyForumRequestRejected)
}

func (s *Service) decide(ctx context.Context, v authz.Viewer, forumID, userID primitive.ObjectID, to, kind string) (models.ForumMembership, error) {
	if v.Anonymous() {
		return models.ForumMembership{}, apperr.ErrUnauthenticated
	}
	f, err := s.forum(ctx, forumID)
	if err != nil {
		return models.ForumMembership{}, err
	}
	if !forumpolicy.CanManage(v, f) {
		return models.ForumMembership{}, apperr.ErrNotManager
	}
	var out models.ForumMembership
	err = s.inTxn(ctx, func(ctx context.Context) error {
		m, err := s.members.SetStatus(ctx, f.ID, userID, models.MembershipPending, to, v.ID)
		if errors.Is(err, membershipstore.ErrNotFound) {
			return apperr.ErrRequestNotFound
		}
		if err != nil {
			return err
		}
		out = m
		return s.notify.Enqueue(ctx, notify.Intent{
			Kind:       kind,
			Sender:     v.ID,
			Recipients: []primitive.ObjectID{userID},
			Target:     forumTarget(f),
		}, 0)
	})
	if err != nil {
		return models.ForumMembership{}, err
	}
	s.metrics.Transition(to)
	return out, nil
}

// Leave removes v from the forum. The author cannot leave.
func (s *Service) Leave(ctx context.Context, v authz.Viewer, forumID primitive.ObjectID) error {
	if v.Anonymous() {
		return apperr.ErrUnauthenticated
	}
	f, err := s.forum(ctx, forumID)
	if err != nil {
		return err
	}
	if forumpolicy.IsAuthor(f, v.ID) {
		return apperr.ErrAuthorCannotLeave
	}
	if err := s.members.Delete(ctx, f.ID, v.ID, models.MembershipAccepted); err != nil {
		if errors.Is(err, membershipstore.ErrNotFound) {
			return apperr.ErrNotMember
		}
		return err
	}
	s.metrics.Transition("left")
	return nil
}

// RemoveMember lets a forum manager remove an accepted member other than
// the author.
func (s *Service) RemoveMember(ctx context.Context, v authz.Viewer, forumID, userID primitive.ObjectID) error {
	if v.Anonymous() {
		return apperr.ErrUnauthenticated
	}
	f, err := s.forum(ctx, forumID)
	if err != nil {
		return err
	}
	if !forumpolicy.CanManage(v, f) {
		return apperr.ErrNotManager
	}
	if forumpolicy.IsAuthor(f, userID) {
		return apperr.ErrCannotRemoveAuthor
	}
	if err := s.members.Delete(ctx, f.ID, userID, models.MembershipAccepted); err != nil {
		if errors.Is(err, membershipstore.ErrNotFound) {
			return apperr.ErrMemberNotFound
		}
		return err
	}
	s.metrics.Transition("removed")
	return nil
}

// Status returns v's membership in the forum, or ok=false when there is none.
func (s *Service) Status(ctx context.Context, v authz.Viewer, forumID primitive.ObjectID) (m models.ForumMembership, ok bool, err error) {
	if v.Anonymous() {
		return models.ForumMembership{}, false, nil
	}
	m, err = s.members.Get(ctx, forumID, v.ID)
	if errors.Is(err, membershipstore.ErrNotFound) {
		return models.ForumMembership{}, false, nil
	}
	if err != nil {
		return models.ForumMembership{}, false, err
	}
	return m, true, nil
}

// Members lists the accepted members of a forum the viewer can see.
func (s *Service) Members(ctx context.Context, v authz.Viewer, forumID primitive.ObjectID) ([]models.ForumMembership, error) {
	f, err := s.forum(ctx, forumID)
	if err != nil {
		return nil, err
	}
	scope, err := visibility.Load(ctx, s.members, v)
	if err != nil {
		return nil, err
	}
	if !scope.ForumListable(f) {
		return nil, apperr.ErrForumNotFound
	}
	return s.members.ListByForum(ctx, f.ID, models.MembershipAccepted)
}

// PendingRequests lists pending requests for forum managers.
func (s *Service) PendingRequests(ctx context.Context, v authz.Viewer, forumID primitive.ObjectID) ([]models.ForumMembership, error) {
	if v.Anonymous() {
		return nil, apperr.ErrUnauthenticated
	}
	f, err := s.forum(ctx, forumID)
	if err != nil {
		return nil, err
	}
	if !forumpolicy.CanManage(v, f) {
		return nil, apperr.ErrNotManager
	}
	return s.members.ListByForum(ctx, f.ID, models.MembershipPending)
}

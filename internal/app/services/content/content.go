// internal/app/services/content/content.go
// Package content publishes, moderates and removes posts, comments and
// events, and keeps favorites consistent with them.
//
// Reads go through the visibility policy: an item is shown when it is
// approved (or predates moderation) and, inside a forum, when the viewer
// is an accepted member. Moderation queues are the one exception.
package content

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/campushub/internal/app/policy/visibility"
	"github.com/dalemusser/campushub/internal/app/services/notify"
	commentstore "github.com/dalemusser/campushub/internal/app/store/comments"
	eventstore "github.com/dalemusser/campushub/internal/app/store/events"
	favoritestore "github.com/dalemusser/campushub/internal/app/store/favorites"
	forumstore "github.com/dalemusser/campushub/internal/app/store/forums"
	membershipstore "github.com/dalemusser/campushub/internal/app/store/memberships"
	poststore "github.com/dalemusser/campushub/internal/app/store/posts"
	"github.com/dalemusser/campushub/internal/app/system/apperr"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/txn"
	"github.com/dalemusser/campushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	errEmptyPost    = apperr.New(apperr.Invalid, "La publication ne peut pas être vide.")
	errEmptyComment = apperr.New(apperr.Invalid, "Le commentaire ne peut pas être vide.")
)

type Service struct {
	db        *mongo.Database
	forums    *forumstore.Store
	members   *membershipstore.Store
	posts     *poststore.Store
	comments  *commentstore.Store
	events    *eventstore.Store
	favorites *favoritestore.Store
	notify    *notify.Notifier
	log       *zap.Logger

	loc *time.Location
	now func() time.Time
}

// New builds the service. Event dates are read in loc; nil means UTC.
func New(db *mongo.Database, n *notify.Notifier, loc *time.Location, logger *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		db:        db,
		forums:    forumstore.New(db),
		members:   membershipstore.New(db),
		posts:     poststore.New(db),
		comments:  commentstore.New(db),
		events:    eventstore.New(db),
		favorites: favoritestore.New(db),
		notify:    n,
		log:       logger,
		loc:       loc,
		now:       time.Now,
	}
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

func (s *Service) scope(ctx context.Context, v authz.Viewer) (visibility.Scope, error) {
	return visibility.Load(ctx, s.members, v)
}

// forumOf loads the forum content belongs to; nil id means no forum.
func (s *Service) forumOf(ctx context.Context, id *primitive.ObjectID) (*models.Forum, error) {
	if id == nil {
		return nil, nil
	}
	f, err := s.forums.GetByID(ctx, *id)
	if errors.Is(err, forumstore.ErrNotFound) {
		return nil, apperr.ErrForumNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// forumOrNil is forumOf for content whose forum may already be gone.
func (s *Service) forumOrNil(ctx context.Context, id *primitive.ObjectID) (*models.Forum, error) {
	f, err := s.forumOf(ctx, id)
	if errors.Is(err, apperr.ErrForumNotFound) {
		return nil, nil
	}
	return f, err
}

// requireMember checks v may publish in f. Forum content is written by
// accepted members only, admins included.
func (s *Service) requireMember(ctx context.Context, v authz.Viewer, f *models.Forum) error {
	if f == nil {
		return nil
	}
	ok, err := s.members.Exists(ctx, f.ID, v.ID, models.MembershipAccepted)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrMembersOnly
	}
	return nil
}

func initialStatus(needsApproval bool) string {
	if needsApproval {
		return models.ContentPending
	}
	return models.ContentApproved
}

func ref(id primitive.ObjectID) *primitive.ObjectID { return &id }

// PurgeForum removes every post and event in a forum together with their
// comments, favorites and notifications. The forum row and its
// memberships are the caller's.
func (s *Service) PurgeForum(ctx context.Context, forumID primitive.ObjectID) error {
	postIDs, err := s.posts.DeleteByForum(ctx, forumID)
	if err != nil {
		return err
	}
	if err := s.dropPosts(ctx, postIDs); err != nil {
		return err
	}
	eventIDs, err := s.events.DeleteByForum(ctx, forumID)
	if err != nil {
		return err
	}
	if err := s.dropEvents(ctx, eventIDs); err != nil {
		return err
	}
	if err := s.notify.Forget(ctx, "forum_id", []primitive.ObjectID{forumID}); err != nil {
		return err
	}
	s.log.Info("forum content purged",
		zap.String("forum_id", forumID.Hex()),
		zap.Int("posts", len(postIDs)),
		zap.Int("events", len(eventIDs)))
	return nil
}

// dropPosts cascades the removal of already deleted posts.
func (s *Service) dropPosts(ctx context.Context, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.comments.DeleteByPosts(ctx, ids); err != nil {
		return err
	}
	if _, err := s.favorites.DeleteByTargets(ctx, models.TargetPost, ids); err != nil {
		return err
	}
	return s.notify.Forget(ctx, "post_id", ids)
}

func (s *Service) dropEvents(ctx context.Context, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.favorites.DeleteByTargets(ctx, models.TargetEvent, ids); err != nil {
		return err
	}
	return s.notify.Forget(ctx, "event_id", ids)
}

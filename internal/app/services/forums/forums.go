// internal/app/services/forums/forums.go
// Package forums creates, lists, configures and deletes forums. Member
// counts are computed from forum_memberships; deleting a forum removes its
// memberships and everything published in it.
package forums

import (
	"context"
	"errors"

	"github.com/dalemusser/campushub/internal/app/policy/forumpolicy"
	"github.com/dalemusser/campushub/internal/app/policy/visibility"
	"github.com/dalemusser/campushub/internal/app/services/content"
	forumstore "github.com/dalemusser/campushub/internal/app/store/forums"
	membershipstore "github.com/dalemusser/campushub/internal/app/store/memberships"
	"github.com/dalemusser/campushub/internal/app/system/apperr"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/metrics"
	"github.com/dalemusser/campushub/internal/app/system/paging"
	"github.com/dalemusser/campushub/internal/app/system/txn"
	"github.com/dalemusser/campushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	errNameRequired       = apperr.New(apperr.Invalid, "Le nom du groupe est obligatoire.")
	errBadConfidentiality = apperr.New(apperr.Invalid, `La confidentialité doit être "public" ou "private".`)
	errBadVisibility      = apperr.New(apperr.Invalid, `La visibilité doit être "visible" ou "masked".`)
)

// View is a forum with its member count and the viewer's own membership
// status ("" when none).
type View struct {
	models.Forum
	MemberCount  int64  `json:"member_count"`
	ViewerStatus string `json:"viewer_status,omitempty"`
}

type Service struct {
	db      *mongo.Database
	forums  *forumstore.Store
	members *membershipstore.Store
	content *content.Service
	metrics *metrics.Metrics
	log     *zap.Logger
}

func New(db *mongo.Database, c *content.Service, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		db:      db,
		forums:  forumstore.New(db),
		members: membershipstore.New(db),
		content: c,
		metrics: m,
		log:     logger,
	}
}

func storeErr(err error) error {
	switch {
	case errors.Is(err, forumstore.ErrNotFound):
		return apperr.ErrForumNotFound
	case errors.Is(err, forumstore.ErrNameRequired):
		return errNameRequired
	case errors.Is(err, forumstore.ErrBadConfidentiality):
		return errBadConfidentiality
	case errors.Is(err, forumstore.ErrBadVisibility):
		return errBadVisibility
	}
	return err
}

// Input is what a user submits to create a forum.
type Input struct {
	Name                 string
	Description          string
	Confidentiality      string
	Visibility           string
	RequiresPostApproval bool
	CoverRef             string
}

// Create makes v the author of a new forum and gives them its author seat.
func (s *Service) Create(ctx context.Context, v authz.Viewer, in Input) (models.Forum, error) {
	if v.Anonymous() {
		return models.Forum{}, apperr.ErrUnauthenticated
	}
	var out models.Forum
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		var err error
		out, err = s.forums.Create(ctx, models.Forum{
			Name:                 in.Name,
			Description:          in.Description,
			AuthorID:             v.ID,
			Confidentiality:      in.Confidentiality,
			Visibility:           in.Visibility,
			RequiresPostApproval: in.RequiresPostApproval,
			CoverRef:             in.CoverRef,
		})
		if err != nil {
			return storeErr(err)
		}
		_, err = s.members.CreateAccepted(ctx, out.ID, v.ID, models.MemberRoleAuthor)
		return err
	})
	if err != nil {
		return models.Forum{}, err
	}
	s.metrics.Transition("author_seated")
	return out, nil
}

// Get returns a forum the viewer may see. A masked forum does not exist
// for outsiders.
func (s *Service) Get(ctx context.Context, v authz.Viewer, id primitive.ObjectID) (View, error) {
	f, err := s.forums.GetByID(ctx, id)
	if err != nil {
		return View{}, storeErr(err)
	}
	sc, err := visibility.Load(ctx, s.members, v)
	if err != nil {
		return View{}, err
	}
	if !sc.ForumListable(f) {
		return View{}, apperr.ErrForumNotFound
	}
	view := View{Forum: f}
	if view.MemberCount, err = s.members.CountByForum(ctx, f.ID, models.MembershipAccepted); err != nil {
		return View{}, err
	}
	if !v.Anonymous() {
		m, err := s.members.Get(ctx, f.ID, v.ID)
		switch {
		case err == nil:
			view.ViewerStatus = m.Status
		case !errors.Is(err, membershipstore.ErrNotFound):
			return View{}, err
		}
	}
	return view, nil
}

// List returns listable forums in name order, optionally filtered by a
// name prefix.
func (s *Service) List(ctx context.Context, v authz.Viewer, q string, ks paging.Keyset) (paging.Page[View], error) {
	sc, err := visibility.Load(ctx, s.members, v)
	if err != nil {
		return paging.Page[View]{}, err
	}
	rows, hasNext, err := s.forums.List(ctx, sc.ForumListingFilter(), q, ks)
	if err != nil {
		return paging.Page[View]{}, err
	}
	items, err := s.withCounts(ctx, sc, rows)
	if err != nil {
		return paging.Page[View]{}, err
	}
	page := paging.Page[View]{Items: items}
	if len(rows) > 0 {
		last := rows[len(rows)-1]
		page.NextCursor = paging.NextCursor(hasNext, last.NameCI, last.ID)
	}
	return page, nil
}

// Mine lists the forums v is an accepted member of, their own included.
func (s *Service) Mine(ctx context.Context, v authz.Viewer) ([]View, error) {
	if v.Anonymous() {
		return nil, apperr.ErrUnauthenticated
	}
	sc, err := visibility.Load(ctx, s.members, v)
	if err != nil {
		return nil, err
	}
	rows, err := s.forums.GetByIDs(ctx, sc.MemberForumIDs())
	if err != nil {
		return nil, err
	}
	return s.withCounts(ctx, sc, rows)
}

func (s *Service) withCounts(ctx context.Context, sc visibility.Scope, rows []models.Forum) ([]View, error) {
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, f := range rows {
		ids = append(ids, f.ID)
	}
	counts, err := s.members.CountByForums(ctx, ids, models.MembershipAccepted)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(rows))
	for _, f := range rows {
		view := View{Forum: f, MemberCount: counts[f.ID]}
		if sc.IsMember(f.ID) {
			view.ViewerStatus = models.MembershipAccepted
		}
		out = append(out, view)
	}
	return out, nil
}

// Update changes forum settings. Managers only.
func (s *Service) Update(ctx context.Context, v authz.Viewer, id primitive.ObjectID, in forumstore.Settings) (models.Forum, error) {
	if v.Anonymous() {
		return models.Forum{}, apperr.ErrUnauthenticated
	}
	f, err := s.forums.GetByID(ctx, id)
	if err != nil {
		return models.Forum{}, storeErr(err)
	}
	if !forumpolicy.CanManage(v, f) {
		return models.Forum{}, apperr.ErrNotManager
	}
	out, err := s.forums.Update(ctx, id, in)
	if err != nil {
		return models.Forum{}, storeErr(err)
	}
	return out, nil
}

// Delete removes the forum, its memberships and all its content.
// Managers only.
func (s *Service) Delete(ctx context.Context, v authz.Viewer, id primitive.ObjectID) (models.Forum, error) {
	if v.Anonymous() {
		return models.Forum{}, apperr.ErrUnauthenticated
	}
	f, err := s.forums.GetByID(ctx, id)
	if err != nil {
		return models.Forum{}, storeErr(err)
	}
	if !forumpolicy.CanManage(v, f) {
		return models.Forum{}, apperr.ErrNotManager
	}
	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		if err := s.content.PurgeForum(ctx, id); err != nil {
			return err
		}
		if _, err := s.members.DeleteByForum(ctx, id); err != nil {
			return err
		}
		return storeErr(s.forums.Delete(ctx, id))
	})
	if err != nil {
		return models.Forum{}, err
	}
	return f, nil
}

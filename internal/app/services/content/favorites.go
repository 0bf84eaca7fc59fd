package content

import (
	"context"
	"errors"

	favoritestore "github.com/dalemusser/campushub/internal/app/store/favorites"
	"github.com/dalemusser/campushub/internal/app/system/apperr"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/paging"
	"github.com/dalemusser/campushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errBadTarget = apperr.New(apperr.Invalid, `Le type doit être "post" ou "event".`)

// Favorite is a bookmark with the item it points at. Exactly one of Post
// and Event is set.
type Favorite struct {
	models.Favorite
	Post  *models.Post  `json:"post,omitempty"`
	Event *models.Event `json:"event,omitempty"`
}

// AddFavorite bookmarks a post or event the viewer can see.
func (s *Service) AddFavorite(ctx context.Context, v authz.Viewer, targetType string, id primitive.ObjectID) (models.Favorite, error) {
	if v.Anonymous() {
		return models.Favorite{}, apperr.ErrUnauthenticated
	}
	if err := s.visibleTarget(ctx, v, targetType, id); err != nil {
		return models.Favorite{}, err
	}
	f, err := s.favorites.Add(ctx, v.ID, targetType, id)
	if errors.Is(err, favoritestore.ErrDuplicate) {
		return models.Favorite{}, apperr.ErrAlreadyFavorite
	}
	return f, err
}

func (s *Service) visibleTarget(ctx context.Context, v authz.Viewer, targetType string, id primitive.ObjectID) error {
	switch targetType {
	case models.TargetPost:
		_, err := s.GetPost(ctx, v, id)
		return err
	case models.TargetEvent:
		_, err := s.GetEvent(ctx, v, id)
		return err
	default:
		return errBadTarget
	}
}

// RemoveFavorite deletes a bookmark.
func (s *Service) RemoveFavorite(ctx context.Context, v authz.Viewer, targetType string, id primitive.ObjectID) error {
	if v.Anonymous() {
		return apperr.ErrUnauthenticated
	}
	if !favoritestore.ValidTarget(targetType) {
		return errBadTarget
	}
	err := s.favorites.Remove(ctx, v.ID, targetType, id)
	if errors.Is(err, favoritestore.ErrNotFound) {
		return apperr.ErrFavoriteNotFound
	}
	return err
}

// IsFavorite reports whether the viewer bookmarked the item.
func (s *Service) IsFavorite(ctx context.Context, v authz.Viewer, targetType string, id primitive.ObjectID) (bool, error) {
	if v.Anonymous() {
		return false, nil
	}
	if !favoritestore.ValidTarget(targetType) {
		return false, errBadTarget
	}
	return s.favorites.IsFavorite(ctx, v.ID, targetType, id)
}

// Favorites lists the viewer's bookmarks, newest first. Bookmarks whose
// item is no longer visible are left out of the page; targetType "" lists
// both kinds.
func (s *Service) Favorites(ctx context.Context, v authz.Viewer, targetType string, ks paging.Keyset) (paging.Page[Favorite], error) {
	if v.Anonymous() {
		return paging.Page[Favorite]{}, apperr.ErrUnauthenticated
	}
	if targetType != "" && !favoritestore.ValidTarget(targetType) {
		return paging.Page[Favorite]{}, errBadTarget
	}
	rows, hasNext, err := s.favorites.ListByUser(ctx, v.ID, targetType, ks)
	if err != nil {
		return paging.Page[Favorite]{}, err
	}
	sc, err := s.scope(ctx, v)
	if err != nil {
		return paging.Page[Favorite]{}, err
	}

	var postIDs, eventIDs []primitive.ObjectID
	for _, f := range rows {
		if f.TargetType == models.TargetPost {
			postIDs = append(postIDs, f.TargetID)
		} else {
			eventIDs = append(eventIDs, f.TargetID)
		}
	}
	posts, err := s.posts.GetByIDs(ctx, postIDs, sc.ListingFilter())
	if err != nil {
		return paging.Page[Favorite]{}, err
	}
	events, err := s.events.GetByIDs(ctx, eventIDs, sc.ListingFilter())
	if err != nil {
		return paging.Page[Favorite]{}, err
	}
	postByID := make(map[primitive.ObjectID]*models.Post, len(posts))
	for i := range posts {
		postByID[posts[i].ID] = &posts[i]
	}
	eventByID := make(map[primitive.ObjectID]*models.Event, len(events))
	for i := range events {
		eventByID[events[i].ID] = &events[i]
	}

	page := paging.Page[Favorite]{Items: []Favorite{}}
	for _, f := range rows {
		item := Favorite{Favorite: f, Post: postByID[f.TargetID], Event: eventByID[f.TargetID]}
		if (f.TargetType == models.TargetPost && item.Post == nil) || (f.TargetType == models.TargetEvent && item.Event == nil) {
			continue
		}
		page.Items = append(page.Items, item)
	}
	if len(rows) > 0 {
		page.NextCursor = paging.NextCursor(hasNext, "", rows[len(rows)-1].ID)
	}
	return page, nil
}

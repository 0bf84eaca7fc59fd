package content

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/campushub/internal/app/policy/forumpolicy"
	"github.com/dalemusser/campushub/internal/app/policy/visibility"
	"github.com/dalemusser/campushub/internal/app/services/notify"
	poststore "github.com/dalemusser/campushub/internal/app/store/posts"
	"github.com/dalemusser/campushub/internal/app/system/apperr"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/campushub/internal/app/system/paging"
	"github.com/dalemusser/campushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PostInput is what a user submits to publish a post.
type PostInput struct {
	ForumID  *primitive.ObjectID
	Content  string
	ImageRef string
}

// CreatePost publishes a post. In a forum that requires approval, posts
// from non-managers wait as pending and the forum author is told.
func (s *Service) CreatePost(ctx context.Context, v authz.Viewer, in PostInput) (models.Post, error) {
	if v.Anonymous() {
		return models.Post{}, apperr.ErrUnauthenticated
	}
	body := htmlsanitize.Body(in.Content)
	if strings.TrimSpace(htmlsanitize.Text(body)) == "" && in.ImageRef == "" {
		return models.Post{}, errEmptyPost
	}
	f, err := s.forumOf(ctx, in.ForumID)
	if err != nil {
		return models.Post{}, err
	}
	if err := s.requireMember(ctx, v, f); err != nil {
		return models.Post{}, err
	}

	pending := forumpolicy.NeedsApproval(v, f)
	var out models.Post
	err = s.inTxn(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.posts.Create(ctx, models.Post{
			AuthorID: v.ID,
			ForumID:  in.ForumID,
			Content:  body,
			ImageRef: in.ImageRef,
			Status:   initialStatus(pending),
		})
		if err != nil || !pending {
			return err
		}
		return s.notify.Enqueue(ctx, notify.Intent{
			Kind:       models.NotifyPostPendingApproval,
			Sender:     v.ID,
			Recipients: []primitive.ObjectID{f.AuthorID},
			Target:     models.Target{PostID: ref(out.ID), ForumID: ref(f.ID)},
		}, 0)
	})
	if err != nil {
		return models.Post{}, err
	}
	return out, nil
}

// GetPost returns a post the viewer may see.
func (s *Service) GetPost(ctx context.Context, v authz.Viewer, id primitive.ObjectID) (models.Post, error) {
	p, err := s.posts.GetByID(ctx, id)
	if errors.Is(err, poststore.ErrNotFound) {
		return models.Post{}, apperr.ErrPostNotFound
	}
	if err != nil {
		return models.Post{}, err
	}
	sc, err := s.scope(ctx, v)
	if err != nil {
		return models.Post{}, err
	}
	if !sc.CanView(visibility.PostItem(p)) {
		return models.Post{}, apperr.ErrPostNotFound
	}
	return p, nil
}

func (s *Service) listPosts(ctx context.Context, v authz.Viewer, extra bson.M, ks paging.Keyset) (paging.Page[models.Post], error) {
	sc, err := s.scope(ctx, v)
	if err != nil {
		return paging.Page[models.Post]{}, err
	}
	return s.pagePosts(ctx, paging.Merge(extra, sc.ListingFilter()), ks)
}

func (s *Service) pagePosts(ctx context.Context, filter bson.M, ks paging.Keyset) (paging.Page[models.Post], error) {
	rows, hasNext, err := s.posts.List(ctx, filter, ks)
	if err != nil {
		return paging.Page[models.Post]{}, err
	}
	page := paging.Page[models.Post]{Items: rows}
	if len(rows) > 0 {
		page.NextCursor = paging.NextCursor(hasNext, "", rows[len(rows)-1].ID)
	}
	return page, nil
}

// Feed lists every post the viewer may see, newest first.
func (s *Service) Feed(ctx context.Context, v authz.Viewer, ks paging.Keyset) (paging.Page[models.Post], error) {
	return s.listPosts(ctx, v, bson.M{}, ks)
}

// ForumPosts lists a forum's visible posts. Outsiders get an empty page;
// a masked forum does not exist for them.
func (s *Service) ForumPosts(ctx context.Context, v authz.Viewer, forumID primitive.ObjectID, ks paging.Keyset) (paging.Page[models.Post], error) {
	f, err := s.forumOf(ctx, &forumID)
	if err != nil {
		return paging.Page[models.Post]{}, err
	}
	sc, err := s.scope(ctx, v)
	if err != nil {
		return paging.Page[models.Post]{}, err
	}
	if !sc.ForumListable(*f) {
		return paging.Page[models.Post]{}, apperr.ErrForumNotFound
	}
	return s.pagePosts(ctx, paging.Merge(bson.M{"forum_id": forumID}, sc.ListingFilter()), ks)
}

// AuthorPosts lists the visible posts written by authorID.
func (s *Service) AuthorPosts(ctx context.Context, v authz.Viewer, authorID primitive.ObjectID, ks paging.Keyset) (paging.Page[models.Post], error) {
	return s.listPosts(ctx, v, bson.M{"author_id": authorID}, ks)
}

// MyPendingPosts lists the viewer's own posts awaiting moderation.
func (s *Service) MyPendingPosts(ctx context.Context, v authz.Viewer, ks paging.Keyset) (paging.Page[models.Post], error) {
	if v.Anonymous() {
		return paging.Page[models.Post]{}, apperr.ErrUnauthenticated
	}
	return s.pagePosts(ctx, bson.M{"author_id": v.ID, "status": models.ContentPending}, ks)
}

// PendingPosts is a forum's moderation queue.
func (s *Service) PendingPosts(ctx context.Context, v authz.Viewer, forumID primitive.ObjectID, ks paging.Keyset) (paging.Page[models.Post], error) {
	f, err := s.forumOf(ctx, &forumID)
	if err != nil {
		return paging.Page[models.Post]{}, err
	}
	if !forumpolicy.CanModerate(v, f) {
		return paging.Page[models.Post]{}, apperr.ErrNotManager
	}
	return s.pagePosts(ctx, bson.M{"forum_id": forumID, "status": models.ContentPending}, ks)
}

// UpdatePost replaces the body and, when imageRef is non-nil, the image.
// Only the author edits a post.
func (s *Service) UpdatePost(ctx context.Context, v authz.Viewer, id primitive.ObjectID, content string, imageRef *string) (models.Post, error) {
	if v.Anonymous() {
		return models.Post{}, apperr.ErrUnauthenticated
	}
	p, err := s.posts.GetByID(ctx, id)
	if errors.Is(err, poststore.ErrNotFound) {
		return models.Post{}, apperr.ErrPostNotFound
	}
	if err != nil {
		return models.Post{}, err
	}
	if !forumpolicy.CanEditContent(v, p.AuthorID) {
		return models.Post{}, apperr.ErrForbidden
	}
	body := htmlsanitize.Body(content)
	img := p.ImageRef
	if imageRef != nil {
		img = *imageRef
	}
	if strings.TrimSpace(htmlsanitize.Text(body)) == "" && img == "" {
		return models.Post{}, errEmptyPost
	}
	out, err := s.posts.UpdateContent(ctx, id, body, imageRef)
	if errors.Is(err, poststore.ErrNotFound) {
		return models.Post{}, apperr.ErrPostNotFound
	}
	return out, err
}

// ApprovePost publishes a pending post and tells its author.
func (s *Service) ApprovePost(ctx context.Context, v authz.Viewer, id primitive.ObjectID) (models.Post, error) {
	return s.moderatePost(ctx, v, id, models.ContentApproved, models.NotifyPostApproved)
}

// RejectPost refuses a pending post and tells its author.
func (s *Service) RejectPost(ctx context.Context, v authz.Viewer, id primitive.ObjectID) (models.Post, error) {
	return s.moderatePost(ctx, v, id, models.ContentRejected, models.NotifyPostRejected)
}

func (s *Service) moderatePost(ctx context.Context, v authz.Viewer, id primitive.ObjectID, to, kind string) (models.Post, error) {
	if v.Anonymous() {
		return models.Post{}, apperr.ErrUnauthenticated
	}
	p, err := s.posts.GetByID(ctx, id)
	if errors.Is(err, poststore.ErrNotFound) {
		return models.Post{}, apperr.ErrPostNotFound
	}
	if err != nil {
		return models.Post{}, err
	}
	f, err := s.forumOrNil(ctx, p.ForumID)
	if err != nil {
		return models.Post{}, err
	}
	if !forumpolicy.CanModerate(v, f) {
		return models.Post{}, apperr.ErrNotManager
	}

	var out models.Post
	err = s.inTxn(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.posts.SetStatus(ctx, id, models.ContentPending, to, v.ID)
		if errors.Is(err, poststore.ErrStatusChanged) {
			return apperr.ErrNotPending
		}
		if err != nil {
			return err
		}
		target := models.Target{PostID: ref(p.ID), ForumID: p.ForumID}
		if err := s.notify.Withdraw(ctx, models.NotifyPostPendingApproval, p.AuthorID, target); err != nil {
			return err
		}
		return s.notify.Enqueue(ctx, notify.Intent{
			Kind:       kind,
			Sender:     v.ID,
			Recipients: []primitive.ObjectID{p.AuthorID},
			Target:     target,
		}, 0)
	})
	if err != nil {
		return models.Post{}, err
	}
	return out, nil
}

// DeletePost removes a post with its comments, favorites and
// notifications. The author, a forum manager or an admin may delete.
func (s *Service) DeletePost(ctx context.Context, v authz.Viewer, id primitive.ObjectID) error {
	if v.Anonymous() {
		return apperr.ErrUnauthenticated
	}
	p, err := s.posts.GetByID(ctx, id)
	if errors.Is(err, poststore.ErrNotFound) {
		return apperr.ErrPostNotFound
	}
	if err != nil {
		return err
	}
	f, err := s.forumOrNil(ctx, p.ForumID)
	if err != nil {
		return err
	}
	if !forumpolicy.CanDeleteContent(v, p.AuthorID, f) {
		return apperr.ErrForbidden
	}
	return s.inTxn(ctx, func(ctx context.Context) error {
		if err := s.posts.Delete(ctx, id); err != nil {
			if errors.Is(err, poststore.ErrNotFound) {
				return apperr.ErrPostNotFound
			}
			return err
		}
		return s.dropPosts(ctx, []primitive.ObjectID{id})
	})
}

// Like adds the viewer to a visible post's likes and tells its author.
func (s *Service) Like(ctx context.Context, v authz.Viewer, postID primitive.ObjectID) error {
	if v.Anonymous() {
		return apperr.ErrUnauthenticated
	}
	p, err := s.GetPost(ctx, v, postID)
	if err != nil {
		return err
	}
	return s.inTxn(ctx, func(ctx context.Context) error {
		changed, err := s.posts.Like(ctx, postID, v.ID)
		if err != nil {
			return s.postErr(err)
		}
		if !changed {
			return apperr.ErrAlreadyLiked
		}
		return s.notify.Enqueue(ctx, notify.Intent{
			Kind:       models.NotifyPostLiked,
			Sender:     v.ID,
			Recipients: []primitive.ObjectID{p.AuthorID},
			Target:     models.Target{PostID: ref(p.ID)},
		}, 0)
	})
}

// Unlike removes the viewer's like and withdraws its notification. It is
// a no-op when the viewer had not liked the post.
func (s *Service) Unlike(ctx context.Context, v authz.Viewer, postID primitive.ObjectID) error {
	if v.Anonymous() {
		return apperr.ErrUnauthenticated
	}
	return s.inTxn(ctx, func(ctx context.Context) error {
		if _, err := s.posts.Unlike(ctx, postID, v.ID); err != nil {
			return s.postErr(err)
		}
		return s.notify.Withdraw(ctx, models.NotifyPostLiked, v.ID, models.Target{PostID: ref(postID)})
	})
}

// IsLiked reports whether the viewer likes the post.
func (s *Service) IsLiked(ctx context.Context, v authz.Viewer, postID primitive.ObjectID) (bool, error) {
	if v.Anonymous() {
		return false, nil
	}
	return s.posts.IsLiked(ctx, postID, v.ID)
}

func (s *Service) postErr(err error) error {
	if errors.Is(err, poststore.ErrNotFound) {
		return apperr.ErrPostNotFound
	}
	return err
}

package content

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/campushub/internal/app/policy/forumpolicy"
	"github.com/dalemusser/campushub/internal/app/services/notify"
	commentstore "github.com/dalemusser/campushub/internal/app/store/comments"
	"github.com/dalemusser/campushub/internal/app/system/apperr"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/campushub/internal/app/system/paging"
	"github.com/dalemusser/campushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AddComment comments on a visible post and tells the post author.
func (s *Service) AddComment(ctx context.Context, v authz.Viewer, postID primitive.ObjectID, content string) (models.Comment, error) {
	if v.Anonymous() {
		return models.Comment{}, apperr.ErrUnauthenticated
	}
	body := htmlsanitize.Body(content)
	if strings.TrimSpace(htmlsanitize.Text(body)) == "" {
		return models.Comment{}, errEmptyComment
	}
	p, err := s.GetPost(ctx, v, postID)
	if err != nil {
		return models.Comment{}, err
	}

	var out models.Comment
	err = s.inTxn(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.comments.Create(ctx, models.Comment{PostID: p.ID, AuthorID: v.ID, Content: body})
		if err != nil {
			return err
		}
		if err := s.posts.AddComment(ctx, p.ID, out.ID); err != nil {
			return s.postErr(err)
		}
		return s.notify.Enqueue(ctx, notify.Intent{
			Kind:       models.NotifyPostCommented,
			Sender:     v.ID,
			Recipients: []primitive.ObjectID{p.AuthorID},
			Target:     models.Target{PostID: ref(p.ID), CommentID: ref(out.ID)},
		}, 0)
	})
	if err != nil {
		return models.Comment{}, err
	}
	return out, nil
}

// Comments lists a visible post's comments, oldest first.
func (s *Service) Comments(ctx context.Context, v authz.Viewer, postID primitive.ObjectID, ks paging.Keyset) (paging.Page[models.Comment], error) {
	if _, err := s.GetPost(ctx, v, postID); err != nil {
		return paging.Page[models.Comment]{}, err
	}
	rows, hasNext, err := s.comments.ListByPost(ctx, postID, ks)
	if err != nil {
		return paging.Page[models.Comment]{}, err
	}
	page := paging.Page[models.Comment]{Items: rows}
	if len(rows) > 0 {
		page.NextCursor = paging.NextCursor(hasNext, "", rows[len(rows)-1].ID)
	}
	return page, nil
}

// DeleteComment removes a comment. The comment author, the post author or
// an admin may delete it.
func (s *Service) DeleteComment(ctx context.Context, v authz.Viewer, commentID primitive.ObjectID) error {
	if v.Anonymous() {
		return apperr.ErrUnauthenticated
	}
	c, err := s.comments.GetByID(ctx, commentID)
	if errors.Is(err, commentstore.ErrNotFound) {
		return apperr.ErrCommentNotFound
	}
	if err != nil {
		return err
	}
	p, err := s.posts.GetByID(ctx, c.PostID)
	if err != nil {
		return s.postErr(err)
	}
	if !forumpolicy.CanDeleteComment(v, c, p) {
		return apperr.ErrForbidden
	}
	return s.inTxn(ctx, func(ctx context.Context) error {
		if err := s.comments.Delete(ctx, commentID); err != nil {
			if errors.Is(err, commentstore.ErrNotFound) {
				return apperr.ErrCommentNotFound
			}
			return err
		}
		if err := s.posts.RemoveComment(ctx, p.ID, commentID); err != nil {
			return s.postErr(err)
		}
		return s.notify.Forget(ctx, "comment_id", []primitive.ObjectID{commentID})
	})
}

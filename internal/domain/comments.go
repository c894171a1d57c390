package domain

import (
	"context"
	"fmt"
	"strings"
)

// AddComment creates a comment on a post. The parent post must exist, the
// body must be non-empty, and the operation is rate limited per user. The
// post's comment count is incremented by the store in the same operation
// that inserts the comment.
func (s *Service) AddComment(ctx context.Context, actorID, postID, body string) (*Comment, error) {
	if err := s.limiter.Admit(ctx, actorID, ActionCommentAdd); err != nil {
		return nil, err
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: comment is required", ErrValidation)
	}

	if _, err := s.posts.GetPost(ctx, postID); err != nil {
		return nil, err
	}

	comment := &Comment{
		ID:        s.newID(),
		PostID:    postID,
		UserID:    actorID,
		Body:      body,
		CreatedAt: s.now().UTC(),
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	s.publish("comment.added", actorID, postID, "", 0)
	return comment, nil
}

// PostComments lists all comments on a post, newest first.
func (s *Service) PostComments(ctx context.Context, postID string) ([]Comment, error) {
	if _, err := s.posts.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	return s.comments.ListComments(ctx, postID)
}

// MyComments lists the actor's own comments on a post, newest first.
func (s *Service) MyComments(ctx context.Context, actorID, postID string) ([]Comment, error) {
	return s.comments.ListUserComments(ctx, postID, actorID)
}

// DeleteComment removes a comment. Permitted for the comment's author or the
// owner of the parent post. The post's comment count is decremented by the
// store in the same operation, floored at zero. A missing comment or a
// missing parent post is ErrNotFound.
func (s *Service) DeleteComment(ctx context.Context, actorID, commentID string) error {
	comment, err := s.comments.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	post, err := s.posts.GetPost(ctx, comment.PostID)
	if err != nil {
		return err
	}
	if err := s.guard.CanDeleteComment(actorID, comment, post); err != nil {
		return err
	}

	if err := s.comments.DeleteComment(ctx, commentID); err != nil {
		return err
	}

	s.publish("comment.deleted", actorID, comment.PostID, "", 0)
	return nil
}

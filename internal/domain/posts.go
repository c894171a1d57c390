package domain

import (
	"context"
	"fmt"
	"strings"
)

// CreatePost publishes a new post. The image is required and is stored
// through the blob store before the post is persisted. Post creation is rate
// limited per user.
func (s *Service) CreatePost(ctx context.Context, actorID, title, description string, image []byte, imageType string) (*Post, error) {
	if err := s.limiter.Admit(ctx, actorID, ActionPostCreate); err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" || description == "" {
		return nil, fmt.Errorf("%w: title and description are required", ErrValidation)
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: image is required", ErrValidation)
	}

	imageURL, err := s.blobs.Store(ctx, image, imageType)
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	now := s.now().UTC()
	post := &Post{
		ID:          s.newID(),
		UserID:      actorID,
		Title:       title,
		Description: description,
		ImageURL:    imageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	s.logger.Info("post created", "post", post.ID, "user", actorID)
	return post, nil
}

// GetPost fetches a single post.
func (s *Service) GetPost(ctx context.Context, id string) (*Post, error) {
	return s.posts.GetPost(ctx, id)
}

// ListPosts returns one explore page, newest first, optionally filtered by a
// search term.
func (s *Service) ListPosts(ctx context.Context, search string, page, limit int) (*PostPage, error) {
	page, limit, offset := clampPage(page, limit)
	posts, total, err := s.posts.ListPosts(ctx, strings.TrimSpace(search), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return &PostPage{
		Posts:      posts,
		Page:       page,
		Limit:      limit,
		TotalPosts: total,
		TotalPages: totalPages(total, limit),
	}, nil
}

// MyPosts returns all posts authored by the actor, newest first.
func (s *Service) MyPosts(ctx context.Context, actorID string) ([]Post, error) {
	return s.posts.ListPostsByUser(ctx, actorID)
}

// Feed returns one page of posts authored by users the actor follows.
func (s *Service) Feed(ctx context.Context, actorID string, page, limit int) (*PostPage, error) {
	page, limit, offset := clampPage(page, limit)
	posts, total, err := s.posts.ListFeedPosts(ctx, actorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list feed posts: %w", err)
	}
	return &PostPage{
		Posts:      posts,
		Page:       page,
		Limit:      limit,
		TotalPosts: total,
		TotalPages: totalPages(total, limit),
	}, nil
}

// UpdatePost edits a post's fields. Only the owner may update; empty title
// and description leave the current values, and a nil image keeps the
// current one.
func (s *Service) UpdatePost(ctx context.Context, actorID, postID, title, description string, image []byte, imageType string) (*Post, error) {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanMutatePost(actorID, post); err != nil {
		return nil, err
	}

	if t := strings.TrimSpace(title); t != "" {
		post.Title = t
	}
	if d := strings.TrimSpace(description); d != "" {
		post.Description = d
	}
	if len(image) > 0 {
		imageURL, err := s.blobs.Store(ctx, image, imageType)
		if err != nil {
			return nil, fmt.Errorf("store image: %w", err)
		}
		post.ImageURL = imageURL
	}
	post.UpdatedAt = s.now().UTC()

	if err := s.posts.UpdatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	return post, nil
}

// DeletePost removes a post and everything hanging off it. Only the owner
// may delete; deleting an absent post is ErrNotFound, not success.
func (s *Service) DeletePost(ctx context.Context, actorID, postID string) error {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if err := s.guard.CanMutatePost(actorID, post); err != nil {
		return err
	}
	if err := s.posts.DeletePost(ctx, postID); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	s.logger.Info("post deleted", "post", postID, "user", actorID)
	return nil
}

// ToggleLike flips the actor's membership in the post's like set. The like
// count moves with the set in the same store operation, so it always equals
// the set's cardinality.
func (s *Service) ToggleLike(ctx context.Context, actorID, postID string) (ToggleResult, error) {
	if err := s.limiter.Admit(ctx, actorID, ActionLikeToggle); err != nil {
		return ToggleResult{}, err
	}

	res, err := s.posts.ToggleLike(ctx, postID, actorID)
	if err != nil {
		return ToggleResult{}, err
	}

	kind := "post.unliked"
	if res.Active {
		kind = "post.liked"
	}
	s.publish(kind, actorID, postID, "", res.Count)
	return res, nil
}

// ToggleSave flips the post in the actor's saved set.
func (s *Service) ToggleSave(ctx context.Context, actorID, postID string) (ToggleResult, error) {
	if err := s.limiter.Admit(ctx, actorID, ActionSaveToggle); err != nil {
		return ToggleResult{}, err
	}

	res, err := s.users.ToggleSave(ctx, actorID, postID)
	if err != nil {
		return ToggleResult{}, err
	}

	kind := "post.unsaved"
	if res.Active {
		kind = "post.saved"
	}
	s.publish(kind, actorID, postID, "", res.Count)
	return res, nil
}

// PostLikers lists the users who like a post, plus the like count.
func (s *Service) PostLikers(ctx context.Context, postID string) ([]UserRef, int, error) {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, 0, err
	}
	likers, err := s.posts.PostLikers(ctx, postID)
	if err != nil {
		return nil, 0, fmt.Errorf("list likers: %w", err)
	}
	return likers, post.LikeCount, nil
}

// SavedPosts lists the actor's saved posts.
func (s *Service) SavedPosts(ctx context.Context, actorID string) ([]Post, error) {
	return s.users.SavedPosts(ctx, actorID)
}

// LikedPosts lists the posts the actor has liked.
func (s *Service) LikedPosts(ctx context.Context, actorID string) ([]Post, error) {
	return s.posts.ListLikedPosts(ctx, actorID)
}

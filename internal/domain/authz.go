package domain

import "fmt"

// Guard decides whether an actor may mutate a resource. Rules are
// ownership-based and differ per resource kind. Denials are ErrForbidden,
// always distinct from ErrNotFound: the caller resolves the resource first,
// so a missing resource never reaches the guard.
type Guard struct{}

// CanMutatePost allows post update/delete only for the post's owner.
func (Guard) CanMutatePost(actorID string, post *Post) error {
	if actorID != post.UserID {
		return fmt.Errorf("%w: not the post owner", ErrForbidden)
	}
	return nil
}

// CanDeleteComment allows comment deletion by the comment's author or by the
// owner of the post it belongs to (moderating their own post).
func (Guard) CanDeleteComment(actorID string, comment *Comment, post *Post) error {
	if actorID == comment.UserID || actorID == post.UserID {
		return nil
	}
	return fmt.Errorf("%w: not the comment author or post owner", ErrForbidden)
}

// CanMutateProfile allows profile update/delete only for the account itself.
func (Guard) CanMutateProfile(actorID, targetUserID string) error {
	if actorID != targetUserID {
		return fmt.Errorf("%w: not your account", ErrForbidden)
	}
	return nil
}

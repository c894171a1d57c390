package domain

import "context"

// UserRepository defines persistence operations for accounts and the
// user-owned relation sets (following, saved posts).
type UserRepository interface {
	// CreateUser inserts a new account. Duplicate username or email is a
	// Validation error.
	CreateUser(ctx context.Context, user *User) error

	// GetUser fetches an account by id. Absent accounts are ErrNotFound.
	GetUser(ctx context.Context, id string) (*User, error)

	// GetUserByUsername fetches an account by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetUserByEmail fetches an account by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// UpdateUser persists profile field changes.
	UpdateUser(ctx context.Context, user *User) error

	// DeleteUser removes the account and everything it owns (posts,
	// comments, relation rows, sessions), reconciling denormalized counters
	// on surviving posts in the same operation.
	DeleteUser(ctx context.Context, id string) error

	// Followers lists the users following id.
	Followers(ctx context.Context, id string) ([]UserRef, error)

	// Following lists the users id follows.
	Following(ctx context.Context, id string) ([]UserRef, error)

	// ToggleFollow flips the follower->followee edge as one atomic
	// operation. Count in the result is the followee's follower count after
	// the flip.
	ToggleFollow(ctx context.Context, followerID, followeeID string) (ToggleResult, error)

	// ToggleSave flips postID in userID's saved set. Count is the user's
	// saved-post count after the flip.
	ToggleSave(ctx context.Context, userID, postID string) (ToggleResult, error)

	// SavedPosts lists the posts userID has saved, most recently saved first.
	SavedPosts(ctx context.Context, userID string) ([]Post, error)
}

// PostRepository defines persistence operations for posts and their like set.
type PostRepository interface {
	CreatePost(ctx context.Context, post *Post) error

	// GetPost fetches a post with its author populated.
	GetPost(ctx context.Context, id string) (*Post, error)

	UpdatePost(ctx context.Context, post *Post) error

	// DeletePost removes the post and its comments, likes, and saves.
	DeletePost(ctx context.Context, id string) error

	// ListPosts returns one page of posts, newest first, optionally
	// filtered by a search term, plus the unpaginated total.
	ListPosts(ctx context.Context, search string, limit, offset int) ([]Post, int, error)

	// ListPostsByUser returns all posts by one author, newest first.
	ListPostsByUser(ctx context.Context, userID string) ([]Post, error)

	// ListFeedPosts returns one page of posts authored by users that
	// userID follows, newest first, plus the unpaginated total.
	ListFeedPosts(ctx context.Context, userID string, limit, offset int) ([]Post, int, error)

	// ListLikedPosts returns all posts userID has liked, newest first.
	ListLikedPosts(ctx context.Context, userID string) ([]Post, error)

	// ToggleLike flips userID in the post's like set and moves like_count
	// with it in the same atomic operation. Count is the like count after
	// the flip.
	ToggleLike(ctx context.Context, postID, userID string) (ToggleResult, error)

	// PostLikers lists the users who like the post.
	PostLikers(ctx context.Context, postID string) ([]UserRef, error)
}

// CommentRepository defines persistence operations for comments. Creating or
// deleting a comment adjusts the parent post's comment_count in the same
// atomic operation, never as a separate step.
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *Comment) error
	GetComment(ctx context.Context, id string) (*Comment, error)
	DeleteComment(ctx context.Context, id string) error
	ListComments(ctx context.Context, postID string) ([]Comment, error)
	ListUserComments(ctx context.Context, postID, userID string) ([]Comment, error)
}

// RateWindowRepository defines persistence for rate windows.
type RateWindowRepository interface {
	// GetWindow fetches the window for (userID, action); ErrNotFound if the
	// pair has never acted.
	GetWindow(ctx context.Context, userID, action string) (*RateWindow, error)

	// PutWindow upserts the window.
	PutWindow(ctx context.Context, window *RateWindow) error
}

// SessionRepository defines persistence for bearer sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, token string) (*Session, error)
	DeleteSession(ctx context.Context, token string) error
}

// BlobStore stores raw image bytes and returns a URL. The service treats the
// URL as an opaque string.
type BlobStore interface {
	Store(ctx context.Context, data []byte, contentType string) (string, error)
}

// EventPublisher receives engagement events for realtime fan-out. Publish
// must not block the request path.
type EventPublisher interface {
	Publish(event Event)
}

package domain

import "time"

// User is a registered account. PasswordHash is a bcrypt hash and must never
// leave the backend.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string

	// ProfilePic is the blob-store URL of the avatar, empty if unset.
	ProfilePic string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserRef is the slim user view embedded in posts, comments, and relation
// listings.
type UserRef struct {
	ID         string
	Username   string
	ProfilePic string
}

// Ref returns the slim view of a user.
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username, ProfilePic: u.ProfilePic}
}

// Profile is the public view of a user: the account minus credentials, with
// relation sets expanded. Follower and following counts are always derived
// from the sets, never cached separately.
type Profile struct {
	User      UserRef
	Followers []UserRef
	Following []UserRef
}

// Post is a published post. UserID is fixed at creation and determines
// update/delete rights. LikeCount and CommentCount are denormalized
// aggregates kept in sync with the underlying relation rows by the store.
type Post struct {
	ID          string
	UserID      string
	Title       string
	Description string
	ImageURL    string

	LikeCount    int
	CommentCount int

	CreatedAt time.Time
	UpdatedAt time.Time

	// Author is populated on reads, nil on writes.
	Author *UserRef
}

// Comment is a comment on a post. UserID (the author) is immutable.
type Comment struct {
	ID        string
	PostID    string
	UserID    string
	Body      string
	CreatedAt time.Time

	// Author is populated on reads, nil on writes.
	Author *UserRef
}

// RateWindow is the persisted fixed-window state for one (user, action)
// pair. Windows are created lazily on first action and superseded in place;
// they are never explicitly deleted.
type RateWindow struct {
	UserID      string
	Action      string
	WindowStart time.Time
	Count       int
}

// Session is an opaque bearer token bound to a user.
type Session struct {
	Token     string
	UserID    string
	CreatedAt time.Time
}

// ToggleResult reports the outcome of a membership flip. Active is whether
// the member is in the set after the flip; Count is the relation-specific
// aggregate after the flip (like count, follower count, saved-post count).
type ToggleResult struct {
	Active bool
	Count  int
}

// PostPage is one page of a paginated post listing.
type PostPage struct {
	Posts      []Post
	Page       int
	Limit      int
	TotalPosts int
	TotalPages int
}

// Event is an engagement notification fanned out to realtime subscribers.
type Event struct {
	// Kind is one of "post.liked", "post.unliked", "post.saved",
	// "post.unsaved", "comment.added", "comment.deleted", "user.followed",
	// "user.unfollowed".
	Kind string

	ActorID  string
	PostID   string
	TargetID string
	Count    int
	At       time.Time
}

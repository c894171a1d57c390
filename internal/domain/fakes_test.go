package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// memStore is an in-memory stand-in for the document store. It implements
// every repository port with the same atomicity guarantees the real backends
// provide: relation flips and counter moves happen under one lock.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*User
	posts    map[string]*Post
	comments map[string]*Comment
	sessions map[string]*Session
	windows  map[string]*RateWindow
	likes    map[string]map[string]bool // post -> user set
	saves    map[string]map[string]bool // user -> post set
	follows  map[string]map[string]bool // follower -> followee set

	windowsDown bool // simulate a rate-window store outage
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*User),
		posts:    make(map[string]*Post),
		comments: make(map[string]*Comment),
		sessions: make(map[string]*Session),
		windows:  make(map[string]*RateWindow),
		likes:    make(map[string]map[string]bool),
		saves:    make(map[string]map[string]bool),
		follows:  make(map[string]map[string]bool),
	}
}

func (m *memStore) CreateUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return fmt.Errorf("%w: duplicate user", ErrValidation)
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) GetUser(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("username %s: %w", username, ErrNotFound)
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("email %s: %w", email, ErrNotFound)
}

func (m *memStore) UpdateUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return fmt.Errorf("user %s: %w", u.ID, ErrNotFound)
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	// Reconcile counters on surviving posts before dropping the user's rows.
	for cid, c := range m.comments {
		if c.UserID != id {
			continue
		}
		if p, ok := m.posts[c.PostID]; ok && p.CommentCount > 0 {
			p.CommentCount--
		}
		delete(m.comments, cid)
	}
	for postID, set := range m.likes {
		if set[id] {
			delete(set, id)
			if p, ok := m.posts[postID]; ok && p.LikeCount > 0 {
				p.LikeCount--
			}
		}
	}

	for pid, p := range m.posts {
		if p.UserID == id {
			m.deletePostLocked(pid)
		}
	}
	delete(m.saves, id)
	delete(m.follows, id)
	for _, set := range m.follows {
		delete(set, id)
	}
	for token, sess := range m.sessions {
		if sess.UserID == id {
			delete(m.sessions, token)
		}
	}
	delete(m.users, id)
	return nil
}

func (m *memStore) Followers(_ context.Context, id string) ([]UserRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var refs []UserRef
	for follower, set := range m.follows {
		if set[id] {
			if u, ok := m.users[follower]; ok {
				refs = append(refs, u.Ref())
			}
		}
	}
	return refs, nil
}

func (m *memStore) Following(_ context.Context, id string) ([]UserRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var refs []UserRef
	for followee := range m.follows[id] {
		if u, ok := m.users[followee]; ok {
			refs = append(refs, u.Ref())
		}
	}
	return refs, nil
}

func (m *memStore) ToggleFollow(_ context.Context, followerID, followeeID string) (ToggleResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[followeeID]; !ok {
		return ToggleResult{}, fmt.Errorf("user %s: %w", followeeID, ErrNotFound)
	}
	set := m.follows[followerID]
	if set == nil {
		set = make(map[string]bool)
		m.follows[followerID] = set
	}
	active := !set[followeeID]
	if active {
		set[followeeID] = true
	} else {
		delete(set, followeeID)
	}
	count := 0
	for _, s := range m.follows {
		if s[followeeID] {
			count++
		}
	}
	return ToggleResult{Active: active, Count: count}, nil
}

func (m *memStore) ToggleSave(_ context.Context, userID, postID string) (ToggleResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[postID]; !ok {
		return ToggleResult{}, fmt.Errorf("post %s: %w", postID, ErrNotFound)
	}
	set := m.saves[userID]
	if set == nil {
		set = make(map[string]bool)
		m.saves[userID] = set
	}
	active := !set[postID]
	if active {
		set[postID] = true
	} else {
		delete(set, postID)
	}
	return ToggleResult{Active: active, Count: len(set)}, nil
}

func (m *memStore) SavedPosts(_ context.Context, userID string) ([]Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var posts []Post
	for pid := range m.saves[userID] {
		if p, ok := m.posts[pid]; ok {
			posts = append(posts, *p)
		}
	}
	return posts, nil
}

func (m *memStore) CreatePost(_ context.Context, p *Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.posts[p.ID] = &cp
	return nil
}

func (m *memStore) GetPost(_ context.Context, id string) (*Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	cp := *p
	if u, ok := m.users[p.UserID]; ok {
		ref := u.Ref()
		cp.Author = &ref
	}
	return &cp, nil
}

func (m *memStore) UpdatePost(_ context.Context, p *Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[p.ID]; !ok {
		return fmt.Errorf("post %s: %w", p.ID, ErrNotFound)
	}
	cp := *p
	cp.Author = nil
	m.posts[p.ID] = &cp
	return nil
}

func (m *memStore) DeletePost(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	m.deletePostLocked(id)
	return nil
}

func (m *memStore) deletePostLocked(id string) {
	delete(m.posts, id)
	delete(m.likes, id)
	for cid, c := range m.comments {
		if c.PostID == id {
			delete(m.comments, cid)
		}
	}
	for _, set := range m.saves {
		delete(set, id)
	}
}

func (m *memStore) sortedPosts(match func(*Post) bool) []Post {
	var posts []Post
	for _, p := range m.posts {
		if match(p) {
			posts = append(posts, *p)
		}
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	return posts
}

func page(posts []Post, limit, offset int) []Post {
	if offset >= len(posts) {
		return nil
	}
	end := offset + limit
	if end > len(posts) {
		end = len(posts)
	}
	return posts[offset:end]
}

func (m *memStore) ListPosts(_ context.Context, search string, limit, offset int) ([]Post, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(search)
	posts := m.sortedPosts(func(p *Post) bool {
		return q == "" ||
			strings.Contains(strings.ToLower(p.Title), q) ||
			strings.Contains(strings.ToLower(p.Description), q)
	})
	return page(posts, limit, offset), len(posts), nil
}

func (m *memStore) ListPostsByUser(_ context.Context, userID string) ([]Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedPosts(func(p *Post) bool { return p.UserID == userID }), nil
}

func (m *memStore) ListFeedPosts(_ context.Context, userID string, limit, offset int) ([]Post, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	followed := m.follows[userID]
	posts := m.sortedPosts(func(p *Post) bool { return followed[p.UserID] })
	return page(posts, limit, offset), len(posts), nil
}

func (m *memStore) ListLikedPosts(_ context.Context, userID string) ([]Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedPosts(func(p *Post) bool { return m.likes[p.ID][userID] }), nil
}

func (m *memStore) ToggleLike(_ context.Context, postID, userID string) (ToggleResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[postID]
	if !ok {
		return ToggleResult{}, fmt.Errorf("post %s: %w", postID, ErrNotFound)
	}
	set := m.likes[postID]
	if set == nil {
		set = make(map[string]bool)
		m.likes[postID] = set
	}
	active := !set[userID]
	if active {
		set[userID] = true
	} else {
		delete(set, userID)
	}
	p.LikeCount = len(set)
	return ToggleResult{Active: active, Count: p.LikeCount}, nil
}

func (m *memStore) PostLikers(_ context.Context, postID string) ([]UserRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var refs []UserRef
	for uid := range m.likes[postID] {
		if u, ok := m.users[uid]; ok {
			refs = append(refs, u.Ref())
		}
	}
	return refs, nil
}

func (m *memStore) CreateComment(_ context.Context, c *Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[c.PostID]
	if !ok {
		return fmt.Errorf("post %s: %w", c.PostID, ErrNotFound)
	}
	cp := *c
	m.comments[c.ID] = &cp
	p.CommentCount++
	return nil
}

func (m *memStore) GetComment(_ context.Context, id string) (*Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) DeleteComment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}
	delete(m.comments, id)
	if p, ok := m.posts[c.PostID]; ok && p.CommentCount > 0 {
		p.CommentCount--
	}
	return nil
}

func (m *memStore) ListComments(_ context.Context, postID string) ([]Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Comment
	for _, c := range m.comments {
		if c.PostID == postID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) ListUserComments(_ context.Context, postID, userID string) ([]Comment, error) {
	all, _ := m.ListComments(context.Background(), postID)
	var out []Comment
	for _, c := range all {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) GetWindow(_ context.Context, userID, action string) (*RateWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.windowsDown {
		return nil, errors.New("window store down")
	}
	w, ok := m.windows[userID+"|"+action]
	if !ok {
		return nil, fmt.Errorf("window: %w", ErrNotFound)
	}
	cp := *w
	return &cp, nil
}

func (m *memStore) PutWindow(_ context.Context, w *RateWindow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.windowsDown {
		return errors.New("window store down")
	}
	cp := *w
	m.windows[w.UserID+"|"+w.Action] = &cp
	return nil
}

func (m *memStore) CreateSession(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.Token] = &cp
	return nil
}

func (m *memStore) GetSession(_ context.Context, token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, fmt.Errorf("session: %w", ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) DeleteSession(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[token]; !ok {
		return fmt.Errorf("session: %w", ErrNotFound)
	}
	delete(m.sessions, token)
	return nil
}

type fakeBlobs struct{ n int }

func (f *fakeBlobs) Store(_ context.Context, data []byte, _ string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty blob", ErrValidation)
	}
	f.n++
	return fmt.Sprintf("https://blobs.test/%d", f.n), nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []Event
}

func (c *capturePublisher) Publish(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *capturePublisher) kinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Kind
	}
	return out
}

var testTime = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestService(store *memStore) (*Service, *capturePublisher) {
	pub := &capturePublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(store, store, store, store, store, &fakeBlobs{}, pub, logger)
	svc.now = func() time.Time { return testTime }
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("id-%04d", n)
	}
	return svc, pub
}

// seedUser inserts a user directly into the store.
func seedUser(store *memStore, id, username string) *User {
	u := &User{
		ID:           id,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		CreatedAt:    testTime,
		UpdatedAt:    testTime,
	}
	store.CreateUser(context.Background(), u)
	return u
}

// seedPost inserts a post directly into the store.
func seedPost(store *memStore, id, userID string, at time.Time) *Post {
	p := &Post{
		ID:          id,
		UserID:      userID,
		Title:       "title " + id,
		Description: "description " + id,
		ImageURL:    "https://blobs.test/seed/" + id,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	store.CreatePost(context.Background(), p)
	return p
}

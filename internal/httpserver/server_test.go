package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"thoughtbox/internal/blob"
	"thoughtbox/internal/domain"
	"thoughtbox/internal/events"
	"thoughtbox/internal/sqlite"
)

// testEnv wires a Server to a real in-memory database so handler tests cover
// the full path from HTTP to SQL.
type testEnv struct {
	t   *testing.T
	srv *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	repo, err := sqlite.NewRepository(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	blobs, err := blob.NewFileStore(t.TempDir(), "http://localhost/uploads")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	hub := events.NewHub(logger)
	t.Cleanup(hub.Close)

	svc := domain.NewService(repo, repo, repo, repo, repo, blobs, hub, logger)
	server := NewServer(0, svc, hub, logger, Options{})

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{t: t, srv: srv}
}

// do sends a JSON request and decodes the response body into out (unless nil).
func (e *testEnv) do(method, path, token string, body, out any) *http.Response {
	e.t.Helper()

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, reqBody)
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		e.t.Fatalf("read body: %v", err)
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			e.t.Fatalf("unmarshal %s %s response %q: %v", method, path, raw, err)
		}
	}
	return resp
}

func (e *testEnv) register(username string) (token, userID string) {
	e.t.Helper()
	var session sessionView
	resp := e.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "hunter22",
	}, &session)
	if resp.StatusCode != http.StatusCreated {
		e.t.Fatalf("register %s: status %d", username, resp.StatusCode)
	}
	return session.Token, session.User.ID
}

func (e *testEnv) createPost(token, title string) postView {
	e.t.Helper()
	var post postView
	resp := e.do(http.MethodPost, "/api/posts", token, map[string]any{
		"title":       title,
		"description": "about " + title,
		"image":       []byte{0x89, 0x50, 0x4e, 0x47},
		"imageType":   "image/png",
	}, &post)
	if resp.StatusCode != http.StatusCreated {
		e.t.Fatalf("create post: status %d", resp.StatusCode)
	}
	return post
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)

	token, _ := env.register("alice")

	var me userView
	if resp := env.do(http.MethodGet, "/api/auth/me", token, nil, &me); resp.StatusCode != http.StatusOK {
		t.Fatalf("me: status %d", resp.StatusCode)
	}
	if me.Username != "alice" {
		t.Fatalf("username = %q", me.Username)
	}

	if resp := env.do(http.MethodPost, "/api/auth/logout", token, nil, nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout: status %d", resp.StatusCode)
	}
	if resp := env.do(http.MethodGet, "/api/auth/me", token, nil, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout: status %d", resp.StatusCode)
	}
	if resp := env.do(http.MethodGet, "/api/auth/me", "", nil, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me without token: status %d", resp.StatusCode)
	}
}

func TestPostLifecycle(t *testing.T) {
	env := newTestEnv(t)
	alice, _ := env.register("alice")
	bob, _ := env.register("bob")

	post := env.createPost(alice, "sunset")
	if post.LikeCount != 0 || post.CommentCount != 0 {
		t.Fatalf("new post counters = %d/%d", post.LikeCount, post.CommentCount)
	}

	// Bob may not edit Alice's post.
	resp := env.do(http.MethodPut, "/api/posts/"+post.ID, bob, map[string]string{"title": "stolen"}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign edit: status %d", resp.StatusCode)
	}

	var updated postView
	resp = env.do(http.MethodPut, "/api/posts/"+post.ID, alice, map[string]string{"title": "sunrise"}, &updated)
	if resp.StatusCode != http.StatusOK || updated.Title != "sunrise" {
		t.Fatalf("edit: status %d, title %q", resp.StatusCode, updated.Title)
	}
	if updated.Description != "about sunset" {
		t.Fatalf("partial update lost description: %q", updated.Description)
	}

	if resp := env.do(http.MethodDelete, "/api/posts/"+post.ID, bob, nil, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign delete: status %d", resp.StatusCode)
	}
	if resp := env.do(http.MethodDelete, "/api/posts/"+post.ID, alice, nil, nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}
	if resp := env.do(http.MethodDelete, "/api/posts/"+post.ID, alice, nil, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: status %d", resp.StatusCode)
	}
}

func TestLikeToggleRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	alice, _ := env.register("alice")
	bob, _ := env.register("bob")
	post := env.createPost(alice, "sunset")

	var res toggleView
	env.do(http.MethodPost, "/api/posts/"+post.ID+"/like", bob, nil, &res)
	if !res.Active || res.Count != 1 {
		t.Fatalf("like = %+v", res)
	}

	var likers struct {
		Likers    []refView `json:"likers"`
		LikeCount int       `json:"likeCount"`
	}
	env.do(http.MethodGet, "/api/posts/"+post.ID+"/likes", "", nil, &likers)
	if likers.LikeCount != 1 || len(likers.Likers) != 1 || likers.Likers[0].Username != "bob" {
		t.Fatalf("likers = %+v", likers)
	}

	env.do(http.MethodPost, "/api/posts/"+post.ID+"/like", bob, nil, &res)
	if res.Active || res.Count != 0 {
		t.Fatalf("unlike = %+v", res)
	}

	if resp := env.do(http.MethodPost, "/api/posts/missing/like", bob, nil, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("like missing post: status %d", resp.StatusCode)
	}
}

func TestCommentFlow(t *testing.T) {
	env := newTestEnv(t)
	alice, _ := env.register("alice")
	bob, _ := env.register("bob")
	carol, _ := env.register("carol")
	post := env.createPost(alice, "sunset")

	var comment commentView
	resp := env.do(http.MethodPost, "/api/posts/"+post.ID+"/comments", bob, map[string]string{"body": "nice"}, &comment)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("comment: status %d", resp.StatusCode)
	}

	var got postView
	env.do(http.MethodGet, "/api/posts/"+post.ID, "", nil, &got)
	if got.CommentCount != 1 {
		t.Fatalf("CommentCount = %d, want 1", got.CommentCount)
	}

	// A bystander cannot delete, the post owner can.
	if resp := env.do(http.MethodDelete, "/api/comments/"+comment.ID, carol, nil, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("bystander delete: status %d", resp.StatusCode)
	}
	if resp := env.do(http.MethodDelete, "/api/comments/"+comment.ID, alice, nil, nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("owner delete: status %d", resp.StatusCode)
	}
	if resp := env.do(http.MethodDelete, "/api/comments/"+comment.ID, alice, nil, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: status %d", resp.StatusCode)
	}

	env.do(http.MethodGet, "/api/posts/"+post.ID, "", nil, &got)
	if got.CommentCount != 0 {
		t.Fatalf("CommentCount = %d, want 0", got.CommentCount)
	}
}

func TestRateLimitReturns429(t *testing.T) {
	env := newTestEnv(t)
	alice, _ := env.register("alice")
	bob, _ := env.register("bob")
	post := env.createPost(alice, "sunset")

	// The like budget allows 5 toggles per window.
	for i := 0; i < 5; i++ {
		if resp := env.do(http.MethodPost, "/api/posts/"+post.ID+"/like", bob, nil, nil); resp.StatusCode != http.StatusOK {
			t.Fatalf("toggle %d: status %d", i, resp.StatusCode)
		}
	}
	resp := env.do(http.MethodPost, "/api/posts/"+post.ID+"/like", bob, nil, nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") != "60" {
		t.Fatalf("Retry-After = %q, want 60", resp.Header.Get("Retry-After"))
	}
}

func TestFollowAndProfile(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceID := env.register("alice")
	_, bobID := env.register("bob")

	var res toggleView
	env.do(http.MethodPost, "/api/users/"+bobID+"/follow", alice, nil, &res)
	if !res.Active || res.Count != 1 {
		t.Fatalf("follow = %+v", res)
	}

	// Self-follow is rejected as a bad request.
	if resp := env.do(http.MethodPost, "/api/users/"+aliceID+"/follow", alice, nil, nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("self-follow: status %d", resp.StatusCode)
	}

	var profile profileView
	env.do(http.MethodGet, "/api/users/"+bobID, "", nil, &profile)
	if len(profile.Followers) != 1 || profile.Followers[0].Username != "alice" {
		t.Fatalf("followers = %+v", profile.Followers)
	}

	env.do(http.MethodGet, "/api/users/"+aliceID, "", nil, &profile)
	if len(profile.Following) != 1 || profile.Following[0].Username != "bob" {
		t.Fatalf("following = %+v", profile.Following)
	}
}

func TestProfileUpdateIsSelfOnly(t *testing.T) {
	env := newTestEnv(t)
	_, aliceID := env.register("alice")
	bob, bobID := env.register("bob")

	resp := env.do(http.MethodPut, "/api/users/"+aliceID, bob, map[string]string{"username": "mallory"}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign update: status %d", resp.StatusCode)
	}

	var updated userView
	resp = env.do(http.MethodPut, "/api/users/"+bobID, bob, map[string]string{"username": "bobby"}, &updated)
	if resp.StatusCode != http.StatusOK || updated.Username != "bobby" {
		t.Fatalf("self update: status %d, username %q", resp.StatusCode, updated.Username)
	}

	if resp := env.do(http.MethodDelete, "/api/users/"+aliceID, bob, nil, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign account delete: status %d", resp.StatusCode)
	}
	if resp := env.do(http.MethodDelete, "/api/users/"+bobID, bob, nil, nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("self account delete: status %d", resp.StatusCode)
	}
}

func TestSearchAndPagination(t *testing.T) {
	env := newTestEnv(t)
	// Spread the posts across authors to stay inside each creation budget.
	for u := 0; u < 3; u++ {
		token, _ := env.register(fmt.Sprintf("author%d", u))
		for i := 0; i < 4; i++ {
			env.createPost(token, fmt.Sprintf("post %02d", u*4+i))
		}
	}

	var page pageView
	env.do(http.MethodGet, "/api/posts?limit=5", "", nil, &page)
	if page.TotalPosts != 12 || page.TotalPages != 3 || len(page.Posts) != 5 {
		t.Fatalf("page = %+v", page)
	}

	env.do(http.MethodGet, "/api/posts?search=post+07", "", nil, &page)
	if page.TotalPosts != 1 || page.Posts[0].Title != "post 07" {
		t.Fatalf("search = %+v", page)
	}
}

func TestSavedPosts(t *testing.T) {
	env := newTestEnv(t)
	alice, _ := env.register("alice")
	bob, _ := env.register("bob")
	post := env.createPost(alice, "sunset")

	env.do(http.MethodPost, "/api/posts/"+post.ID+"/save", bob, nil, nil)

	var saved []postView
	env.do(http.MethodGet, "/api/users/me/saved", bob, nil, &saved)
	if len(saved) != 1 || saved[0].ID != post.ID {
		t.Fatalf("saved = %+v", saved)
	}

	env.do(http.MethodPost, "/api/posts/"+post.ID+"/save", bob, nil, nil)
	env.do(http.MethodGet, "/api/users/me/saved", bob, nil, &saved)
	if len(saved) != 0 {
		t.Fatalf("saved after unsave = %+v", saved)
	}
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	env := newTestEnv(t)

	req, _ := http.NewRequest(http.MethodPost, env.srv.URL+"/api/auth/register", bytes.NewReader([]byte("{")))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"thoughtbox/internal/domain"
)

// --- views ---

type userView struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	ProfilePic string    `json:"profilePic,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type refView struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	ProfilePic string `json:"profilePic,omitempty"`
}

type postView struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ImageURL     string    `json:"imageUrl"`
	LikeCount    int       `json:"likeCount"`
	CommentCount int       `json:"commentCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Author       *refView  `json:"author,omitempty"`
}

type commentView struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	Author    *refView  `json:"author,omitempty"`
}

type pageView struct {
	Posts      []postView `json:"posts"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	TotalPosts int        `json:"totalPosts"`
	TotalPages int        `json:"totalPages"`
}

type toggleView struct {
	Active bool `json:"active"`
	Count  int  `json:"count"`
}

type sessionView struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

type profileView struct {
	User      refView    `json:"user"`
	Followers []refView  `json:"followers"`
	Following []refView  `json:"following"`
	Posts     []postView `json:"posts"`
}

func toUserView(u *domain.User) userView {
	return userView{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func toRefView(r domain.UserRef) refView {
	return refView{ID: r.ID, Username: r.Username, ProfilePic: r.ProfilePic}
}

func toRefViews(refs []domain.UserRef) []refView {
	out := make([]refView, len(refs))
	for i, r := range refs {
		out[i] = toRefView(r)
	}
	return out
}

func toPostView(p *domain.Post) postView {
	v := postView{
		ID:           p.ID,
		UserID:       p.UserID,
		Title:        p.Title,
		Description:  p.Description,
		ImageURL:     p.ImageURL,
		LikeCount:    p.LikeCount,
		CommentCount: p.CommentCount,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if p.Author != nil {
		a := toRefView(*p.Author)
		v.Author = &a
	}
	return v
}

func toPostViews(posts []domain.Post) []postView {
	out := make([]postView, len(posts))
	for i := range posts {
		out[i] = toPostView(&posts[i])
	}
	return out
}

func toCommentView(c *domain.Comment) commentView {
	v := commentView{
		ID:        c.ID,
		PostID:    c.PostID,
		UserID:    c.UserID,
		Body:      c.Body,
		CreatedAt: c.CreatedAt,
	}
	if c.Author != nil {
		a := toRefView(*c.Author)
		v.Author = &a
	}
	return v
}

func toCommentViews(comments []domain.Comment) []commentView {
	out := make([]commentView, len(comments))
	for i := range comments {
		out[i] = toCommentView(&comments[i])
	}
	return out
}

func toPageView(p *domain.PostPage) pageView {
	return pageView{
		Posts:      toPostViews(p.Posts),
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPosts: p.TotalPosts,
		TotalPages: p.TotalPages,
	}
}

func pageParams(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	return page, limit
}

// --- auth ---

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	user, token, err := s.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionView{Token: token, User: toUserView(user)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	user, token, err := s.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView{Token: token, User: toUserView(user)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := bearerToken(r)
	if err := s.svc.Logout(r.Context(), token); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toUserView(currentUser(r)))
}

// --- posts ---

type postRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       []byte `json:"image"`
	ImageType   string `json:"imageType"`
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	post, err := s.svc.CreatePost(r.Context(), currentUser(r).ID, req.Title, req.Description, req.Image, req.ImageType)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPostView(post))
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	result, err := s.svc.ListPosts(r.Context(), r.URL.Query().Get("search"), page, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageView(result))
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	result, err := s.svc.Feed(r.Context(), currentUser(r).ID, page, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageView(result))
}

func (s *Server) handleMyPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.svc.MyPosts(r.Context(), currentUser(r).ID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostViews(posts))
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.svc.GetPost(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostView(post))
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	post, err := s.svc.UpdatePost(r.Context(), currentUser(r).ID, r.PathValue("id"), req.Title, req.Description, req.Image, req.ImageType)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostView(post))
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeletePost(r.Context(), currentUser(r).ID, r.PathValue("id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.ToggleLike(r.Context(), currentUser(r).ID, r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleView(res))
}

func (s *Server) handleToggleSave(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.ToggleSave(r.Context(), currentUser(r).ID, r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleView(res))
}

func (s *Server) handlePostLikers(w http.ResponseWriter, r *http.Request) {
	likers, count, err := s.svc.PostLikers(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"likers":    toRefViews(likers),
		"likeCount": count,
	})
}

func (s *Server) handleSavedPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.svc.SavedPosts(r.Context(), currentUser(r).ID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostViews(posts))
}

func (s *Server) handleLikedPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.svc.LikedPosts(r.Context(), currentUser(r).ID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostViews(posts))
}

// --- comments ---

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Body string `json:"body"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	comment, err := s.svc.AddComment(r.Context(), currentUser(r).ID, r.PathValue("id"), req.Body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommentView(comment))
}

func (s *Server) handlePostComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.svc.PostComments(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommentViews(comments))
}

func (s *Server) handleMyComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.svc.MyComments(r.Context(), currentUser(r).ID, r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommentViews(comments))
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteComment(r.Context(), currentUser(r).ID, r.PathValue("id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- users ---

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, posts, err := s.svc.GetProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileView{
		User:      toRefView(profile.User),
		Followers: toRefViews(profile.Followers),
		Following: toRefViews(profile.Following),
		Posts:     toPostViews(posts),
	})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username   string `json:"username"`
		Email      string `json:"email"`
		Avatar     []byte `json:"avatar"`
		AvatarType string `json:"avatarType"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	user, err := s.svc.UpdateProfile(r.Context(), currentUser(r).ID, r.PathValue("id"), req.Username, req.Email, req.Avatar, req.AvatarType)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(user))
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteAccount(r.Context(), currentUser(r).ID, r.PathValue("id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleFollow(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.ToggleFollow(r.Context(), currentUser(r).ID, r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleView(res))
}

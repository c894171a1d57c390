// Package httpserver exposes the JSON API and the websocket event stream.
package httpserver

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"thoughtbox/internal/domain"
	"thoughtbox/internal/events"
)

// Server is the HTTP server that serves the JSON API.
type Server struct {
	svc        *domain.Service
	hub        *events.Hub
	logger     *slog.Logger
	httpServer *http.Server
}

// Options tunes optional server behavior.
type Options struct {
	// UploadDir, when non-empty, is served under /uploads/.
	UploadDir string
}

// NewServer creates a new HTTP server around the service. hub may be nil when
// the event stream is disabled.
func NewServer(port int, svc *domain.Service, hub *events.Hub, logger *slog.Logger, opts Options) *Server {
	s := &Server{
		svc:    svc,
		hub:    hub,
		logger: logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.authed(s.handleLogout))
	mux.HandleFunc("GET /api/auth/me", s.authed(s.handleMe))

	mux.HandleFunc("GET /api/posts", s.handleListPosts)
	mux.HandleFunc("POST /api/posts", s.authed(s.handleCreatePost))
	mux.HandleFunc("GET /api/posts/feed", s.authed(s.handleFeed))
	mux.HandleFunc("GET /api/posts/me", s.authed(s.handleMyPosts))
	mux.HandleFunc("GET /api/posts/{id}", s.handleGetPost)
	mux.HandleFunc("PUT /api/posts/{id}", s.authed(s.handleUpdatePost))
	mux.HandleFunc("DELETE /api/posts/{id}", s.authed(s.handleDeletePost))
	mux.HandleFunc("POST /api/posts/{id}/like", s.authed(s.handleToggleLike))
	mux.HandleFunc("POST /api/posts/{id}/save", s.authed(s.handleToggleSave))
	mux.HandleFunc("GET /api/posts/{id}/likes", s.handlePostLikers)

	mux.HandleFunc("GET /api/posts/{id}/comments", s.handlePostComments)
	mux.HandleFunc("GET /api/posts/{id}/comments/me", s.authed(s.handleMyComments))
	mux.HandleFunc("POST /api/posts/{id}/comments", s.authed(s.handleAddComment))
	mux.HandleFunc("DELETE /api/comments/{id}", s.authed(s.handleDeleteComment))

	mux.HandleFunc("GET /api/users/{id}", s.handleGetProfile)
	mux.HandleFunc("PUT /api/users/{id}", s.authed(s.handleUpdateProfile))
	mux.HandleFunc("DELETE /api/users/{id}", s.authed(s.handleDeleteAccount))
	mux.HandleFunc("POST /api/users/{id}/follow", s.authed(s.handleToggleFollow))
	mux.HandleFunc("GET /api/users/me/saved", s.authed(s.handleSavedPosts))
	mux.HandleFunc("GET /api/users/me/liked", s.authed(s.handleLikedPosts))

	if hub != nil {
		mux.HandleFunc("GET /ws/events", events.Handler(hub, logger))
	}
	if opts.UploadDir != "" {
		mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(opts.UploadDir))))
	}
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      withLogging(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the server's root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the underlying writer, which the
// websocket upgrade needs for hijacking.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

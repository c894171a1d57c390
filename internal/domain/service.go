package domain

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Default and maximum page sizes for post listings.
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Service is the core domain service. It owns the engagement logic (rate
// windows, relationship toggles, counter consistency, authorization) and the
// CRUD plumbing around it. All store access goes through the repository
// ports; no transport types cross this boundary.
type Service struct {
	users    UserRepository
	posts    PostRepository
	comments CommentRepository
	sessions SessionRepository
	limiter  *Limiter
	guard    Guard
	blobs    BlobStore
	events   EventPublisher
	logger   *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewService creates the domain service. A single repository value usually
// backs several of the repository ports.
func NewService(
	users UserRepository,
	posts PostRepository,
	comments CommentRepository,
	sessions SessionRepository,
	windows RateWindowRepository,
	blobs BlobStore,
	events EventPublisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		users:    users,
		posts:    posts,
		comments: comments,
		sessions: sessions,
		limiter:  NewLimiter(windows, logger),
		blobs:    blobs,
		events:   events,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// publish fans out an engagement event. The publisher is non-blocking and
// optional.
func (s *Service) publish(kind, actorID, postID, targetID string, count int) {
	if s.events == nil {
		return
	}
	s.events.Publish(Event{
		Kind:     kind,
		ActorID:  actorID,
		PostID:   postID,
		TargetID: targetID,
		Count:    count,
		At:       s.now().UTC(),
	})
}

// clampPage normalizes pagination inputs and returns (page, limit, offset).
func clampPage(page, limit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit, (page - 1) * limit
}

func totalPages(total, limit int) int {
	if total == 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Rate-limited action kinds. Each kind has an independent budget.
const (
	ActionPostCreate   = "post_create"
	ActionCommentAdd   = "comment_add"
	ActionLikeToggle   = "like_toggle"
	ActionSaveToggle   = "save_toggle"
	ActionFollowToggle = "follow_toggle"
)

// Default rate budget: 5 actions per 60 seconds per (user, action).
const (
	RateLimitMax    = 5
	RateLimitWindow = time.Minute
)

// Limiter admits or denies write actions using a per-(user, action) fixed
// window persisted through a RateWindowRepository.
//
// The window resets wholesale once its duration elapses, so a caller can
// burst up to twice the budget across a window boundary. That approximation
// is deliberate; callers must not assume strict rate smoothness.
//
// Throttling is best-effort protection, not a correctness guarantee: if the
// backing store is unavailable the limiter fails open and admits the action.
type Limiter struct {
	windows RateWindowRepository
	max     int
	window  time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewLimiter creates a Limiter with the default budget.
func NewLimiter(windows RateWindowRepository, logger *slog.Logger) *Limiter {
	return &Limiter{
		windows: windows,
		max:     RateLimitMax,
		window:  RateLimitWindow,
		logger:  logger,
		now:     time.Now,
	}
}

// Admit decides whether userID may perform action now. It returns nil when
// the action is allowed and ErrRateLimited when the current window is full.
// A denied check performs no writes.
func (l *Limiter) Admit(ctx context.Context, userID, action string) error {
	now := l.now().UTC()

	w, err := l.windows.GetWindow(ctx, userID, action)
	if err != nil && !errors.Is(err, ErrNotFound) {
		// Fail open: never block legitimate traffic on a store outage.
		l.logger.Warn("rate window read failed, admitting", "user", userID, "action", action, "error", err)
		return nil
	}

	if w == nil || errors.Is(err, ErrNotFound) {
		// First-ever action for this pair allocates a fresh window.
		w = &RateWindow{UserID: userID, Action: action, WindowStart: now, Count: 1}
		return l.put(ctx, w)
	}

	if now.Sub(w.WindowStart) >= l.window {
		w.WindowStart = now
		w.Count = 1
		return l.put(ctx, w)
	}

	if w.Count >= l.max {
		return fmt.Errorf("%w: %s", ErrRateLimited, action)
	}

	w.Count++
	return l.put(ctx, w)
}

func (l *Limiter) put(ctx context.Context, w *RateWindow) error {
	if err := l.windows.PutWindow(ctx, w); err != nil {
		l.logger.Warn("rate window write failed, admitting", "user", w.UserID, "action", w.Action, "error", err)
	}
	return nil
}

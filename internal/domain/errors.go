package domain

import "errors"

// Error kinds for user-facing outcomes. Callers classify with errors.Is; the
// HTTP layer maps each kind to a distinct status so a missing resource is
// never conflated with an unauthorized one.
var (
	// ErrNotFound means the referenced user, post, or comment does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the authorization guard denied the mutation.
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited means the rate window for this (user, action) is full.
	// The caller may retry after the window duration.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrValidation means the request itself is malformed (self-follow,
	// empty comment, bad username).
	ErrValidation = errors.New("validation failed")

	// ErrUnavailable means a backing dependency (store, blob store) failed.
	ErrUnavailable = errors.New("dependency unavailable")
)

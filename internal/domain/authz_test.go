package domain

import (
	"errors"
	"testing"
)

func TestGuard_PostMutation(t *testing.T) {
	var g Guard
	post := &Post{ID: "p1", UserID: "owner"}

	if err := g.CanMutatePost("owner", post); err != nil {
		t.Fatalf("owner should mutate: %v", err)
	}
	if err := g.CanMutatePost("other", post); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestGuard_CommentDeletion(t *testing.T) {
	var g Guard
	post := &Post{ID: "p1", UserID: "post_owner"}
	comment := &Comment{ID: "c1", PostID: "p1", UserID: "author"}

	if err := g.CanDeleteComment("author", comment, post); err != nil {
		t.Fatalf("comment author should delete: %v", err)
	}
	if err := g.CanDeleteComment("post_owner", comment, post); err != nil {
		t.Fatalf("post owner should delete: %v", err)
	}
	if err := g.CanDeleteComment("bystander", comment, post); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestGuard_ProfileMutation(t *testing.T) {
	var g Guard

	if err := g.CanMutateProfile("u1", "u1"); err != nil {
		t.Fatalf("self should mutate: %v", err)
	}
	if err := g.CanMutateProfile("u1", "u2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

package domain

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// usernamePattern is the only shape a username may take: lowercase letters,
// digits, and underscores.
var usernamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

const minPasswordLen = 6

// Register creates an account and opens a session for it. The username is
// lowercased before validation and must be unique, as must the email.
func (s *Service) Register(ctx context.Context, username, email, password string) (*User, string, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))

	if !usernamePattern.MatchString(username) {
		return nil, "", fmt.Errorf("%w: username can only contain lowercase letters, numbers, and underscores", ErrValidation)
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", fmt.Errorf("%w: a valid email is required", ErrValidation)
	}
	if len(password) < minPasswordLen {
		return nil, "", fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}

	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		return nil, "", fmt.Errorf("%w: username already taken", ErrValidation)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, "", fmt.Errorf("check username: %w", err)
	}
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, "", fmt.Errorf("%w: email already registered", ErrValidation)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, "", fmt.Errorf("check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := &User{
		ID:           s.newID(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.openSession(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("user registered", "user", user.ID, "username", username)
	return user, token, nil
}

// Login verifies credentials and opens a session. Bad credentials are a
// Validation error; the response never reveals which part was wrong.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, "", fmt.Errorf("%w: invalid credentials", ErrValidation)
		}
		return nil, "", fmt.Errorf("get user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", fmt.Errorf("%w: invalid credentials", ErrValidation)
	}

	token, err := s.openSession(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Logout closes the session for a token. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.DeleteSession(ctx, token); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Authenticate resolves a bearer token to its user. Unknown tokens are
// ErrNotFound.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.users.GetUser(ctx, session.UserID)
}

func (s *Service) openSession(ctx context.Context, userID string) (string, error) {
	session := &Session{
		Token:     s.newID(),
		UserID:    userID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return session.Token, nil
}

// GetProfile returns the public view of a user together with their posts.
func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, []Post, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	followers, err := s.users.Followers(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list followers: %w", err)
	}
	following, err := s.users.Following(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list following: %w", err)
	}
	posts, err := s.posts.ListPostsByUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list posts: %w", err)
	}

	return &Profile{
		User:      user.Ref(),
		Followers: followers,
		Following: following,
	}, posts, nil
}

// ToggleFollow flips the actor's follow edge toward target. Following
// yourself is a Validation error and performs no writes. Both sides of the
// relation move in one atomic store operation, so the mutual invariant
// (A follows B iff B counts A as a follower) holds in every reachable state.
func (s *Service) ToggleFollow(ctx context.Context, actorID, targetID string) (ToggleResult, error) {
	if actorID == targetID {
		return ToggleResult{}, fmt.Errorf("%w: you cannot follow yourself", ErrValidation)
	}
	if err := s.limiter.Admit(ctx, actorID, ActionFollowToggle); err != nil {
		return ToggleResult{}, err
	}

	res, err := s.users.ToggleFollow(ctx, actorID, targetID)
	if err != nil {
		return ToggleResult{}, err
	}

	kind := "user.unfollowed"
	if res.Active {
		kind = "user.followed"
	}
	s.publish(kind, actorID, "", targetID, res.Count)
	return res, nil
}

// UpdateProfile edits account fields. Only the account itself may update.
// An empty username or email keeps the current value; a new username is
// validated and checked for uniqueness. A non-nil avatar replaces the
// profile picture through the blob store.
func (s *Service) UpdateProfile(ctx context.Context, actorID, targetID, username, email string, avatar []byte, avatarType string) (*User, error) {
	if err := s.guard.CanMutateProfile(actorID, targetID); err != nil {
		return nil, err
	}

	user, err := s.users.GetUser(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if username = strings.ToLower(strings.TrimSpace(username)); username != "" && username != user.Username {
		if !usernamePattern.MatchString(username) {
			return nil, fmt.Errorf("%w: username can only contain lowercase letters, numbers, and underscores", ErrValidation)
		}
		if existing, err := s.users.GetUserByUsername(ctx, username); err == nil && existing.ID != user.ID {
			return nil, fmt.Errorf("%w: username already taken", ErrValidation)
		} else if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("check username: %w", err)
		}
		user.Username = username
	}
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		user.Email = email
	}
	if len(avatar) > 0 {
		url, err := s.blobs.Store(ctx, avatar, avatarType)
		if err != nil {
			return nil, fmt.Errorf("store avatar: %w", err)
		}
		user.ProfilePic = url
	}
	user.UpdatedAt = s.now().UTC()

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// DeleteAccount removes an account, its posts and comments, and its relation
// rows, reconciling counters on surviving posts. Only the account itself may
// delete.
func (s *Service) DeleteAccount(ctx context.Context, actorID, targetID string) error {
	if err := s.guard.CanMutateProfile(actorID, targetID); err != nil {
		return err
	}
	if _, err := s.users.GetUser(ctx, targetID); err != nil {
		return err
	}
	if err := s.users.DeleteUser(ctx, targetID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.Info("account deleted", "user", targetID)
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"thoughtbox/internal/domain"
)

// Repository implements every domain repository port on SQLite. It is the
// zero-setup backend for local development and tests; the semantics match
// the Postgres repository. Timestamps are stored as unix milliseconds.
type Repository struct {
	db *sql.DB
}

var (
	_ domain.UserRepository       = (*Repository)(nil)
	_ domain.PostRepository       = (*Repository)(nil)
	_ domain.CommentRepository    = (*Repository)(nil)
	_ domain.RateWindowRepository = (*Repository)(nil)
	_ domain.SessionRepository    = (*Repository)(nil)
)

var schema = []string{
	`PRAGMA foreign_keys = ON`,
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		profile_pic TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		image_url TEXT NOT NULL,
		like_count INTEGER NOT NULL DEFAULT 0,
		comment_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_user_created ON posts(user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id TEXT PRIMARY KEY,
		post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		body TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_post_created ON comments(post_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS post_likes (
		post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (post_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS saved_posts (
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, post_id)
	)`,
	`CREATE TABLE IF NOT EXISTS follows (
		follower_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		followee_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (follower_id, followee_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_follows_followee ON follows(followee_id)`,
	`CREATE TABLE IF NOT EXISTS rate_windows (
		user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		window_start INTEGER NOT NULL,
		count INTEGER NOT NULL,
		PRIMARY KEY (user_id, action)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at INTEGER NOT NULL
	)`,
}

// NewRepository opens (or creates) the SQLite database at path and creates
// the schema. Use ":memory:" for an ephemeral database.
func NewRepository(ctx context.Context, path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection avoids SQLITE_BUSY on concurrent writers and keeps
	// an in-memory database from vanishing between pooled connections.
	db.SetMaxOpenConns(1)

	for _, q := range schema {
		if _, err := db.ExecContext(ctx, q); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}
	return &Repository{db: db}, nil
}

// Close closes the underlying database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

func millis(t time.Time) int64      { return t.UTC().UnixMilli() }
func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// --- users ---

func (r *Repository) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, profile_pic, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.ProfilePic, millis(u.CreatedAt), millis(u.UpdatedAt),
	)
	return err
}

func (r *Repository) getUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	var u domain.User
	var created, updated int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, profile_pic, created_at, updated_at
		 FROM users WHERE `+where, arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.ProfilePic, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	u.CreatedAt, u.UpdatedAt = fromMillis(created), fromMillis(updated)
	return &u, nil
}

func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return r.getUser(ctx, "id = ?", id)
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getUser(ctx, "username = ?", username)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getUser(ctx, "email = ?", email)
}

func (r *Repository) UpdateUser(ctx context.Context, u *domain.User) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET username = ?, email = ?, profile_pic = ?, updated_at = ?
		WHERE id = ?`,
		u.Username, u.Email, u.ProfilePic, millis(u.UpdatedAt), u.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", u.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE posts SET like_count = MAX(like_count - 1, 0)
		WHERE id IN (SELECT post_id FROM post_likes WHERE user_id = ?)`, id); err != nil {
		return fmt.Errorf("reconcile like counts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM post_likes WHERE user_id = ?`, id); err != nil {
		return fmt.Errorf("delete likes: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE posts SET comment_count = MAX(comment_count - sub.n, 0)
		FROM (SELECT post_id, COUNT(*) AS n FROM comments WHERE user_id = ? GROUP BY post_id) AS sub
		WHERE posts.id = sub.post_id`, id); err != nil {
		return fmt.Errorf("reconcile comment counts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE user_id = ?`, id); err != nil {
		return fmt.Errorf("delete comments: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return tx.Commit()
}

func (r *Repository) userRefs(ctx context.Context, query string, arg any) ([]domain.UserRef, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var refs []domain.UserRef
	for rows.Next() {
		var ref domain.UserRef
		if err := rows.Scan(&ref.ID, &ref.Username, &ref.ProfilePic); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (r *Repository) Followers(ctx context.Context, id string) ([]domain.UserRef, error) {
	return r.userRefs(ctx, `
		SELECT u.id, u.username, u.profile_pic
		FROM follows f JOIN users u ON u.id = f.follower_id
		WHERE f.followee_id = ?
		ORDER BY f.created_at DESC`, id)
}

func (r *Repository) Following(ctx context.Context, id string) ([]domain.UserRef, error) {
	return r.userRefs(ctx, `
		SELECT u.id, u.username, u.profile_pic
		FROM follows f JOIN users u ON u.id = f.followee_id
		WHERE f.follower_id = ?
		ORDER BY f.created_at DESC`, id)
}

func (r *Repository) ToggleFollow(ctx context.Context, followerID, followeeID string) (domain.ToggleResult, error) {
	var res domain.ToggleResult

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, followeeID).Scan(&exists); err != nil {
		return res, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return res, fmt.Errorf("user %s: %w", followeeID, domain.ErrNotFound)
	}

	del, err := tx.ExecContext(ctx, `DELETE FROM follows WHERE follower_id = ? AND followee_id = ?`, followerID, followeeID)
	if err != nil {
		return res, fmt.Errorf("delete follow: %w", err)
	}
	if n, _ := del.RowsAffected(); n == 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO follows (follower_id, followee_id, created_at) VALUES (?, ?, ?)
			ON CONFLICT DO NOTHING`, followerID, followeeID, millis(time.Now())); err != nil {
			return res, fmt.Errorf("insert follow: %w", err)
		}
		res.Active = true
	}

	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM follows WHERE followee_id = ?`, followeeID).Scan(&res.Count); err != nil {
		return res, fmt.Errorf("count followers: %w", err)
	}
	return res, tx.Commit()
}

func (r *Repository) ToggleSave(ctx context.Context, userID, postID string) (domain.ToggleResult, error) {
	var res domain.ToggleResult

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM posts WHERE id = ?)`, postID).Scan(&exists); err != nil {
		return res, fmt.Errorf("check post: %w", err)
	}
	if !exists {
		return res, fmt.Errorf("post %s: %w", postID, domain.ErrNotFound)
	}

	del, err := tx.ExecContext(ctx, `DELETE FROM saved_posts WHERE user_id = ? AND post_id = ?`, userID, postID)
	if err != nil {
		return res, fmt.Errorf("delete save: %w", err)
	}
	if n, _ := del.RowsAffected(); n == 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO saved_posts (user_id, post_id, created_at) VALUES (?, ?, ?)
			ON CONFLICT DO NOTHING`, userID, postID, millis(time.Now())); err != nil {
			return res, fmt.Errorf("insert save: %w", err)
		}
		res.Active = true
	}

	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM saved_posts WHERE user_id = ?`, userID).Scan(&res.Count); err != nil {
		return res, fmt.Errorf("count saves: %w", err)
	}
	return res, tx.Commit()
}

func (r *Repository) SavedPosts(ctx context.Context, userID string) ([]domain.Post, error) {
	return r.queryPosts(ctx, `
		SELECT `+postColumns+`
		FROM saved_posts s
		JOIN posts p ON p.id = s.post_id
		JOIN users u ON u.id = p.user_id
		WHERE s.user_id = ?
		ORDER BY s.created_at DESC`, userID)
}

// --- posts ---

const postColumns = `p.id, p.user_id, p.title, p.description, p.image_url,
	p.like_count, p.comment_count, p.created_at, p.updated_at,
	u.id, u.username, u.profile_pic`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*domain.Post, error) {
	var p domain.Post
	var author domain.UserRef
	var created, updated int64
	err := row.Scan(
		&p.ID, &p.UserID, &p.Title, &p.Description, &p.ImageURL,
		&p.LikeCount, &p.CommentCount, &created, &updated,
		&author.ID, &author.Username, &author.ProfilePic,
	)
	if err != nil {
		return nil, err
	}
	p.CreatedAt, p.UpdatedAt = fromMillis(created), fromMillis(updated)
	p.Author = &author
	return &p, nil
}

func (r *Repository) queryPosts(ctx context.Context, query string, args ...any) ([]domain.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

func (r *Repository) CreatePost(ctx context.Context, p *domain.Post) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO posts (id, user_id, title, description, image_url, like_count, comment_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, 0, ?, ?)`,
		p.ID, p.UserID, p.Title, p.Description, p.ImageURL, millis(p.CreatedAt), millis(p.UpdatedAt),
	)
	return err
}

func (r *Repository) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx, `
		SELECT `+postColumns+`
		FROM posts p JOIN users u ON u.id = p.user_id
		WHERE p.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query post: %w", err)
	}
	return p, nil
}

func (r *Repository) UpdatePost(ctx context.Context, p *domain.Post) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE posts SET title = ?, description = ?, image_url = ?, updated_at = ?
		WHERE id = ?`,
		p.Title, p.Description, p.ImageURL, millis(p.UpdatedAt), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("post %s: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *Repository) DeletePost(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *Repository) ListPosts(ctx context.Context, search string, limit, offset int) ([]domain.Post, int, error) {
	where := ""
	args := []any{}
	if search != "" {
		where = `WHERE LOWER(p.title) LIKE ? ESCAPE '\' OR LOWER(p.description) LIKE ? ESCAPE '\'`
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		args = append(args, pattern, pattern)
	}

	posts, err := r.queryPosts(ctx, `
		SELECT `+postColumns+`
		FROM posts p JOIN users u ON u.id = p.user_id
		`+where+`
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts p `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}
	return posts, total, nil
}

func (r *Repository) ListPostsByUser(ctx context.Context, userID string) ([]domain.Post, error) {
	return r.queryPosts(ctx, `
		SELECT `+postColumns+`
		FROM posts p JOIN users u ON u.id = p.user_id
		WHERE p.user_id = ?
		ORDER BY p.created_at DESC, p.id DESC`, userID)
}

func (r *Repository) ListFeedPosts(ctx context.Context, userID string, limit, offset int) ([]domain.Post, int, error) {
	posts, err := r.queryPosts(ctx, `
		SELECT `+postColumns+`
		FROM posts p
		JOIN users u ON u.id = p.user_id
		JOIN follows f ON f.followee_id = p.user_id
		WHERE f.follower_id = ?
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	var total int
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM posts p JOIN follows f ON f.followee_id = p.user_id
		WHERE f.follower_id = ?`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count feed posts: %w", err)
	}
	return posts, total, nil
}

func (r *Repository) ListLikedPosts(ctx context.Context, userID string) ([]domain.Post, error) {
	return r.queryPosts(ctx, `
		SELECT `+postColumns+`
		FROM post_likes l
		JOIN posts p ON p.id = l.post_id
		JOIN users u ON u.id = p.user_id
		WHERE l.user_id = ?
		ORDER BY l.created_at DESC`, userID)
}

func (r *Repository) ToggleLike(ctx context.Context, postID, userID string) (domain.ToggleResult, error) {
	var res domain.ToggleResult

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM posts WHERE id = ?)`, postID).Scan(&exists); err != nil {
		return res, fmt.Errorf("check post: %w", err)
	}
	if !exists {
		return res, fmt.Errorf("post %s: %w", postID, domain.ErrNotFound)
	}

	del, err := tx.ExecContext(ctx, `DELETE FROM post_likes WHERE post_id = ? AND user_id = ?`, postID, userID)
	if err != nil {
		return res, fmt.Errorf("delete like: %w", err)
	}

	if n, _ := del.RowsAffected(); n == 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO post_likes (post_id, user_id, created_at) VALUES (?, ?, ?)
			ON CONFLICT DO NOTHING`, postID, userID, millis(time.Now())); err != nil {
			return res, fmt.Errorf("insert like: %w", err)
		}
		res.Active = true
		err = tx.QueryRowContext(ctx, `
			UPDATE posts SET like_count = like_count + 1 WHERE id = ?
			RETURNING like_count`, postID).Scan(&res.Count)
	} else {
		err = tx.QueryRowContext(ctx, `
			UPDATE posts SET like_count = MAX(like_count - 1, 0) WHERE id = ?
			RETURNING like_count`, postID).Scan(&res.Count)
	}
	if err != nil {
		return res, fmt.Errorf("update like count: %w", err)
	}
	return res, tx.Commit()
}

func (r *Repository) PostLikers(ctx context.Context, postID string) ([]domain.UserRef, error) {
	return r.userRefs(ctx, `
		SELECT u.id, u.username, u.profile_pic
		FROM post_likes l JOIN users u ON u.id = l.user_id
		WHERE l.post_id = ?
		ORDER BY l.created_at DESC`, postID)
}

// --- comments ---

func (r *Repository) CreateComment(ctx context.Context, c *domain.Comment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE posts SET comment_count = comment_count + 1 WHERE id = ?`, c.PostID)
	if err != nil {
		return fmt.Errorf("update comment count: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("post %s: %w", c.PostID, domain.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO comments (id, post_id, user_id, body, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.PostID, c.UserID, c.Body, millis(c.CreatedAt),
	); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return tx.Commit()
}

func (r *Repository) GetComment(ctx context.Context, id string) (*domain.Comment, error) {
	var c domain.Comment
	var author domain.UserRef
	var created int64
	err := r.db.QueryRowContext(ctx, `
		SELECT c.id, c.post_id, c.user_id, c.body, c.created_at, u.id, u.username, u.profile_pic
		FROM comments c JOIN users u ON u.id = c.user_id
		WHERE c.id = ?`, id,
	).Scan(&c.ID, &c.PostID, &c.UserID, &c.Body, &created, &author.ID, &author.Username, &author.ProfilePic)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query comment: %w", err)
	}
	c.CreatedAt = fromMillis(created)
	c.Author = &author
	return &c, nil
}

func (r *Repository) DeleteComment(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var postID string
	err = tx.QueryRowContext(ctx, `DELETE FROM comments WHERE id = ? RETURNING post_id`, id).Scan(&postID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE posts SET comment_count = MAX(comment_count - 1, 0) WHERE id = ?`, postID); err != nil {
		return fmt.Errorf("update comment count: %w", err)
	}
	return tx.Commit()
}

func (r *Repository) listComments(ctx context.Context, query string, args ...any) ([]domain.Comment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		var c domain.Comment
		var author domain.UserRef
		var created int64
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Body, &created,
			&author.ID, &author.Username, &author.ProfilePic); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.CreatedAt = fromMillis(created)
		c.Author = &author
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (r *Repository) ListComments(ctx context.Context, postID string) ([]domain.Comment, error) {
	return r.listComments(ctx, `
		SELECT c.id, c.post_id, c.user_id, c.body, c.created_at, u.id, u.username, u.profile_pic
		FROM comments c JOIN users u ON u.id = c.user_id
		WHERE c.post_id = ?
		ORDER BY c.created_at DESC`, postID)
}

func (r *Repository) ListUserComments(ctx context.Context, postID, userID string) ([]domain.Comment, error) {
	return r.listComments(ctx, `
		SELECT c.id, c.post_id, c.user_id, c.body, c.created_at, u.id, u.username, u.profile_pic
		FROM comments c JOIN users u ON u.id = c.user_id
		WHERE c.post_id = ? AND c.user_id = ?
		ORDER BY c.created_at DESC`, postID, userID)
}

// --- rate windows ---

func (r *Repository) GetWindow(ctx context.Context, userID, action string) (*domain.RateWindow, error) {
	var w domain.RateWindow
	var start int64
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, action, window_start, count
		FROM rate_windows WHERE user_id = ? AND action = ?`,
		userID, action,
	).Scan(&w.UserID, &w.Action, &start, &w.Count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rate window: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query rate window: %w", err)
	}
	w.WindowStart = fromMillis(start)
	return &w, nil
}

func (r *Repository) PutWindow(ctx context.Context, w *domain.RateWindow) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rate_windows (user_id, action, window_start, count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, action) DO UPDATE SET window_start = excluded.window_start, count = excluded.count`,
		w.UserID, w.Action, millis(w.WindowStart), w.Count,
	)
	return err
}

// --- sessions ---

func (r *Repository) CreateSession(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, created_at) VALUES (?, ?, ?)`,
		s.Token, s.UserID, millis(s.CreatedAt),
	)
	return err
}

func (r *Repository) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	var s domain.Session
	var created int64
	err := r.db.QueryRowContext(ctx,
		`SELECT token, user_id, created_at FROM sessions WHERE token = ?`, token,
	).Scan(&s.Token, &s.UserID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	s.CreatedAt = fromMillis(created)
	return &s, nil
}

func (r *Repository) DeleteSession(ctx context.Context, token string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session: %w", domain.ErrNotFound)
	}
	return nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}

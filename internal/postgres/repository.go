package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"thoughtbox/internal/domain"
)

// Repository implements every domain repository port on PostgreSQL. Relation
// flips and their denormalized counters move inside one transaction, and
// counters are adjusted with atomic increments rather than read-then-write.
type Repository struct {
	pool *pgxpool.Pool
}

// Compile-time port checks.
var (
	_ domain.UserRepository       = (*Repository)(nil)
	_ domain.PostRepository       = (*Repository)(nil)
	_ domain.CommentRepository    = (*Repository)(nil)
	_ domain.RateWindowRepository = (*Repository)(nil)
	_ domain.SessionRepository    = (*Repository)(nil)
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		profile_pic TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		image_url TEXT NOT NULL,
		like_count INT NOT NULL DEFAULT 0,
		comment_count INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_user_created ON posts(user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id TEXT PRIMARY KEY,
		post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		body TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_post_created ON comments(post_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS post_likes (
		post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (post_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS saved_posts (
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, post_id)
	)`,
	`CREATE TABLE IF NOT EXISTS follows (
		follower_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		followee_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (follower_id, followee_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_follows_followee ON follows(followee_id)`,
	`CREATE TABLE IF NOT EXISTS rate_windows (
		user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		window_start TIMESTAMPTZ NOT NULL,
		count INT NOT NULL,
		PRIMARY KEY (user_id, action)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
}

// NewRepository connects to PostgreSQL, verifies the connection, and creates
// the schema. The caller should call Close when done.
func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	for _, q := range schema {
		if _, err := pool.Exec(ctx, q); err != nil {
			pool.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}
	return &Repository{pool: pool}, nil
}

// Close releases the connection pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// --- users ---

func (r *Repository) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, password_hash, profile_pic, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.ProfilePic, u.CreatedAt, u.UpdatedAt,
	)
	return err
}

func (r *Repository) getUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, profile_pic, created_at, updated_at
		 FROM users WHERE `+where, arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.ProfilePic, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return r.getUser(ctx, "id = $1", id)
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getUser(ctx, "username = $1", username)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getUser(ctx, "email = $1", email)
}

func (r *Repository) UpdateUser(ctx context.Context, u *domain.User) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE users SET username = $2, email = $3, profile_pic = $4, updated_at = $5
		WHERE id = $1`,
		u.ID, u.Username, u.Email, u.ProfilePic, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", u.ID, domain.ErrNotFound)
	}
	return nil
}

// DeleteUser removes the account. Counters on other users' posts are
// reconciled first, so the deleted user's likes and comments do not leave
// stale aggregates behind; the user's own rows then go via ON DELETE CASCADE.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE posts SET like_count = GREATEST(like_count - 1, 0)
		WHERE id IN (SELECT post_id FROM post_likes WHERE user_id = $1)`, id); err != nil {
		return fmt.Errorf("reconcile like counts: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM post_likes WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("delete likes: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE posts SET comment_count = GREATEST(comment_count - sub.n, 0)
		FROM (SELECT post_id, COUNT(*) AS n FROM comments WHERE user_id = $1 GROUP BY post_id) AS sub
		WHERE posts.id = sub.post_id`, id); err != nil {
		return fmt.Errorf("reconcile comment counts: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM comments WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("delete comments: %w", err)
	}

	ct, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return tx.Commit(ctx)
}

func (r *Repository) userRefs(ctx context.Context, query string, arg any) ([]domain.UserRef, error) {
	rows, err := r.pool.Query(ctx, query, arg)
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
		WHERE f.followee_id = $1
		ORDER BY f.created_at DESC`, id)
}

func (r *Repository) Following(ctx context.Context, id string) ([]domain.UserRef, error) {
	return r.userRefs(ctx, `
		SELECT u.id, u.username, u.profile_pic
		FROM follows f JOIN users u ON u.id = f.followee_id
		WHERE f.follower_id = $1
		ORDER BY f.created_at DESC`, id)
}

// ToggleFollow flips the follow edge. Both directions of the relation live
// in one row, so the mutual invariant cannot be half-applied.
func (r *Repository) ToggleFollow(ctx context.Context, followerID, followeeID string) (domain.ToggleResult, error) {
	var res domain.ToggleResult

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, followeeID).Scan(&exists); err != nil {
		return res, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return res, fmt.Errorf("user %s: %w", followeeID, domain.ErrNotFound)
	}

	ct, err := tx.Exec(ctx, `DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`, followerID, followeeID)
	if err != nil {
		return res, fmt.Errorf("delete follow: %w", err)
	}
	if ct.RowsAffected() == 0 {
		if _, err := tx.Exec(ctx, `
			INSERT INTO follows (follower_id, followee_id, created_at) VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING`, followerID, followeeID, time.Now().UTC()); err != nil {
			return res, fmt.Errorf("insert follow: %w", err)
		}
		res.Active = true
	}

	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM follows WHERE followee_id = $1`, followeeID).Scan(&res.Count); err != nil {
		return res, fmt.Errorf("count followers: %w", err)
	}
	return res, tx.Commit(ctx)
}

func (r *Repository) ToggleSave(ctx context.Context, userID, postID string) (domain.ToggleResult, error) {
	var res domain.ToggleResult

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1)`, postID).Scan(&exists); err != nil {
		return res, fmt.Errorf("check post: %w", err)
	}
	if !exists {
		return res, fmt.Errorf("post %s: %w", postID, domain.ErrNotFound)
	}

	ct, err := tx.Exec(ctx, `DELETE FROM saved_posts WHERE user_id = $1 AND post_id = $2`, userID, postID)
	if err != nil {
		return res, fmt.Errorf("delete save: %w", err)
	}
	if ct.RowsAffected() == 0 {
		if _, err := tx.Exec(ctx, `
			INSERT INTO saved_posts (user_id, post_id, created_at) VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING`, userID, postID, time.Now().UTC()); err != nil {
			return res, fmt.Errorf("insert save: %w", err)
		}
		res.Active = true
	}

	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM saved_posts WHERE user_id = $1`, userID).Scan(&res.Count); err != nil {
		return res, fmt.Errorf("count saves: %w", err)
	}
	return res, tx.Commit(ctx)
}

func (r *Repository) SavedPosts(ctx context.Context, userID string) ([]domain.Post, error) {
	return r.queryPosts(ctx, `
		SELECT `+postColumns+`
		FROM saved_posts s
		JOIN posts p ON p.id = s.post_id
		JOIN users u ON u.id = p.user_id
		WHERE s.user_id = $1
		ORDER BY s.created_at DESC`, userID)
}

// --- posts ---

const postColumns = `p.id, p.user_id, p.title, p.description, p.image_url,
	p.like_count, p.comment_count, p.created_at, p.updated_at,
	u.id, u.username, u.profile_pic`

func scanPost(row pgx.Row) (*domain.Post, error) {
	var p domain.Post
	var author domain.UserRef
	err := row.Scan(
		&p.ID, &p.UserID, &p.Title, &p.Description, &p.ImageURL,
		&p.LikeCount, &p.CommentCount, &p.CreatedAt, &p.UpdatedAt,
		&author.ID, &author.Username, &author.ProfilePic,
	)
	if err != nil {
		return nil, err
	}
	p.Author = &author
	return &p, nil
}

func (r *Repository) queryPosts(ctx context.Context, query string, args ...any) ([]domain.Post, error) {
	rows, err := r.pool.Query(ctx, query, args...)
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
	_, err := r.pool.Exec(ctx, `
		INSERT INTO posts (id, user_id, title, description, image_url, like_count, comment_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, 0, $6, $7)`,
		p.ID, p.UserID, p.Title, p.Description, p.ImageURL, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *Repository) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	p, err := scanPost(r.pool.QueryRow(ctx, `
		SELECT `+postColumns+`
		FROM posts p JOIN users u ON u.id = p.user_id
		WHERE p.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query post: %w", err)
	}
	return p, nil
}

func (r *Repository) UpdatePost(ctx context.Context, p *domain.Post) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE posts SET title = $2, description = $3, image_url = $4, updated_at = $5
		WHERE id = $1`,
		p.ID, p.Title, p.Description, p.ImageURL, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("post %s: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *Repository) DeletePost(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *Repository) ListPosts(ctx context.Context, search string, limit, offset int) ([]domain.Post, int, error) {
	where := ""
	args := []any{limit, offset}
	if search != "" {
		where = `WHERE p.title ILIKE $3 OR p.description ILIKE $3`
		args = append(args, "%"+escapeLike(search)+"%")
	}

	posts, err := r.queryPosts(ctx, `
		SELECT `+postColumns+`
		FROM posts p JOIN users u ON u.id = p.user_id
		`+where+`
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $1 OFFSET $2`, args...)
	if err != nil {
		return nil, 0, err
	}

	countArgs := args[2:]
	countWhere := strings.ReplaceAll(where, "$3", "$1")
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts p `+countWhere, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}
	return posts, total, nil
}

func (r *Repository) ListPostsByUser(ctx context.Context, userID string) ([]domain.Post, error) {
	return r.queryPosts(ctx, `
		SELECT `+postColumns+`
		FROM posts p JOIN users u ON u.id = p.user_id
		WHERE p.user_id = $1
		ORDER BY p.created_at DESC, p.id DESC`, userID)
}

func (r *Repository) ListFeedPosts(ctx context.Context, userID string, limit, offset int) ([]domain.Post, int, error) {
	posts, err := r.queryPosts(ctx, `
		SELECT `+postColumns+`
		FROM posts p
		JOIN users u ON u.id = p.user_id
		JOIN follows f ON f.followee_id = p.user_id
		WHERE f.follower_id = $1
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	var total int
	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM posts p JOIN follows f ON f.followee_id = p.user_id
		WHERE f.follower_id = $1`, userID).Scan(&total)
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
		WHERE l.user_id = $1
		ORDER BY l.created_at DESC`, userID)
}

// ToggleLike flips the like row and moves like_count in the same
// transaction, using an atomic increment so concurrent toggles by distinct
// users never lose updates. like_count therefore always equals the number of
// like rows.
func (r *Repository) ToggleLike(ctx context.Context, postID, userID string) (domain.ToggleResult, error) {
	var res domain.ToggleResult

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1)`, postID).Scan(&exists); err != nil {
		return res, fmt.Errorf("check post: %w", err)
	}
	if !exists {
		return res, fmt.Errorf("post %s: %w", postID, domain.ErrNotFound)
	}

	ct, err := tx.Exec(ctx, `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return res, fmt.Errorf("delete like: %w", err)
	}

	if ct.RowsAffected() == 0 {
		if _, err := tx.Exec(ctx, `
			INSERT INTO post_likes (post_id, user_id, created_at) VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING`, postID, userID, time.Now().UTC()); err != nil {
			return res, fmt.Errorf("insert like: %w", err)
		}
		res.Active = true
		err = tx.QueryRow(ctx, `
			UPDATE posts SET like_count = like_count + 1 WHERE id = $1
			RETURNING like_count`, postID).Scan(&res.Count)
	} else {
		err = tx.QueryRow(ctx, `
			UPDATE posts SET like_count = GREATEST(like_count - 1, 0) WHERE id = $1
			RETURNING like_count`, postID).Scan(&res.Count)
	}
	if err != nil {
		return res, fmt.Errorf("update like count: %w", err)
	}
	return res, tx.Commit(ctx)
}

func (r *Repository) PostLikers(ctx context.Context, postID string) ([]domain.UserRef, error) {
	return r.userRefs(ctx, `
		SELECT u.id, u.username, u.profile_pic
		FROM post_likes l JOIN users u ON u.id = l.user_id
		WHERE l.post_id = $1
		ORDER BY l.created_at DESC`, postID)
}

// --- comments ---

// CreateComment inserts the comment and bumps the parent's comment_count in
// the same transaction.
func (r *Repository) CreateComment(ctx context.Context, c *domain.Comment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `UPDATE posts SET comment_count = comment_count + 1 WHERE id = $1`, c.PostID)
	if err != nil {
		return fmt.Errorf("update comment count: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("post %s: %w", c.PostID, domain.ErrNotFound)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO comments (id, post_id, user_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.PostID, c.UserID, c.Body, c.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *Repository) GetComment(ctx context.Context, id string) (*domain.Comment, error) {
	var c domain.Comment
	var author domain.UserRef
	err := r.pool.QueryRow(ctx, `
		SELECT c.id, c.post_id, c.user_id, c.body, c.created_at, u.id, u.username, u.profile_pic
		FROM comments c JOIN users u ON u.id = c.user_id
		WHERE c.id = $1`, id,
	).Scan(&c.ID, &c.PostID, &c.UserID, &c.Body, &c.CreatedAt, &author.ID, &author.Username, &author.ProfilePic)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query comment: %w", err)
	}
	c.Author = &author
	return &c, nil
}

// DeleteComment removes the comment and drops the parent's comment_count in
// the same transaction, floored at zero.
func (r *Repository) DeleteComment(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var postID string
	err = tx.QueryRow(ctx, `DELETE FROM comments WHERE id = $1 RETURNING post_id`, id).Scan(&postID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE posts SET comment_count = GREATEST(comment_count - 1, 0) WHERE id = $1`, postID); err != nil {
		return fmt.Errorf("update comment count: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *Repository) listComments(ctx context.Context, query string, args ...any) ([]domain.Comment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		var c domain.Comment
		var author domain.UserRef
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Body, &c.CreatedAt,
			&author.ID, &author.Username, &author.ProfilePic); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.Author = &author
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (r *Repository) ListComments(ctx context.Context, postID string) ([]domain.Comment, error) {
	return r.listComments(ctx, `
		SELECT c.id, c.post_id, c.user_id, c.body, c.created_at, u.id, u.username, u.profile_pic
		FROM comments c JOIN users u ON u.id = c.user_id
		WHERE c.post_id = $1
		ORDER BY c.created_at DESC`, postID)
}

func (r *Repository) ListUserComments(ctx context.Context, postID, userID string) ([]domain.Comment, error) {
	return r.listComments(ctx, `
		SELECT c.id, c.post_id, c.user_id, c.body, c.created_at, u.id, u.username, u.profile_pic
		FROM comments c JOIN users u ON u.id = c.user_id
		WHERE c.post_id = $1 AND c.user_id = $2
		ORDER BY c.created_at DESC`, postID, userID)
}

// --- rate windows ---

func (r *Repository) GetWindow(ctx context.Context, userID, action string) (*domain.RateWindow, error) {
	var w domain.RateWindow
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, action, window_start, count
		FROM rate_windows WHERE user_id = $1 AND action = $2`,
		userID, action,
	).Scan(&w.UserID, &w.Action, &w.WindowStart, &w.Count)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("rate window: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query rate window: %w", err)
	}
	return &w, nil
}

func (r *Repository) PutWindow(ctx context.Context, w *domain.RateWindow) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO rate_windows (user_id, action, window_start, count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, action) DO UPDATE SET window_start = $3, count = $4`,
		w.UserID, w.Action, w.WindowStart, w.Count,
	)
	return err
}

// --- sessions ---

func (r *Repository) CreateSession(ctx context.Context, s *domain.Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (token, user_id, created_at) VALUES ($1, $2, $3)`,
		s.Token, s.UserID, s.CreatedAt,
	)
	return err
}

func (r *Repository) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	var s domain.Session
	err := r.pool.QueryRow(ctx,
		`SELECT token, user_id, created_at FROM sessions WHERE token = $1`, token,
	).Scan(&s.Token, &s.UserID, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return &s, nil
}

func (r *Repository) DeleteSession(ctx context.Context, token string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("session: %w", domain.ErrNotFound)
	}
	return nil
}

// escapeLike escapes LIKE metacharacters in a user-supplied search term.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}

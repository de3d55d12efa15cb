// Package postgres implements the relational store adapter. The relational
// store is the source of truth for users, posts and follow edges; every other
// store mirrors or enriches its records.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/connecthub/connecthub/pkg/model"
	"github.com/connecthub/connecthub/pkg/observability/logger"
	"github.com/connecthub/connecthub/pkg/store"
	"github.com/connecthub/connecthub/pkg/store/storeerr"
)

const storeName = "postgres"

var _ store.Adapter = (*Adapter)(nil)

// Adapter provides PostgreSQL connectivity with connection pooling.
type Adapter struct {
	db     *sql.DB
	logger logger.Logger
	config Config
}

// Config holds PostgreSQL connection configuration.
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	QueryTimeout    time.Duration
}

// NewAdapter creates a PostgreSQL adapter and verifies connectivity.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, storeerr.NewConnectionError(storeName, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, storeerr.NewConnectionError(storeName, err)
	}

	log.Info("PostgreSQL connection established",
		"max_open_conns", cfg.MaxOpenConns,
		"max_idle_conns", cfg.MaxIdleConns,
		"conn_max_lifetime", cfg.ConnMaxLifetime,
	)

	return &Adapter{
		db:     db,
		logger: log,
		config: cfg,
	}, nil
}

// DB returns the underlying *sql.DB for direct access when needed.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// Ping verifies the database connection is alive.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// HealthCheck verifies the database connection is healthy with a timeout.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := a.db.PingContext(ctx); err != nil {
		a.logger.Error("PostgreSQL health check failed", "error", err)
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// Close gracefully closes the database connection. Safe to call twice.
func (a *Adapter) Close() error {
	a.logger.Info("closing PostgreSQL connection")

	if err := a.db.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	return nil
}

// EnsureSchema creates the ConnectHub tables when they do not exist.
func (a *Adapter) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			bio TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS posts (
			id UUID PRIMARY KEY,
			author_id UUID NOT NULL REFERENCES users(id),
			content TEXT NOT NULL,
			media_keys TEXT[] NOT NULL DEFAULT '{}',
			visibility TEXT NOT NULL DEFAULT 'public',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS posts_author_created_idx ON posts (author_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS follows (
			follower_id UUID NOT NULL REFERENCES users(id),
			following_id UUID NOT NULL REFERENCES users(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (follower_id, following_id),
			CHECK (follower_id <> following_id)
		)`,
		`CREATE INDEX IF NOT EXISTS follows_following_idx ON follows (following_id)`,
	}

	for _, stmt := range statements {
		if _, err := a.execContext(ctx, stmt); err != nil {
			return storeerr.Wrap(storeName, "ensure_schema", err)
		}
	}
	return nil
}

// InsertUser inserts a user record and returns it. A username or email
// collision surfaces as storeerr.ErrDuplicate.
func (a *Adapter) InsertUser(ctx context.Context, profile model.UserProfile) (model.User, error) {
	user := model.User{
		ID:          uuid.NewString(),
		Username:    profile.Username,
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
		Bio:         profile.Bio,
		AvatarURL:   profile.AvatarURL,
		Active:      true,
	}

	queryCtx, cancel := a.withQueryTimeout(ctx)
	defer cancel()

	row := a.db.QueryRowContext(queryCtx,
		`INSERT INTO users (id, username, email, display_name, bio, avatar_url)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		user.ID, user.Username, user.Email, user.DisplayName, user.Bio, user.AvatarURL,
	)
	if err := row.Scan(&user.CreatedAt); err != nil {
		return model.User{}, storeerr.Wrap(storeName, "insert_user", translateErr(err))
	}

	return user, nil
}

// FindUserByID returns the user with the given id, deleted/missing users
// surface as storeerr.ErrNotFound.
func (a *Adapter) FindUserByID(ctx context.Context, id string) (model.User, error) {
	queryCtx, cancel := a.withQueryTimeout(ctx)
	defer cancel()

	var u model.User
	row := a.db.QueryRowContext(queryCtx,
		`SELECT id, username, email, display_name, bio, avatar_url, active, created_at
		 FROM users WHERE id = $1`,
		id,
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.DisplayName, &u.Bio, &u.AvatarURL, &u.Active, &u.CreatedAt)
	if err != nil {
		return model.User{}, storeerr.Wrap(storeName, "find_user", translateErr(err))
	}
	return u, nil
}

// FindUsersByIDs returns the active users among the given ids, keyed by id.
// Inactive users are silently omitted; callers decide how to handle gaps.
func (a *Adapter) FindUsersByIDs(ctx context.Context, ids []string) (map[string]model.User, error) {
	users := make(map[string]model.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	queryCtx, cancel := a.withQueryTimeout(ctx)
	defer cancel()

	rows, err := a.db.QueryContext(queryCtx,
		`SELECT id, username, email, display_name, bio, avatar_url, active, created_at
		 FROM users WHERE id = ANY($1) AND active`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, storeerr.Wrap(storeName, "find_users", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.DisplayName, &u.Bio, &u.AvatarURL, &u.Active, &u.CreatedAt); err != nil {
			return nil, storeerr.Wrap(storeName, "find_users", err)
		}
		users[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, storeerr.Wrap(storeName, "find_users", err)
	}

	return users, nil
}

// InsertPost inserts a post record and returns it.
func (a *Adapter) InsertPost(ctx context.Context, input model.PostInput) (model.Post, error) {
	post := model.Post{
		ID:         uuid.NewString(),
		AuthorID:   input.AuthorID,
		Content:    input.Content,
		MediaKeys:  input.MediaKeys,
		Visibility: input.Visibility,
	}
	if post.Visibility == "" {
		post.Visibility = model.VisibilityPublic
	}

	queryCtx, cancel := a.withQueryTimeout(ctx)
	defer cancel()

	row := a.db.QueryRowContext(queryCtx,
		`INSERT INTO posts (id, author_id, content, media_keys, visibility)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		post.ID, post.AuthorID, post.Content, pq.Array(post.MediaKeys), string(post.Visibility),
	)
	if err := row.Scan(&post.CreatedAt); err != nil {
		return model.Post{}, storeerr.Wrap(storeName, "insert_post", translateErr(err))
	}

	return post, nil
}

// FindFeedPosts returns one page of the posts visible in a user's feed:
// their own posts plus non-private posts of users they follow, newest first.
func (a *Adapter) FindFeedPosts(ctx context.Context, userID string, page, pageSize int) ([]model.Post, error) {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	queryCtx, cancel := a.withQueryTimeout(ctx)
	defer cancel()

	rows, err := a.db.QueryContext(queryCtx,
		`SELECT p.id, p.author_id, p.content, p.media_keys, p.visibility, p.created_at
		 FROM posts p
		 WHERE (p.author_id = $1
		        OR (p.author_id IN (SELECT following_id FROM follows WHERE follower_id = $1)
		            AND p.visibility <> 'private'))
		 ORDER BY p.created_at DESC, p.id DESC
		 LIMIT $2 OFFSET $3`,
		userID, pageSize, page*pageSize,
	)
	if err != nil {
		return nil, storeerr.Wrap(storeName, "find_feed_posts", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0, pageSize)
	for rows.Next() {
		var p model.Post
		var visibility string
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.Content, pq.Array(&p.MediaKeys), &visibility, &p.CreatedAt); err != nil {
			return nil, storeerr.Wrap(storeName, "find_feed_posts", err)
		}
		p.Visibility = model.Visibility(visibility)
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeerr.Wrap(storeName, "find_feed_posts", err)
	}

	return posts, nil
}

// InsertFollow inserts a follow edge. A duplicate edge surfaces as
// storeerr.ErrDuplicate; the self-follow CHECK constraint surfaces as a
// generic store error (the orchestrator rejects self-follows before the
// write ever reaches this store).
func (a *Adapter) InsertFollow(ctx context.Context, followerID, followingID string) (model.Follow, error) {
	follow := model.Follow{
		FollowerID:  followerID,
		FollowingID: followingID,
	}

	queryCtx, cancel := a.withQueryTimeout(ctx)
	defer cancel()

	row := a.db.QueryRowContext(queryCtx,
		`INSERT INTO follows (follower_id, following_id)
		 VALUES ($1, $2)
		 RETURNING created_at`,
		followerID, followingID,
	)
	if err := row.Scan(&follow.CreatedAt); err != nil {
		return model.Follow{}, storeerr.Wrap(storeName, "insert_follow", translateErr(err))
	}

	return follow, nil
}

// DeleteFollow removes a follow edge; removing a missing edge is a no-op.
func (a *Adapter) DeleteFollow(ctx context.Context, followerID, followingID string) error {
	_, err := a.execContext(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND following_id = $2`,
		followerID, followingID,
	)
	return storeerr.Wrap(storeName, "delete_follow", err)
}

// FindFollowerIDs returns the ids of users following the given user.
func (a *Adapter) FindFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	queryCtx, cancel := a.withQueryTimeout(ctx)
	defer cancel()

	rows, err := a.db.QueryContext(queryCtx,
		`SELECT follower_id FROM follows WHERE following_id = $1`,
		userID,
	)
	if err != nil {
		return nil, storeerr.Wrap(storeName, "find_follower_ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storeerr.Wrap(storeName, "find_follower_ids", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeerr.Wrap(storeName, "find_follower_ids", err)
	}

	return ids, nil
}

// FindFollowCounts returns the follower and following counts for a user.
func (a *Adapter) FindFollowCounts(ctx context.Context, userID string) (followers, following int64, err error) {
	queryCtx, cancel := a.withQueryTimeout(ctx)
	defer cancel()

	row := a.db.QueryRowContext(queryCtx,
		`SELECT
		   (SELECT COUNT(*) FROM follows WHERE following_id = $1),
		   (SELECT COUNT(*) FROM follows WHERE follower_id = $1)`,
		userID,
	)
	if err := row.Scan(&followers, &following); err != nil {
		return 0, 0, storeerr.Wrap(storeName, "find_follow_counts", err)
	}
	return followers, following, nil
}

// translateErr maps driver errors onto the shared sentinels.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", storeerr.ErrNotFound, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", storeerr.ErrDuplicate, pqErr.Constraint)
	}
	return err
}

func (a *Adapter) execContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	queryCtx, cancel := a.withQueryTimeout(ctx)
	defer cancel()
	return a.db.ExecContext(queryCtx, query, args...)
}

// withQueryTimeout bounds a query with the configured timeout. The caller must
// keep the cancel func alive until it has finished scanning: cancelling the
// context closes the rows out from under a loop still reading them.
func (a *Adapter) withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.config.QueryTimeout)
}

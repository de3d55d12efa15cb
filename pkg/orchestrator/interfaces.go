package orchestrator

import (
	"context"
	"time"

	"github.com/connecthub/connecthub/pkg/model"
	neo4jstore "github.com/connecthub/connecthub/pkg/store/neo4j"
	s3store "github.com/connecthub/connecthub/pkg/store/s3"
)

// The orchestrator declares the store interfaces it consumes; the adapter
// packages satisfy them implicitly. Tests substitute fakes.

// RelationalStore is the authoritative store for users, posts and follows.
type RelationalStore interface {
	InsertUser(ctx context.Context, profile model.UserProfile) (model.User, error)
	FindUserByID(ctx context.Context, id string) (model.User, error)
	FindUsersByIDs(ctx context.Context, ids []string) (map[string]model.User, error)
	InsertPost(ctx context.Context, input model.PostInput) (model.Post, error)
	FindFeedPosts(ctx context.Context, userID string, page, pageSize int) ([]model.Post, error)
	InsertFollow(ctx context.Context, followerID, followingID string) (model.Follow, error)
	DeleteFollow(ctx context.Context, followerID, followingID string) error
	FindFollowerIDs(ctx context.Context, userID string) ([]string, error)
	FindFollowCounts(ctx context.Context, userID string) (followers, following int64, err error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// DocumentStore holds per-post analytics and media metadata.
type DocumentStore interface {
	InsertPostAnalytics(ctx context.Context, postID string) error
	FindPostAnalytics(ctx context.Context, postID string) (model.PostAnalytics, error)
	IncrementPostAnalytics(ctx context.Context, postID, field string, delta int64) error
	InsertMediaMetadata(ctx context.Context, meta model.MediaMetadata) (string, error)
	FindMediaMetadata(ctx context.Context, key string) (model.MediaMetadata, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// GraphStore mirrors the social graph for traversal queries.
type GraphStore interface {
	UpsertUserNode(ctx context.Context, userID, username string) error
	UpsertFollowEdge(ctx context.Context, followerID, followingID string) error
	DeleteFollowEdge(ctx context.Context, followerID, followingID string) error
	RankedNeighbors(ctx context.Context, userID string, hops, limit int) ([]neo4jstore.Neighbor, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// CacheStore is the read-through cache. It is never authoritative.
type CacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
	SortedSetAdd(ctx context.Context, key string, score float64, member string) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// BlobStore holds uploaded media objects.
type BlobStore interface {
	Upload(ctx context.Context, userID string, payload []byte, name, contentType string, opts s3store.UploadOptions) (model.BlobResult, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

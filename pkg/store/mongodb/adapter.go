// Package mongodb implements the document store adapter holding post
// analytics documents and media metadata. Every write through this adapter is
// a secondary step; the orchestrator contains its failures.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/connecthub/connecthub/pkg/model"
	"github.com/connecthub/connecthub/pkg/observability/logger"
	"github.com/connecthub/connecthub/pkg/store"
	"github.com/connecthub/connecthub/pkg/store/storeerr"
)

const (
	storeName = "mongodb"

	analyticsCollection = "post_analytics"
	mediaCollection     = "media_metadata"
)

var _ store.Adapter = (*Adapter)(nil)

// Adapter provides MongoDB connectivity.
type Adapter struct {
	client   *mongo.Client
	database string
	logger   logger.Logger
	timeout  time.Duration
	mu       sync.RWMutex
	closed   bool
}

// Config holds MongoDB adapter configuration.
type Config struct {
	URL              string
	Database         string
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
}

// NewAdapter creates a MongoDB adapter and verifies connectivity via ping.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("mongodb URL is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("mongodb database is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URL))
	if err != nil {
		return nil, storeerr.NewConnectionError(storeName, err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, storeerr.NewConnectionError(storeName, err)
	}

	log.Info("MongoDB connection established", "database", cfg.Database)
	return &Adapter{
		client:   client,
		database: cfg.Database,
		logger:   log,
		timeout:  cfg.OperationTimeout,
	}, nil
}

func (a *Adapter) collection(name string) *mongo.Collection {
	return a.client.Database(a.database).Collection(name)
}

// Ping verifies the MongoDB connection is alive.
func (a *Adapter) Ping(ctx context.Context) error {
	a.mu.RLock()
	closed := a.closed
	a.mu.RUnlock()
	if closed {
		return fmt.Errorf("mongodb adapter is closed")
	}
	return a.client.Ping(ctx, readpref.Primary())
}

// HealthCheck verifies the MongoDB connection is healthy with a timeout.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.Ping(hcCtx); err != nil {
		a.logger.Error("MongoDB health check failed", "error", err)
		return fmt.Errorf("mongodb health check failed: %w", err)
	}
	return nil
}

// Close disconnects the client. Safe to call twice.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to close mongodb connection: %w", err)
	}
	return nil
}

// InsertPostAnalytics creates the all-zero counter document for a new post.
// Re-inserting for the same post id is treated as success so the outbox can
// retry the step safely.
func (a *Adapter) InsertPostAnalytics(ctx context.Context, postID string) error {
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	doc := model.PostAnalytics{PostID: postID}
	_, err := a.collection(analyticsCollection).InsertOne(opCtx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return storeerr.Wrap(storeName, "insert_post_analytics", err)
}

// FindPostAnalytics returns the analytics document for a post. A missing
// document surfaces as storeerr.ErrNotFound.
func (a *Adapter) FindPostAnalytics(ctx context.Context, postID string) (model.PostAnalytics, error) {
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	var doc model.PostAnalytics
	err := a.collection(analyticsCollection).FindOne(opCtx, bson.M{"_id": postID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.PostAnalytics{}, storeerr.Wrap(storeName, "find_post_analytics", storeerr.ErrNotFound)
	}
	if err != nil {
		return model.PostAnalytics{}, storeerr.Wrap(storeName, "find_post_analytics", err)
	}
	return doc, nil
}

// IncrementPostAnalytics atomically bumps one counter field on a post's
// analytics document, creating the document when absent.
func (a *Adapter) IncrementPostAnalytics(ctx context.Context, postID, field string, delta int64) error {
	switch field {
	case "views", "likes", "comments", "shares":
	default:
		return storeerr.Wrap(storeName, "increment_post_analytics", fmt.Errorf("unknown counter field %q", field))
	}

	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	_, err := a.collection(analyticsCollection).UpdateOne(opCtx,
		bson.M{"_id": postID},
		bson.M{"$inc": bson.M{field: delta}},
		options.Update().SetUpsert(true),
	)
	return storeerr.Wrap(storeName, "increment_post_analytics", err)
}

// InsertMediaMetadata records metadata for an uploaded blob and returns the
// generated document id.
func (a *Adapter) InsertMediaMetadata(ctx context.Context, meta model.MediaMetadata) (string, error) {
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	if _, err := a.collection(mediaCollection).InsertOne(opCtx, meta); err != nil {
		return "", storeerr.Wrap(storeName, "insert_media_metadata", err)
	}
	return meta.ID, nil
}

// FindMediaMetadata returns the metadata document for a blob key.
func (a *Adapter) FindMediaMetadata(ctx context.Context, key string) (model.MediaMetadata, error) {
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	var meta model.MediaMetadata
	err := a.collection(mediaCollection).FindOne(opCtx, bson.M{"key": key}).Decode(&meta)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.MediaMetadata{}, storeerr.Wrap(storeName, "find_media_metadata", storeerr.ErrNotFound)
	}
	if err != nil {
		return model.MediaMetadata{}, storeerr.Wrap(storeName, "find_media_metadata", err)
	}
	return meta, nil
}

func (a *Adapter) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}

// Package orchestrator coordinates the five backing stores behind ConnectHub.
// Every operation has exactly one primary step whose failure propagates to
// the caller; all other steps are secondary and are contained, logged,
// counted and handed to the reconciliation outbox.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/connecthub/connecthub/pkg/health"
	"github.com/connecthub/connecthub/pkg/model"
	"github.com/connecthub/connecthub/pkg/observability/logger"
	"github.com/connecthub/connecthub/pkg/observability/metrics"
	"github.com/connecthub/connecthub/pkg/observability/tracing"
	s3store "github.com/connecthub/connecthub/pkg/store/s3"
	"github.com/connecthub/connecthub/pkg/store/storeerr"
)

// State tracks the orchestrator startup lifecycle.
type State int32

const (
	StateUninitialized State = iota
	StateConnectingMandatory
	StateConnectingOptional
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnectingMandatory:
		return "connecting_mandatory"
	case StateConnectingOptional:
		return "connecting_optional"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Store names used in logs, metrics and health reports.
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongodb"
	StoreNeo4j    = "neo4j"
	StoreRedis    = "redis"
	StoreS3       = "s3"
)

// Stores bundles the injected store interfaces. Relational and Cache are
// mandatory; the rest may be nil when the service runs degraded.
type Stores struct {
	Relational RelationalStore
	Document   DocumentStore
	Graph      GraphStore
	Cache      CacheStore
	Blob       BlobStore
}

// Options tunes orchestrator behavior.
type Options struct {
	FeedCacheTTL    time.Duration
	FeedPageSizeMax int
	RecommendHops   int
}

func (o *Options) applyDefaults() {
	if o.FeedCacheTTL <= 0 {
		o.FeedCacheTTL = 60 * time.Second
	}
	if o.FeedPageSizeMax <= 0 {
		o.FeedPageSizeMax = 100
	}
	if o.RecommendHops <= 0 {
		o.RecommendHops = 2
	}
}

// Orchestrator coordinates domain operations across the backing stores.
type Orchestrator struct {
	stores  Stores
	logger  logger.Logger
	metrics *metrics.Registry
	tracer  trace.Tracer
	outbox  *Outbox
	opts    Options
	healthR *health.Registry

	state     atomic.Int32
	closeOnce sync.Once
	closeErr  error
}

// New builds a ready orchestrator from already-connected stores. Relational
// and cache stores are required. Use Bootstrap to walk the full startup
// sequence from configuration.
func New(stores Stores, log logger.Logger, reg *metrics.Registry, tracer trace.Tracer, outbox *Outbox, opts Options) (*Orchestrator, error) {
	if stores.Relational == nil {
		return nil, fmt.Errorf("relational store is required")
	}
	if stores.Cache == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer("orchestrator")
	}
	opts.applyDefaults()

	o := &Orchestrator{
		stores:  stores,
		logger:  log,
		metrics: reg,
		tracer:  tracer,
		outbox:  outbox,
		opts:    opts,
		healthR: buildHealthRegistry(stores),
	}
	o.state.Store(int32(StateReady))
	return o, nil
}

func buildHealthRegistry(stores Stores) *health.Registry {
	registry := health.NewRegistry()
	registry.Register(health.NewAdapterChecker(StorePostgres, stores.Relational, 2*time.Second), health.Mandatory)
	registry.Register(health.NewAdapterChecker(StoreRedis, stores.Cache, 2*time.Second), health.Mandatory)
	registry.Register(health.NewAdapterChecker(StoreMongo, stores.Document, 2*time.Second), health.Optional)
	registry.Register(health.NewAdapterChecker(StoreNeo4j, stores.Graph, 2*time.Second), health.Optional)
	registry.Register(health.NewAdapterChecker(StoreS3, stores.Blob, 2*time.Second), health.Optional)
	return registry
}

// Probes returns the probe surface of every connected store, keyed by store
// name, for the reconnect supervisor. Disconnected optional stores are
// omitted.
func (o *Orchestrator) Probes() map[string]health.Checkable {
	probes := map[string]health.Checkable{
		StorePostgres: o.stores.Relational,
		StoreRedis:    o.stores.Cache,
	}
	if o.stores.Document != nil {
		probes[StoreMongo] = o.stores.Document
	}
	if o.stores.Graph != nil {
		probes[StoreNeo4j] = o.stores.Graph
	}
	if o.stores.Blob != nil {
		probes[StoreS3] = o.stores.Blob
	}
	return probes
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Degraded reports which optional stores are not connected.
func (o *Orchestrator) Degraded() []string {
	var missing []string
	if o.stores.Document == nil {
		missing = append(missing, StoreMongo)
	}
	if o.stores.Graph == nil {
		missing = append(missing, StoreNeo4j)
	}
	if o.stores.Blob == nil {
		missing = append(missing, StoreS3)
	}
	return missing
}

func (o *Orchestrator) ensureReady() error {
	if o.State() != StateReady {
		return fmt.Errorf("%w: state is %s", ErrNotReady, o.State())
	}
	return nil
}

// CreateUser creates a user. The relational insert is the primary step; the
// graph node upsert and the profile cache write are secondary.
func (o *Orchestrator) CreateUser(ctx context.Context, profile model.UserProfile) (model.User, error) {
	if err := o.ensureReady(); err != nil {
		return model.User{}, err
	}
	if err := validateProfile(profile); err != nil {
		return model.User{}, err
	}

	ctx, span := o.startSpan(ctx, "create_user")
	defer span.End()
	defer o.observe("create_user", time.Now())

	user, err := o.stores.Relational.InsertUser(ctx, profile)
	if err != nil {
		o.recordError("create_user", span, err)
		return model.User{}, &UserCreateError{Cause: err}
	}

	steps := make([]Step, 0, 2)
	if o.stores.Graph != nil {
		steps = append(steps, Step{
			Store: StoreNeo4j,
			Op:    "upsert_user_node",
			Run: func(ctx context.Context) error {
				return o.stores.Graph.UpsertUserNode(ctx, user.ID, user.Username)
			},
		})
	}
	steps = append(steps, Step{
		Store: StoreRedis,
		Op:    "cache_user_profile",
		Run: func(ctx context.Context) error {
			payload, err := json.Marshal(user)
			if err != nil {
				return err
			}
			return o.stores.Cache.SetWithTTL(ctx, userCacheKey(user.ID), string(payload), o.opts.FeedCacheTTL)
		},
	})

	o.runSecondaries(ctx, "create_user", steps...)

	o.logger.Info("user created", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// CreatePost creates a post. The relational insert is the primary step; the
// analytics document, trending score and feed cache invalidations are
// secondary.
func (o *Orchestrator) CreatePost(ctx context.Context, input model.PostInput) (model.Post, error) {
	if err := o.ensureReady(); err != nil {
		return model.Post{}, err
	}
	if input.Visibility == "" {
		input.Visibility = model.VisibilityPublic
	}
	if err := validatePostInput(input); err != nil {
		return model.Post{}, err
	}

	ctx, span := o.startSpan(ctx, "create_post")
	defer span.End()
	defer o.observe("create_post", time.Now())

	post, err := o.stores.Relational.InsertPost(ctx, input)
	if err != nil {
		o.recordError("create_post", span, err)
		return model.Post{}, &PostCreateError{Cause: err}
	}

	steps := make([]Step, 0, 4)
	if o.stores.Document != nil {
		steps = append(steps, Step{
			Store: StoreMongo,
			Op:    "insert_post_analytics",
			Run: func(ctx context.Context) error {
				return o.stores.Document.InsertPostAnalytics(ctx, post.ID)
			},
		})
	}
	if post.Visibility == model.VisibilityPublic {
		steps = append(steps, Step{
			Store: StoreRedis,
			Op:    "trending_score",
			Run: func(ctx context.Context) error {
				return o.stores.Cache.SortedSetAdd(ctx, trendingKey, float64(post.CreatedAt.Unix()), post.ID)
			},
		})
	}
	steps = append(steps, Step{
		Store: StoreRedis,
		Op:    "invalidate_author_feed",
		Run: func(ctx context.Context) error {
			return o.stores.Cache.DeleteByPattern(ctx, feedPattern(post.AuthorID))
		},
	})
	steps = append(steps, Step{
		Store: StoreRedis,
		Op:    "invalidate_follower_feeds",
		Run: func(ctx context.Context) error {
			followerIDs, err := o.stores.Relational.FindFollowerIDs(ctx, post.AuthorID)
			if err != nil {
				return err
			}
			for _, id := range followerIDs {
				if err := o.stores.Cache.DeleteByPattern(ctx, feedPattern(id)); err != nil {
					return err
				}
			}
			return nil
		},
	})

	o.runSecondaries(ctx, "create_post", steps...)

	o.logger.Info("post created", "post_id", post.ID, "author_id", post.AuthorID, "visibility", string(post.Visibility))
	return post, nil
}

// CreateFollow records a follow edge. Self-follows are rejected before any
// store is touched. The relational insert is the primary step and enforces
// uniqueness; the graph edge upsert and cache invalidations are secondary.
func (o *Orchestrator) CreateFollow(ctx context.Context, followerID, followingID string) (model.Follow, error) {
	if err := o.ensureReady(); err != nil {
		return model.Follow{}, err
	}
	followerID = strings.TrimSpace(followerID)
	followingID = strings.TrimSpace(followingID)
	if followerID == "" || followingID == "" {
		return model.Follow{}, &ValidationError{Field: "follow", Reason: "follower and following ids are required"}
	}
	if followerID == followingID {
		return model.Follow{}, ErrInvalidFollow
	}

	ctx, span := o.startSpan(ctx, "create_follow")
	defer span.End()
	defer o.observe("create_follow", time.Now())

	follow, err := o.stores.Relational.InsertFollow(ctx, followerID, followingID)
	if err != nil {
		o.recordError("create_follow", span, err)
		if storeerr.IsDuplicate(err) {
			return model.Follow{}, ErrDuplicateFollow
		}
		return model.Follow{}, err
	}

	steps := make([]Step, 0, 2)
	if o.stores.Graph != nil {
		steps = append(steps, Step{
			Store: StoreNeo4j,
			Op:    "upsert_follow_edge",
			Run: func(ctx context.Context) error {
				return o.stores.Graph.UpsertFollowEdge(ctx, followerID, followingID)
			},
		})
	}
	steps = append(steps, Step{
		Store: StoreRedis,
		Op:    "invalidate_follow_caches",
		Run: func(ctx context.Context) error {
			if err := o.stores.Cache.Delete(ctx, followersCacheKey(followingID), followingCacheKey(followerID)); err != nil {
				return err
			}
			return o.stores.Cache.DeleteByPattern(ctx, feedPattern(followerID))
		},
	})

	o.runSecondaries(ctx, "create_follow", steps...)

	o.logger.Info("follow created", "follower_id", followerID, "following_id", followingID)
	return follow, nil
}

// RemoveFollow deletes a follow edge. The relational delete is the primary
// step; graph edge removal and cache invalidations are secondary.
func (o *Orchestrator) RemoveFollow(ctx context.Context, followerID, followingID string) error {
	if err := o.ensureReady(); err != nil {
		return err
	}
	if followerID == "" || followingID == "" {
		return &ValidationError{Field: "follow", Reason: "follower and following ids are required"}
	}

	ctx, span := o.startSpan(ctx, "remove_follow")
	defer span.End()
	defer o.observe("remove_follow", time.Now())

	if err := o.stores.Relational.DeleteFollow(ctx, followerID, followingID); err != nil {
		o.recordError("remove_follow", span, err)
		return err
	}

	steps := make([]Step, 0, 2)
	if o.stores.Graph != nil {
		steps = append(steps, Step{
			Store: StoreNeo4j,
			Op:    "delete_follow_edge",
			Run: func(ctx context.Context) error {
				return o.stores.Graph.DeleteFollowEdge(ctx, followerID, followingID)
			},
		})
	}
	steps = append(steps, Step{
		Store: StoreRedis,
		Op:    "invalidate_follow_caches",
		Run: func(ctx context.Context) error {
			if err := o.stores.Cache.Delete(ctx, followersCacheKey(followingID), followingCacheKey(followerID)); err != nil {
				return err
			}
			return o.stores.Cache.DeleteByPattern(ctx, feedPattern(followerID))
		},
	})

	o.runSecondaries(ctx, "remove_follow", steps...)
	return nil
}

// UploadMedia stores a media object. The blob upload is the primary step;
// the metadata document insert is secondary and its failure leaves
// MetadataID empty while the upload still succeeds.
func (o *Orchestrator) UploadMedia(ctx context.Context, userID string, payload []byte, name, contentType string) (model.MediaUpload, error) {
	if err := o.ensureReady(); err != nil {
		return model.MediaUpload{}, err
	}
	if o.stores.Blob == nil {
		return model.MediaUpload{}, &MediaUploadError{Cause: fmt.Errorf("%w: %s", ErrStoreUnavailable, StoreS3)}
	}
	if userID == "" {
		return model.MediaUpload{}, &ValidationError{Field: "user_id", Reason: "required"}
	}
	if len(payload) == 0 {
		return model.MediaUpload{}, &ValidationError{Field: "payload", Reason: "required"}
	}

	ctx, span := o.startSpan(ctx, "upload_media")
	defer span.End()
	defer o.observe("upload_media", time.Now())

	blob, err := o.stores.Blob.Upload(ctx, userID, payload, name, contentType, s3store.UploadOptions{})
	if err != nil {
		o.recordError("upload_media", span, err)
		return model.MediaUpload{}, &MediaUploadError{Cause: err}
	}

	upload := model.MediaUpload{
		Key:           blob.Key,
		URL:           blob.URL,
		DerivedAssets: blob.DerivedAssets,
	}

	if o.stores.Document != nil {
		meta := model.MediaMetadata{
			UserID:      userID,
			Key:         blob.Key,
			URL:         blob.URL,
			Name:        name,
			MimeType:    contentType,
			SizeBytes:   int64(len(payload)),
			DerivedKeys: blob.DerivedAssets,
		}
		id, err := o.stores.Document.InsertMediaMetadata(ctx, meta)
		if err != nil {
			o.containFailure("upload_media", Step{
				Store: StoreMongo,
				Op:    "insert_media_metadata",
				Run: func(ctx context.Context) error {
					_, err := o.stores.Document.InsertMediaMetadata(ctx, meta)
					return err
				},
			}, err)
		} else {
			upload.MetadataID = id
		}
	}

	o.logger.Info("media uploaded", "user_id", userID, "key", blob.Key, "metadata_id", upload.MetadataID)
	return upload, nil
}

// GetUserFeed returns one page of a user's feed, read-through cached. The
// relational read is the primary step; cache reads and writes and analytics
// enrichment are secondary.
func (o *Orchestrator) GetUserFeed(ctx context.Context, userID string, page, pageSize int) (model.FeedPage, error) {
	if err := o.ensureReady(); err != nil {
		return model.FeedPage{}, err
	}
	if userID == "" {
		return model.FeedPage{}, &ValidationError{Field: "user_id", Reason: "required"}
	}
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > o.opts.FeedPageSizeMax {
		pageSize = o.opts.FeedPageSizeMax
	}

	ctx, span := o.startSpan(ctx, "get_user_feed")
	defer span.End()
	defer o.observe("get_user_feed", time.Now())

	key := feedCacheKey(userID, page, pageSize)
	if cached, ok := o.feedFromCache(ctx, key); ok {
		return cached, nil
	}

	posts, err := o.stores.Relational.FindFeedPosts(ctx, userID, page, pageSize)
	if err != nil {
		o.recordError("get_user_feed", span, err)
		return model.FeedPage{}, err
	}

	feed := model.FeedPage{
		Items:    o.enrichFeedItems(ctx, posts),
		Page:     page,
		PageSize: pageSize,
	}

	if payload, err := json.Marshal(feed); err == nil {
		o.runSecondaries(ctx, "get_user_feed", Step{
			Store: StoreRedis,
			Op:    "cache_feed_page",
			Run: func(ctx context.Context) error {
				return o.stores.Cache.SetWithTTL(ctx, key, string(payload), o.opts.FeedCacheTTL)
			},
		})
	}

	return feed, nil
}

// feedFromCache attempts a cache read. Any failure, including a miss or a
// corrupt payload, reads as absence.
func (o *Orchestrator) feedFromCache(ctx context.Context, key string) (model.FeedPage, bool) {
	raw, err := o.stores.Cache.Get(ctx, key)
	if err != nil {
		if o.metrics != nil {
			o.metrics.RecordCacheMiss()
		}
		if !storeerr.IsCacheMiss(err) {
			o.logger.Warn("feed cache read failed", "key", key, "error", err)
		}
		return model.FeedPage{}, false
	}

	var feed model.FeedPage
	if err := json.Unmarshal([]byte(raw), &feed); err != nil {
		o.logger.Warn("discarding corrupt feed cache entry", "key", key, "error", err)
		if delErr := o.stores.Cache.Delete(ctx, key); delErr != nil {
			o.logger.Warn("failed to delete corrupt feed cache entry", "key", key, "error", delErr)
		}
		if o.metrics != nil {
			o.metrics.RecordCacheMiss()
		}
		return model.FeedPage{}, false
	}

	if o.metrics != nil {
		o.metrics.RecordCacheHit()
	}
	return feed, true
}

// enrichFeedItems attaches best-effort analytics to each post. Document
// store failures leave Analytics nil and never fail the feed.
func (o *Orchestrator) enrichFeedItems(ctx context.Context, posts []model.Post) []model.FeedItem {
	items := make([]model.FeedItem, len(posts))
	for i, post := range posts {
		items[i] = model.FeedItem{Post: post}
	}
	if o.stores.Document == nil || len(posts) == 0 {
		return items
	}

	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			analytics, err := o.stores.Document.FindPostAnalytics(ctx, items[i].Post.ID)
			if err != nil {
				if !storeerr.IsNotFound(err) {
					o.logger.Debug("analytics lookup failed", "post_id", items[i].Post.ID, "error", err)
				}
				return
			}
			items[i].Analytics = &analytics
		}(i)
	}
	wg.Wait()

	return items
}

// GetFriendRecommendations returns follow suggestions ranked by the graph
// store. When the graph store is unavailable the result is empty, not an
// error. Relational hydration preserves the graph ranking order and drops
// inactive or missing users.
func (o *Orchestrator) GetFriendRecommendations(ctx context.Context, userID string, limit int) ([]model.Recommendation, error) {
	if err := o.ensureReady(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "required"}
	}
	if limit <= 0 {
		limit = 10
	}

	ctx, span := o.startSpan(ctx, "get_recommendations")
	defer span.End()
	defer o.observe("get_recommendations", time.Now())

	if o.stores.Graph == nil {
		return []model.Recommendation{}, nil
	}

	neighbors, err := o.stores.Graph.RankedNeighbors(ctx, userID, o.opts.RecommendHops, limit)
	if err != nil {
		o.logger.Warn("graph traversal failed, returning empty recommendations", "user_id", userID, "error", err)
		if o.metrics != nil {
			o.metrics.RecordSecondaryFailure(StoreNeo4j, "ranked_neighbors")
		}
		return []model.Recommendation{}, nil
	}
	if len(neighbors) == 0 {
		return []model.Recommendation{}, nil
	}

	ids := make([]string, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.UserID
	}

	users, err := o.stores.Relational.FindUsersByIDs(ctx, ids)
	if err != nil {
		o.recordError("get_recommendations", span, err)
		return nil, err
	}

	recommendations := make([]model.Recommendation, 0, len(neighbors))
	for _, n := range neighbors {
		user, ok := users[n.UserID]
		if !ok {
			continue
		}
		recommendations = append(recommendations, model.Recommendation{
			User:            user,
			MutualFollowers: n.Mutuals,
		})
	}

	return recommendations, nil
}

// HealthCheck probes every store and reports per-store reachability. It
// never returns an error; a failing or disconnected store reads false.
func (o *Orchestrator) HealthCheck(ctx context.Context) map[string]bool {
	return o.healthR.Check(ctx).StoreMap()
}

// Health returns the full aggregated health verdict for the HTTP surface.
func (o *Orchestrator) Health(ctx context.Context) health.AggregatedResult {
	return o.healthR.Check(ctx)
}

// CloseAll shuts down all connected stores in reverse connection order.
// Safe to call twice.
func (o *Orchestrator) CloseAll() error {
	o.closeOnce.Do(func() {
		o.state.Store(int32(StateClosed))
		if o.outbox != nil {
			o.outbox.Stop()
		}

		var errs []error
		closers := []struct {
			name  string
			close func() error
		}{
			{StoreS3, closeIfSet(o.stores.Blob)},
			{StoreNeo4j, closeIfSet(o.stores.Graph)},
			{StoreMongo, closeIfSet(o.stores.Document)},
			{StoreRedis, closeIfSet(o.stores.Cache)},
			{StorePostgres, closeIfSet(o.stores.Relational)},
		}
		for _, c := range closers {
			if c.close == nil {
				continue
			}
			if err := c.close(); err != nil {
				o.logger.Error("store close failed", "store", c.name, "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			}
		}
		o.closeErr = errors.Join(errs...)
		o.logger.Info("orchestrator closed")
	})
	return o.closeErr
}

type closer interface {
	Close() error
}

func closeIfSet(c closer) func() error {
	if c == nil {
		return nil
	}
	return c.Close
}

// runSecondaries executes the secondary steps of an operation and applies the
// containment rule to failures: log, count, enqueue for reconciliation. It
// never propagates an error to the caller.
func (o *Orchestrator) runSecondaries(ctx context.Context, operation string, steps ...Step) {
	outcomes := Gather(ctx, steps...)
	for i, outcome := range outcomes {
		if outcome.Failed() {
			o.containFailure(operation, steps[i], outcome.Err)
		}
	}
}

// containFailure logs, counts and enqueues a failed secondary step for
// reconciliation.
func (o *Orchestrator) containFailure(operation string, step Step, err error) {
	o.logger.Warn("secondary step failed",
		"operation", operation, "store", step.Store, "step", step.Op, "error", err)
	if o.metrics != nil {
		o.metrics.RecordSecondaryFailure(step.Store, step.Op)
	}
	if o.outbox != nil {
		o.outbox.Enqueue(step.Store, step.Op, step.Run)
	}
}

func (o *Orchestrator) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return tracing.StartOperationSpan(ctx, o.tracer, operation)
}

func (o *Orchestrator) observe(operation string, start time.Time) {
	if o.metrics != nil {
		o.metrics.ObserveOperation(operation, time.Since(start))
	}
}

func (o *Orchestrator) recordError(operation string, span trace.Span, err error) {
	if o.metrics != nil {
		o.metrics.RecordOperationError(operation)
	}
	tracing.RecordError(span, err)
}

func validateProfile(profile model.UserProfile) error {
	if strings.TrimSpace(profile.Username) == "" {
		return &ValidationError{Field: "username", Reason: "required"}
	}
	if strings.TrimSpace(profile.Email) == "" {
		return &ValidationError{Field: "email", Reason: "required"}
	}
	return nil
}

func validatePostInput(input model.PostInput) error {
	if strings.TrimSpace(input.AuthorID) == "" {
		return &ValidationError{Field: "author_id", Reason: "required"}
	}
	if strings.TrimSpace(input.Content) == "" && len(input.MediaKeys) == 0 {
		return &ValidationError{Field: "content", Reason: "post needs content or media"}
	}
	if !input.Visibility.Valid() {
		return &ValidationError{Field: "visibility", Reason: "unknown visibility"}
	}
	return nil
}

const trendingKey = "trending:posts"

func feedCacheKey(userID string, page, pageSize int) string {
	return fmt.Sprintf("feed:%s:%d:%d", userID, page, pageSize)
}

func feedPattern(userID string) string {
	return fmt.Sprintf("feed:%s:*", userID)
}

func userCacheKey(userID string) string {
	return "user:" + userID
}

func followersCacheKey(userID string) string {
	return "followers:" + userID
}

func followingCacheKey(userID string) string {
	return "following:" + userID
}

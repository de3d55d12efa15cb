package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/connecthub/connecthub/pkg/model"
	"github.com/connecthub/connecthub/pkg/observability/logger"
	neo4jstore "github.com/connecthub/connecthub/pkg/store/neo4j"
	s3store "github.com/connecthub/connecthub/pkg/store/s3"
	"github.com/connecthub/connecthub/pkg/store/storeerr"
)

// fakeRelational is an in-memory relational store.
type fakeRelational struct {
	mu            sync.Mutex
	users         map[string]model.User
	follows       map[string]bool
	posts         []model.Post
	insertUserErr error
	feedErr       error
	findUsersErr  error
	healthErr     error
	feedCalls     int
	insertFollows int
	userSeq       int
	closed        bool
}

func newFakeRelational() *fakeRelational {
	return &fakeRelational{
		users:   make(map[string]model.User),
		follows: make(map[string]bool),
	}
}

func (f *fakeRelational) InsertUser(ctx context.Context, profile model.UserProfile) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertUserErr != nil {
		return model.User{}, f.insertUserErr
	}
	for _, u := range f.users {
		if u.Username == profile.Username {
			return model.User{}, storeerr.Wrap("postgres", "insert_user", fmt.Errorf("%w: username", storeerr.ErrDuplicate))
		}
	}
	f.userSeq++
	user := model.User{
		ID:          fmt.Sprintf("user-%d", f.userSeq),
		Username:    profile.Username,
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
		Active:      true,
		CreatedAt:   time.Now(),
	}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeRelational) FindUserByID(ctx context.Context, id string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return model.User{}, storeerr.Wrap("postgres", "find_user", storeerr.ErrNotFound)
	}
	return user, nil
}

func (f *fakeRelational) FindUsersByIDs(ctx context.Context, ids []string) (map[string]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findUsersErr != nil {
		return nil, f.findUsersErr
	}
	found := make(map[string]model.User)
	for _, id := range ids {
		if user, ok := f.users[id]; ok && user.Active {
			found[id] = user
		}
	}
	return found, nil
}

func (f *fakeRelational) InsertPost(ctx context.Context, input model.PostInput) (model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post := model.Post{
		ID:         fmt.Sprintf("post-%d", len(f.posts)+1),
		AuthorID:   input.AuthorID,
		Content:    input.Content,
		MediaKeys:  input.MediaKeys,
		Visibility: input.Visibility,
		CreatedAt:  time.Now(),
	}
	f.posts = append(f.posts, post)
	return post, nil
}

func (f *fakeRelational) FindFeedPosts(ctx context.Context, userID string, page, pageSize int) ([]model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedCalls++
	if f.feedErr != nil {
		return nil, f.feedErr
	}
	var feed []model.Post
	for i := len(f.posts) - 1; i >= 0; i-- {
		post := f.posts[i]
		if post.AuthorID == userID || (f.follows[userID+"/"+post.AuthorID] && post.Visibility != model.VisibilityPrivate) {
			feed = append(feed, post)
		}
	}
	start := page * pageSize
	if start >= len(feed) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(feed) {
		end = len(feed)
	}
	return feed[start:end], nil
}

func (f *fakeRelational) InsertFollow(ctx context.Context, followerID, followingID string) (model.Follow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertFollows++
	key := followerID + "/" + followingID
	if f.follows[key] {
		return model.Follow{}, storeerr.Wrap("postgres", "insert_follow", fmt.Errorf("%w: follows_pkey", storeerr.ErrDuplicate))
	}
	f.follows[key] = true
	return model.Follow{FollowerID: followerID, FollowingID: followingID, CreatedAt: time.Now()}, nil
}

func (f *fakeRelational) DeleteFollow(ctx context.Context, followerID, followingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.follows, followerID+"/"+followingID)
	return nil
}

func (f *fakeRelational) FindFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for key := range f.follows {
		parts := strings.SplitN(key, "/", 2)
		if len(parts) == 2 && parts[1] == userID {
			ids = append(ids, parts[0])
		}
	}
	return ids, nil
}

func (f *fakeRelational) FindFollowCounts(ctx context.Context, userID string) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var followers, following int64
	for key := range f.follows {
		parts := strings.SplitN(key, "/", 2)
		if parts[1] == userID {
			followers++
		}
		if parts[0] == userID {
			following++
		}
	}
	return followers, following, nil
}

func (f *fakeRelational) HealthCheck(ctx context.Context) error { return f.healthErr }

func (f *fakeRelational) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// fakeDocument is an in-memory document store.
type fakeDocument struct {
	mu           sync.Mutex
	analytics    map[string]model.PostAnalytics
	media        map[string]model.MediaMetadata
	insertErr    error
	metaErr      error
	healthErr    error
	insertCalls  int
	metaInserted int
}

func newFakeDocument() *fakeDocument {
	return &fakeDocument{
		analytics: make(map[string]model.PostAnalytics),
		media:     make(map[string]model.MediaMetadata),
	}
}

func (f *fakeDocument) InsertPostAnalytics(ctx context.Context, postID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.insertErr != nil {
		return f.insertErr
	}
	if _, ok := f.analytics[postID]; !ok {
		f.analytics[postID] = model.PostAnalytics{PostID: postID}
	}
	return nil
}

func (f *fakeDocument) FindPostAnalytics(ctx context.Context, postID string) (model.PostAnalytics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.analytics[postID]
	if !ok {
		return model.PostAnalytics{}, storeerr.Wrap("mongodb", "find_post_analytics", storeerr.ErrNotFound)
	}
	return doc, nil
}

func (f *fakeDocument) IncrementPostAnalytics(ctx context.Context, postID, field string, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := f.analytics[postID]
	doc.PostID = postID
	if field == "views" {
		doc.Views += delta
	}
	f.analytics[postID] = doc
	return nil
}

func (f *fakeDocument) InsertMediaMetadata(ctx context.Context, meta model.MediaMetadata) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.metaErr != nil {
		return "", f.metaErr
	}
	f.metaInserted++
	id := fmt.Sprintf("meta-%d", f.metaInserted)
	meta.ID = id
	f.media[meta.Key] = meta
	return id, nil
}

func (f *fakeDocument) FindMediaMetadata(ctx context.Context, key string) (model.MediaMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta, ok := f.media[key]
	if !ok {
		return model.MediaMetadata{}, storeerr.Wrap("mongodb", "find_media_metadata", storeerr.ErrNotFound)
	}
	return meta, nil
}

func (f *fakeDocument) HealthCheck(ctx context.Context) error { return f.healthErr }
func (f *fakeDocument) Close() error                          { return nil }

// fakeGraph is an in-memory graph store.
type fakeGraph struct {
	mu        sync.Mutex
	nodes     map[string]string
	edges     map[string]bool
	neighbors []neo4jstore.Neighbor
	upsertErr error
	rankErr   error
	healthErr error
	nodeCalls int
	edgeCalls int
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		nodes: make(map[string]string),
		edges: make(map[string]bool),
	}
}

func (f *fakeGraph) UpsertUserNode(ctx context.Context, userID, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodeCalls++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.nodes[userID] = username
	return nil
}

func (f *fakeGraph) UpsertFollowEdge(ctx context.Context, followerID, followingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edgeCalls++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.edges[followerID+"/"+followingID] = true
	return nil
}

func (f *fakeGraph) DeleteFollowEdge(ctx context.Context, followerID, followingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.edges, followerID+"/"+followingID)
	return nil
}

func (f *fakeGraph) RankedNeighbors(ctx context.Context, userID string, hops, limit int) ([]neo4jstore.Neighbor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rankErr != nil {
		return nil, f.rankErr
	}
	return f.neighbors, nil
}

func (f *fakeGraph) HealthCheck(ctx context.Context) error { return f.healthErr }
func (f *fakeGraph) Close() error                          { return nil }

// fakeCache is an in-memory cache store with glob-suffix pattern deletes.
type fakeCache struct {
	mu        sync.Mutex
	entries   map[string]string
	setErr    error
	getErr    error
	healthErr error
	setCalls  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]string)}
}

func (f *fakeCache) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", f.getErr
	}
	value, ok := f.entries[key]
	if !ok {
		return "", storeerr.Wrap("redis", "get", storeerr.ErrCacheMiss)
	}
	return value, nil
}

func (f *fakeCache) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[key] = value
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.entries, key)
	}
	return nil
}

func (f *fakeCache) DeleteByPattern(ctx context.Context, pattern string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range f.entries {
		if strings.HasPrefix(key, prefix) {
			delete(f.entries, key)
		}
	}
	return nil
}

func (f *fakeCache) SortedSetAdd(ctx context.Context, key string, score float64, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key+"/"+member] = fmt.Sprintf("%f", score)
	return nil
}

func (f *fakeCache) HealthCheck(ctx context.Context) error { return f.healthErr }
func (f *fakeCache) Close() error                          { return nil }

func (f *fakeCache) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[key]
	return ok
}

func (f *fakeCache) put(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = value
}

// fakeBlob is an in-memory blob store.
type fakeBlob struct {
	mu        sync.Mutex
	uploadErr error
	healthErr error
	uploads   int
}

func (f *fakeBlob) Upload(ctx context.Context, userID string, payload []byte, name, contentType string, opts s3store.UploadOptions) (model.BlobResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return model.BlobResult{}, f.uploadErr
	}
	f.uploads++
	key := fmt.Sprintf("media/%s/%d", userID, f.uploads)
	result := model.BlobResult{Key: key, URL: "https://example.com/" + key}
	if strings.HasPrefix(contentType, "image/") {
		result.DerivedAssets = map[string]string{"thumbnail": "thumb/" + key}
	}
	return result, nil
}

func (f *fakeBlob) HealthCheck(ctx context.Context) error { return f.healthErr }
func (f *fakeBlob) Close() error                          { return nil }

type testEnv struct {
	orch       *Orchestrator
	relational *fakeRelational
	document   *fakeDocument
	graph      *fakeGraph
	cache      *fakeCache
	blob       *fakeBlob
	outbox     *Outbox
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log, _ := logger.NewZapLogger(logger.Config{
		Level:  logger.ErrorLevel,
		Format: logger.JSONFormat,
	})

	env := &testEnv{
		relational: newFakeRelational(),
		document:   newFakeDocument(),
		graph:      newFakeGraph(),
		cache:      newFakeCache(),
		blob:       &fakeBlob{},
	}
	env.outbox = NewOutbox(time.Hour, 3, log, nil)

	orch, err := New(Stores{
		Relational: env.relational,
		Document:   env.document,
		Graph:      env.graph,
		Cache:      env.cache,
		Blob:       env.blob,
	}, log, nil, nil, env.outbox, Options{})
	if err != nil {
		t.Fatalf("Failed to build orchestrator: %v", err)
	}
	env.orch = orch
	return env
}

// TestCreateUser tests that a user lands in all stores on the happy path
func TestCreateUser(t *testing.T) {
	env := newTestEnv(t)

	user, err := env.orch.CreateUser(context.Background(), model.UserProfile{
		Username: "alice", Email: "alice@example.com",
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.ID == "" {
		t.Fatal("Expected user id")
	}
	if env.graph.nodes[user.ID] != "alice" {
		t.Error("Expected graph node for new user")
	}
	if !env.cache.has("user:" + user.ID) {
		t.Error("Expected cached profile for new user")
	}
}

// TestCreateUser_SecondaryFailuresContained tests that graph and cache
// failures do not fail user creation
func TestCreateUser_SecondaryFailuresContained(t *testing.T) {
	env := newTestEnv(t)
	env.graph.upsertErr = errors.New("neo4j down")
	env.cache.setErr = errors.New("redis down")

	user, err := env.orch.CreateUser(context.Background(), model.UserProfile{
		Username: "alice", Email: "alice@example.com",
	})
	if err != nil {
		t.Fatalf("Expected success despite secondary failures, got %v", err)
	}
	if _, ok := env.relational.users[user.ID]; !ok {
		t.Error("Expected user in relational store")
	}
	if env.outbox.Depth() != 2 {
		t.Errorf("Expected 2 outbox entries, got %d", env.outbox.Depth())
	}
}

// TestCreateUser_PrimaryFailurePropagates tests that a relational failure fails the call
func TestCreateUser_PrimaryFailurePropagates(t *testing.T) {
	env := newTestEnv(t)
	env.relational.insertUserErr = errors.New("connection reset")

	_, err := env.orch.CreateUser(context.Background(), model.UserProfile{
		Username: "alice", Email: "alice@example.com",
	})
	var createErr *UserCreateError
	if !errors.As(err, &createErr) {
		t.Fatalf("Expected UserCreateError, got %v", err)
	}
	if env.graph.nodeCalls != 0 {
		t.Error("Expected no graph write after primary failure")
	}
}

// TestCreateUser_Validation tests input validation
func TestCreateUser_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		profile model.UserProfile
	}{
		{"missing username", model.UserProfile{Email: "a@b.c"}},
		{"missing email", model.UserProfile{Username: "alice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.orch.CreateUser(context.Background(), tt.profile)
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Errorf("Expected ValidationError, got %v", err)
			}
		})
	}
}

// TestCreateFollow_SelfFollowRejectedBeforeWrites tests that a self-follow
// returns ErrInvalidFollow without touching any store
func TestCreateFollow_SelfFollowRejectedBeforeWrites(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.orch.CreateFollow(context.Background(), "user-1", "user-1")
	if !errors.Is(err, ErrInvalidFollow) {
		t.Fatalf("Expected ErrInvalidFollow, got %v", err)
	}
	if env.relational.insertFollows != 0 {
		t.Error("Expected no relational write for self-follow")
	}
	if env.graph.edgeCalls != 0 {
		t.Error("Expected no graph write for self-follow")
	}
}

// TestCreateFollow_ConcurrentDuplicates tests that concurrent identical
// follows produce exactly one edge
func TestCreateFollow_ConcurrentDuplicates(t *testing.T) {
	env := newTestEnv(t)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = env.orch.CreateFollow(context.Background(), "user-1", "user-2")
		}(i)
	}
	wg.Wait()

	var successes, duplicates int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrDuplicateFollow):
			duplicates++
		default:
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	if successes != 1 || duplicates != 1 {
		t.Errorf("Expected 1 success and 1 duplicate, got %d and %d", successes, duplicates)
	}
	if !env.relational.follows["user-1/user-2"] {
		t.Error("Expected exactly the one follow edge")
	}
}

// TestCreateFollow_InvalidatesFollowerFeedCache tests follow-side cache invalidation
func TestCreateFollow_InvalidatesFollowerFeedCache(t *testing.T) {
	env := newTestEnv(t)
	env.cache.put("feed:user-1:0:20", `{"items":null,"page":0,"page_size":20}`)

	if _, err := env.orch.CreateFollow(context.Background(), "user-1", "user-2"); err != nil {
		t.Fatalf("CreateFollow failed: %v", err)
	}
	if env.cache.has("feed:user-1:0:20") {
		t.Error("Expected follower's feed cache to be invalidated")
	}
}

// TestCreatePost_FeedInvalidationScopedToFollowers tests the end-to-end
// cache scoping: a new post drops the author's and followers' cached feed
// pages but leaves unrelated users' pages alone
func TestCreatePost_FeedInvalidationScopedToFollowers(t *testing.T) {
	env := newTestEnv(t)
	env.relational.follows["user-2/user-1"] = true

	env.cache.put("feed:user-2:0:20", "stale-follower-page")
	env.cache.put("feed:user-3:0:20", "unrelated-page")

	_, err := env.orch.CreatePost(context.Background(), model.PostInput{
		AuthorID: "user-1", Content: "hello", Visibility: model.VisibilityPublic,
	})
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	if env.cache.has("feed:user-2:0:20") {
		t.Error("Expected follower's feed cache invalidated")
	}
	if !env.cache.has("feed:user-3:0:20") {
		t.Error("Expected non-follower's feed cache untouched")
	}
}

// TestCreatePost_AnalyticsFailureContained tests that a document store
// failure neither fails the post nor is lost
func TestCreatePost_AnalyticsFailureContained(t *testing.T) {
	env := newTestEnv(t)
	env.document.insertErr = errors.New("mongo down")

	post, err := env.orch.CreatePost(context.Background(), model.PostInput{
		AuthorID: "user-1", Content: "hello",
	})
	if err != nil {
		t.Fatalf("Expected success despite analytics failure, got %v", err)
	}
	if post.ID == "" {
		t.Fatal("Expected post id")
	}
	if env.outbox.Depth() == 0 {
		t.Error("Expected analytics write enqueued for reconciliation")
	}

	// The sweep reconciles once the store recovers.
	env.document.insertErr = nil
	env.outbox.Sweep(context.Background())
	if _, ok := env.document.analytics[post.ID]; !ok {
		t.Error("Expected analytics document after reconciliation")
	}
}

// TestCreatePost_TrendingOnlyPublic tests that only public posts are scored
func TestCreatePost_TrendingOnlyPublic(t *testing.T) {
	env := newTestEnv(t)

	public, _ := env.orch.CreatePost(context.Background(), model.PostInput{
		AuthorID: "user-1", Content: "hi", Visibility: model.VisibilityPublic,
	})
	private, _ := env.orch.CreatePost(context.Background(), model.PostInput{
		AuthorID: "user-1", Content: "psst", Visibility: model.VisibilityPrivate,
	})

	if !env.cache.has("trending:posts/" + public.ID) {
		t.Error("Expected public post in trending set")
	}
	if env.cache.has("trending:posts/" + private.ID) {
		t.Error("Expected private post absent from trending set")
	}
}

// TestGetUserFeed_WarmAndColdAgree tests that a cached page equals the
// freshly computed one
func TestGetUserFeed_WarmAndColdAgree(t *testing.T) {
	env := newTestEnv(t)
	env.relational.follows["reader/author"] = true
	for i := 0; i < 3; i++ {
		if _, err := env.orch.CreatePost(context.Background(), model.PostInput{
			AuthorID: "author", Content: fmt.Sprintf("post %d", i),
		}); err != nil {
			t.Fatalf("CreatePost failed: %v", err)
		}
	}

	cold, err := env.orch.GetUserFeed(context.Background(), "reader", 0, 20)
	if err != nil {
		t.Fatalf("Cold feed read failed: %v", err)
	}
	warm, err := env.orch.GetUserFeed(context.Background(), "reader", 0, 20)
	if err != nil {
		t.Fatalf("Warm feed read failed: %v", err)
	}

	if env.relational.feedCalls != 1 {
		t.Errorf("Expected 1 relational feed query, got %d", env.relational.feedCalls)
	}
	if len(cold.Items) != len(warm.Items) {
		t.Fatalf("Cold and warm pages differ in length: %d vs %d", len(cold.Items), len(warm.Items))
	}
	for i := range cold.Items {
		if cold.Items[i].Post.ID != warm.Items[i].Post.ID {
			t.Errorf("Item %d differs: %s vs %s", i, cold.Items[i].Post.ID, warm.Items[i].Post.ID)
		}
	}
}

// TestGetUserFeed_CorruptCacheFallsThrough tests that a bad cache entry is
// discarded, never served
func TestGetUserFeed_CorruptCacheFallsThrough(t *testing.T) {
	env := newTestEnv(t)
	env.cache.put("feed:reader:0:20", "{not json")

	feed, err := env.orch.GetUserFeed(context.Background(), "reader", 0, 20)
	if err != nil {
		t.Fatalf("GetUserFeed failed: %v", err)
	}
	if env.relational.feedCalls != 1 {
		t.Errorf("Expected fallthrough to relational store, got %d calls", env.relational.feedCalls)
	}
	if len(feed.Items) != 0 {
		t.Errorf("Expected empty feed, got %d items", len(feed.Items))
	}
}

// TestGetUserFeed_CacheUnreachableStillServes tests that a cache outage
// does not break reads
func TestGetUserFeed_CacheUnreachableStillServes(t *testing.T) {
	env := newTestEnv(t)
	env.cache.getErr = errors.New("redis down")
	env.cache.setErr = errors.New("redis down")

	if _, err := env.orch.GetUserFeed(context.Background(), "reader", 0, 20); err != nil {
		t.Fatalf("Expected feed despite cache outage, got %v", err)
	}
}

// TestGetUserFeed_PageSizeClamped tests pagination bounds
func TestGetUserFeed_PageSizeClamped(t *testing.T) {
	env := newTestEnv(t)

	feed, err := env.orch.GetUserFeed(context.Background(), "reader", -3, 9999)
	if err != nil {
		t.Fatalf("GetUserFeed failed: %v", err)
	}
	if feed.Page != 0 {
		t.Errorf("Expected page clamped to 0, got %d", feed.Page)
	}
	if feed.PageSize != 100 {
		t.Errorf("Expected page size clamped to 100, got %d", feed.PageSize)
	}
}

// TestGetUserFeed_AnalyticsEnrichment tests best-effort analytics attachment
func TestGetUserFeed_AnalyticsEnrichment(t *testing.T) {
	env := newTestEnv(t)
	post, _ := env.orch.CreatePost(context.Background(), model.PostInput{
		AuthorID: "reader", Content: "hello",
	})
	env.document.analytics[post.ID] = model.PostAnalytics{PostID: post.ID, Views: 42}

	feed, err := env.orch.GetUserFeed(context.Background(), "reader", 0, 20)
	if err != nil {
		t.Fatalf("GetUserFeed failed: %v", err)
	}
	if len(feed.Items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(feed.Items))
	}
	if feed.Items[0].Analytics == nil || feed.Items[0].Analytics.Views != 42 {
		t.Error("Expected analytics attached to feed item")
	}
}

// TestGetFriendRecommendations_PreservesGraphOrder tests that relational
// hydration keeps the graph ranking
func TestGetFriendRecommendations_PreservesGraphOrder(t *testing.T) {
	env := newTestEnv(t)
	var ids []string
	for _, name := range []string{"carol", "dave", "erin"} {
		user, _ := env.orch.CreateUser(context.Background(), model.UserProfile{
			Username: name, Email: name + "@example.com",
		})
		ids = append(ids, user.ID)
	}
	env.graph.neighbors = []neo4jstore.Neighbor{
		{UserID: ids[2], Mutuals: 9},
		{UserID: ids[0], Mutuals: 4},
		{UserID: ids[1], Mutuals: 1},
	}

	recs, err := env.orch.GetFriendRecommendations(context.Background(), "user-x", 10)
	if err != nil {
		t.Fatalf("GetFriendRecommendations failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("Expected 3 recommendations, got %d", len(recs))
	}
	want := []string{ids[2], ids[0], ids[1]}
	for i, rec := range recs {
		if rec.User.ID != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], rec.User.ID)
		}
	}
	if recs[0].MutualFollowers != 9 {
		t.Errorf("Expected mutual count 9, got %d", recs[0].MutualFollowers)
	}
}

// TestGetFriendRecommendations_GraphDownReturnsEmpty tests degraded behavior
func TestGetFriendRecommendations_GraphDownReturnsEmpty(t *testing.T) {
	env := newTestEnv(t)
	env.graph.rankErr = errors.New("neo4j unreachable")

	recs, err := env.orch.GetFriendRecommendations(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("Expected nil error on graph outage, got %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Errorf("Expected empty non-nil slice, got %v", recs)
	}
}

// TestGetFriendRecommendations_SkipsMissingUsers tests that unknown graph
// ids are dropped during hydration
func TestGetFriendRecommendations_SkipsMissingUsers(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.orch.CreateUser(context.Background(), model.UserProfile{
		Username: "carol", Email: "carol@example.com",
	})
	env.graph.neighbors = []neo4jstore.Neighbor{
		{UserID: "ghost", Mutuals: 7},
		{UserID: user.ID, Mutuals: 3},
	}

	recs, err := env.orch.GetFriendRecommendations(context.Background(), "user-x", 10)
	if err != nil {
		t.Fatalf("GetFriendRecommendations failed: %v", err)
	}
	if len(recs) != 1 || recs[0].User.ID != user.ID {
		t.Errorf("Expected only the known user, got %v", recs)
	}
}

// TestUploadMedia tests the media flow happy path
func TestUploadMedia(t *testing.T) {
	env := newTestEnv(t)

	upload, err := env.orch.UploadMedia(context.Background(), "user-1", []byte("bytes"), "pic.png", "image/png")
	if err != nil {
		t.Fatalf("UploadMedia failed: %v", err)
	}
	if upload.Key == "" || upload.MetadataID == "" {
		t.Errorf("Expected key and metadata id, got %+v", upload)
	}
	if upload.DerivedAssets["thumbnail"] == "" {
		t.Error("Expected derived thumbnail asset")
	}
}

// TestUploadMedia_BlobFailureSkipsMetadata tests that a failed upload never
// writes metadata
func TestUploadMedia_BlobFailureSkipsMetadata(t *testing.T) {
	env := newTestEnv(t)
	env.blob.uploadErr = errors.New("bucket gone")

	_, err := env.orch.UploadMedia(context.Background(), "user-1", []byte("bytes"), "pic.png", "image/png")
	var uploadErr *MediaUploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("Expected MediaUploadError, got %v", err)
	}
	if env.document.metaInserted != 0 {
		t.Error("Expected no metadata write after blob failure")
	}
}

// TestUploadMedia_MetadataFailureContained tests that the upload succeeds
// with an empty metadata id when the document store fails
func TestUploadMedia_MetadataFailureContained(t *testing.T) {
	env := newTestEnv(t)
	env.document.metaErr = errors.New("mongo down")

	upload, err := env.orch.UploadMedia(context.Background(), "user-1", []byte("bytes"), "pic.png", "image/png")
	if err != nil {
		t.Fatalf("Expected success despite metadata failure, got %v", err)
	}
	if upload.MetadataID != "" {
		t.Errorf("Expected empty metadata id, got %q", upload.MetadataID)
	}
	if env.outbox.Depth() == 0 {
		t.Error("Expected metadata write enqueued for reconciliation")
	}
}

// TestUploadMedia_BlobStoreUnavailable tests the degraded-store error
func TestUploadMedia_BlobStoreUnavailable(t *testing.T) {
	log, _ := logger.NewZapLogger(logger.Config{Level: logger.ErrorLevel, Format: logger.JSONFormat})
	orch, err := New(Stores{
		Relational: newFakeRelational(),
		Cache:      newFakeCache(),
	}, log, nil, nil, nil, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = orch.UploadMedia(context.Background(), "user-1", []byte("x"), "a.png", "image/png")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Expected ErrStoreUnavailable, got %v", err)
	}
}

// TestHealthCheck_IsolatesFailingStores tests per-store probe isolation
func TestHealthCheck_IsolatesFailingStores(t *testing.T) {
	env := newTestEnv(t)
	env.graph.healthErr = errors.New("neo4j down")

	stores := env.orch.HealthCheck(context.Background())
	if len(stores) != 5 {
		t.Fatalf("Expected 5 store entries, got %d", len(stores))
	}
	if stores[StoreNeo4j] {
		t.Error("Expected neo4j unhealthy")
	}
	for _, name := range []string{StorePostgres, StoreRedis, StoreMongo, StoreS3} {
		if !stores[name] {
			t.Errorf("Expected %s healthy", name)
		}
	}
}

// TestCloseAll tests idempotent shutdown and the not-ready guard
func TestCloseAll(t *testing.T) {
	env := newTestEnv(t)

	if err := env.orch.CloseAll(); err != nil {
		t.Fatalf("CloseAll failed: %v", err)
	}
	if err := env.orch.CloseAll(); err != nil {
		t.Fatalf("Second CloseAll failed: %v", err)
	}
	if !env.relational.closed {
		t.Error("Expected relational store closed")
	}

	_, err := env.orch.CreateUser(context.Background(), model.UserProfile{
		Username: "alice", Email: "a@b.c",
	})
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("Expected ErrNotReady after close, got %v", err)
	}
}

// TestNew_RequiresMandatoryStores tests constructor validation
func TestNew_RequiresMandatoryStores(t *testing.T) {
	log, _ := logger.NewZapLogger(logger.DefaultConfig())

	if _, err := New(Stores{Cache: newFakeCache()}, log, nil, nil, nil, Options{}); err == nil {
		t.Error("Expected error without relational store")
	}
	if _, err := New(Stores{Relational: newFakeRelational()}, log, nil, nil, nil, Options{}); err == nil {
		t.Error("Expected error without cache store")
	}
}

// Package neo4j implements the graph store adapter. The graph is an eventual
// mirror of the relational follow edges, used only for traversal queries
// (recommendations, paths, degree ranking); it is never authoritative.
package neo4j

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/connecthub/connecthub/pkg/observability/logger"
	"github.com/connecthub/connecthub/pkg/store"
	"github.com/connecthub/connecthub/pkg/store/storeerr"
)

const storeName = "neo4j"

var _ store.Adapter = (*Adapter)(nil)

// Adapter provides Neo4j connectivity. Each verb acquires a scoped session
// and releases it on every exit path.
type Adapter struct {
	driver  neo4j.DriverWithContext
	logger  logger.Logger
	timeout time.Duration
	mu      sync.RWMutex
	closed  bool
}

// Config holds Neo4j adapter configuration.
type Config struct {
	URI              string
	Username         string
	Password         string
	OperationTimeout time.Duration
}

// Neighbor is one traversal result with its ranking score.
type Neighbor struct {
	UserID  string
	Mutuals int64
}

// NewAdapter creates a Neo4j adapter and verifies connectivity.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j URI is required")
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 5 * time.Second
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, storeerr.NewConnectionError(storeName, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OperationTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(context.Background())
		return nil, storeerr.NewConnectionError(storeName, err)
	}

	log.Info("Neo4j connection established", "uri", cfg.URI)
	return &Adapter{
		driver:  driver,
		logger:  log,
		timeout: cfg.OperationTimeout,
	}, nil
}

// HealthCheck verifies connectivity with a short timeout.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	a.mu.RLock()
	closed := a.closed
	a.mu.RUnlock()
	if closed {
		return fmt.Errorf("neo4j adapter is closed")
	}

	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.driver.VerifyConnectivity(hcCtx); err != nil {
		a.logger.Error("Neo4j health check failed", "error", err)
		return fmt.Errorf("neo4j health check failed: %w", err)
	}
	return nil
}

// Close releases the driver. Safe to call twice.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	return a.driver.Close(context.Background())
}

// UpsertUserNode creates or updates the node mirroring a relational user.
// MERGE keeps the write idempotent so outbox retries are harmless.
func (a *Adapter) UpsertUserNode(ctx context.Context, userID, username string) error {
	session := a.writeSession(ctx)
	defer session.Close(ctx)

	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	_, err := session.Run(opCtx, `
		MERGE (u:User {id: $id})
		SET u.username = $username
	`, map[string]any{"id": userID, "username": username})
	return storeerr.Wrap(storeName, "upsert_user_node", err)
}

// UpsertFollowEdge mirrors a relational follow edge into the graph.
func (a *Adapter) UpsertFollowEdge(ctx context.Context, followerID, followingID string) error {
	session := a.writeSession(ctx)
	defer session.Close(ctx)

	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	_, err := session.Run(opCtx, `
		MERGE (a:User {id: $follower})
		MERGE (b:User {id: $following})
		MERGE (a)-[:FOLLOWS]->(b)
	`, map[string]any{"follower": followerID, "following": followingID})
	return storeerr.Wrap(storeName, "upsert_follow_edge", err)
}

// DeleteFollowEdge removes a mirrored follow edge; removing a missing edge
// is a no-op.
func (a *Adapter) DeleteFollowEdge(ctx context.Context, followerID, followingID string) error {
	session := a.writeSession(ctx)
	defer session.Close(ctx)

	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	_, err := session.Run(opCtx, `
		MATCH (a:User {id: $follower})-[f:FOLLOWS]->(b:User {id: $following})
		DELETE f
	`, map[string]any{"follower": followerID, "following": followingID})
	return storeerr.Wrap(storeName, "delete_follow_edge", err)
}

// RankedNeighbors returns candidate user ids within the given hop radius,
// ranked by the number of distinct paths (mutual follows), excluding the
// user and anyone already followed.
func (a *Adapter) RankedNeighbors(ctx context.Context, userID string, hops, limit int) ([]Neighbor, error) {
	if hops < 2 {
		hops = 2
	}
	if limit <= 0 {
		return []Neighbor{}, nil
	}

	session := a.readSession(ctx)
	defer session.Close(ctx)

	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	// Variable-length bounds cannot be parameterized in Cypher; hops is a
	// validated int, not caller text.
	query := fmt.Sprintf(`
		MATCH (u:User {id: $id})-[:FOLLOWS*2..%d]->(c:User)
		WHERE c.id <> $id AND NOT (u)-[:FOLLOWS]->(c)
		RETURN c.id AS id, count(*) AS mutuals
		ORDER BY mutuals DESC, id ASC
		LIMIT $limit
	`, hops)

	result, err := session.Run(opCtx, query, map[string]any{"id": userID, "limit": limit})
	if err != nil {
		return nil, storeerr.Wrap(storeName, "ranked_neighbors", err)
	}

	var neighbors []Neighbor
	for result.Next(opCtx) {
		record := result.Record()
		id, _ := record.Get("id")
		mutuals, _ := record.Get("mutuals")

		n := Neighbor{}
		if s, ok := id.(string); ok {
			n.UserID = s
		}
		if c, ok := mutuals.(int64); ok {
			n.Mutuals = c
		}
		if n.UserID != "" {
			neighbors = append(neighbors, n)
		}
	}
	if err := result.Err(); err != nil {
		return nil, storeerr.Wrap(storeName, "ranked_neighbors", err)
	}

	return neighbors, nil
}

// ShortestPath returns the user ids along the shortest follow path between
// two users, or an empty slice when no path exists within maxHops.
func (a *Adapter) ShortestPath(ctx context.Context, fromID, toID string, maxHops int) ([]string, error) {
	if maxHops <= 0 {
		maxHops = 6
	}

	session := a.readSession(ctx)
	defer session.Close(ctx)

	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		MATCH p = shortestPath((a:User {id: $from})-[:FOLLOWS*..%d]-(b:User {id: $to}))
		RETURN [n IN nodes(p) | n.id] AS ids
	`, maxHops)

	result, err := session.Run(opCtx, query, map[string]any{"from": fromID, "to": toID})
	if err != nil {
		return nil, storeerr.Wrap(storeName, "shortest_path", err)
	}

	if !result.Next(opCtx) {
		if err := result.Err(); err != nil {
			return nil, storeerr.Wrap(storeName, "shortest_path", err)
		}
		return []string{}, nil
	}

	raw, _ := result.Record().Get("ids")
	list, ok := raw.([]any)
	if !ok {
		return []string{}, nil
	}

	ids := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}
	return ids, nil
}

// TopKByDegree returns the most-followed user ids with their follower counts.
func (a *Adapter) TopKByDegree(ctx context.Context, limit int) ([]Neighbor, error) {
	if limit <= 0 {
		return []Neighbor{}, nil
	}

	session := a.readSession(ctx)
	defer session.Close(ctx)

	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	result, err := session.Run(opCtx, `
		MATCH (u:User)<-[:FOLLOWS]-(f:User)
		RETURN u.id AS id, count(f) AS degree
		ORDER BY degree DESC, id ASC
		LIMIT $limit
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, storeerr.Wrap(storeName, "top_k_by_degree", err)
	}

	var top []Neighbor
	for result.Next(opCtx) {
		record := result.Record()
		id, _ := record.Get("id")
		degree, _ := record.Get("degree")

		n := Neighbor{}
		if s, ok := id.(string); ok {
			n.UserID = s
		}
		if c, ok := degree.(int64); ok {
			n.Mutuals = c
		}
		if n.UserID != "" {
			top = append(top, n)
		}
	}
	if err := result.Err(); err != nil {
		return nil, storeerr.Wrap(storeName, "top_k_by_degree", err)
	}

	return top, nil
}

func (a *Adapter) writeSession(ctx context.Context) neo4j.SessionWithContext {
	return a.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
}

func (a *Adapter) readSession(ctx context.Context) neo4j.SessionWithContext {
	return a.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
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

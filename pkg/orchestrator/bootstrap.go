package orchestrator

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/connecthub/connecthub/pkg/config"
	"github.com/connecthub/connecthub/pkg/observability/logger"
	"github.com/connecthub/connecthub/pkg/observability/metrics"
	mongostore "github.com/connecthub/connecthub/pkg/store/mongodb"
	neo4jstore "github.com/connecthub/connecthub/pkg/store/neo4j"
	pgstore "github.com/connecthub/connecthub/pkg/store/postgres"
	redisstore "github.com/connecthub/connecthub/pkg/store/redis"
	s3store "github.com/connecthub/connecthub/pkg/store/s3"
)

// Bootstrap walks the startup sequence from configuration: mandatory stores
// first (a failure aborts startup), then optional stores (a failure logs a
// warning and leaves the capability degraded), then the reconciliation
// outbox. The returned orchestrator is in StateReady.
func Bootstrap(ctx context.Context, cfg *config.Config, log logger.Logger, reg *metrics.Registry, tracer trace.Tracer) (*Orchestrator, error) {
	state := StateUninitialized
	transition := func(next State) {
		log.Info("orchestrator state transition", "from", state.String(), "to", next.String())
		state = next
	}

	transition(StateConnectingMandatory)

	relational, err := pgstore.NewAdapter(pgstore.Config{
		URL:             cfg.Postgres.URL,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Postgres.ConnMaxIdleTime,
		QueryTimeout:    cfg.Postgres.QueryTimeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("mandatory store %s: %w", StorePostgres, err)
	}
	if err := relational.EnsureSchema(ctx); err != nil {
		relational.Close()
		return nil, fmt.Errorf("mandatory store %s: %w", StorePostgres, err)
	}

	cache, err := redisstore.NewAdapter(redisstore.Config{
		URL:              cfg.Redis.URL,
		MaxConns:         cfg.Redis.MaxConns,
		OperationTimeout: cfg.Redis.OperationTimeout,
		ConnectRetries:   cfg.Redis.ConnectRetries,
		ConnectBackoff:   cfg.Redis.ConnectBackoff,
		BackoffCeiling:   cfg.Redis.BackoffCeiling,
	}, log)
	if err != nil {
		relational.Close()
		return nil, fmt.Errorf("mandatory store %s: %w", StoreRedis, err)
	}

	transition(StateConnectingOptional)

	stores := Stores{
		Relational: relational,
		Cache:      cache,
	}

	if document, err := mongostore.NewAdapter(mongostore.Config{
		URL:              cfg.Mongo.URL,
		Database:         cfg.Mongo.Database,
		ConnectTimeout:   cfg.Mongo.ConnectTimeout,
		OperationTimeout: cfg.Mongo.OperationTimeout,
	}, log); err != nil {
		log.Warn("optional store unavailable, continuing degraded", "store", StoreMongo, "error", err)
	} else {
		stores.Document = document
	}

	if graph, err := neo4jstore.NewAdapter(neo4jstore.Config{
		URI:              cfg.Neo4j.URI,
		Username:         cfg.Neo4j.Username,
		Password:         cfg.Neo4j.Password,
		OperationTimeout: cfg.Neo4j.OperationTimeout,
	}, log); err != nil {
		log.Warn("optional store unavailable, continuing degraded", "store", StoreNeo4j, "error", err)
	} else {
		stores.Graph = graph
	}

	if cfg.S3.Bucket == "" {
		log.Warn("optional store not configured, continuing degraded", "store", StoreS3)
	} else if blob, err := s3store.NewAdapter(s3store.Config{
		Bucket:           cfg.S3.Bucket,
		Region:           cfg.S3.Region,
		Endpoint:         cfg.S3.Endpoint,
		AccessKeyID:      cfg.S3.AccessKeyID,
		SecretAccessKey:  cfg.S3.SecretAccessKey,
		UsePathStyle:     cfg.S3.UsePathStyle,
		OperationTimeout: cfg.S3.OperationTimeout,
		PresignExpiry:    cfg.S3.PresignExpiry,
	}, log); err != nil {
		log.Warn("optional store unavailable, continuing degraded", "store", StoreS3, "error", err)
	} else {
		stores.Blob = blob
	}

	outbox := NewOutbox(cfg.Orchestrator.OutboxSweepInterval, cfg.Orchestrator.OutboxMaxAttempts, log, reg)
	outbox.Start()

	orch, err := New(stores, log, reg, tracer, outbox, Options{
		FeedCacheTTL:    cfg.Orchestrator.FeedCacheTTL,
		FeedPageSizeMax: cfg.Orchestrator.FeedPageSizeMax,
	})
	if err != nil {
		outbox.Stop()
		return nil, err
	}

	transition(StateReady)
	if degraded := orch.Degraded(); len(degraded) > 0 {
		log.Warn("orchestrator ready with degraded capabilities", "stores", fmt.Sprintf("%v", degraded))
	} else {
		log.Info("orchestrator ready, all stores connected")
	}

	return orch, nil
}

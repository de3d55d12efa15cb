package redis

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/connecthub/connecthub/pkg/observability/logger"
	"github.com/connecthub/connecthub/pkg/store/storeerr"
)

// TestAdapter_Integration exercises the cache adapter against a real Redis
// instance using testcontainers.
func TestAdapter_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	redisContainer, err := tcredis.Run(ctx,
		"redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(redisContainer); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}()

	connStr, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	log, err := logger.NewZapLogger(logger.DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	adapter, err := NewAdapter(Config{
		URL:              connStr,
		MaxConns:         5,
		OperationTimeout: 3 * time.Second,
		ConnectRetries:   3,
		ConnectBackoff:   100 * time.Millisecond,
		BackoffCeiling:   time.Second,
	}, log)
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	defer adapter.Close()

	t.Run("GetMiss", func(t *testing.T) {
		_, err := adapter.Get(ctx, "missing-key")
		if !storeerr.IsCacheMiss(err) {
			t.Errorf("Expected cache miss, got %v", err)
		}
	})

	t.Run("SetGetDelete", func(t *testing.T) {
		if err := adapter.SetWithTTL(ctx, "feed:u1:0:20", `{"items":[]}`, time.Minute); err != nil {
			t.Fatalf("SetWithTTL() error = %v", err)
		}

		val, err := adapter.Get(ctx, "feed:u1:0:20")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if val != `{"items":[]}` {
			t.Errorf("Unexpected value: %s", val)
		}

		if err := adapter.Delete(ctx, "feed:u1:0:20"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := adapter.Get(ctx, "feed:u1:0:20"); !storeerr.IsCacheMiss(err) {
			t.Errorf("Expected cache miss after delete, got %v", err)
		}
	})

	t.Run("DeleteByPattern", func(t *testing.T) {
		for _, key := range []string{"feed:u2:0:20", "feed:u2:1:20", "feed:u3:0:20"} {
			if err := adapter.SetWithTTL(ctx, key, "x", time.Minute); err != nil {
				t.Fatalf("SetWithTTL() error = %v", err)
			}
		}

		if err := adapter.DeleteByPattern(ctx, "feed:u2:*"); err != nil {
			t.Fatalf("DeleteByPattern() error = %v", err)
		}

		if _, err := adapter.Get(ctx, "feed:u2:0:20"); !storeerr.IsCacheMiss(err) {
			t.Error("Expected feed:u2:0:20 to be deleted")
		}
		if _, err := adapter.Get(ctx, "feed:u3:0:20"); err != nil {
			t.Errorf("Expected feed:u3:0:20 to survive, got %v", err)
		}
	})

	t.Run("Incr", func(t *testing.T) {
		v1, err := adapter.Incr(ctx, "counter:test")
		if err != nil {
			t.Fatalf("Incr() error = %v", err)
		}
		v2, err := adapter.Incr(ctx, "counter:test")
		if err != nil {
			t.Fatalf("Incr() error = %v", err)
		}
		if v2 != v1+1 {
			t.Errorf("Expected increment by 1, got %d then %d", v1, v2)
		}
	})

	t.Run("SortedSetTopK", func(t *testing.T) {
		for member, score := range map[string]float64{"p1": 100, "p2": 300, "p3": 200} {
			if err := adapter.SortedSetAdd(ctx, "trending:posts", score, member); err != nil {
				t.Fatalf("SortedSetAdd() error = %v", err)
			}
		}

		top, err := adapter.SortedSetTopK(ctx, "trending:posts", 2)
		if err != nil {
			t.Fatalf("SortedSetTopK() error = %v", err)
		}
		if len(top) != 2 || top[0].Member != "p2" || top[1].Member != "p3" {
			t.Errorf("Unexpected top members: %+v", top)
		}
	})

	t.Run("PubSub", func(t *testing.T) {
		sub := adapter.Subscribe(ctx, "events:test")
		defer sub.Close()

		// Wait for the subscription to be active before publishing
		if _, err := sub.Receive(ctx); err != nil {
			t.Fatalf("Subscribe receive error = %v", err)
		}

		if err := adapter.Publish(ctx, "events:test", "hello"); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}

		select {
		case msg := <-sub.Channel():
			if msg.Payload != "hello" {
				t.Errorf("Unexpected payload: %s", msg.Payload)
			}
		case <-time.After(5 * time.Second):
			t.Error("Timed out waiting for pub/sub message")
		}
	})

	t.Run("HealthCheck", func(t *testing.T) {
		if err := adapter.HealthCheck(ctx); err != nil {
			t.Errorf("HealthCheck() error = %v", err)
		}
	})
}

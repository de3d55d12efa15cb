package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/connecthub/connecthub/pkg/observability/logger"
)

func testOutbox(t *testing.T, maxAttempts int) *Outbox {
	t.Helper()
	log, _ := logger.NewZapLogger(logger.Config{
		Level:  logger.ErrorLevel,
		Format: logger.JSONFormat,
	})
	return NewOutbox(time.Hour, maxAttempts, log, nil)
}

// TestOutbox_SuccessfulRetryRemovesEntry tests reconciliation on recovery
func TestOutbox_SuccessfulRetryRemovesEntry(t *testing.T) {
	outbox := testOutbox(t, 5)

	var ran atomic.Int32
	outbox.Enqueue("neo4j", "upsert_follow_edge", func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})

	if outbox.Depth() != 1 {
		t.Fatalf("Expected depth 1, got %d", outbox.Depth())
	}
	outbox.Sweep(context.Background())
	if outbox.Depth() != 0 {
		t.Errorf("Expected depth 0 after success, got %d", outbox.Depth())
	}
	if ran.Load() != 1 {
		t.Errorf("Expected 1 run, got %d", ran.Load())
	}
}

// TestOutbox_FailedRetryStaysQueued tests that failing entries are retried
func TestOutbox_FailedRetryStaysQueued(t *testing.T) {
	outbox := testOutbox(t, 5)

	var calls atomic.Int32
	outbox.Enqueue("mongodb", "insert_post_analytics", func(ctx context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("still down")
		}
		return nil
	})

	outbox.Sweep(context.Background())
	outbox.Sweep(context.Background())
	if outbox.Depth() != 1 {
		t.Fatalf("Expected entry retained after failures, depth %d", outbox.Depth())
	}
	outbox.Sweep(context.Background())
	if outbox.Depth() != 0 {
		t.Errorf("Expected entry reconciled on third attempt, depth %d", outbox.Depth())
	}
}

// TestOutbox_DropsAfterMaxAttempts tests the attempt budget
func TestOutbox_DropsAfterMaxAttempts(t *testing.T) {
	outbox := testOutbox(t, 2)

	var calls atomic.Int32
	outbox.Enqueue("redis", "cache_feed_page", func(ctx context.Context) error {
		calls.Add(1)
		return errors.New("permanently broken")
	})

	outbox.Sweep(context.Background())
	outbox.Sweep(context.Background())
	outbox.Sweep(context.Background())

	if outbox.Depth() != 0 {
		t.Errorf("Expected entry dropped, depth %d", outbox.Depth())
	}
	if calls.Load() != 2 {
		t.Errorf("Expected exactly 2 attempts, got %d", calls.Load())
	}
}

// TestOutbox_PanicTreatedAsFailure tests panic containment during retry
func TestOutbox_PanicTreatedAsFailure(t *testing.T) {
	outbox := testOutbox(t, 3)

	outbox.Enqueue("neo4j", "upsert_user_node", func(ctx context.Context) error {
		panic("retry bug")
	})

	outbox.Sweep(context.Background())
	if outbox.Depth() != 1 {
		t.Errorf("Expected panicking entry retained for retry, depth %d", outbox.Depth())
	}
}

// TestOutbox_StartStop tests the background sweep lifecycle
func TestOutbox_StartStop(t *testing.T) {
	log, _ := logger.NewZapLogger(logger.Config{Level: logger.ErrorLevel, Format: logger.JSONFormat})
	outbox := NewOutbox(5*time.Millisecond, 5, log, nil)

	var ran atomic.Int32
	outbox.Enqueue("redis", "invalidate", func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})

	outbox.Start()
	deadline := time.Now().Add(2 * time.Second)
	for ran.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	outbox.Stop()
	outbox.Stop()

	if ran.Load() == 0 {
		t.Error("Expected background sweep to run the entry")
	}
}

// TestOutbox_EnqueueDuringSweepPreserved tests that concurrent enqueues survive a sweep
func TestOutbox_EnqueueDuringSweepPreserved(t *testing.T) {
	outbox := testOutbox(t, 5)

	outbox.Enqueue("mongodb", "first", func(ctx context.Context) error {
		// Enqueue from inside a retry, as an operation on another
		// goroutine would during the sweep window.
		outbox.Enqueue("redis", "second", func(ctx context.Context) error { return nil })
		return errors.New("fail once")
	})

	outbox.Sweep(context.Background())
	if outbox.Depth() != 2 {
		t.Errorf("Expected both entries pending, depth %d", outbox.Depth())
	}
}

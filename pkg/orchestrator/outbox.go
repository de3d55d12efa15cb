package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/connecthub/connecthub/pkg/observability/logger"
	"github.com/connecthub/connecthub/pkg/observability/metrics"
)

// Outbox is the in-process reconciliation queue for failed secondary steps.
// A background sweep retries each entry until it succeeds or exhausts its
// attempt budget. Entries must be idempotent; the graph and document writes
// enqueued here are upserts or duplicate-tolerant inserts.
type Outbox struct {
	logger      logger.Logger
	metrics     *metrics.Registry
	interval    time.Duration
	maxAttempts int

	mu      sync.Mutex
	entries []*outboxEntry

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

type outboxEntry struct {
	store    string
	op       string
	attempts int
	run      func(ctx context.Context) error
}

// NewOutbox creates a reconciliation outbox. Call Start to begin sweeping.
func NewOutbox(interval time.Duration, maxAttempts int, log logger.Logger, reg *metrics.Registry) *Outbox {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Outbox{
		logger:      log,
		metrics:     reg,
		interval:    interval,
		maxAttempts: maxAttempts,
		stopCh:      make(chan struct{}),
	}
}

// Enqueue records a failed secondary step for retry.
func (o *Outbox) Enqueue(store, op string, run func(ctx context.Context) error) {
	o.mu.Lock()
	o.entries = append(o.entries, &outboxEntry{store: store, op: op, run: run})
	depth := len(o.entries)
	o.mu.Unlock()

	o.reportDepth(depth)
	o.logger.Info("secondary step enqueued for reconciliation", "store", store, "operation", op, "outbox_depth", depth)
}

// Depth returns the number of pending entries.
func (o *Outbox) Depth() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}

// Start launches the background sweep loop.
func (o *Outbox) Start() {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		ticker := time.NewTicker(o.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				o.Sweep(context.Background())
			case <-o.stopCh:
				return
			}
		}
	}()
}

// Stop halts the sweep loop. Safe to call twice. Pending entries are dropped;
// the outbox holds in-process state only.
func (o *Outbox) Stop() {
	o.stopOnce.Do(func() {
		close(o.stopCh)
	})
	o.wg.Wait()
}

// Sweep retries every pending entry once. Succeeded entries are removed;
// entries that exhaust their attempt budget are dropped with an error log.
func (o *Outbox) Sweep(ctx context.Context) {
	o.mu.Lock()
	pending := o.entries
	o.entries = nil
	o.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	var remaining []*outboxEntry
	for _, entry := range pending {
		entry.attempts++
		err := o.runEntry(ctx, entry)
		if err == nil {
			o.recordRetry("success")
			o.logger.Info("reconciled secondary step", "store", entry.store, "operation", entry.op, "attempts", entry.attempts)
			continue
		}

		if entry.attempts >= o.maxAttempts {
			o.recordRetry("dropped")
			o.logger.Error("dropping secondary step after exhausting retries",
				"store", entry.store, "operation", entry.op, "attempts", entry.attempts, "error", err)
			continue
		}

		o.recordRetry("failure")
		o.logger.Warn("secondary step retry failed",
			"store", entry.store, "operation", entry.op, "attempts", entry.attempts, "error", err)
		remaining = append(remaining, entry)
	}

	o.mu.Lock()
	// New enqueues may have arrived during the sweep.
	o.entries = append(remaining, o.entries...)
	depth := len(o.entries)
	o.mu.Unlock()

	o.reportDepth(depth)
}

func (o *Outbox) runEntry(ctx context.Context, entry *outboxEntry) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &StepPanicError{Store: entry.store, Op: entry.op, Value: rec}
		}
	}()
	return entry.run(ctx)
}

func (o *Outbox) reportDepth(depth int) {
	if o.metrics != nil {
		o.metrics.SetOutboxDepth(depth)
	}
}

func (o *Outbox) recordRetry(result string) {
	if o.metrics != nil {
		o.metrics.RecordOutboxRetry(result)
	}
}

// StepPanicError marks an outbox entry whose retry panicked.
type StepPanicError struct {
	Store string
	Op    string
	Value interface{}
}

func (e *StepPanicError) Error() string {
	return fmt.Sprintf("%s %s: retry panicked: %v", e.Store, e.Op, e.Value)
}

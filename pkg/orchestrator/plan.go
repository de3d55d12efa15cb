package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Step is one secondary action of an operation, addressed by store and verb
// so failures can be logged, counted and retried with full context.
type Step struct {
	Store string
	Op    string
	Run   func(ctx context.Context) error
}

// Outcome records how a single step went.
type Outcome struct {
	Store    string
	Op       string
	Err      error
	Duration time.Duration
}

// Failed reports whether the step errored.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Gather runs the given steps concurrently and returns one outcome per step,
// in step order. A step failure or panic never affects its siblings.
func Gather(ctx context.Context, steps ...Step) []Outcome {
	outcomes := make([]Outcome, len(steps))

	var wg sync.WaitGroup
	for i, step := range steps {
		wg.Add(1)
		go func(i int, step Step) {
			defer wg.Done()
			outcomes[i] = runStep(ctx, step)
		}(i, step)
	}
	wg.Wait()

	return outcomes
}

func runStep(ctx context.Context, step Step) (outcome Outcome) {
	start := time.Now()
	outcome = Outcome{Store: step.Store, Op: step.Op}

	defer func() {
		outcome.Duration = time.Since(start)
		if rec := recover(); rec != nil {
			outcome.Err = fmt.Errorf("step panicked: %v", rec)
		}
	}()

	outcome.Err = step.Run(ctx)
	return outcome
}

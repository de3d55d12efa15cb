// Package health aggregates per-store health checks into a service-level
// verdict. Mandatory stores drive the overall status; an optional store
// failure only degrades it.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Status represents the health status of a component or of the service.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Criticality controls how a failing check affects the overall status.
type Criticality int

const (
	// Mandatory checks make the whole service unhealthy when they fail.
	Mandatory Criticality = iota
	// Optional checks only degrade the service when they fail.
	Optional
)

// CheckResult represents the outcome of a single health check.
type CheckResult struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// Checker is the interface health check implementations must satisfy.
type Checker interface {
	Check(ctx context.Context) CheckResult
	Name() string
}

// Registry manages a collection of health checks.
type Registry struct {
	mu       sync.RWMutex
	checkers []registeredChecker
}

type registeredChecker struct {
	checker     Checker
	criticality Criticality
}

// NewRegistry creates an empty health check registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a health check with the given criticality. Registering a
// checker whose name is already present replaces the earlier entry.
func (r *Registry) Register(checker Checker, criticality Criticality) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, rc := range r.checkers {
		if rc.checker.Name() == checker.Name() {
			r.checkers[i] = registeredChecker{checker: checker, criticality: criticality}
			return
		}
	}
	r.checkers = append(r.checkers, registeredChecker{checker: checker, criticality: criticality})
}

// Check runs all registered checks concurrently and aggregates the results.
// Checks never panic outward; a panicking checker is reported as unhealthy.
func (r *Registry) Check(ctx context.Context) AggregatedResult {
	r.mu.RLock()
	checkers := make([]registeredChecker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	start := time.Now()
	results := make([]CheckResult, len(checkers))

	var wg sync.WaitGroup
	for i, rc := range checkers {
		wg.Add(1)
		go func(i int, rc registeredChecker) {
			defer wg.Done()
			results[i] = runChecker(ctx, rc.checker)
		}(i, rc)
	}
	wg.Wait()

	overall := StatusHealthy
	for i, rc := range checkers {
		if results[i].Status == StatusHealthy {
			continue
		}
		if rc.criticality == Mandatory {
			overall = StatusUnhealthy
		} else if overall == StatusHealthy {
			overall = StatusDegraded
		}
	}

	return AggregatedResult{
		Status:    overall,
		Checks:    results,
		Timestamp: time.Now(),
		Duration:  time.Since(start),
	}
}

// CheckOne runs a specific health check by name.
func (r *Registry) CheckOne(ctx context.Context, name string) (CheckResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rc := range r.checkers {
		if rc.checker.Name() == name {
			return runChecker(ctx, rc.checker), nil
		}
	}
	return CheckResult{}, fmt.Errorf("health check not found: %s", name)
}

// List returns the names of all registered health checks.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.checkers))
	for _, rc := range r.checkers {
		names = append(names, rc.checker.Name())
	}
	return names
}

func runChecker(ctx context.Context, c Checker) (result CheckResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = CheckResult{
				Name:      c.Name(),
				Status:    StatusUnhealthy,
				Error:     fmt.Sprintf("health check panicked: %v", rec),
				Timestamp: time.Now(),
			}
		}
	}()
	return c.Check(ctx)
}

// AggregatedResult is the service-level health verdict.
type AggregatedResult struct {
	Status    Status        `json:"status"`
	Checks    []CheckResult `json:"checks"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// IsHealthy reports whether every check passed.
func (r AggregatedResult) IsHealthy() bool {
	return r.Status == StatusHealthy
}

// StoreMap flattens the per-check results into a name to boolean map.
func (r AggregatedResult) StoreMap() map[string]bool {
	stores := make(map[string]bool, len(r.Checks))
	for _, check := range r.Checks {
		stores[check.Name] = check.Status == StatusHealthy
	}
	return stores
}

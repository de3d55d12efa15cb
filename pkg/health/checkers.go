package health

import (
	"context"
	"time"
)

// Checkable is implemented by every store adapter.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// AdapterChecker probes a store adapter with a bounded timeout.
type AdapterChecker struct {
	name    string
	adapter Checkable
	timeout time.Duration
}

// NewAdapterChecker creates a health checker for an adapter.
func NewAdapterChecker(name string, adapter Checkable, timeout time.Duration) *AdapterChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AdapterChecker{
		name:    name,
		adapter: adapter,
		timeout: timeout,
	}
}

// Check performs the health check on the adapter. A nil adapter means the
// store was configured but never connected, which is reported as unhealthy
// with a distinct message rather than a probe failure.
func (c *AdapterChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	if c.adapter == nil {
		return CheckResult{
			Name:      c.name,
			Status:    StatusUnhealthy,
			Message:   "not connected",
			Timestamp: time.Now(),
		}
	}

	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.adapter.HealthCheck(checkCtx)
	duration := time.Since(start)

	if err != nil {
		return CheckResult{
			Name:      c.name,
			Status:    StatusUnhealthy,
			Error:     err.Error(),
			Timestamp: time.Now(),
			Duration:  duration,
		}
	}

	return CheckResult{
		Name:      c.name,
		Status:    StatusHealthy,
		Message:   "OK",
		Timestamp: time.Now(),
		Duration:  duration,
	}
}

// Name returns the name of the health check.
func (c *AdapterChecker) Name() string {
	return c.name
}

// PingChecker always reports healthy. Used for liveness probes.
type PingChecker struct {
	name string
}

// NewPingChecker creates a new ping checker.
func NewPingChecker(name string) *PingChecker {
	return &PingChecker{name: name}
}

// Check always returns healthy status.
func (c *PingChecker) Check(ctx context.Context) CheckResult {
	return CheckResult{
		Name:      c.name,
		Status:    StatusHealthy,
		Message:   "service is alive",
		Timestamp: time.Now(),
	}
}

// Name returns the name of the health check.
func (c *PingChecker) Name() string {
	return c.name
}

// CustomChecker builds a health checker from a function.
type CustomChecker struct {
	name      string
	checkFunc func(ctx context.Context) (Status, string, error)
}

// NewCustomChecker creates a checker from a function returning
// (status, message, error).
func NewCustomChecker(name string, checkFunc func(ctx context.Context) (Status, string, error)) *CustomChecker {
	return &CustomChecker{name: name, checkFunc: checkFunc}
}

// Check executes the custom check function.
func (c *CustomChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	status, message, err := c.checkFunc(ctx)

	result := CheckResult{
		Name:      c.name,
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
		Duration:  time.Since(start),
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

// Name returns the name of the health check.
func (c *CustomChecker) Name() string {
	return c.name
}

// Package supervisor runs background health probes against the store
// adapters and tracks a per-adapter connection state machine. The store
// drivers reconnect internally; the supervisor's job is to notice outages,
// log the transitions and expose the current state.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/connecthub/connecthub/pkg/observability/logger"
)

// State is the connection state of a monitored adapter.
type State int32

const (
	// StateConnected means the last probe succeeded.
	StateConnected State = iota
	// StateDegraded means the most recent probe failed.
	StateDegraded
	// StateReconnecting means probes have failed repeatedly and the
	// supervisor is waiting for the driver to re-establish the connection.
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDegraded:
		return "degraded"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Probeable is the probe surface every store adapter exposes.
type Probeable interface {
	HealthCheck(ctx context.Context) error
}

type monitor struct {
	name  string
	probe Probeable

	mu           sync.Mutex
	state        State
	failures     int
	lastProbe    time.Time
	lastError    error
	transitionAt time.Time
}

// Supervisor owns the probe loop for a set of adapters.
type Supervisor struct {
	logger   logger.Logger
	interval time.Duration
	timeout  time.Duration

	mu       sync.Mutex
	monitors []*monitor

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New creates a supervisor probing at the given interval.
func New(interval time.Duration, log logger.Logger) *Supervisor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Supervisor{
		logger:   log,
		interval: interval,
		timeout:  2 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Watch registers an adapter for probing. A nil probe is ignored so callers
// can pass optional stores unconditionally.
func (s *Supervisor) Watch(name string, probe Probeable) {
	if probe == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitors = append(s.monitors, &monitor{
		name:         name,
		probe:        probe,
		state:        StateConnected,
		transitionAt: time.Now(),
	})
}

// MarkUnavailable registers a store that failed its initial connect. There is
// no adapter to probe, so its state stays pinned at Degraded until a restart
// reconnects it; States() still reports it alongside the probed stores.
func (s *Supervisor) MarkUnavailable(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitors = append(s.monitors, &monitor{
		name:         name,
		state:        StateDegraded,
		transitionAt: time.Now(),
	})
}

// Start launches the probe loop.
func (s *Supervisor) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.probeAll()
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop halts the probe loop. Safe to call twice.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

// States returns the current state of every monitored adapter.
func (s *Supervisor) States() map[string]State {
	s.mu.Lock()
	monitors := make([]*monitor, len(s.monitors))
	copy(monitors, s.monitors)
	s.mu.Unlock()

	states := make(map[string]State, len(monitors))
	for _, m := range monitors {
		m.mu.Lock()
		states[m.name] = m.state
		m.mu.Unlock()
	}
	return states
}

// probeAll probes every monitored adapter concurrently. Exported through
// ProbeNow for tests and for on-demand checks.
func (s *Supervisor) probeAll() {
	s.mu.Lock()
	monitors := make([]*monitor, len(s.monitors))
	copy(monitors, s.monitors)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, m := range monitors {
		wg.Add(1)
		go func(m *monitor) {
			defer wg.Done()
			s.probeOne(m)
		}(m)
	}
	wg.Wait()
}

// ProbeNow runs one probe round immediately.
func (s *Supervisor) ProbeNow() {
	s.probeAll()
}

func (s *Supervisor) probeOne(m *monitor) {
	if m.probe == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err := m.probe.HealthCheck(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastProbe = time.Now()
	m.lastError = err

	previous := m.state
	if err == nil {
		m.failures = 0
		m.state = StateConnected
	} else {
		m.failures++
		if m.failures == 1 {
			m.state = StateDegraded
		} else {
			m.state = StateReconnecting
		}
	}

	if m.state == previous {
		return
	}
	m.transitionAt = time.Now()

	switch m.state {
	case StateConnected:
		s.logger.Info("store connection recovered", "store", m.name, "previous_state", previous.String())
	case StateDegraded:
		s.logger.Warn("store probe failed", "store", m.name, "error", err)
	case StateReconnecting:
		s.logger.Warn("store still unreachable, awaiting reconnect",
			"store", m.name, "consecutive_failures", m.failures, "error", err)
	}
}

// Package health tracks storefront readiness and serves the liveness and
// readiness probes. Readiness combines the lifecycle state with named
// dependency checks such as the database and the region index.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// State constants for the readiness state machine.
const (
	stateStarting int32 = iota
	stateReady
	stateDraining
)

// DefaultCheckTimeout bounds each dependency check.
const DefaultCheckTimeout = 2 * time.Second

// CheckFunc reports whether a dependency is usable.
type CheckFunc func(ctx context.Context) error

type namedCheck struct {
	name string
	fn   CheckFunc
}

// Checker tracks the readiness state of the service. It is safe for
// concurrent use.
type Checker struct {
	state   atomic.Int32
	timeout time.Duration

	mu     sync.RWMutex
	checks []namedCheck
}

// NewChecker creates a Checker in the Starting state.
func NewChecker() *Checker {
	return &Checker{timeout: DefaultCheckTimeout}
}

// SetCheckTimeout changes the per-check timeout.
func (c *Checker) SetCheckTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// AddCheck registers a dependency check run on every readiness probe. A
// later check with the same name replaces the earlier one.
func (c *Checker) AddCheck(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.checks {
		if c.checks[i].name == name {
			c.checks[i].fn = fn
			return
		}
	}
	c.checks = append(c.checks, namedCheck{name: name, fn: fn})
}

// SetReady transitions to the Ready state.
func (c *Checker) SetReady() {
	c.state.Store(stateReady)
}

// SetDraining transitions to the Draining state.
func (c *Checker) SetDraining() {
	c.state.Store(stateDraining)
}

// IsReady returns true when the state is Ready.
func (c *Checker) IsReady() bool {
	return c.state.Load() == stateReady
}

// State returns the current state as a human-readable string.
func (c *Checker) State() string {
	switch c.state.Load() {
	case stateReady:
		return "ready"
	case stateDraining:
		return "draining"
	default:
		return "starting"
	}
}

// Check runs every registered check concurrently and returns "ok" or
// "failing" per check name, plus whether all passed.
func (c *Checker) Check(ctx context.Context) (map[string]string, bool) {
	c.mu.RLock()
	checks := make([]namedCheck, len(c.checks))
	copy(checks, c.checks)
	c.mu.RUnlock()

	results := make([]error, len(checks))
	var g errgroup.Group
	for i, chk := range checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			results[i] = chk.fn(cctx)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]string, len(checks))
	healthy := true
	for i, chk := range checks {
		if err := results[i]; err != nil {
			healthy = false
			out[chk.name] = "failing"
			slog.Warn("readiness check failed", "check", chk.name, "error", err)
			continue
		}
		out[chk.name] = "ok"
	}
	return out, healthy
}

// Names returns the registered check names, sorted.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checks))
	for _, chk := range c.checks {
		names = append(names, chk.name)
	}
	sort.Strings(names)
	return names
}

// healthResponse is the JSON body returned by health endpoints.
type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LivenessHandler always responds 200 OK (/healthz).
func (*Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

// ReadinessHandler responds 200 when the service is ready and every check
// passes, and 503 otherwise (/readyz). Checks are skipped while starting or
// draining.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !c.IsReady() {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: c.State()})
			return
		}
		checks, ok := c.Check(r.Context())
		if !ok {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Checks: checks})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: c.State(), Checks: checks})
	}
}

func writeJSON(w http.ResponseWriter, code int, v healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Package health aggregates the state of the agent's external dependencies.
package health

import (
	"sort"
	"sync"
	"time"
)

// Component states.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusError    = "error"
	StatusUnknown  = "unknown"
)

// ComponentHealth represents the health status of a single component.
type ComponentHealth struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"` // ok, degraded, error, unknown
	Message   string    `json:"message,omitempty"`
	LastOK    time.Time `json:"last_ok"`
	LastError time.Time `json:"last_error,omitempty"`
}

// HealthReport aggregates health from all components.
type HealthReport struct {
	Timestamp  time.Time                  `json:"timestamp"`
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Errors     []LogEntry                 `json:"recent_errors"`
}

// Names returns the component names in the report, sorted.
func (r HealthReport) Names() []string {
	names := make([]string, 0, len(r.Components))
	for name := range r.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LogEntry represents a structured log entry.
type LogEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`     // error, warn
	Component string    `json:"component"` // agent, tasks, groq, store
	Message   string    `json:"message"`
}

// HealthChecker interface for components to implement.
type HealthChecker interface {
	HealthCheck() ComponentHealth
}

// CheckFunc adapts a plain function to HealthChecker.
type CheckFunc func() ComponentHealth

// HealthCheck implements HealthChecker.
func (f CheckFunc) HealthCheck() ComponentHealth { return f() }

// Registry holds health checkers for all components.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewRegistry creates a new health registry.
func NewRegistry() *Registry {
	return &Registry{
		checkers: make(map[string]HealthChecker),
	}
}

// Register adds a component health checker.
func (r *Registry) Register(name string, checker HealthChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = checker
}

// Check runs all health checks and returns a report.
func (r *Registry) Check() HealthReport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report := HealthReport{
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}

	for name, checker := range r.checkers {
		report.Components[name] = checker.HealthCheck()
	}
	report.Status = overall(report.Components)
	return report
}

// GetStatus returns the overall system status.
func (r *Registry) GetStatus() string {
	return r.Check().Status
}

func overall(components map[string]ComponentHealth) string {
	for _, c := range components {
		if c.Status == StatusError {
			return StatusError
		}
	}
	for _, c := range components {
		if c.Status == StatusDegraded {
			return StatusDegraded
		}
	}
	return StatusOK
}

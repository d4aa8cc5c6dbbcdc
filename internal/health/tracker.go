package health

import (
	"sync"
	"time"
)

// recentErrorWindow is how long a recovered error keeps a component degraded.
const recentErrorWindow = 5 * time.Minute

// Tracker records the outcome of calls to an external dependency (a model API)
// and reports it as a ComponentHealth.
type Tracker struct {
	name string
	now  func() time.Time

	mu           sync.RWMutex
	lastSuccess  time.Time
	lastError    time.Time
	lastErrorMsg string
	successCount int64
	errorCount   int64
}

// NewTracker creates a tracker reporting under name.
func NewTracker(name string) *Tracker {
	return &Tracker{name: name, now: time.Now}
}

// RecordSuccess records a successful call.
func (t *Tracker) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSuccess = t.now()
	t.successCount++
}

// RecordError records a failed call.
func (t *Tracker) RecordError(err error) {
	if err == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastError = t.now()
	t.lastErrorMsg = err.Error()
	t.errorCount++
}

// Counts returns the number of successful and failed calls so far.
func (t *Tracker) Counts() (success, failed int64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.successCount, t.errorCount
}

// HealthCheck implements HealthChecker.
func (t *Tracker) HealthCheck() ComponentHealth {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h := ComponentHealth{
		Name:   t.name,
		Status: StatusOK,
		LastOK: t.lastSuccess,
	}

	if !t.lastError.IsZero() {
		// Failing now if the last error is newer than the last success.
		if t.lastError.After(t.lastSuccess) {
			h.Status = StatusError
			h.Message = t.lastErrorMsg
			h.LastError = t.lastError
			return h
		}
		if t.now().Sub(t.lastError) < recentErrorWindow {
			h.Status = StatusDegraded
			h.Message = "recent error: " + t.lastErrorMsg
			h.LastError = t.lastError
		}
	}

	if t.lastSuccess.IsZero() {
		h.Status = StatusUnknown
		h.Message = "no API calls yet"
	}
	return h
}

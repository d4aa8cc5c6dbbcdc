package store

import (
	"context"
	"time"

	"github.com/taiagent/taiagent/internal/health"
)

// HealthCheck returns the health status of the database.
func (db *DB) HealthCheck() health.ComponentHealth {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h := health.ComponentHealth{
		Name:   "database",
		Status: health.StatusOK,
	}

	if err := db.PingContext(ctx); err != nil {
		h.Status = health.StatusError
		h.Message = err.Error()
		h.LastError = time.Now()
		return h
	}

	// Check we can query
	if _, err := db.MessageCount(ctx); err != nil {
		h.Status = health.StatusDegraded
		h.Message = "cannot query messages: " + err.Error()
		h.LastError = time.Now()
		return h
	}

	h.LastOK = time.Now()
	return h
}

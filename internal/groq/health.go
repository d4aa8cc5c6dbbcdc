package groq

import "github.com/taiagent/taiagent/internal/health"

// Health returns the client's call tracker.
func (c *Client) Health() *health.Tracker {
	return c.health
}

// HealthCheck returns the health status of the LLM client.
func (c *Client) HealthCheck() health.ComponentHealth {
	if c.health == nil {
		return health.ComponentHealth{Name: c.name(), Status: health.StatusUnknown, Message: "no tracker"}
	}
	return c.health.HealthCheck()
}

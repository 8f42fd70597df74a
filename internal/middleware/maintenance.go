// ========================================
// internal/middleware/maintenance.go
// Graceful-shutdown drain gate

package middleware

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// DrainGate rejects new work once a role process has begun shutting
// down, while letting requests already in flight finish within the
// shutdown deadline, so in-progress matches drain instead of being cut
// off mid-request. GET /health stays reachable
// throughout so an orchestrator's liveness probe can observe the
// draining state rather than timing out against it.
type DrainGate struct {
	draining atomic.Bool
}

// NewDrainGate returns a gate that admits every request until
// BeginDraining is called.
func NewDrainGate() *DrainGate {
	return &DrainGate{}
}

// BeginDraining flips the gate closed. Safe to call once from
// Server.Shutdown; idempotent if called more than once.
func (g *DrainGate) BeginDraining() {
	g.draining.Store(true)
}

// Middleware returns 503 for any route but /health once draining has
// started.
func (g *DrainGate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.draining.Load() && c.Request.URL.Path != "/health" {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "service is shutting down",
				"message": "in-progress work is draining; retry against another instance",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

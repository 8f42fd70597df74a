// ========================================
// internal/middleware/logger.go
// Request logging middleware with structured logs

package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger creates a custom logging middleware. It runs outside the
// dispatcher, so the protocol fields (sender, message_type,
// conversation_id) are only populated once ServeMCP has decoded the
// envelope and stashed them in the gin context; requests that never
// reach dispatch (GET /health, GET /status, a body that fails to parse)
// simply log them blank.
func Logger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		// Process request
		c.Next()

		// Log request details
		latency := time.Since(start)
		clientIP := c.ClientIP()
		method := c.Request.Method
		statusCode := c.Writer.Status()
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		if raw != "" {
			path = path + "?" + raw
		}

		// Structured log format
		logger.Printf("[%s] %s %s %s %s %d %v %s %s",
			c.GetString("request_id"),
			c.GetString("sender"),
			c.GetString("message_type"),
			c.GetString("conversation_id"),
			clientIP,
			statusCode,
			latency,
			method+" "+path,
			errorMessage,
		)
	}
}

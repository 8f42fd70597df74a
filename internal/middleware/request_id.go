// ========================================
// internal/middleware/request_id.go
// Request correlation ids for tracing

package middleware

import (
	"league-coordinator/internal/utils"

	"github.com/gin-gonic/gin"
)

// RequestID stamps each request with a correlation id. A JSON-RPC frame
// already carries one (the envelope's conversation_id), so that is used
// when present, keeping the access log, the X-Request-ID response
// header, and the audit trail keyed by a single id. Requests without an
// envelope (GET /health, GET /status, malformed bytes) fall back to the
// caller-supplied X-Request-ID header or a freshly generated id.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if _, conversationID := peekEnvelope(c); conversationID != "" {
			requestID = conversationID
		}
		if requestID == "" {
			requestID = utils.GenerateRequestID()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

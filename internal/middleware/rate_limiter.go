// ========================================
// internal/middleware/rate_limiter.go
// Rate limiting to prevent abuse

package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"league-coordinator/internal/services"

	"github.com/gin-gonic/gin"
)

// envelopePeek decodes just enough of a JSON-RPC request body to read
// the envelope's identity fields, without consuming it for the handlers
// further down the chain.
type envelopePeek struct {
	Params struct {
		Envelope struct {
			Sender         string `json:"sender"`
			ConversationID string `json:"conversation_id"`
		} `json:"envelope"`
	} `json:"params"`
}

// peekEnvelope reads the request body for the envelope's sender and
// conversation_id, then restores it so the dispatcher can still decode
// the full request. Both are empty for a body that is not a JSON-RPC
// frame (GET /health, GET /status, malformed bytes).
func peekEnvelope(c *gin.Context) (sender, conversationID string) {
	if c.Request.Body == nil {
		return "", ""
	}
	body, err := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return "", ""
	}

	var peek envelopePeek
	if err := json.Unmarshal(body, &peek); err != nil {
		return "", ""
	}
	return peek.Params.Envelope.Sender, peek.Params.Envelope.ConversationID
}

// RateLimiter implements rate limiting using Redis, keyed off the
// envelope's sender identity (agents are authenticated by sender,
// not by source IP) so that two agents behind the same gateway IP don't
// share a bucket. Requests whose body can't be peeked for a sender (a
// malformed body, or GET /health and GET /status, which carry none) fall
// back to client-IP keying.
func RateLimiter(cache *services.CacheService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var key string
		if sender, _ := peekEnvelope(c); sender != "" {
			key = fmt.Sprintf("rate_limit:sender:%s", sender)
		} else {
			key = fmt.Sprintf("rate_limit:ip:%s", c.ClientIP())
		}

		// Check rate limit (100 requests per minute)
		limit := 100
		window := time.Minute

		count, err := cache.Increment(c.Request.Context(), key, window)
		if err != nil {
			// Don't block on rate limit errors
			c.Next()
			return
		}

		if count > limit {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": window.Seconds(),
			})
			c.Abort()
			return
		}

		// Add rate limit headers
		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", limit-count))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(window).Unix()))

		c.Next()
	}
}

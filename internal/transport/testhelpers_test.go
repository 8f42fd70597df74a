package transport

import (
	"bytes"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ginTestContext builds a *gin.Context wired to record the response and
// carry body as a POST /mcp request, for exercising a Dispatcher or
// role handler without a live *http.Server.
func ginTestContext(rec *httptest.ResponseRecorder, body []byte) (*gin.Context, *gin.Engine) {
	c, engine := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest("POST", "/mcp", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, engine
}

// internal/interfaces/http/middleware/request_id.go
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/your-org/storefront/internal/interfaces/http/response"
)

const requestIDHeader = "X-Request-Id"

// RequestID propagates the caller's request id or mints one
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}

		c.Set(response.RequestIDKey, reqID)
		c.Header(requestIDHeader, reqID)
		c.Next()
	}
}

// Package middleware provides the Gin middleware used by the relay server.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyRequestID is the gin context key carrying the request ID.
const ContextKeyRequestID = "request_id"

// RequestID injects a unique X-Request-Id header into every request/response.
// The ID doubles as the chunk's correlation ID through the relay.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

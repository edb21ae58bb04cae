package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/voicerelay/logger"
)

// RequestLogger returns middleware that logs every request with method,
// path, status code, and duration. Health and metrics paths are skipped.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isQuietEndpoint(c.Request.URL.Path) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		fields := map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      status,
			"duration_ms": latency.Milliseconds(),
			"client":      c.ClientIP(),
		}
		if id := c.GetString(ContextKeyRequestID); id != "" {
			fields[logger.FieldRequestID] = id
		}

		switch {
		case status >= 500:
			log.Error("Request completed", fields)
		case status >= 400:
			log.Warn("Request completed", fields)
		default:
			log.Debug("Request completed", fields)
		}
	}
}

func isQuietEndpoint(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

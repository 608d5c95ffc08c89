package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Druk83/TrainingGround/engine/core"
	"github.com/Druk83/TrainingGround/engine/infra/server/router"
	"github.com/Druk83/TrainingGround/pkg/logger"
)

// LoggerMiddleware assigns a request id, attaches a request-scoped logger and
// logs HTTP request details.
func LoggerMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(router.RequestIDHeader)
		if requestID == "" {
			requestID = core.NewRequestID()
		}
		c.Header(router.RequestIDHeader, requestID)
		reqLog := log.With("request_id", requestID)
		c.Request = c.Request.WithContext(logger.ContextWithLogger(c.Request.Context(), reqLog))
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}
		c.Next()
		reqLog.Info("Request completed",
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"status_code", c.Writer.Status(),
			"body_size", c.Writer.Size(),
			"path", path,
			"error", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}

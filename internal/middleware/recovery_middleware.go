// internal/middleware/recovery_middleware.go
package middleware

import (
	"io"
	"net/http"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryMiddleware answers a handler panic with a 500 carrying the request
// id. Broken client connections are left to gin and produce no body.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		requestID := GetRequestID(c)
		logger.Error("handler panicked",
			zap.Any("panic", recovered),
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("request_id", requestID),
			zap.Stack("stack"),
		)

		body := response.FailureBody{Error: "internal server error"}
		if requestID != "" {
			body.Details = map[string]any{"requestId": requestID}
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, body)
	})
}

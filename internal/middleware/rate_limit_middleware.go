// internal/middleware/rate_limit_middleware.go
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxPeekBytes bounds how much of the body is read to find the user id.
const maxPeekBytes = 64 << 10

type Limiter interface {
	Allow(ctx context.Context, endpoint, subject string, maxRequests int64, window time.Duration) (bool, error)
}

// RateLimit counts requests per user id from the JSON body, falling back to
// the client IP. A limiter failure lets the request through.
func RateLimit(limiter Limiter, endpoint string, maxRequests int64, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || maxRequests <= 0 {
			c.Next()
			return
		}

		subject := "ip:" + c.ClientIP()
		if userID := peekUserID(c); userID != "" {
			subject = "user:" + userID
		}

		allowed, err := limiter.Allow(c.Request.Context(), endpoint, subject, maxRequests, window)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("endpoint", endpoint), zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			logger.Warn("rate limit exceeded",
				zap.String("endpoint", endpoint),
				zap.String("subject", subject),
			)
			response.Failure(c, http.StatusTooManyRequests, "too many requests, please try again later", nil, false)
			return
		}

		c.Next()
	}
}

// peekUserID reads userId from the body and restores the body for the handler.
func peekUserID(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPeekBytes))
	rest := c.Request.Body
	c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), rest))
	if err != nil {
		return ""
	}

	var body struct {
		UserID string `json:"userId"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return ""
	}
	return body.UserID
}

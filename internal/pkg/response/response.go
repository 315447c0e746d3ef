// internal/pkg/response/response.go
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope used by the admin API.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// FailureBody is the checkout-facing error shape. Details is only filled
// outside production.
type FailureBody struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// Success sends a successful response with a message and optional data.
func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}

	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error sends a standardized admin error response.
func Error(c *gin.Context, code int, message string, err error, data ...interface{}) {
	c.Abort()

	response := Response{
		Success: false,
		Message: message,
	}

	if err != nil {
		response.Error = err.Error()
	}

	if len(data) > 0 {
		response.Data = data[0]
	}

	c.JSON(code, response)
}

// Failure sends {error, details?}. The cause is attached only when
// exposeDetails is set.
func Failure(c *gin.Context, code int, message string, cause error, exposeDetails bool) {
	c.Abort()

	body := FailureBody{Error: message}
	if exposeDetails && cause != nil {
		body.Details = map[string]any{"cause": cause.Error()}
	}

	c.JSON(code, body)
}

// NotFound sends a 404 Not Found response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message, nil)
}

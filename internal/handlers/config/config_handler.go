// internal/handlers/config/config_handler.go
package config

import (
	"net/http"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/environment"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type ConfigHandler struct {
	resolver *environment.Resolver
}

func NewConfigHandler(resolver *environment.Resolver) *ConfigHandler {
	return &ConfigHandler{resolver: resolver}
}

type StripeConfigResponse struct {
	PublishableKey string           `json:"publishableKey"`
	Mode           environment.Mode `json:"mode"`
}

// GetStripeConfig returns the publishable key matching the request host, so
// the browser tokenises cards in the same environment the charge will use.
func (h *ConfigHandler) GetStripeConfig(c *gin.Context) {
	creds := h.resolver.Resolve(c.Request.Host)
	if creds.PublishableKey == "" {
		response.Failure(c, http.StatusInternalServerError, "payment configuration error, please contact support", nil, false)
		return
	}

	c.JSON(http.StatusOK, StripeConfigResponse{
		PublishableKey: creds.PublishableKey,
		Mode:           creds.Mode(),
	})
}

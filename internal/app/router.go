// internal/app/router.go
package app

import (
	"net/http"

	configHandler "github.com/damsblt/only-you-coaching-app-sub004/internal/handlers/config"
	planHandler "github.com/damsblt/only-you-coaching-app-sub004/internal/handlers/plan"
	promoHandler "github.com/damsblt/only-you-coaching-app-sub004/internal/handlers/promo"
	subscriptionHandler "github.com/damsblt/only-you-coaching-app-sub004/internal/handlers/subscription"
	webhookHandler "github.com/damsblt/only-you-coaching-app-sub004/internal/handlers/webhook"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/middleware"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	SubscriptionHandler *subscriptionHandler.SubscriptionHandler
	WebhookHandler      *webhookHandler.WebhookHandler
	PromoHandler        *promoHandler.PromoHandler
	PlanHandler         *planHandler.PlanHandler
	ConfigHandler       *configHandler.ConfigHandler
	AuthMiddleware      *middleware.AuthMiddleware
	MemberAuth          *middleware.AuthMiddleware
	CheckoutRateLimit   gin.HandlerFunc
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ==================== Checkout ====================
	subscriptions := api.Group("/subscriptions")
	{
		subscriptions.POST("", h.CheckoutRateLimit, h.SubscriptionHandler.CreateSubscription)
		subscriptions.GET("/user/:userId", h.MemberAuth.Auth(), h.SubscriptionHandler.GetUserSubscription)
		subscriptions.POST("/:subscriptionId/cancel", h.MemberAuth.Auth(), h.SubscriptionHandler.CancelSubscription)
	}

	api.POST("/promo-codes/validate", h.PromoHandler.ValidatePromoCode)
	api.GET("/config/stripe", h.ConfigHandler.GetStripeConfig)

	plans := api.Group("/plans")
	{
		plans.GET("", h.PlanHandler.ListPlans)
		plans.GET("/:planId", h.PlanHandler.GetPlan)
	}

	// ==================== Processor Webhooks ====================
	api.POST("/webhooks/stripe", h.WebhookHandler.Receive)

	// ==================== Admin ====================
	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.AdminOnly()...)
	{
		promos := admin.Group("/promo-codes")
		promos.GET("", h.PromoHandler.ListPromoCodes)
		promos.POST("", h.PromoHandler.CreatePromoCode)
		promos.GET("/:id", h.PromoHandler.GetPromoCode)
		promos.PUT("/:id", h.PromoHandler.UpdatePromoCode)
		promos.POST("/:id/deactivate", h.PromoHandler.DeactivatePromoCode)
	}
}

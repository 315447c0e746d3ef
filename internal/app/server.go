// internal/app/server.go
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	configHandler "github.com/damsblt/only-you-coaching-app-sub004/internal/handlers/config"
	planHandler "github.com/damsblt/only-you-coaching-app-sub004/internal/handlers/plan"
	promoHandler "github.com/damsblt/only-you-coaching-app-sub004/internal/handlers/promo"
	subscriptionHandler "github.com/damsblt/only-you-coaching-app-sub004/internal/handlers/subscription"
	webhookHandler "github.com/damsblt/only-you-coaching-app-sub004/internal/handlers/webhook"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/middleware"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const checkoutEndpoint = "subscriptions:create"

type Server struct {
	container *Container
	engine    *gin.Engine
	http      *http.Server
	logger    *zap.Logger
}

func NewServer(container *Container) *Server {
	cfg := container.Config
	logger := container.Logger

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	// ----- Middlewares -----
	engine.Use(
		middleware.LoggingMiddleware(logger),
		middleware.RecoveryMiddleware(logger),
		middleware.CORSMiddleware([]string{cfg.SiteURL}),
	)

	verifier := jwt.NewVerifier(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience)
	memberVerifier := jwt.NewVerifier(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.MemberAudience)

	// ----- Handlers -----
	handlers := &Handlers{
		SubscriptionHandler: subscriptionHandler.NewSubscriptionHandler(container.Subscription, !cfg.IsProduction(), logger),
		WebhookHandler:      webhookHandler.NewWebhookHandler(container.Webhooks, logger),
		PromoHandler:        promoHandler.NewPromoHandler(container.Promo, logger),
		PlanHandler:         planHandler.NewPlanHandler(),
		ConfigHandler:       configHandler.NewConfigHandler(container.Resolver),
		AuthMiddleware:      middleware.NewAuthMiddleware(verifier, logger),
		MemberAuth:          middleware.NewAuthMiddleware(memberVerifier, logger),
		CheckoutRateLimit: middleware.RateLimit(
			container.RateLimiter,
			checkoutEndpoint,
			cfg.Billing.CheckoutRateLimit,
			cfg.Billing.CheckoutWindow,
			logger,
		),
	}
	SetupRouter(engine, handlers)

	return &Server{
		container: container,
		engine:    engine,
		logger:    logger,
		http: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
		},
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

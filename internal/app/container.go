// internal/app/container.go
package app

import (
	"context"
	"fmt"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/config"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/db"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/environment"
	stripeproc "github.com/damsblt/only-you-coaching-app-sub004/internal/processor/stripe"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/repository/cache"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/repository/postgres"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/service/billing"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/service/email"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/service/notification"
	promosvc "github.com/damsblt/only-you-coaching-app-sub004/internal/service/promo"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Container holds the wired services shared by the HTTP server and the CLI
// maintenance commands.
type Container struct {
	Config config.AppConfig
	Logger *zap.Logger

	Pool  *pgxpool.Pool
	Redis *redis.Client

	Resolver     *environment.Resolver
	Processors   *stripeproc.Factory
	RateLimiter  *cache.RateLimiter
	Subscription *billing.SubscriptionService
	Webhooks     *billing.WebhookReconciler
	Promo        *promosvc.PromoService
}

// NewContainer connects to Postgres and Redis and builds every service.
// Postgres is required. Redis is not: its users degrade when it is down.
func NewContainer(ctx context.Context, cfg config.AppConfig, logger *zap.Logger) (*Container, error) {
	pool, err := db.ConnectPostgres(ctx, db.PostgresConfig{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, err
	}
	logger.Info("connected to postgres")

	redisClient, err := db.NewRedisClient(ctx, db.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		PoolSize: 10,
	})
	switch {
	case redisClient == nil:
		pool.Close()
		return nil, err
	case err != nil:
		logger.Warn("redis unavailable, replay guard, coupon cache and rate limiting degraded", zap.Error(err))
	default:
		logger.Info("connected to redis")
	}

	c := &Container{
		Config: cfg,
		Logger: logger,
		Pool:   pool,
		Redis:  redisClient,
	}
	if err := c.wire(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) wire() error {
	cfg := c.Config

	// ----- Environment -----
	c.Resolver = environment.NewResolver(cfg.Billing.ProductionHost,
		environment.KeySet{
			SecretKey:      cfg.Stripe.SecretKey,
			PublishableKey: cfg.Stripe.PublishableKey,
			WebhookSecret:  cfg.Stripe.WebhookSecret,
		},
		environment.KeySet{
			SecretKey:      cfg.Stripe.SecretKeyTest,
			PublishableKey: cfg.Stripe.PublishableKeyTest,
			WebhookSecret:  cfg.Stripe.WebhookSecretTest,
		},
	)
	c.Processors = stripeproc.NewFactory(stripeproc.BreakerConfig{
		FailureThreshold: cfg.Billing.BreakerFailures,
		Timeout:          cfg.Billing.BreakerTimeout,
	}, c.Logger)

	// ----- Repositories -----
	dbWrapper := postgres.NewDB(c.Pool)
	subscriptionRepo := postgres.NewSubscriptionRepository(c.Pool)
	promoRepo := postgres.NewPromoCodeRepository(c.Pool, dbWrapper)
	userRepo := postgres.NewUserRepository(c.Pool)

	couponCache := cache.NewCouponCache(c.Redis)
	eventGuard := cache.NewEventGuard(c.Redis)
	c.RateLimiter = cache.NewRateLimiter(c.Redis)

	// ----- Notifications -----
	var sender email.Sender
	if cfg.Email.PostmarkEnabled() {
		postmarkSender, err := email.NewPostmarkSender(email.Config{
			ServerToken:  cfg.Email.PostmarkServerToken,
			AccountToken: cfg.Email.PostmarkAccountToken,
			From:         cfg.Email.Sender,
			ReplyTo:      cfg.Email.Admin,
		})
		if err != nil {
			return fmt.Errorf("failed to configure postmark: %w", err)
		}
		sender = postmarkSender
	} else {
		c.Logger.Warn("postmark tokens not set, notifications will only be logged")
	}
	notifier := notification.NewNotificationService(sender, cfg.Email.Admin, cfg.SiteURL, c.Logger)

	// ----- Services -----
	c.Promo = promosvc.NewPromoService(promoRepo, c.Logger)
	discounts := billing.NewDiscountResolver(promoRepo, couponCache, cfg.Billing.Currency, c.Logger)

	c.Subscription = billing.NewSubscriptionService(
		c.Resolver,
		c.Processors,
		subscriptionRepo,
		userRepo,
		discounts,
		c.Promo,
		notifier,
		cfg.Billing.Currency,
		c.Logger,
	)

	c.Webhooks = billing.NewWebhookReconciler(
		c.Resolver.ForDeployment(cfg.IsProduction()),
		c.Processors,
		stripeproc.NewEventParser(),
		eventGuard,
		subscriptionRepo,
		userRepo,
		c.Logger,
	)
	return nil
}

func (c *Container) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

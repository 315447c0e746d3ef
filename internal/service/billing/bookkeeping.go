// internal/service/billing/bookkeeping.go
package billing

import (
	"context"
	"time"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/subscription"

	"go.uber.org/zap"
)

// Post-charge side effects. These run after the processor accepted the
// subscription, so they must not fail the request or trigger a retry of the
// charge. Webhook delivery reconciles anything they miss.

const notifyTimeout = 30 * time.Second

// bestEffort runs step and logs its failure.
func (s *SubscriptionService) bestEffort(step, subscriptionID string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("post-charge step panicked",
				zap.String("step", step),
				zap.String("subscription_id", subscriptionID),
				zap.Any("panic", r),
			)
		}
	}()
	if err := fn(); err != nil {
		s.logger.Error("post-charge step failed",
			zap.String("step", step),
			zap.String("subscription_id", subscriptionID),
			zap.Error(err),
		)
	}
}

func (s *SubscriptionService) recordSubscription(ctx context.Context, row *subscription.Subscription) {
	ctx = context.WithoutCancel(ctx)
	s.bestEffort("record_subscription", row.ProcessorSubscriptionID, func() error {
		return s.subscriptions.Upsert(ctx, row)
	})
}

func (s *SubscriptionService) recordPromoUsage(ctx context.Context, code, userID, subscriptionID string) {
	if code == "" || s.usage == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.bestEffort("record_promo_usage", subscriptionID, func() error {
		return s.usage.RecordUsage(ctx, code, userID, subscriptionID)
	})
}

// notify dispatches the admin alert and the client confirmation without
// waiting for either.
func (s *SubscriptionService) notify(ctx context.Context, notice subscription.Notice) {
	if s.notifier == nil {
		return
	}
	base := context.WithoutCancel(ctx)
	s.dispatch(func() {
		ctx, cancel := context.WithTimeout(base, notifyTimeout)
		defer cancel()
		s.bestEffort("notify_admin", notice.SubscriptionID, func() error {
			return s.notifier.NotifyAdmin(ctx, notice)
		})
		s.bestEffort("notify_client", notice.SubscriptionID, func() error {
			return s.notifier.NotifyClient(ctx, notice)
		})
	})
}

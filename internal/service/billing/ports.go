// internal/service/billing/ports.go
package billing

import (
	"context"
	"time"

	domain "github.com/damsblt/only-you-coaching-app-sub004/internal/domain/billing"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/promo"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/subscription"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/user"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/environment"
)

// SubscriptionStore persists subscription rows. Finders return
// xerrors.ErrNotFound when no row matches.
type SubscriptionStore interface {
	FindByProcessorID(ctx context.Context, processorSubscriptionID string) (*subscription.Subscription, error)
	FindLatestByUser(ctx context.Context, userID string) (*subscription.Subscription, error)
	// Upsert inserts the row or overwrites the one with the same processor id.
	Upsert(ctx context.Context, sub *subscription.Subscription) error
	// CreateIfAbsent inserts the row unless one with the same processor id
	// exists, and reports whether it inserted.
	CreateIfAbsent(ctx context.Context, sub *subscription.Subscription) (bool, error)
	// ApplySync updates an existing row and reports whether one matched.
	ApplySync(ctx context.Context, sync subscription.Sync) (bool, error)
	UpdateStatusBySubscriptionID(ctx context.Context, processorSubscriptionID string, status subscription.Status) (int64, error)
	// UpdateStatusByCustomerID changes every non-canceled row of the customer.
	UpdateStatusByCustomerID(ctx context.Context, processorCustomerID string, status subscription.Status) (int64, error)
	SetCancelAtPeriodEnd(ctx context.Context, processorSubscriptionID string, cancel bool) error
	ListWithActiveCommitment(ctx context.Context, now time.Time) ([]subscription.Subscription, error)
}

type UserStore interface {
	FindByID(ctx context.Context, id string) (*user.User, error)
	FindByEmail(ctx context.Context, email string) (*user.User, error)
}

// PromoLookup reads promo code rows for coupon recovery.
type PromoLookup interface {
	FindByCode(ctx context.Context, code string) (*promo.PromoCode, error)
	FindByCouponID(ctx context.Context, couponID string) (*promo.PromoCode, error)
}

// CouponCache remembers coupons created on the fly, per environment.
type CouponCache interface {
	Get(ctx context.Context, mode environment.Mode, code string) (string, error)
	Set(ctx context.Context, mode environment.Mode, code, couponID string) error
}

// UsageRecorder records a successful promo redemption.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, code, userID, subscriptionID string) error
}

type Notifier interface {
	NotifyAdmin(ctx context.Context, notice subscription.Notice) error
	NotifyClient(ctx context.Context, notice subscription.Notice) error
}

// EventParser verifies a raw webhook payload and decodes it.
type EventParser interface {
	ParseEvent(payload []byte, signatureHeader, secret string) (domain.Event, error)
}

// EventGuard claims webhook event ids so replays short-circuit. A claim only
// lives briefly until Complete marks the event done; a claim that is never
// completed expires and the next redelivery processes the event.
type EventGuard interface {
	Claim(ctx context.Context, eventID string) (domain.ClaimState, error)
	Complete(ctx context.Context, eventID string) error
	Release(ctx context.Context, eventID string) error
}

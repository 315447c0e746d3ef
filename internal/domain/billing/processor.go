// internal/domain/billing/processor.go
package billing

import (
	"context"
	"time"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/environment"
)

// Processor is the payment processor surface the billing core relies on.
// Lookups that find nothing return (nil, nil); missing ids passed to getters
// return an error wrapping ErrProcessorNotFound.
type Processor interface {
	FindActiveProductByName(ctx context.Context, name string) (*Product, error)
	FindActivePrice(ctx context.Context, productID string) (*Price, error)

	FindCustomerByEmail(ctx context.Context, email string) (*Customer, error)
	CreateCustomer(ctx context.Context, params CustomerParams) (*Customer, error)
	GetCustomer(ctx context.Context, id string) (*Customer, error)

	GetPaymentMethod(ctx context.Context, id string) (*PaymentMethod, error)
	AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) error
	DetachPaymentMethod(ctx context.Context, paymentMethodID string) error

	GetCoupon(ctx context.Context, id string) (*Coupon, error)
	CreateCoupon(ctx context.Context, params CouponParams) (*Coupon, error)

	CreateSubscription(ctx context.Context, params SubscriptionParams) (*Subscription, error)
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	SetSubscriptionCancelAt(ctx context.Context, id string, cancelAt time.Time) error
	CancelSubscriptionAtPeriodEnd(ctx context.Context, id string) error
}

// ProcessorFactory builds a Processor bound to one credential set.
type ProcessorFactory interface {
	ForCredentials(creds environment.Credentials) (Processor, error)
}

// ProcessorFactoryFunc adapts a function to ProcessorFactory.
type ProcessorFactoryFunc func(creds environment.Credentials) (Processor, error)

func (f ProcessorFactoryFunc) ForCredentials(creds environment.Credentials) (Processor, error) {
	return f(creds)
}

// internal/processor/stripe/processor.go
package stripe

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/damsblt/only-you-coaching-app-sub004/internal/domain/billing"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/environment"

	"github.com/sony/gobreaker/v2"
	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

type BreakerConfig struct {
	// FailureThreshold consecutive connection failures open the circuit.
	FailureThreshold uint32
	// Timeout is how long the circuit stays open before probing again.
	Timeout time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, Timeout: 30 * time.Second}
}

// Factory builds Stripe-backed processors. Live and test keys share nothing,
// so each mode gets its own circuit breaker.
type Factory struct {
	cfg      BreakerConfig
	backends *stripego.Backends
	logger   *zap.Logger

	mu       sync.Mutex
	breakers map[environment.Mode]*gobreaker.CircuitBreaker[any]
}

func NewFactory(cfg BreakerConfig, logger *zap.Logger) *Factory {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultBreakerConfig().Timeout
	}
	return &Factory{
		cfg:      cfg,
		logger:   logger,
		breakers: make(map[environment.Mode]*gobreaker.CircuitBreaker[any]),
	}
}

// WithBackends points every processor built by f at custom backends. Used to
// talk to stripe-mock or an httptest server.
func (f *Factory) WithBackends(backends *stripego.Backends) *Factory {
	f.backends = backends
	return f
}

// ForCredentials returns a processor using creds.SecretKey. An empty key is a
// configuration error, never a silent switch to the other environment.
func (f *Factory) ForCredentials(creds environment.Credentials) (domain.Processor, error) {
	if strings.TrimSpace(creds.SecretKey) == "" {
		return nil, fmt.Errorf("%w: no secret key for %s mode", domain.ErrMissingCredentials, creds.Mode())
	}
	return &Processor{
		api:     client.New(creds.SecretKey, f.backends),
		breaker: f.breaker(creds.Mode()),
		mode:    creds.Mode(),
		logger:  f.logger,
	}, nil
}

func (f *Factory) breaker(mode environment.Mode) *gobreaker.CircuitBreaker[any] {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cb, ok := f.breakers[mode]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "stripe-" + string(mode),
		MaxRequests: 1,
		Timeout:     f.cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= f.cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return !tripsBreaker(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.logger.Warn("processor circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	f.breakers[mode] = cb
	return cb
}

// Processor implements billing.Processor on top of one Stripe key.
type Processor struct {
	api     *client.API
	breaker *gobreaker.CircuitBreaker[any]
	mode    environment.Mode
	logger  *zap.Logger
}

// call runs fn behind the breaker and maps the error it returns.
func call[T any](ctx context.Context, p *Processor, op string, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	out, err := p.breaker.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		mapped := mapError(err)
		p.logger.Warn("processor call failed",
			zap.String("op", op),
			zap.String("mode", string(p.mode)),
			zap.String("failure", FailureClass(mapped)),
			zap.Error(err),
		)
		return zero, mapped
	}
	return out.(T), nil
}

func (p *Processor) FindActiveProductByName(ctx context.Context, name string) (*domain.Product, error) {
	return call(ctx, p, "products.list", func() (*domain.Product, error) {
		params := &stripego.ProductListParams{Active: stripego.Bool(true)}
		params.Context = ctx
		params.Limit = stripego.Int64(100)

		var loose *domain.Product
		it := p.api.Products.List(params)
		for it.Next() {
			prod := it.Product()
			if prod.Name == name {
				return &domain.Product{ID: prod.ID, Name: prod.Name}, nil
			}
			if loose == nil && strings.EqualFold(strings.TrimSpace(prod.Name), strings.TrimSpace(name)) {
				loose = &domain.Product{ID: prod.ID, Name: prod.Name}
			}
		}
		if err := it.Err(); err != nil {
			return nil, err
		}
		return loose, nil
	})
}

// FindActivePrice prefers a recurring price; a product with only one-off
// prices falls back to the first one.
func (p *Processor) FindActivePrice(ctx context.Context, productID string) (*domain.Price, error) {
	return call(ctx, p, "prices.list", func() (*domain.Price, error) {
		params := &stripego.PriceListParams{
			Product: stripego.String(productID),
			Active:  stripego.Bool(true),
		}
		params.Context = ctx

		var first *stripego.Price
		it := p.api.Prices.List(params)
		for it.Next() {
			price := it.Price()
			if price.Recurring != nil {
				return toPrice(price), nil
			}
			if first == nil {
				first = price
			}
		}
		if err := it.Err(); err != nil {
			return nil, err
		}
		if first == nil {
			return nil, nil
		}
		return toPrice(first), nil
	})
}

func (p *Processor) FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	return call(ctx, p, "customers.list", func() (*domain.Customer, error) {
		params := &stripego.CustomerListParams{Email: stripego.String(email)}
		params.Context = ctx
		params.Limit = stripego.Int64(1)

		it := p.api.Customers.List(params)
		for it.Next() {
			if c := it.Customer(); !c.Deleted {
				return toCustomer(c), nil
			}
		}
		return nil, it.Err()
	})
}

func (p *Processor) CreateCustomer(ctx context.Context, in domain.CustomerParams) (*domain.Customer, error) {
	return call(ctx, p, "customers.create", func() (*domain.Customer, error) {
		params := &stripego.CustomerParams{Email: stripego.String(in.Email)}
		params.Context = ctx
		if in.Name != "" {
			params.Name = stripego.String(in.Name)
		}
		for k, v := range in.Metadata {
			params.AddMetadata(k, v)
		}
		c, err := p.api.Customers.New(params)
		if err != nil {
			return nil, err
		}
		return toCustomer(c), nil
	})
}

func (p *Processor) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return call(ctx, p, "customers.get", func() (*domain.Customer, error) {
		params := &stripego.CustomerParams{}
		params.Context = ctx
		c, err := p.api.Customers.Get(id, params)
		if err != nil {
			return nil, err
		}
		return toCustomer(c), nil
	})
}

func (p *Processor) GetPaymentMethod(ctx context.Context, id string) (*domain.PaymentMethod, error) {
	return call(ctx, p, "payment_methods.get", func() (*domain.PaymentMethod, error) {
		params := &stripego.PaymentMethodParams{}
		params.Context = ctx
		pm, err := p.api.PaymentMethods.Get(id, params)
		if err != nil {
			return nil, err
		}
		out := &domain.PaymentMethod{ID: pm.ID}
		if pm.Customer != nil {
			out.CustomerID = pm.Customer.ID
		}
		return out, nil
	})
}

func (p *Processor) AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) error {
	_, err := call(ctx, p, "payment_methods.attach", func() (struct{}, error) {
		params := &stripego.PaymentMethodAttachParams{Customer: stripego.String(customerID)}
		params.Context = ctx
		_, err := p.api.PaymentMethods.Attach(paymentMethodID, params)
		return struct{}{}, err
	})
	return err
}

func (p *Processor) DetachPaymentMethod(ctx context.Context, paymentMethodID string) error {
	_, err := call(ctx, p, "payment_methods.detach", func() (struct{}, error) {
		params := &stripego.PaymentMethodDetachParams{}
		params.Context = ctx
		_, err := p.api.PaymentMethods.Detach(paymentMethodID, params)
		return struct{}{}, err
	})
	return err
}

func (p *Processor) GetCoupon(ctx context.Context, id string) (*domain.Coupon, error) {
	return call(ctx, p, "coupons.get", func() (*domain.Coupon, error) {
		params := &stripego.CouponParams{}
		params.Context = ctx
		c, err := p.api.Coupons.Get(id, params)
		if err != nil {
			return nil, err
		}
		return &domain.Coupon{ID: c.ID, Name: c.Name, Valid: c.Valid}, nil
	})
}

// CreateCoupon creates a forever-duration coupon.
func (p *Processor) CreateCoupon(ctx context.Context, in domain.CouponParams) (*domain.Coupon, error) {
	if in.PercentOff <= 0 && in.AmountOffCents <= 0 {
		return nil, fmt.Errorf("%w: coupon has no discount", domain.ErrProcessor)
	}
	return call(ctx, p, "coupons.create", func() (*domain.Coupon, error) {
		params := &stripego.CouponParams{
			Duration: stripego.String(string(stripego.CouponDurationForever)),
			Name:     stripego.String(in.Name),
		}
		params.Context = ctx
		if in.PercentOff > 0 {
			params.PercentOff = stripego.Float64(float64(in.PercentOff))
		} else {
			params.AmountOff = stripego.Int64(in.AmountOffCents)
			params.Currency = stripego.String(in.Currency)
		}
		c, err := p.api.Coupons.New(params)
		if err != nil {
			return nil, err
		}
		return &domain.Coupon{ID: c.ID, Name: c.Name, Valid: c.Valid}, nil
	})
}

func (p *Processor) CreateSubscription(ctx context.Context, in domain.SubscriptionParams) (*domain.Subscription, error) {
	return call(ctx, p, "subscriptions.create", func() (*domain.Subscription, error) {
		params := &stripego.SubscriptionParams{
			Customer: stripego.String(in.CustomerID),
			Items: []*stripego.SubscriptionItemsParams{
				{Price: stripego.String(in.PriceID)},
			},
			DefaultPaymentMethod: stripego.String(in.PaymentMethodID),
		}
		params.Context = ctx
		if in.CancelAt != nil {
			params.CancelAt = stripego.Int64(in.CancelAt.Unix())
		}
		if in.CouponID != "" {
			params.Coupon = stripego.String(in.CouponID)
		}
		for k, v := range in.Metadata {
			params.AddMetadata(k, v)
		}
		if in.IdempotencyKey != "" {
			params.SetIdempotencyKey(in.IdempotencyKey)
		}

		s, err := p.api.Subscriptions.New(params)
		if err != nil {
			return nil, err
		}
		return toSubscription(s), nil
	})
}

func (p *Processor) GetSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	return call(ctx, p, "subscriptions.get", func() (*domain.Subscription, error) {
		params := &stripego.SubscriptionParams{}
		params.Context = ctx
		s, err := p.api.Subscriptions.Get(id, params)
		if err != nil {
			return nil, err
		}
		return toSubscription(s), nil
	})
}

func (p *Processor) SetSubscriptionCancelAt(ctx context.Context, id string, cancelAt time.Time) error {
	_, err := call(ctx, p, "subscriptions.update_cancel_at", func() (struct{}, error) {
		params := &stripego.SubscriptionParams{CancelAt: stripego.Int64(cancelAt.Unix())}
		params.Context = ctx
		_, err := p.api.Subscriptions.Update(id, params)
		return struct{}{}, err
	})
	return err
}

func (p *Processor) CancelSubscriptionAtPeriodEnd(ctx context.Context, id string) error {
	_, err := call(ctx, p, "subscriptions.cancel_at_period_end", func() (struct{}, error) {
		params := &stripego.SubscriptionParams{CancelAtPeriodEnd: stripego.Bool(true)}
		params.Context = ctx
		_, err := p.api.Subscriptions.Update(id, params)
		return struct{}{}, err
	})
	return err
}

package billing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/damsblt/only-you-coaching-app-sub004/internal/domain/billing"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/promo"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/subscription"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/user"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/environment"
	xerrors "github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/errors"
)

const productionHost = "only-you-coaching.com"

var fixedNow = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func newTestResolver() *environment.Resolver {
	return environment.NewResolver(productionHost,
		environment.KeySet{SecretKey: "sk_live", PublishableKey: "pk_live", WebhookSecret: "whsec_live"},
		environment.KeySet{SecretKey: "sk_test", PublishableKey: "pk_test", WebhookSecret: "whsec_test"},
	)
}

// ========== Processor ==========

type fakeProcessor struct {
	mu sync.Mutex

	products       map[string]*domain.Product
	prices         map[string]*domain.Price
	customers      map[string]*domain.Customer
	paymentMethods map[string]*domain.PaymentMethod
	coupons        map[string]*domain.Coupon
	subs           map[string]*domain.Subscription

	createdSubs    []domain.SubscriptionParams
	createdCoupons []domain.CouponParams
	cancelAtCalls  map[string]time.Time
	periodEndCalls []string
	detached       []string

	createCouponErr error
	createSubErr    error
	seq             int
}

func newFakeProcessor() *fakeProcessor {
	p := &fakeProcessor{
		products:       map[string]*domain.Product{},
		prices:         map[string]*domain.Price{},
		customers:      map[string]*domain.Customer{},
		paymentMethods: map[string]*domain.PaymentMethod{},
		coupons:        map[string]*domain.Coupon{},
		subs:           map[string]*domain.Subscription{},
		cancelAtCalls:  map[string]time.Time{},
	}
	p.addProduct("Coaching Pro", 12900)
	p.addProduct("Coaching Starter", 6900)
	p.addProduct("Online Essentiel", 1900)
	p.paymentMethods["pm_card"] = &domain.PaymentMethod{ID: "pm_card"}
	return p
}

func (p *fakeProcessor) addProduct(name string, amount int64) {
	id := "prod_" + strings.ReplaceAll(strings.ToLower(name), " ", "_")
	p.products[name] = &domain.Product{ID: id, Name: name}
	p.prices[id] = &domain.Price{ID: "price_" + id, ProductID: id, UnitAmount: amount, Currency: "chf", Interval: "month"}
}

func (p *fakeProcessor) next(prefix string) string {
	p.seq++
	return fmt.Sprintf("%s_%d", prefix, p.seq)
}

func (p *fakeProcessor) FindActiveProductByName(_ context.Context, name string) (*domain.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.products[name], nil
}

func (p *fakeProcessor) FindActivePrice(_ context.Context, productID string) (*domain.Price, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prices[productID], nil
}

func (p *fakeProcessor) FindCustomerByEmail(_ context.Context, email string) (*domain.Customer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.customers {
		if c.Email == email {
			return c, nil
		}
	}
	return nil, nil
}

func (p *fakeProcessor) CreateCustomer(_ context.Context, params domain.CustomerParams) (*domain.Customer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := &domain.Customer{ID: p.next("cus"), Email: params.Email, Name: params.Name}
	p.customers[c.ID] = c
	return c, nil
}

func (p *fakeProcessor) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.customers[id]
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", domain.ErrProcessorNotFound, id)
	}
	return c, nil
}

func (p *fakeProcessor) GetPaymentMethod(_ context.Context, id string) (*domain.PaymentMethod, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pm, ok := p.paymentMethods[id]
	if !ok {
		return nil, fmt.Errorf("%w: payment method %s", domain.ErrProcessorNotFound, id)
	}
	cp := *pm
	return &cp, nil
}

func (p *fakeProcessor) AttachPaymentMethod(_ context.Context, paymentMethodID, customerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pm := p.paymentMethods[paymentMethodID]
	if pm.CustomerID != "" {
		return domain.ErrAlreadyAttached
	}
	pm.CustomerID = customerID
	return nil
}

func (p *fakeProcessor) DetachPaymentMethod(_ context.Context, paymentMethodID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paymentMethods[paymentMethodID].CustomerID = ""
	p.detached = append(p.detached, paymentMethodID)
	return nil
}

func (p *fakeProcessor) GetCoupon(_ context.Context, id string) (*domain.Coupon, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.coupons[id]
	if !ok {
		return nil, fmt.Errorf("%w: coupon %s", domain.ErrProcessorNotFound, id)
	}
	return c, nil
}

func (p *fakeProcessor) CreateCoupon(_ context.Context, params domain.CouponParams) (*domain.Coupon, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createCouponErr != nil {
		return nil, p.createCouponErr
	}
	c := &domain.Coupon{ID: p.next("coupon"), Name: params.Name, Valid: true}
	p.coupons[c.ID] = c
	p.createdCoupons = append(p.createdCoupons, params)
	return c, nil
}

func (p *fakeProcessor) CreateSubscription(_ context.Context, params domain.SubscriptionParams) (*domain.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createSubErr != nil {
		return nil, p.createSubErr
	}
	p.createdSubs = append(p.createdSubs, params)
	sub := &domain.Subscription{
		ID:                 p.next("sub"),
		CustomerID:         params.CustomerID,
		PriceID:            params.PriceID,
		PriceInterval:      "month",
		Status:             "active",
		StartDate:          fixedNow,
		CurrentPeriodStart: fixedNow,
		CancelAt:           params.CancelAt,
		Metadata:           params.Metadata,
	}
	p.subs[sub.ID] = sub
	return sub, nil
}

func (p *fakeProcessor) GetSubscription(_ context.Context, id string) (*domain.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sub, ok := p.subs[id]
	if !ok {
		return nil, fmt.Errorf("%w: subscription %s", domain.ErrProcessorNotFound, id)
	}
	cp := *sub
	return &cp, nil
}

func (p *fakeProcessor) SetSubscriptionCancelAt(_ context.Context, id string, cancelAt time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelAtCalls[id] = cancelAt
	if sub, ok := p.subs[id]; ok {
		at := cancelAt
		sub.CancelAt = &at
	}
	return nil
}

func (p *fakeProcessor) CancelSubscriptionAtPeriodEnd(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.periodEndCalls = append(p.periodEndCalls, id)
	if sub, ok := p.subs[id]; ok {
		sub.CancelAtPeriodEnd = true
	}
	return nil
}

// fakeFactory hands out one processor per environment and records which
// credentials were used.
type fakeFactory struct {
	live *fakeProcessor
	test *fakeProcessor
	used []environment.Credentials
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{live: newFakeProcessor(), test: newFakeProcessor()}
}

func (f *fakeFactory) ForCredentials(creds environment.Credentials) (domain.Processor, error) {
	if creds.SecretKey == "" {
		return nil, domain.ErrMissingCredentials
	}
	f.used = append(f.used, creds)
	if creds.IsLive {
		return f.live, nil
	}
	return f.test, nil
}

// ========== Stores ==========

type memSubscriptions struct {
	mu        sync.Mutex
	rows      map[string]*subscription.Subscription
	upsertErr error
}

func newMemSubscriptions() *memSubscriptions {
	return &memSubscriptions{rows: map[string]*subscription.Subscription{}}
}

func (m *memSubscriptions) get(id string) *subscription.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id]
}

func (m *memSubscriptions) FindByProcessorID(_ context.Context, id string) (*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (m *memSubscriptions) FindLatestByUser(_ context.Context, userID string) (*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *subscription.Subscription
	for _, row := range m.rows {
		if row.UserID == userID && (latest == nil || row.ID > latest.ID) {
			latest = row
		}
	}
	if latest == nil {
		return nil, xerrors.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *memSubscriptions) Upsert(_ context.Context, sub *subscription.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	cp := *sub
	cp.ID = int64(len(m.rows) + 1)
	m.rows[sub.ProcessorSubscriptionID] = &cp
	return nil
}

func (m *memSubscriptions) CreateIfAbsent(_ context.Context, sub *subscription.Subscription) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[sub.ProcessorSubscriptionID]; ok {
		return false, nil
	}
	cp := *sub
	cp.ID = int64(len(m.rows) + 1)
	m.rows[sub.ProcessorSubscriptionID] = &cp
	return true, nil
}

func (m *memSubscriptions) ApplySync(_ context.Context, sync subscription.Sync) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[sync.ProcessorSubscriptionID]
	if !ok || row.Status == subscription.StatusCanceled {
		return false, nil
	}
	row.Status = sync.Status
	row.CurrentPeriodEnd = sync.CurrentPeriodEnd
	row.CancelAtPeriodEnd = sync.CancelAtPeriodEnd
	row.CommitmentEndDate = sync.CommitmentEndDate
	row.WillCancelAfterCommitment = sync.WillCancelAfterCommitment
	return true, nil
}

func (m *memSubscriptions) UpdateStatusBySubscriptionID(_ context.Context, id string, status subscription.Status) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return 0, nil
	}
	row.Status = status
	return 1, nil
}

func (m *memSubscriptions) UpdateStatusByCustomerID(_ context.Context, customerID string, status subscription.Status) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, row := range m.rows {
		if row.ProcessorCustomerID == customerID && row.Status != subscription.StatusCanceled {
			row.Status = status
			n++
		}
	}
	return n, nil
}

func (m *memSubscriptions) SetCancelAtPeriodEnd(_ context.Context, id string, cancel bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[id]; ok {
		row.CancelAtPeriodEnd = cancel
	}
	return nil
}

func (m *memSubscriptions) ListWithActiveCommitment(_ context.Context, now time.Time) ([]subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []subscription.Subscription
	for _, row := range m.rows {
		if row.CommitmentActive(now) && row.Status != subscription.StatusCanceled {
			out = append(out, *row)
		}
	}
	return out, nil
}

type memUsers map[string]*user.User

func (m memUsers) FindByID(_ context.Context, id string) (*user.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, xerrors.ErrNotFound
}

func (m memUsers) FindByEmail(_ context.Context, email string) (*user.User, error) {
	for _, u := range m {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

type memPromos []*promo.PromoCode

func (m memPromos) FindByCode(_ context.Context, code string) (*promo.PromoCode, error) {
	for _, p := range m {
		if strings.EqualFold(p.Code, code) {
			return p, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (m memPromos) FindByCouponID(_ context.Context, couponID string) (*promo.PromoCode, error) {
	for _, p := range m {
		if p.StripeCouponID != nil && *p.StripeCouponID == couponID {
			return p, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

type memCouponCache struct {
	entries map[string]string
}

func newMemCouponCache() *memCouponCache {
	return &memCouponCache{entries: map[string]string{}}
}

func (c *memCouponCache) Get(_ context.Context, mode environment.Mode, code string) (string, error) {
	return c.entries[string(mode)+":"+code], nil
}

func (c *memCouponCache) Set(_ context.Context, mode environment.Mode, code, couponID string) error {
	c.entries[string(mode)+":"+code] = couponID
	return nil
}

// ========== Side effects ==========

type usageCall struct {
	code, userID, subscriptionID string
}

type recordingUsage struct {
	calls []usageCall
	err   error
}

func (r *recordingUsage) RecordUsage(_ context.Context, code, userID, subscriptionID string) error {
	r.calls = append(r.calls, usageCall{code, userID, subscriptionID})
	return r.err
}

type recordingNotifier struct {
	admin  []subscription.Notice
	client []subscription.Notice
	err    error
}

func (n *recordingNotifier) NotifyAdmin(_ context.Context, notice subscription.Notice) error {
	n.admin = append(n.admin, notice)
	return n.err
}

func (n *recordingNotifier) NotifyClient(_ context.Context, notice subscription.Notice) error {
	n.client = append(n.client, notice)
	return n.err
}

// ========== Webhook plumbing ==========

const validSignature = "t=1,v1=ok"

// fakeParser accepts only validSignature and returns the event registered
// under the payload.
type fakeParser struct {
	events  map[string]domain.Event
	secrets []string
}

func (p *fakeParser) ParseEvent(payload []byte, signatureHeader, secret string) (domain.Event, error) {
	p.secrets = append(p.secrets, secret)
	if signatureHeader != validSignature {
		return nil, fmt.Errorf("%w: signature mismatch", domain.ErrInvalidSignature)
	}
	event, ok := p.events[string(payload)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown payload", domain.ErrMalformedEvent)
	}
	return event, nil
}

type guardEntry struct {
	done    bool
	expires time.Time
}

// memGuard mirrors the redis guard: processing claims expire after claimTTL.
type memGuard struct {
	entries  map[string]guardEntry
	released []string
	err      error
	now      func() time.Time
}

const claimTTL = 2 * time.Minute

func newMemGuard() *memGuard {
	return &memGuard{entries: map[string]guardEntry{}, now: func() time.Time { return fixedNow }}
}

func (g *memGuard) Claim(_ context.Context, eventID string) (domain.ClaimState, error) {
	if g.err != nil {
		return domain.ClaimInFlight, g.err
	}
	if e, ok := g.entries[eventID]; ok {
		if e.done {
			return domain.ClaimDone, nil
		}
		if g.now().Before(e.expires) {
			return domain.ClaimInFlight, nil
		}
	}
	g.entries[eventID] = guardEntry{expires: g.now().Add(claimTTL)}
	return domain.ClaimAcquired, nil
}

func (g *memGuard) Complete(_ context.Context, eventID string) error {
	g.entries[eventID] = guardEntry{done: true}
	return nil
}

func (g *memGuard) Release(_ context.Context, eventID string) error {
	delete(g.entries, eventID)
	g.released = append(g.released, eventID)
	return nil
}

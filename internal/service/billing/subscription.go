// internal/service/billing/subscription.go
package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	domain "github.com/damsblt/only-you-coaching-app-sub004/internal/domain/billing"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/plan"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/subscription"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/user"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/environment"
	xerrors "github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SubscriptionService struct {
	resolver      *environment.Resolver
	processors    domain.ProcessorFactory
	subscriptions SubscriptionStore
	users         UserStore
	discounts     *DiscountResolver
	usage         UsageRecorder
	notifier      Notifier
	currency      string
	logger        *zap.Logger

	now      func() time.Time
	dispatch func(func())
}

func NewSubscriptionService(
	resolver *environment.Resolver,
	processors domain.ProcessorFactory,
	subscriptions SubscriptionStore,
	users UserStore,
	discounts *DiscountResolver,
	usage UsageRecorder,
	notifier Notifier,
	currency string,
	logger *zap.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		resolver:      resolver,
		processors:    processors,
		subscriptions: subscriptions,
		users:         users,
		discounts:     discounts,
		usage:         usage,
		notifier:      notifier,
		currency:      strings.ToLower(currency),
		logger:        logger,
		now:           time.Now,
		dispatch:      func(fn func()) { go fn() },
	}
}

// CreateSubscription charges the user for planID and records the result.
// Every step up to the processor call is transactional: a failure aborts the
// checkout and nothing is charged. Steps after the charge are bookkeeping and
// never fail the request.
func (s *SubscriptionService) CreateSubscription(ctx context.Context, hostname string, req *subscription.CreateSubscriptionRequest, idempotencyKey string) (*subscription.CreateSubscriptionResponse, error) {
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.PaymentMethodID) == "" {
		return nil, xerrors.Invalid("userId and paymentMethodId are required")
	}
	p, ok := plan.Lookup(req.PlanID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrPlanNotFound, req.PlanID)
	}

	creds := s.resolver.Resolve(hostname)
	proc, err := s.processors.ForCredentials(creds)
	if err != nil {
		return nil, err
	}

	price, err := s.findPrice(ctx, proc, p)
	if err != nil {
		return nil, err
	}

	account, customer, err := s.ensureCustomer(ctx, proc, req.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.attachPaymentMethod(ctx, proc, req.PaymentMethodID, customer.ID); err != nil {
		return nil, err
	}

	start := s.now().UTC().Truncate(time.Second)
	var commitmentEnd *time.Time
	if p.HasCommitment() {
		end := CommitmentEnd(start, p.CommitmentMonths)
		commitmentEnd = &end
	}

	couponID, err := s.discounts.Resolve(ctx, proc, creds.Mode(), req.PromoCode, req.PromoDetails)
	if err != nil {
		return nil, err
	}

	promoCode := promoCodeLabel(req)
	params := domain.SubscriptionParams{
		CustomerID:      customer.ID,
		PriceID:         price.ID,
		PaymentMethodID: req.PaymentMethodID,
		CouponID:        couponID,
		CancelAt:        commitmentEnd,
		IdempotencyKey:  idempotencyKey,
		Metadata: map[string]string{
			domain.MetaUserID:         req.UserID,
			domain.MetaPlanID:         p.ID,
			domain.MetaCategory:       string(p.Category),
			domain.MetaDurationMonths: strconv.Itoa(p.CommitmentMonths),
			domain.MetaCommitment:     strconv.FormatBool(p.HasCommitment()),
			domain.MetaPromoCode:      promoCode,
		},
	}
	if params.IdempotencyKey == "" {
		params.IdempotencyKey = uuid.NewString()
	}

	created, err := proc.CreateSubscription(ctx, params)
	if err != nil {
		s.logger.Error("processor subscription creation failed",
			zap.String("user_id", req.UserID),
			zap.String("plan_id", p.ID),
			zap.Bool("live", creds.IsLive),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("subscription created",
		zap.String("subscription_id", created.ID),
		zap.String("customer_id", customer.ID),
		zap.String("user_id", req.UserID),
		zap.String("plan_id", p.ID),
		zap.String("status", created.Status),
		zap.Bool("live", creds.IsLive),
	)

	// Charge succeeded; from here on everything is best effort.
	row := &subscription.Subscription{
		UserID:                    req.UserID,
		ProcessorCustomerID:       customer.ID,
		ProcessorSubscriptionID:   created.ID,
		ProcessorPriceID:          price.ID,
		Status:                    subscription.StatusActive,
		Plan:                      subscription.CadenceFromInterval(price.Interval),
		PlanID:                    p.ID,
		CurrentPeriodEnd:          created.CurrentPeriodEnd,
		CommitmentEndDate:         commitmentEnd,
		SubscriptionEndDate:       legacyEndDate(start, p),
		WillCancelAfterCommitment: commitmentEnd != nil,
		PromoCode:                 promoCode,
	}
	if row.CurrentPeriodEnd.IsZero() {
		row.CurrentPeriodEnd = start.AddDate(0, 1, 0)
	}
	s.recordSubscription(ctx, row)
	s.recordPromoUsage(ctx, promoCode, req.UserID, created.ID)
	s.notify(ctx, subscription.Notice{
		SubscriptionID: created.ID,
		UserID:         account.ID,
		Email:          account.Email,
		Name:           account.Name,
		PlanID:         p.ID,
		ProductName:    p.ProductName,
		AmountCents:    price.UnitAmount,
		Currency:       s.currency,
		PromoCode:      promoCode,
		CommitmentEnd:  commitmentEnd,
		Live:           creds.IsLive,
	})

	return &subscription.CreateSubscriptionResponse{
		SubscriptionID: created.ID,
		Status:         created.Status,
	}, nil
}

// GetSubscriptionForUser returns the user's most recent subscription row.
func (s *SubscriptionService) GetSubscriptionForUser(ctx context.Context, userID string) (*subscription.Subscription, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, xerrors.Invalid("userId is required")
	}
	return s.subscriptions.FindLatestByUser(ctx, userID)
}

// CancelSubscription asks the processor to stop renewing once the current
// period ends. Subscriptions still inside their commitment cannot be
// cancelled; the scheduled auto-cancel already ends them.
func (s *SubscriptionService) CancelSubscription(ctx context.Context, hostname, processorSubscriptionID, userID string) (*subscription.Subscription, error) {
	row, err := s.subscriptions.FindByProcessorID(ctx, processorSubscriptionID)
	if err != nil {
		return nil, err
	}
	if row.UserID != userID {
		return nil, xerrors.ErrForbidden
	}
	if row.Status == subscription.StatusCanceled {
		return nil, fmt.Errorf("%w: subscription is already canceled", xerrors.ErrConflict)
	}
	if row.CommitmentActive(s.now()) {
		return nil, fmt.Errorf("%w until %s", domain.ErrCommitmentActive, row.CommitmentEndDate.Format(time.DateOnly))
	}

	proc, err := s.processors.ForCredentials(s.resolver.Resolve(hostname))
	if err != nil {
		return nil, err
	}
	if err := proc.CancelSubscriptionAtPeriodEnd(ctx, processorSubscriptionID); err != nil {
		return nil, err
	}
	if err := s.subscriptions.SetCancelAtPeriodEnd(ctx, processorSubscriptionID, true); err != nil {
		// The processor holds the schedule; the updated webhook will persist it.
		s.logger.Warn("failed to persist cancel_at_period_end",
			zap.String("subscription_id", processorSubscriptionID),
			zap.Error(err),
		)
	}
	row.CancelAtPeriodEnd = true

	s.logger.Info("subscription set to cancel at period end",
		zap.String("subscription_id", processorSubscriptionID),
		zap.String("user_id", userID),
	)
	return row, nil
}

// ========== Transactional steps ==========

func (s *SubscriptionService) findPrice(ctx context.Context, proc domain.Processor, p plan.Plan) (*domain.Price, error) {
	product, err := proc.FindActiveProductByName(ctx, p.ProductName)
	if err != nil {
		return nil, err
	}
	if product == nil {
		s.logger.Error("plan product missing from processor catalog", zap.String("product", p.ProductName))
		return nil, fmt.Errorf("%w: %q", domain.ErrProductNotFound, p.ProductName)
	}

	price, err := proc.FindActivePrice(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	if price == nil {
		s.logger.Error("product has no active price", zap.String("product_id", product.ID))
		return nil, fmt.Errorf("%w: %q", domain.ErrPriceNotFound, p.ProductName)
	}
	return price, nil
}

// ensureCustomer finds the processor customer for the user's email, creating
// it when absent so each email maps to one customer per environment.
func (s *SubscriptionService) ensureCustomer(ctx context.Context, proc domain.Processor, userID string) (*user.User, *domain.Customer, error) {
	account, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if xerrors.IsNotFound(err) {
			return nil, nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
		}
		return nil, nil, err
	}
	if strings.TrimSpace(account.Email) == "" {
		return nil, nil, domain.ErrMissingEmail
	}

	customer, err := proc.FindCustomerByEmail(ctx, account.Email)
	if err != nil {
		return nil, nil, err
	}
	if customer != nil {
		return account, customer, nil
	}

	customer, err = proc.CreateCustomer(ctx, domain.CustomerParams{
		Email:    account.Email,
		Name:     account.Name,
		Metadata: map[string]string{domain.MetaUserID: account.ID},
	})
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("processor customer created",
		zap.String("customer_id", customer.ID),
		zap.String("user_id", account.ID),
	)
	return account, customer, nil
}

// attachPaymentMethod makes customerID the only owner of the payment method.
func (s *SubscriptionService) attachPaymentMethod(ctx context.Context, proc domain.Processor, paymentMethodID, customerID string) error {
	pm, err := proc.GetPaymentMethod(ctx, paymentMethodID)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrAttachPaymentMethod, err)
	}

	switch pm.CustomerID {
	case customerID:
		return nil
	case "":
	default:
		s.logger.Info("moving payment method to another customer",
			zap.String("payment_method_id", paymentMethodID),
			zap.String("from_customer", pm.CustomerID),
			zap.String("to_customer", customerID),
		)
		if err := proc.DetachPaymentMethod(ctx, paymentMethodID); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrAttachPaymentMethod, err)
		}
	}

	if err := proc.AttachPaymentMethod(ctx, paymentMethodID, customerID); err != nil {
		if errors.Is(err, domain.ErrAlreadyAttached) {
			return nil
		}
		return fmt.Errorf("%w: %w", domain.ErrAttachPaymentMethod, err)
	}
	return nil
}

func promoCodeLabel(req *subscription.CreateSubscriptionRequest) string {
	if req.PromoDetails != nil && req.PromoDetails.Code != "" {
		return strings.ToUpper(req.PromoDetails.Code)
	}
	return strings.TrimSpace(req.PromoCode)
}

// internal/service/promo/promo.go
package promo

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/plan"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/promo"
	xerrors "github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/errors"

	"github.com/lib/pq"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Store is the promo code persistence the service needs.
type Store interface {
	Create(ctx context.Context, p *promo.PromoCode) error
	FindByID(ctx context.Context, id int64) (*promo.PromoCode, error)
	FindByCode(ctx context.Context, code string) (*promo.PromoCode, error)
	FindByCouponID(ctx context.Context, couponID string) (*promo.PromoCode, error)
	Update(ctx context.Context, p *promo.PromoCode) error
	SetActive(ctx context.Context, id int64, active bool) error
	List(ctx context.Context, filters *promo.PromoListFilters) ([]promo.PromoCode, int64, error)
	CountUsagesByUser(ctx context.Context, promoCodeID int64, userID string) (int64, error)
	RecordUsage(ctx context.Context, u *promo.Usage, maxUsesPerUser int32) error
}

var codePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,50}$`)

type PromoService struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewPromoService(store Store, logger *zap.Logger) *PromoService {
	return &PromoService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// ========== Admin Operations ==========

// CreatePromoCode creates a new promo code (admin only)
func (s *PromoService) CreatePromoCode(ctx context.Context, req *promo.CreatePromoCodeRequest) (*promo.PromoCode, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if !codePattern.MatchString(code) {
		return nil, xerrors.Invalid("code must be 3-50 letters, digits, '-' or '_'")
	}
	if err := validateDiscount(req.DiscountType, req.DiscountValue); err != nil {
		return nil, err
	}
	if err := validatePlans(req.EligiblePlans); err != nil {
		return nil, err
	}

	validFrom := s.now().UTC()
	if req.ValidFrom != nil {
		validFrom = req.ValidFrom.UTC()
	}
	if req.ValidUntil != nil && !req.ValidUntil.After(validFrom) {
		return nil, xerrors.Invalid("valid_until must be after valid_from")
	}

	p := &promo.PromoCode{
		Code:           code,
		DiscountType:   req.DiscountType,
		DiscountValue:  req.DiscountValue,
		MaxUses:        req.MaxUses,
		MaxUsesPerUser: req.MaxUsesPerUser,
		EligiblePlans:  pq.StringArray(req.EligiblePlans),
		ValidFrom:      validFrom,
		ValidUntil:     req.ValidUntil,
		IsActive:       true,
	}
	if p.MaxUsesPerUser == 0 {
		p.MaxUsesPerUser = 1
	}
	if id := strings.TrimSpace(req.StripeCouponID); id != "" {
		p.StripeCouponID = &id
	}
	if req.Description != "" {
		p.Description = &req.Description
	}

	if err := s.store.Create(ctx, p); err != nil {
		s.logger.Error("failed to create promo code", zap.String("code", code), zap.Error(err))
		return nil, err
	}

	s.logger.Info("promo code created",
		zap.Int64("promo_code_id", p.ID),
		zap.String("code", p.Code),
		zap.String("discount_type", string(p.DiscountType)),
		zap.Int64("discount_value", p.DiscountValue),
	)
	return p, nil
}

func (s *PromoService) GetPromoCode(ctx context.Context, id int64) (*promo.PromoCode, error) {
	return s.store.FindByID(ctx, id)
}

func (s *PromoService) ListPromoCodes(ctx context.Context, filters *promo.PromoListFilters) (*promo.PromoListResponse, error) {
	codes, total, err := s.store.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	return &promo.PromoListResponse{
		PromoCodes: codes,
		Total:      total,
		Page:       filters.Page,
		PageSize:   filters.PageSize,
	}, nil
}

// UpdatePromoCode updates a promo code (admin only). Code and discount type
// are immutable once created.
func (s *PromoService) UpdatePromoCode(ctx context.Context, id int64, req *promo.UpdatePromoCodeRequest) (*promo.PromoCode, error) {
	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.DiscountValue != nil {
		if err := validateDiscount(p.DiscountType, *req.DiscountValue); err != nil {
			return nil, err
		}
		p.DiscountValue = *req.DiscountValue
	}
	if req.StripeCouponID != nil {
		if id := strings.TrimSpace(*req.StripeCouponID); id != "" {
			p.StripeCouponID = &id
		} else {
			p.StripeCouponID = nil
		}
	}
	if req.MaxUses != nil {
		if *req.MaxUses < p.CurrentUses {
			return nil, xerrors.Invalid("max_uses cannot be below current uses (%d)", p.CurrentUses)
		}
		p.MaxUses = req.MaxUses
	}
	if req.MaxUsesPerUser != nil {
		p.MaxUsesPerUser = *req.MaxUsesPerUser
	}
	if req.EligiblePlans != nil {
		if err := validatePlans(req.EligiblePlans); err != nil {
			return nil, err
		}
		p.EligiblePlans = pq.StringArray(req.EligiblePlans)
	}
	if req.ValidFrom != nil {
		p.ValidFrom = req.ValidFrom.UTC()
	}
	if req.ValidUntil != nil {
		p.ValidUntil = req.ValidUntil
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if req.Description != nil {
		p.Description = req.Description
	}

	if p.ValidUntil != nil && !p.ValidUntil.After(p.ValidFrom) {
		return nil, xerrors.Invalid("valid_until must be after valid_from")
	}

	if err := s.store.Update(ctx, p); err != nil {
		s.logger.Error("failed to update promo code", zap.Int64("promo_code_id", id), zap.Error(err))
		return nil, err
	}

	s.logger.Info("promo code updated", zap.Int64("promo_code_id", id))
	return p, nil
}

func (s *PromoService) DeactivatePromoCode(ctx context.Context, id int64) error {
	if err := s.store.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.logger.Info("promo code deactivated", zap.Int64("promo_code_id", id))
	return nil
}

// ========== Checkout Operations ==========

// ValidatePromoCode checks a code against planID and prices the discount the
// checkout page will show.
func (s *PromoService) ValidatePromoCode(ctx context.Context, req *promo.ValidatePromoRequest) (*promo.ValidatePromoResponse, error) {
	p, ok := plan.Lookup(req.PlanID)
	if !ok {
		return nil, xerrors.Invalid("unknown plan %q", req.PlanID)
	}

	row, err := s.store.FindByCode(ctx, req.Code)
	if err != nil {
		if xerrors.IsNotFound(err) {
			return nil, xerrors.Invalid("promo code not found")
		}
		return nil, err
	}

	if err := s.checkRedeemable(ctx, row, p.ID, req.UserID); err != nil {
		return nil, err
	}

	discount := row.DiscountCents(p.AmountCents)
	resp := &promo.ValidatePromoResponse{
		Valid:               true,
		Code:                row.Code,
		DiscountType:        row.DiscountType,
		DiscountValue:       row.DiscountValue,
		DiscountAmount:      discount,
		OriginalAmountCents: p.AmountCents,
		FinalAmountCents:    p.AmountCents - discount,
	}
	if row.StripeCouponID != nil {
		resp.StripeCouponID = *row.StripeCouponID
	}
	if row.Description != nil {
		resp.Description = *row.Description
	}
	return resp, nil
}

func (s *PromoService) checkRedeemable(ctx context.Context, row *promo.PromoCode, planID, userID string) error {
	now := s.now()
	switch {
	case !row.IsActive:
		return xerrors.Invalid("promo code is not active")
	case now.Before(row.ValidFrom):
		return xerrors.Invalid("promo code is not valid yet")
	case !row.InWindow(now):
		return xerrors.Invalid("promo code has expired")
	case !row.AppliesTo(planID):
		return xerrors.Invalid("promo code does not apply to this plan")
	case row.Exhausted():
		return xerrors.Invalid("promo code usage limit reached")
	}

	if userID == "" || row.MaxUsesPerUser <= 0 {
		return nil
	}
	used, err := s.store.CountUsagesByUser(ctx, row.ID, userID)
	if err != nil {
		return err
	}
	if used >= int64(row.MaxUsesPerUser) {
		return xerrors.Invalid("promo code already used")
	}
	return nil
}

// RecordUsage appends a redemption once the subscription has been charged.
// code is either the human code or the coupon id the checkout sent.
func (s *PromoService) RecordUsage(ctx context.Context, code, userID, subscriptionID string) error {
	row, err := s.store.FindByCode(ctx, code)
	if xerrors.IsNotFound(err) {
		row, err = s.store.FindByCouponID(ctx, code)
	}
	if err != nil {
		return fmt.Errorf("failed to find promo code %q: %w", code, err)
	}

	u := &promo.Usage{
		Reference:      ulid.Make().String(),
		PromoCodeID:    row.ID,
		UserID:         userID,
		SubscriptionID: subscriptionID,
		UsedAt:         s.now().UTC(),
	}
	if err := s.store.RecordUsage(ctx, u, row.MaxUsesPerUser); err != nil {
		return err
	}

	s.logger.Info("promo code usage recorded",
		zap.String("code", row.Code),
		zap.String("user_id", userID),
		zap.String("subscription_id", subscriptionID),
		zap.String("reference", u.Reference),
	)
	return nil
}

// ========== Helpers ==========

func validateDiscount(t promo.DiscountType, value int64) error {
	switch t {
	case promo.DiscountTypePercentage:
		if value < 1 || value > 100 {
			return xerrors.Invalid("percentage discount must be between 1 and 100")
		}
	case promo.DiscountTypeFixedAmount:
		if value <= 0 {
			return xerrors.Invalid("fixed discount must be positive")
		}
	default:
		return xerrors.Invalid("discount_type must be percentage or fixed_amount")
	}
	return nil
}

func validatePlans(ids []string) error {
	for _, id := range ids {
		if _, ok := plan.Lookup(id); !ok {
			return xerrors.Invalid("unknown plan %q", id)
		}
	}
	return nil
}

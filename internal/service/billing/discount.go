// internal/service/billing/discount.go
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/damsblt/only-you-coaching-app-sub004/internal/domain/billing"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/promo"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/environment"

	"go.uber.org/zap"
)

// DiscountResolver turns a promo code reference into a coupon id that exists
// in the processor environment being charged. Once a discount was promised it
// either resolves or fails with ErrDiscountUnavailable; it never degrades to
// no discount.
type DiscountResolver struct {
	promos   PromoLookup
	cache    CouponCache
	currency string
	logger   *zap.Logger
}

func NewDiscountResolver(promos PromoLookup, cache CouponCache, currency string, logger *zap.Logger) *DiscountResolver {
	return &DiscountResolver{
		promos:   promos,
		cache:    cache,
		currency: strings.ToLower(currency),
		logger:   logger,
	}
}

// Resolve returns the coupon id to apply, or "" when no promo was requested.
func (r *DiscountResolver) Resolve(ctx context.Context, proc domain.Processor, mode environment.Mode, couponRef string, details *promo.PromoDetails) (string, error) {
	couponRef = strings.TrimSpace(couponRef)
	if couponRef == "" && details == nil {
		return "", nil
	}

	code := cacheCode(couponRef, details)
	if id := r.cachedCoupon(ctx, proc, mode, code); id != "" {
		return id, nil
	}

	// 1. Trust a coupon that already exists in this environment.
	if couponRef != "" {
		if id, ok := r.retrieve(ctx, proc, couponRef); ok {
			return id, nil
		}
	} else if row := r.findRow(ctx, "", details); row != nil && row.StripeCouponID != nil {
		if id, ok := r.retrieve(ctx, proc, *row.StripeCouponID); ok {
			return id, nil
		}
	}

	// 2. Recreate from what the user was shown.
	if details.HasDiscount() {
		id, err := r.create(ctx, proc, r.paramsFromDetails(details, code))
		if err != nil {
			return "", r.abort(couponRef, code, err)
		}
		r.remember(ctx, mode, code, id)
		return id, nil
	}

	// 3. Recreate from the stored promo code row.
	row := r.findRow(ctx, couponRef, details)
	if row == nil {
		return "", r.abort(couponRef, code, errors.New("promo code row not found"))
	}
	id, err := r.create(ctx, proc, r.paramsFromRow(row))
	if err != nil {
		return "", r.abort(couponRef, code, err)
	}
	// The next checkout looks up the same ref, so cache under it as well as
	// under the row's code.
	r.remember(ctx, mode, code, id)
	if rowCode := strings.ToUpper(row.Code); rowCode != code {
		r.remember(ctx, mode, rowCode, id)
	}
	return id, nil
}

func (r *DiscountResolver) retrieve(ctx context.Context, proc domain.Processor, couponID string) (string, bool) {
	coupon, err := proc.GetCoupon(ctx, couponID)
	if err != nil || coupon == nil {
		r.logger.Warn("coupon not retrievable in this environment",
			zap.String("coupon_id", couponID),
			zap.Error(err),
		)
		return "", false
	}
	if !coupon.Valid {
		r.logger.Warn("coupon exists but is no longer valid", zap.String("coupon_id", couponID))
		return "", false
	}
	return coupon.ID, true
}

func (r *DiscountResolver) create(ctx context.Context, proc domain.Processor, params domain.CouponParams) (string, error) {
	coupon, err := proc.CreateCoupon(ctx, params)
	if err != nil {
		return "", err
	}
	r.logger.Info("coupon created on the fly",
		zap.String("coupon_id", coupon.ID),
		zap.String("name", params.Name),
	)
	return coupon.ID, nil
}

// findRow looks the promo code up by stored coupon id, then by code.
func (r *DiscountResolver) findRow(ctx context.Context, couponRef string, details *promo.PromoDetails) *promo.PromoCode {
	if r.promos == nil {
		return nil
	}
	if couponRef != "" {
		if row, err := r.promos.FindByCouponID(ctx, couponRef); err == nil {
			return row
		}
		if row, err := r.promos.FindByCode(ctx, couponRef); err == nil {
			return row
		}
	}
	if details != nil && details.Code != "" {
		if row, err := r.promos.FindByCode(ctx, details.Code); err == nil {
			return row
		}
	}
	return nil
}

func (r *DiscountResolver) paramsFromDetails(d *promo.PromoDetails, code string) domain.CouponParams {
	switch {
	case d.DiscountType == promo.DiscountTypePercentage && d.DiscountValue > 0:
		return r.percentCoupon(code, d.DiscountValue)
	case d.DiscountType == promo.DiscountTypeFixedAmount && d.DiscountValue > 0:
		return r.amountCoupon(code, d.DiscountValue*100)
	default:
		// Only the computed amount is known; charge exactly what was shown.
		return r.amountCoupon(code, d.DiscountAmount)
	}
}

func (r *DiscountResolver) paramsFromRow(row *promo.PromoCode) domain.CouponParams {
	if row.DiscountType == promo.DiscountTypePercentage {
		return r.percentCoupon(row.Code, row.DiscountValue)
	}
	return r.amountCoupon(row.Code, row.DiscountValue*100)
}

func (r *DiscountResolver) percentCoupon(code string, percent int64) domain.CouponParams {
	return domain.CouponParams{
		Name:       fmt.Sprintf("Promo %s - %d%%", code, percent),
		PercentOff: percent,
	}
}

func (r *DiscountResolver) amountCoupon(code string, cents int64) domain.CouponParams {
	return domain.CouponParams{
		Name:           fmt.Sprintf("Promo %s - %d.%02d %s", code, cents/100, cents%100, strings.ToUpper(r.currency)),
		AmountOffCents: cents,
		Currency:       r.currency,
	}
}

func (r *DiscountResolver) cachedCoupon(ctx context.Context, proc domain.Processor, mode environment.Mode, code string) string {
	if r.cache == nil || code == "" {
		return ""
	}
	id, err := r.cache.Get(ctx, mode, code)
	if err != nil || id == "" {
		return ""
	}
	if id, ok := r.retrieve(ctx, proc, id); ok {
		return id
	}
	return ""
}

func (r *DiscountResolver) remember(ctx context.Context, mode environment.Mode, code, couponID string) {
	if r.cache == nil || code == "" {
		return
	}
	if err := r.cache.Set(ctx, mode, code, couponID); err != nil {
		r.logger.Warn("failed to cache coupon id", zap.String("code", code), zap.Error(err))
	}
}

func (r *DiscountResolver) abort(couponRef, code string, cause error) error {
	r.logger.Error("promo code could not be applied, aborting checkout",
		zap.String("coupon_ref", couponRef),
		zap.String("code", code),
		zap.Error(cause),
	)
	return fmt.Errorf("%w: %w", domain.ErrDiscountUnavailable, cause)
}

func cacheCode(couponRef string, details *promo.PromoDetails) string {
	if details != nil && details.Code != "" {
		return strings.ToUpper(details.Code)
	}
	return strings.ToUpper(couponRef)
}

// internal/domain/promo/entity.go
package promo

import (
	"time"

	"github.com/lib/pq"
)

type DiscountType string

const (
	DiscountTypePercentage  DiscountType = "percentage"
	DiscountTypeFixedAmount DiscountType = "fixed_amount"
)

func (t DiscountType) Valid() bool {
	return t == DiscountTypePercentage || t == DiscountTypeFixedAmount
}

// PromoCode is an admin-defined discount offer. DiscountValue is a percent for
// percentage codes and whole currency units for fixed_amount codes.
type PromoCode struct {
	ID             int64          `json:"id" db:"id"`
	Code           string         `json:"code" db:"code"`
	DiscountType   DiscountType   `json:"discount_type" db:"discount_type"`
	DiscountValue  int64          `json:"discount_value" db:"discount_value"`
	StripeCouponID *string        `json:"stripe_coupon_id,omitempty" db:"stripe_coupon_id"`
	MaxUses        *int32         `json:"max_uses,omitempty" db:"max_uses"`
	CurrentUses    int32          `json:"current_uses" db:"current_uses"`
	MaxUsesPerUser int32          `json:"max_uses_per_user" db:"max_uses_per_user"`
	EligiblePlans  pq.StringArray `json:"eligible_plans,omitempty" db:"eligible_plans"`
	ValidFrom      time.Time      `json:"valid_from" db:"valid_from"`
	ValidUntil     *time.Time     `json:"valid_until,omitempty" db:"valid_until"`
	IsActive       bool           `json:"is_active" db:"is_active"`
	Description    *string        `json:"description,omitempty" db:"description"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// AppliesTo reports whether the code may be used for planID. An empty
// eligibility list means every plan.
func (p *PromoCode) AppliesTo(planID string) bool {
	if len(p.EligiblePlans) == 0 {
		return true
	}
	for _, id := range p.EligiblePlans {
		if id == planID {
			return true
		}
	}
	return false
}

// InWindow reports whether now falls inside the validity window.
func (p *PromoCode) InWindow(now time.Time) bool {
	if now.Before(p.ValidFrom) {
		return false
	}
	return p.ValidUntil == nil || now.Before(*p.ValidUntil)
}

// Exhausted reports whether the global usage limit is reached.
func (p *PromoCode) Exhausted() bool {
	return p.MaxUses != nil && p.CurrentUses >= *p.MaxUses
}

// DiscountCents returns the discount applied to amountCents, never more than
// the amount itself.
func (p *PromoCode) DiscountCents(amountCents int64) int64 {
	var discount int64
	switch p.DiscountType {
	case DiscountTypePercentage:
		discount = amountCents * p.DiscountValue / 100
	case DiscountTypeFixedAmount:
		discount = p.DiscountValue * 100
	}
	if discount > amountCents {
		discount = amountCents
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// Usage is one redemption in the promo code ledger.
type Usage struct {
	ID             int64     `json:"id" db:"id"`
	Reference      string    `json:"reference" db:"reference"`
	PromoCodeID    int64     `json:"promo_code_id" db:"promo_code_id"`
	UserID         string    `json:"user_id" db:"user_id"`
	SubscriptionID string    `json:"subscription_id" db:"subscription_id"`
	UsedAt         time.Time `json:"used_at" db:"used_at"`
}

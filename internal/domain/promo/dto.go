// internal/domain/promo/dto.go
package promo

import "time"

// PromoDetails is the discount the checkout UI showed the user, as returned
// by the validate endpoint. DiscountAmount is in cents.
type PromoDetails struct {
	Code           string       `json:"code"`
	DiscountType   DiscountType `json:"discountType"`
	DiscountValue  int64        `json:"discountValue"`
	DiscountAmount int64        `json:"discountAmount"`
}

// HasDiscount reports whether the details promise any reduction.
func (d *PromoDetails) HasDiscount() bool {
	return d != nil && (d.DiscountValue > 0 || d.DiscountAmount > 0)
}

type CreatePromoCodeRequest struct {
	Code           string       `json:"code" binding:"required,max=50"`
	DiscountType   DiscountType `json:"discount_type" binding:"required"`
	DiscountValue  int64        `json:"discount_value" binding:"required,min=1"`
	StripeCouponID string       `json:"stripe_coupon_id"`
	MaxUses        *int32       `json:"max_uses" binding:"omitempty,min=1"`
	MaxUsesPerUser int32        `json:"max_uses_per_user" binding:"omitempty,min=1"`
	EligiblePlans  []string     `json:"eligible_plans"`
	ValidFrom      *time.Time   `json:"valid_from"`
	ValidUntil     *time.Time   `json:"valid_until"`
	Description    string       `json:"description"`
}

type UpdatePromoCodeRequest struct {
	DiscountValue  *int64     `json:"discount_value" binding:"omitempty,min=1"`
	StripeCouponID *string    `json:"stripe_coupon_id"`
	MaxUses        *int32     `json:"max_uses" binding:"omitempty,min=1"`
	MaxUsesPerUser *int32     `json:"max_uses_per_user" binding:"omitempty,min=1"`
	EligiblePlans  []string   `json:"eligible_plans"`
	ValidFrom      *time.Time `json:"valid_from"`
	ValidUntil     *time.Time `json:"valid_until"`
	IsActive       *bool      `json:"is_active"`
	Description    *string    `json:"description"`
}

type PromoListFilters struct {
	IsActive *bool  `form:"is_active"`
	Search   string `form:"search"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

type PromoListResponse struct {
	PromoCodes []PromoCode `json:"promo_codes"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
}

type ValidatePromoRequest struct {
	Code   string `json:"code" binding:"required"`
	PlanID string `json:"planId" binding:"required"`
	UserID string `json:"userId"`
}

type ValidatePromoResponse struct {
	Valid               bool         `json:"valid"`
	Code                string       `json:"code"`
	DiscountType        DiscountType `json:"discountType"`
	DiscountValue       int64        `json:"discountValue"`
	DiscountAmount      int64        `json:"discountAmount"`
	OriginalAmountCents int64        `json:"originalAmount"`
	FinalAmountCents    int64        `json:"finalAmount"`
	StripeCouponID      string       `json:"stripeCouponId,omitempty"`
	Description         string       `json:"description,omitempty"`
}

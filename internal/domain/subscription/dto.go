// internal/domain/subscription/dto.go
package subscription

import "github.com/damsblt/only-you-coaching-app-sub004/internal/domain/promo"

type CreateSubscriptionRequest struct {
	PlanID          string              `json:"planId"`
	UserID          string              `json:"userId"`
	PaymentMethodID string              `json:"paymentMethodId"`
	PromoCode       string              `json:"promoCode,omitempty"`
	PromoDetails    *promo.PromoDetails `json:"promoDetails,omitempty"`
}

type CreateSubscriptionResponse struct {
	SubscriptionID string `json:"subscriptionId"`
	Status         string `json:"status"`
}

type CancelSubscriptionRequest struct {
	UserID string `json:"userId" binding:"required"`
}

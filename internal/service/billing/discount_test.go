package billing

import (
	"context"
	"errors"
	"testing"

	domain "github.com/damsblt/only-you-coaching-app-sub004/internal/domain/billing"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/promo"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/subscription"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/environment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func strPtr(s string) *string { return &s }

func TestDiscountResolver_NoPromo(t *testing.T) {
	r := NewDiscountResolver(nil, nil, "chf", zap.NewNop())
	id, err := r.Resolve(context.Background(), newFakeProcessor(), environment.ModeTest, "  ", nil)
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestDiscountResolver_ExistingCoupon(t *testing.T) {
	proc := newFakeProcessor()
	proc.coupons["SPRING20"] = &domain.Coupon{ID: "SPRING20", Valid: true}

	r := NewDiscountResolver(nil, nil, "chf", zap.NewNop())
	id, err := r.Resolve(context.Background(), proc, environment.ModeLive, "SPRING20", nil)
	require.NoError(t, err)
	assert.Equal(t, "SPRING20", id)
	assert.Empty(t, proc.createdCoupons)
}

func TestDiscountResolver_RecreatesFromDetails(t *testing.T) {
	cases := []struct {
		name    string
		details *promo.PromoDetails
		want    domain.CouponParams
	}{
		{
			name:    "percentage",
			details: &promo.PromoDetails{Code: "spring20", DiscountType: promo.DiscountTypePercentage, DiscountValue: 20, DiscountAmount: 2580},
			want:    domain.CouponParams{Name: "Promo SPRING20 - 20%", PercentOff: 20},
		},
		{
			name:    "fixed amount",
			details: &promo.PromoDetails{Code: "MINUS15", DiscountType: promo.DiscountTypeFixedAmount, DiscountValue: 15, DiscountAmount: 1500},
			want:    domain.CouponParams{Name: "Promo MINUS15 - 15.00 CHF", AmountOffCents: 1500, Currency: "chf"},
		},
		{
			name:    "amount only",
			details: &promo.PromoDetails{Code: "LEGACY", DiscountAmount: 1234},
			want:    domain.CouponParams{Name: "Promo LEGACY - 12.34 CHF", AmountOffCents: 1234, Currency: "chf"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			proc := newFakeProcessor()
			cache := newMemCouponCache()
			r := NewDiscountResolver(memPromos{}, cache, "CHF", zap.NewNop())

			// The coupon id the UI saw belongs to the other environment.
			id, err := r.Resolve(context.Background(), proc, environment.ModeTest, "coupon_from_live", tc.details)
			require.NoError(t, err)
			require.NotEmpty(t, id)
			require.Len(t, proc.createdCoupons, 1)
			assert.Equal(t, tc.want, proc.createdCoupons[0])

			again, err := r.Resolve(context.Background(), proc, environment.ModeTest, "coupon_from_live", tc.details)
			require.NoError(t, err)
			assert.Equal(t, id, again)
			assert.Len(t, proc.createdCoupons, 1, "cached coupon reused")
		})
	}
}

func TestDiscountResolver_RecreatesFromStoredRow(t *testing.T) {
	proc := newFakeProcessor()
	cache := newMemCouponCache()
	promos := memPromos{{ID: 3, Code: "WELCOME", DiscountType: promo.DiscountTypeFixedAmount, DiscountValue: 10, StripeCouponID: strPtr("coupon_live_1")}}
	r := NewDiscountResolver(promos, cache, "chf", zap.NewNop())

	id, err := r.Resolve(context.Background(), proc, environment.ModeTest, "coupon_live_1", nil)
	require.NoError(t, err)
	require.Len(t, proc.createdCoupons, 1)
	assert.Equal(t, int64(1000), proc.createdCoupons[0].AmountOffCents)
	assert.Equal(t, id, cache.entries["test:WELCOME"])
	assert.Equal(t, id, cache.entries["test:COUPON_LIVE_1"])

	// Later checkouts with the same stale ref reuse the coupon.
	for i := 0; i < 2; i++ {
		again, err := r.Resolve(context.Background(), proc, environment.ModeTest, "coupon_live_1", nil)
		require.NoError(t, err)
		assert.Equal(t, id, again)
	}
	assert.Len(t, proc.createdCoupons, 1)
}

func TestDiscountResolver_StoredCouponForDetails(t *testing.T) {
	proc := newFakeProcessor()
	proc.coupons["coupon_test_9"] = &domain.Coupon{ID: "coupon_test_9", Valid: true}
	promos := memPromos{{ID: 9, Code: "SUMMER", DiscountType: promo.DiscountTypePercentage, DiscountValue: 10, StripeCouponID: strPtr("coupon_test_9")}}
	r := NewDiscountResolver(promos, nil, "chf", zap.NewNop())

	id, err := r.Resolve(context.Background(), proc, environment.ModeTest, "", &promo.PromoDetails{Code: "summer", DiscountType: promo.DiscountTypePercentage, DiscountValue: 10})
	require.NoError(t, err)
	assert.Equal(t, "coupon_test_9", id)
	assert.Empty(t, proc.createdCoupons)
}

func TestDiscountResolver_InvalidCouponIsRecreated(t *testing.T) {
	proc := newFakeProcessor()
	proc.coupons["SPRING20"] = &domain.Coupon{ID: "SPRING20", Valid: false}
	r := NewDiscountResolver(nil, nil, "chf", zap.NewNop())

	id, err := r.Resolve(context.Background(), proc, environment.ModeLive, "SPRING20",
		&promo.PromoDetails{Code: "SPRING20", DiscountType: promo.DiscountTypePercentage, DiscountValue: 20})
	require.NoError(t, err)
	assert.NotEqual(t, "SPRING20", id)
	assert.Len(t, proc.createdCoupons, 1)
}

func TestDiscountResolver_NeverDropsDiscount(t *testing.T) {
	t.Run("nothing to recreate from", func(t *testing.T) {
		r := NewDiscountResolver(memPromos{}, nil, "chf", zap.NewNop())
		id, err := r.Resolve(context.Background(), newFakeProcessor(), environment.ModeTest, "GHOST", nil)
		assert.ErrorIs(t, err, domain.ErrDiscountUnavailable)
		assert.Empty(t, id)
	})

	t.Run("coupon creation fails", func(t *testing.T) {
		proc := newFakeProcessor()
		proc.createCouponErr = errors.New("rate limited")
		r := NewDiscountResolver(nil, nil, "chf", zap.NewNop())

		_, err := r.Resolve(context.Background(), proc, environment.ModeTest, "SPRING20",
			&promo.PromoDetails{Code: "SPRING20", DiscountType: promo.DiscountTypePercentage, DiscountValue: 20})
		assert.ErrorIs(t, err, domain.ErrDiscountUnavailable)
		assert.ErrorContains(t, err, "rate limited")
	})

	t.Run("checkout aborts before charging", func(t *testing.T) {
		f := newSubscriptionFixture(memPromos{})
		f.procs.test.createCouponErr = errors.New("rate limited")

		req := &subscription.CreateSubscriptionRequest{
			PlanID:          "pro",
			UserID:          "user-1",
			PaymentMethodID: "pm_card",
			PromoCode:       "coupon_from_live",
			PromoDetails:    &promo.PromoDetails{Code: "SPRING20", DiscountType: promo.DiscountTypePercentage, DiscountValue: 20, DiscountAmount: 2580},
		}
		_, err := f.svc.CreateSubscription(context.Background(), "", req, "")
		assert.ErrorIs(t, err, domain.ErrDiscountUnavailable)
		assert.Empty(t, f.procs.test.createdSubs)
		assert.Empty(t, f.usage.calls)
	})
}

func TestCreateSubscription_AppliesRecoveredCoupon(t *testing.T) {
	f := newSubscriptionFixture(memPromos{})

	req := &subscription.CreateSubscriptionRequest{
		PlanID:          "pro",
		UserID:          "user-1",
		PaymentMethodID: "pm_card",
		PromoCode:       "coupon_from_live",
		PromoDetails:    &promo.PromoDetails{Code: "spring20", DiscountType: promo.DiscountTypePercentage, DiscountValue: 20, DiscountAmount: 2580},
	}
	resp, err := f.svc.CreateSubscription(context.Background(), "", req, "")
	require.NoError(t, err)

	require.Len(t, f.procs.test.createdSubs, 1)
	params := f.procs.test.createdSubs[0]
	assert.NotEmpty(t, params.CouponID)
	assert.Equal(t, "SPRING20", params.Metadata[domain.MetaPromoCode])
	assert.Equal(t, "SPRING20", f.subs.get(resp.SubscriptionID).PromoCode)
	require.Len(t, f.usage.calls, 1)
	assert.Equal(t, "SPRING20", f.usage.calls[0].code)
}

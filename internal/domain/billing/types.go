// internal/domain/billing/types.go
package billing

import "time"

type Product struct {
	ID   string
	Name string
}

type Price struct {
	ID         string
	ProductID  string
	UnitAmount int64
	Currency   string
	Interval   string
}

type Customer struct {
	ID    string
	Email string
	Name  string
}

type CustomerParams struct {
	Email    string
	Name     string
	Metadata map[string]string
}

// PaymentMethod carries the id of the customer it is attached to, empty when
// unattached.
type PaymentMethod struct {
	ID         string
	CustomerID string
}

type Coupon struct {
	ID    string
	Name  string
	Valid bool
}

// CouponParams describes a forever-duration coupon. Exactly one of PercentOff
// and AmountOffCents is set.
type CouponParams struct {
	Name           string
	PercentOff     int64
	AmountOffCents int64
	Currency       string
}

type SubscriptionParams struct {
	CustomerID      string
	PriceID         string
	PaymentMethodID string
	CouponID        string
	CancelAt        *time.Time
	Metadata        map[string]string
	IdempotencyKey  string
}

// Subscription is the processor-side view of a subscription.
type Subscription struct {
	ID                 string
	CustomerID         string
	PriceID            string
	PriceInterval      string
	Status             string
	StartDate          time.Time
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAt           *time.Time
	CancelAtPeriodEnd  bool
	Metadata           map[string]string
}

// PeriodStart is the anchor commitment math is computed from.
func (s *Subscription) PeriodStart() time.Time {
	if !s.CurrentPeriodStart.IsZero() {
		return s.CurrentPeriodStart
	}
	return s.StartDate
}

// Metadata keys written on processor subscriptions.
const (
	MetaUserID         = "userId"
	MetaPlanID         = "planId"
	MetaCategory       = "category"
	MetaDurationMonths = "durationMonths"
	MetaCommitment     = "commitment"
	MetaPromoCode      = "promoCode"
)

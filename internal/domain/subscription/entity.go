// internal/domain/subscription/entity.go
package subscription

import "time"

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusPastDue  Status = "PAST_DUE"
	StatusCanceled Status = "CANCELED"
)

// Cadence is the coarse billing rhythm of a subscription.
type Cadence string

const (
	CadenceMonthly  Cadence = "MONTHLY"
	CadenceYearly   Cadence = "YEARLY"
	CadenceLifetime Cadence = "LIFETIME"
)

// CadenceFromInterval maps a processor recurring interval to a Cadence.
func CadenceFromInterval(interval string) Cadence {
	switch interval {
	case "year":
		return CadenceYearly
	case "month", "week", "day":
		return CadenceMonthly
	default:
		return CadenceLifetime
	}
}

// Subscription is the system of record for entitlement. Rows are never
// hard-deleted; termination is Status == StatusCanceled.
type Subscription struct {
	ID                      int64  `json:"id" db:"id"`
	UserID                  string `json:"user_id" db:"user_id"`
	ProcessorCustomerID     string `json:"processor_customer_id" db:"processor_customer_id"`
	ProcessorSubscriptionID string `json:"processor_subscription_id" db:"processor_subscription_id"`
	ProcessorPriceID        string `json:"processor_price_id" db:"processor_price_id"`

	Status Status  `json:"status" db:"status"`
	Plan   Cadence `json:"plan" db:"plan"`
	PlanID string  `json:"plan_id" db:"plan_id"`

	CurrentPeriodEnd time.Time `json:"current_period_end" db:"current_period_end"`

	// Commitment
	CommitmentEndDate         *time.Time `json:"commitment_end_date,omitempty" db:"commitment_end_date"`
	SubscriptionEndDate       *time.Time `json:"subscription_end_date,omitempty" db:"subscription_end_date"`
	WillCancelAfterCommitment bool       `json:"will_cancel_after_commitment" db:"will_cancel_after_commitment"`
	CancelAtPeriodEnd         bool       `json:"cancel_at_period_end" db:"cancel_at_period_end"`

	PromoCode string `json:"promo_code,omitempty" db:"promo_code"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CommitmentActive reports whether the minimum term is still running at now.
func (s *Subscription) CommitmentActive(now time.Time) bool {
	return s.CommitmentEndDate != nil && now.Before(*s.CommitmentEndDate)
}

// Sync carries the fields a lifecycle event may change on an existing row.
type Sync struct {
	ProcessorSubscriptionID   string
	Status                    Status
	CurrentPeriodEnd          time.Time
	CancelAtPeriodEnd         bool
	CommitmentEndDate         *time.Time
	WillCancelAfterCommitment bool
}

// Notice is what notification side effects need to know about a new subscription.
type Notice struct {
	SubscriptionID string
	UserID         string
	Email          string
	Name           string
	PlanID         string
	ProductName    string
	AmountCents    int64
	Currency       string
	PromoCode      string
	CommitmentEnd  *time.Time
	Live           bool
}

// internal/processor/stripe/convert.go
package stripe

import (
	"time"

	domain "github.com/damsblt/only-you-coaching-app-sub004/internal/domain/billing"

	stripego "github.com/stripe/stripe-go/v76"
)

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func toPrice(p *stripego.Price) *domain.Price {
	out := &domain.Price{
		ID:         p.ID,
		UnitAmount: p.UnitAmount,
		Currency:   string(p.Currency),
	}
	if p.Product != nil {
		out.ProductID = p.Product.ID
	}
	if p.Recurring != nil {
		out.Interval = string(p.Recurring.Interval)
	}
	return out
}

func toCustomer(c *stripego.Customer) *domain.Customer {
	return &domain.Customer{ID: c.ID, Email: c.Email, Name: c.Name}
}

func toSubscription(s *stripego.Subscription) *domain.Subscription {
	out := &domain.Subscription{
		ID:                 s.ID,
		Status:             string(s.Status),
		StartDate:          unixTime(s.StartDate),
		CurrentPeriodStart: unixTime(s.CurrentPeriodStart),
		CurrentPeriodEnd:   unixTime(s.CurrentPeriodEnd),
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		Metadata:           s.Metadata,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.CancelAt > 0 {
		at := unixTime(s.CancelAt)
		out.CancelAt = &at
	}
	if s.Items != nil {
		for _, item := range s.Items.Data {
			if item == nil || item.Price == nil {
				continue
			}
			out.PriceID = item.Price.ID
			if item.Price.Recurring != nil {
				out.PriceInterval = string(item.Price.Recurring.Interval)
			}
			break
		}
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	return out
}

// internal/processor/stripe/events.go
package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/damsblt/only-you-coaching-app-sub004/internal/domain/billing"

	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// EventParser verifies Stripe webhook signatures and decodes the payload
// into the billing event union.
type EventParser struct {
	tolerance time.Duration
}

func NewEventParser() *EventParser {
	return &EventParser{tolerance: webhook.DefaultTolerance}
}

// ParseEvent fails with ErrInvalidSignature before looking at the payload,
// and with ErrMalformedEvent when a signed known event lacks required ids.
func (p *EventParser) ParseEvent(payload []byte, signatureHeader, secret string) (domain.Event, error) {
	if err := webhook.ValidatePayloadWithTolerance(payload, signatureHeader, secret, p.tolerance); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidSignature, err)
	}

	var evt stripego.Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedEvent, err)
	}
	return decodeEvent(&evt)
}

func decodeEvent(evt *stripego.Event) (domain.Event, error) {
	meta := domain.EventMeta{ID: evt.ID, Kind: domain.EventType(evt.Type)}
	if meta.ID == "" {
		return nil, fmt.Errorf("%w: event without id", domain.ErrMalformedEvent)
	}

	switch meta.Kind {
	case domain.EventCheckoutCompleted:
		var s stripego.CheckoutSession
		if err := unmarshalObject(evt, &s); err != nil {
			return nil, err
		}
		if s.ID == "" {
			return nil, malformed(meta, "checkout session id")
		}
		out := &domain.CheckoutCompletedEvent{
			EventMeta:     meta,
			SessionID:     s.ID,
			CustomerEmail: s.CustomerEmail,
			Metadata:      s.Metadata,
		}
		if s.Customer != nil {
			out.CustomerID = s.Customer.ID
		}
		if s.Subscription != nil {
			out.SubscriptionID = s.Subscription.ID
		}
		if out.CustomerEmail == "" && s.CustomerDetails != nil {
			out.CustomerEmail = s.CustomerDetails.Email
		}
		if out.Metadata == nil {
			out.Metadata = map[string]string{}
		}
		return out, nil

	case domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted:
		var s stripego.Subscription
		if err := unmarshalObject(evt, &s); err != nil {
			return nil, err
		}
		if s.ID == "" {
			return nil, malformed(meta, "subscription id")
		}
		sub := toSubscription(&s)
		if meta.Kind == domain.EventSubscriptionDeleted {
			return &domain.SubscriptionDeletedEvent{EventMeta: meta, Subscription: *sub}, nil
		}
		return &domain.SubscriptionUpdatedEvent{EventMeta: meta, Subscription: *sub}, nil

	case domain.EventInvoicePaymentFailed:
		var inv stripego.Invoice
		if err := unmarshalObject(evt, &inv); err != nil {
			return nil, err
		}
		if inv.ID == "" {
			return nil, malformed(meta, "invoice id")
		}
		out := &domain.InvoicePaymentFailedEvent{EventMeta: meta, InvoiceID: inv.ID}
		if inv.Customer != nil {
			out.CustomerID = inv.Customer.ID
		}
		if inv.Subscription != nil {
			out.SubscriptionID = inv.Subscription.ID
		}
		return out, nil

	default:
		return &domain.UnhandledEvent{EventMeta: meta}, nil
	}
}

func unmarshalObject(evt *stripego.Event, v any) error {
	if evt.Data == nil || len(evt.Data.Raw) == 0 {
		return fmt.Errorf("%w: %s has no data object", domain.ErrMalformedEvent, evt.Type)
	}
	if err := json.Unmarshal(evt.Data.Raw, v); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrMalformedEvent, evt.Type, err)
	}
	return nil
}

func malformed(meta domain.EventMeta, field string) error {
	return fmt.Errorf("%w: %s %s is missing %s", domain.ErrMalformedEvent, meta.Kind, meta.ID, field)
}

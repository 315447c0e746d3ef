// internal/domain/billing/event.go
package billing

type EventType string

const (
	EventCheckoutCompleted    EventType = "checkout.session.completed"
	EventSubscriptionUpdated  EventType = "customer.subscription.updated"
	EventSubscriptionDeleted  EventType = "customer.subscription.deleted"
	EventInvoicePaymentFailed EventType = "invoice.payment_failed"
)

// Event is a verified processor lifecycle event. The concrete type is one of
// the *Event structs below; anything else arrives as *UnhandledEvent.
type Event interface {
	EventID() string
	Type() EventType
}

// ClaimState is the outcome of claiming an event id for processing.
type ClaimState int

const (
	ClaimAcquired ClaimState = iota
	// ClaimInFlight means another delivery holds an unexpired processing claim.
	ClaimInFlight
	// ClaimDone means the event was applied already.
	ClaimDone
)

type EventMeta struct {
	ID   string
	Kind EventType
}

func (m EventMeta) EventID() string { return m.ID }
func (m EventMeta) Type() EventType { return m.Kind }

type CheckoutCompletedEvent struct {
	EventMeta
	SessionID      string
	CustomerID     string
	SubscriptionID string
	CustomerEmail  string
	Metadata       map[string]string
}

type SubscriptionUpdatedEvent struct {
	EventMeta
	Subscription Subscription
}

type SubscriptionDeletedEvent struct {
	EventMeta
	Subscription Subscription
}

type InvoicePaymentFailedEvent struct {
	EventMeta
	InvoiceID      string
	CustomerID     string
	SubscriptionID string
}

type UnhandledEvent struct {
	EventMeta
}

// internal/service/billing/webhook.go
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/damsblt/only-you-coaching-app-sub004/internal/domain/billing"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/plan"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/subscription"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/environment"
	xerrors "github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/errors"

	"go.uber.org/zap"
)

// WebhookReconciler applies processor lifecycle events to subscription rows.
// Deliveries are at-least-once and unordered, so every handler is idempotent
// and tolerates rows that do not exist yet.
type WebhookReconciler struct {
	creds         environment.Credentials
	processors    domain.ProcessorFactory
	parser        EventParser
	guard         EventGuard
	subscriptions SubscriptionStore
	users         UserStore
	logger        *zap.Logger

	now func() time.Time
}

// NewWebhookReconciler binds the reconciler to one credential set. Webhooks
// are server-to-server, so the set is chosen per deployment, not per host.
// guard may be nil.
func NewWebhookReconciler(
	creds environment.Credentials,
	processors domain.ProcessorFactory,
	parser EventParser,
	guard EventGuard,
	subscriptions SubscriptionStore,
	users UserStore,
	logger *zap.Logger,
) *WebhookReconciler {
	return &WebhookReconciler{
		creds:         creds,
		processors:    processors,
		parser:        parser,
		guard:         guard,
		subscriptions: subscriptions,
		users:         users,
		logger:        logger,
		now:           time.Now,
	}
}

// Process verifies and applies one webhook delivery. The returned error wraps
// ErrInvalidSignature when the payload was rejected before processing, and is
// ErrEventInFlight while another delivery of the same event is being applied.
func (w *WebhookReconciler) Process(ctx context.Context, payload []byte, signatureHeader string) error {
	if w.creds.WebhookSecret == "" {
		return fmt.Errorf("%w: webhook signing secret is not set", domain.ErrMissingCredentials)
	}

	event, err := w.parser.ParseEvent(payload, signatureHeader, w.creds.WebhookSecret)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedEvent) {
			w.logger.Error("signed webhook could not be decoded", zap.Error(err))
			return err
		}
		w.logger.Warn("webhook rejected", zap.Error(err))
		if errors.Is(err, domain.ErrInvalidSignature) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrInvalidSignature, err)
	}

	if w.guard != nil {
		state, err := w.guard.Claim(ctx, event.EventID())
		switch {
		case err != nil:
			w.logger.Warn("webhook replay guard unavailable", zap.String("event_id", event.EventID()), zap.Error(err))
		case state == domain.ClaimDone:
			w.logger.Info("duplicate webhook delivery skipped",
				zap.String("event_id", event.EventID()),
				zap.String("type", string(event.Type())),
			)
			return nil
		case state == domain.ClaimInFlight:
			w.logger.Info("webhook delivery already in flight",
				zap.String("event_id", event.EventID()),
				zap.String("type", string(event.Type())),
			)
			return domain.ErrEventInFlight
		}
	}

	if err := w.Handle(ctx, event); err != nil {
		if w.guard != nil {
			if rerr := w.guard.Release(context.WithoutCancel(ctx), event.EventID()); rerr != nil {
				w.logger.Warn("failed to release webhook claim", zap.String("event_id", event.EventID()), zap.Error(rerr))
			}
		}
		w.logger.Error("webhook processing failed",
			zap.String("event_id", event.EventID()),
			zap.String("type", string(event.Type())),
			zap.Error(err),
		)
		return err
	}

	if w.guard != nil {
		if err := w.guard.Complete(context.WithoutCancel(ctx), event.EventID()); err != nil {
			w.logger.Warn("failed to mark webhook done", zap.String("event_id", event.EventID()), zap.Error(err))
		}
	}
	return nil
}

// Handle applies an already verified event.
func (w *WebhookReconciler) Handle(ctx context.Context, event domain.Event) error {
	switch e := event.(type) {
	case *domain.CheckoutCompletedEvent:
		return w.onCheckoutCompleted(ctx, e)
	case *domain.SubscriptionUpdatedEvent:
		return w.onSubscriptionUpdated(ctx, &e.Subscription)
	case *domain.SubscriptionDeletedEvent:
		return w.onSubscriptionDeleted(ctx, &e.Subscription)
	case *domain.InvoicePaymentFailedEvent:
		return w.onInvoicePaymentFailed(ctx, e)
	default:
		w.logger.Debug("webhook event ignored", zap.String("type", string(event.Type())))
		return nil
	}
}

// ========== Event handlers ==========

func (w *WebhookReconciler) onCheckoutCompleted(ctx context.Context, e *domain.CheckoutCompletedEvent) error {
	if e.SubscriptionID == "" {
		w.logger.Debug("checkout session without subscription", zap.String("session_id", e.SessionID))
		return nil
	}

	existing, err := w.subscriptions.FindByProcessorID(ctx, e.SubscriptionID)
	if err == nil && existing != nil {
		return nil
	}
	if err != nil && !xerrors.IsNotFound(err) {
		return fmt.Errorf("failed to look up subscription: %w", err)
	}

	proc, err := w.processors.ForCredentials(w.creds)
	if err != nil {
		return err
	}
	sub, err := proc.GetSubscription(ctx, e.SubscriptionID)
	if err != nil {
		return fmt.Errorf("failed to fetch subscription %s: %w", e.SubscriptionID, err)
	}

	userID, err := w.resolveUserID(ctx, proc, e, sub)
	if err != nil {
		return err
	}

	customerID := e.CustomerID
	if customerID == "" {
		customerID = sub.CustomerID
	}
	planID := firstNonEmpty(e.Metadata[domain.MetaPlanID], sub.Metadata[domain.MetaPlanID])

	row := &subscription.Subscription{
		UserID:                  userID,
		ProcessorCustomerID:     customerID,
		ProcessorSubscriptionID: sub.ID,
		ProcessorPriceID:        sub.PriceID,
		Status:                  MapStatus(sub.Status),
		Plan:                    subscription.CadenceFromInterval(sub.PriceInterval),
		PlanID:                  planID,
		CurrentPeriodEnd:        sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:       sub.CancelAtPeriodEnd,
		PromoCode:               firstNonEmpty(e.Metadata[domain.MetaPromoCode], sub.Metadata[domain.MetaPromoCode]),
	}

	if p, ok := plan.Lookup(planID); ok && p.HasCommitment() {
		start := sub.PeriodStart()
		end := CommitmentEnd(start, p.CommitmentMonths)
		if err := w.ensureCancelAt(ctx, proc, sub, end); err != nil {
			return err
		}
		row.CommitmentEndDate = &end
		row.SubscriptionEndDate = legacyEndDate(start, p)
		row.WillCancelAfterCommitment = true
	}

	inserted, err := w.subscriptions.CreateIfAbsent(ctx, row)
	if err != nil {
		return fmt.Errorf("failed to record subscription: %w", err)
	}
	if inserted {
		w.logger.Info("subscription recorded from checkout",
			zap.String("subscription_id", sub.ID),
			zap.String("user_id", userID),
			zap.String("plan_id", planID),
		)
	}
	return nil
}

func (w *WebhookReconciler) onSubscriptionUpdated(ctx context.Context, sub *domain.Subscription) error {
	row, err := w.subscriptions.FindByProcessorID(ctx, sub.ID)
	if err != nil {
		if xerrors.IsNotFound(err) {
			w.logger.Warn("subscription update for unknown row", zap.String("subscription_id", sub.ID))
			return nil
		}
		return fmt.Errorf("failed to look up subscription: %w", err)
	}
	if row.Status == subscription.StatusCanceled {
		// Terminal. Only stale snapshots can reach a canceled row.
		w.logger.Info("update for canceled subscription ignored", zap.String("subscription_id", sub.ID))
		return nil
	}

	sync := subscription.Sync{
		ProcessorSubscriptionID:   sub.ID,
		Status:                    MapStatus(sub.Status),
		CurrentPeriodEnd:          sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:         sub.CancelAtPeriodEnd,
		CommitmentEndDate:         row.CommitmentEndDate,
		WillCancelAfterCommitment: row.WillCancelAfterCommitment,
	}

	if sync.CommitmentEndDate == nil {
		if p, ok := plan.Lookup(firstNonEmpty(row.PlanID, sub.Metadata[domain.MetaPlanID])); ok && p.HasCommitment() {
			start := sub.StartDate
			if start.IsZero() {
				start = sub.PeriodStart()
			}
			end := CommitmentEnd(start, p.CommitmentMonths)
			sync.CommitmentEndDate = &end
			sync.WillCancelAfterCommitment = true
		}
	}

	// The deleted event is the one that ends a row; until it arrives an ended
	// processor subscription keeps the stored status and needs no schedule.
	ended := sync.Status == subscription.StatusCanceled
	if ended {
		sync.Status = row.Status
	}

	if end := sync.CommitmentEndDate; end != nil && !ended && w.now().Before(*end) {
		sync.Status = subscription.StatusActive
		proc, err := w.processors.ForCredentials(w.creds)
		if err != nil {
			return err
		}
		if err := w.ensureCancelAt(ctx, proc, sub, *end); err != nil {
			return err
		}
	}

	if sync.CurrentPeriodEnd.IsZero() {
		sync.CurrentPeriodEnd = row.CurrentPeriodEnd
	}
	if _, err := w.subscriptions.ApplySync(ctx, sync); err != nil {
		return fmt.Errorf("failed to sync subscription: %w", err)
	}
	return nil
}

func (w *WebhookReconciler) onSubscriptionDeleted(ctx context.Context, sub *domain.Subscription) error {
	n, err := w.subscriptions.UpdateStatusBySubscriptionID(ctx, sub.ID, subscription.StatusCanceled)
	if err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}
	if n == 0 {
		w.logger.Warn("subscription deletion for unknown row", zap.String("subscription_id", sub.ID))
	}
	return nil
}

func (w *WebhookReconciler) onInvoicePaymentFailed(ctx context.Context, e *domain.InvoicePaymentFailedEvent) error {
	if e.CustomerID == "" {
		w.logger.Warn("payment failure without customer", zap.String("invoice_id", e.InvoiceID))
		return nil
	}
	n, err := w.subscriptions.UpdateStatusByCustomerID(ctx, e.CustomerID, subscription.StatusPastDue)
	if err != nil {
		return fmt.Errorf("failed to mark subscription past due: %w", err)
	}
	w.logger.Info("subscriptions marked past due",
		zap.String("customer_id", e.CustomerID),
		zap.String("invoice_id", e.InvoiceID),
		zap.Int64("rows", n),
	)
	return nil
}

// ========== Reconciliation ==========

// ReconcileCommitments re-asserts the scheduled cancel of every subscription
// whose commitment is still running and reports how many schedules it fixed.
func (w *WebhookReconciler) ReconcileCommitments(ctx context.Context) (checked, corrected int, err error) {
	now := w.now()
	rows, err := w.subscriptions.ListWithActiveCommitment(ctx, now)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list committed subscriptions: %w", err)
	}
	if len(rows) == 0 {
		return 0, 0, nil
	}

	proc, err := w.processors.ForCredentials(w.creds)
	if err != nil {
		return 0, 0, err
	}

	var errs []error
	for i := range rows {
		row := &rows[i]
		if !row.CommitmentActive(now) {
			continue
		}
		checked++
		sub, err := proc.GetSubscription(ctx, row.ProcessorSubscriptionID)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", row.ProcessorSubscriptionID, err))
			continue
		}
		if MapStatus(sub.Status) == subscription.StatusCanceled || cancelAtMatches(sub.CancelAt, *row.CommitmentEndDate) {
			continue
		}
		if err := w.ensureCancelAt(ctx, proc, sub, *row.CommitmentEndDate); err != nil {
			errs = append(errs, err)
			continue
		}
		corrected++
	}
	return checked, corrected, errors.Join(errs...)
}

// ========== Helpers ==========

// ensureCancelAt schedules the processor-side cancel at end unless it is
// already set to that second.
func (w *WebhookReconciler) ensureCancelAt(ctx context.Context, proc domain.Processor, sub *domain.Subscription, end time.Time) error {
	if cancelAtMatches(sub.CancelAt, end) {
		return nil
	}
	w.logger.Info("correcting scheduled cancel",
		zap.String("subscription_id", sub.ID),
		zap.Int64("cancel_at", CancelAtUnix(end)),
	)
	if err := proc.SetSubscriptionCancelAt(ctx, sub.ID, end); err != nil {
		return fmt.Errorf("failed to schedule cancel for %s: %w", sub.ID, err)
	}
	return nil
}

// resolveUserID reads the user from event metadata, then subscription
// metadata, then the customer's email.
func (w *WebhookReconciler) resolveUserID(ctx context.Context, proc domain.Processor, e *domain.CheckoutCompletedEvent, sub *domain.Subscription) (string, error) {
	if id := firstNonEmpty(e.Metadata[domain.MetaUserID], sub.Metadata[domain.MetaUserID]); id != "" {
		return id, nil
	}

	email := e.CustomerEmail
	if email == "" {
		customerID := firstNonEmpty(e.CustomerID, sub.CustomerID)
		if customerID == "" {
			return "", fmt.Errorf("%w: checkout has no customer", domain.ErrUserNotFound)
		}
		customer, err := proc.GetCustomer(ctx, customerID)
		if err != nil {
			return "", fmt.Errorf("failed to fetch customer %s: %w", customerID, err)
		}
		email = customer.Email
	}
	if email == "" {
		return "", fmt.Errorf("%w: checkout customer has no email", domain.ErrUserNotFound)
	}

	account, err := w.users.FindByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if xerrors.IsNotFound(err) {
			return "", fmt.Errorf("%w: no user with email %s", domain.ErrUserNotFound, email)
		}
		return "", err
	}
	return account.ID, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
